package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/helixbytes/contact-api/internal/pkg/errors"
	"github.com/helixbytes/contact-api/internal/service"
)

// Заголовок с attestation-токеном клиента
const appCheckHeader = "X-App-Check"

// ContactHandler обрабатывает заявки контактной формы
type ContactHandler struct {
	contactService   *service.ContactService
	appCheckVerifier service.AppCheckVerifier
	appCheckMode     string
}

// NewContactHandler создает новый обработчик контактной формы
func NewContactHandler(
	contactService *service.ContactService,
	appCheckVerifier service.AppCheckVerifier,
	appCheckMode string,
) *ContactHandler {
	return &ContactHandler{
		contactService:   contactService,
		appCheckVerifier: appCheckVerifier,
		appCheckMode:     appCheckMode,
	}
}

// SubmitResponse представляет ответ submit endpoint
type SubmitResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SubmissionID string `json:"submissionId,omitempty"`
}

// Submit обрабатывает POST /api/contact.
// Порядок шагов фиксирован: attestation -> honeypot -> rate limit ->
// валидация -> сохранение -> письма (best-effort). Ошибка шага прерывает
// последующие, кроме писем.
func (h *ContactHandler) Submit(c *gin.Context) {
	if !h.verifyAttestation(c) {
		return
	}

	var input service.ContactFormInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, SubmitResponse{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	outcome, err := h.contactService.Submit(c.Request.Context(), &input, clientIPFromRequest(c))
	if err != nil {
		h.handleSubmitError(c, err)
		return
	}

	// Honeypot-срабатывание возвращает тот же ответ, что и успех:
	// автоматический клиент не должен узнать, что его распознали.
	c.JSON(http.StatusOK, SubmitResponse{
		Success:      true,
		Message:      "Thank you for your message. We'll be in touch soon!",
		SubmissionID: outcome.SubmissionID,
	})
}

// verifyAttestation проверяет attestation-токен согласно режиму soft/strict.
// Возвращает false, если запрос уже отклонен.
func (h *ContactHandler) verifyAttestation(c *gin.Context) bool {
	token := strings.TrimSpace(c.GetHeader(appCheckHeader))
	if token == "" {
		if h.appCheckMode == service.AppCheckModeStrict {
			log.Printf("[ContactHandler] Attestation token missing, rejecting (strict mode)")
			h.rejectAttestation(c)
			return false
		}
		// Soft-режим: пропускаем, но логируем отсутствие токена
		log.Printf("[ContactHandler] Attestation token not provided, allowing (soft mode)")
		return true
	}

	if err := h.appCheckVerifier.Verify(c.Request.Context(), token); err != nil {
		log.Printf("[ContactHandler] Attestation verification failed: %v", err)
		h.rejectAttestation(c)
		return false
	}
	return true
}

// rejectAttestation отвечает generic 403 без деталей, чтобы не подсказывать
// атакующему причину отказа
func (h *ContactHandler) rejectAttestation(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, SubmitResponse{
		Success: false,
		Message: "Request verification failed. Please try again.",
	})
}

func (h *ContactHandler) handleSubmitError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		// Ошибки валидации возвращаются пользователю как есть и
		// не логируются как системные
		c.JSON(http.StatusBadRequest, SubmitResponse{
			Success: false,
			Message: validationErr.Message,
		})
		return
	}

	if errors.Is(err, apperrors.ErrRateLimited) {
		c.JSON(http.StatusTooManyRequests, SubmitResponse{
			Success: false,
			Message: "Too many requests. Please try again later.",
		})
		return
	}

	log.Printf("[ContactHandler] Submission failed: %v", err)
	c.JSON(http.StatusInternalServerError, SubmitResponse{
		Success: false,
		Message: "An error occurred. Please try again later.",
	})
}

// clientIPFromRequest извлекает IP клиента: первое значение X-Forwarded-For,
// иначе RemoteAddr через gin
func clientIPFromRequest(c *gin.Context) string {
	forwarded := c.GetHeader("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return c.ClientIP()
}
