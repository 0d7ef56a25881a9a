package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/helixbytes/contact-api/internal/service"
)

// VerificationHandler обрабатывает переходы по verification-ссылкам из писем
type VerificationHandler struct {
	verificationService *service.VerificationService
	statusPageURL       string
}

// NewVerificationHandler создает новый обработчик подтверждения email
func NewVerificationHandler(verificationService *service.VerificationService, statusPageURL string) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
		statusPageURL:       statusPageURL,
	}
}

// Verify обрабатывает GET /api/contact/verify?token=...
// Endpoint открывается по ссылке из письма, поэтому всегда отвечает
// редиректом на статусную страницу сайта, никогда JSON.
func (h *VerificationHandler) Verify(c *gin.Context) {
	result := h.verificationService.Confirm(c.Request.Context(), c.Query("token"))
	c.Redirect(http.StatusFound, fmt.Sprintf("%s?status=%s", h.statusPageURL, result))
}
