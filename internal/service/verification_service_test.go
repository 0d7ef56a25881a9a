package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixbytes/contact-api/internal/domain/entity"
	apperrors "github.com/helixbytes/contact-api/internal/pkg/errors"
)

const testToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func pendingSubmission(expiresAt time.Time) *entity.ContactSubmission {
	token := testToken
	return &entity.ContactSubmission{
		ID:                "sub-1",
		Email:             "jane@example.com",
		Status:            entity.SubmissionStatusPending,
		EmailVerified:     false,
		VerificationToken: &token,
		TokenExpiresAt:    &expiresAt,
		CreatedAt:         expiresAt.Add(-24 * time.Hour),
	}
}

func TestVerificationService_Confirm_MalformedToken(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	svc, err := NewVerificationService(subRepo)
	require.NoError(t, err)

	malformed := []string{
		"",
		"short",
		strings.Repeat("g", 64),                // не hex
		strings.Repeat("a", 63),                // короче
		strings.Repeat("a", 65),                // длиннее
		strings.ToUpper(testToken),             // верхний регистр не допускается
		strings.Repeat("a", 32) + " " + strings.Repeat("a", 31),
	}

	for _, token := range malformed {
		result := svc.Confirm(context.Background(), token)
		assert.Equal(t, VerificationInvalid, result, "token %q", token)
	}

	// Невалидный формат не должен приводить к запросу в хранилище
	subRepo.AssertNotCalled(t, "GetByToken", mock.Anything, mock.Anything)
}

func TestVerificationService_Confirm_NotFound(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	svc, _ := NewVerificationService(subRepo)

	// Покрывает и "токен никогда не существовал", и "уже использован":
	// после успеха токен удаляется из записи
	subRepo.On("GetByToken", mock.Anything, testToken).Return(nil, apperrors.ErrNotFound)

	result := svc.Confirm(context.Background(), testToken)

	assert.Equal(t, VerificationInvalid, result)
	subRepo.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationService_Confirm_AlreadyVerified(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	svc, _ := NewVerificationService(subRepo)

	verified := &entity.ContactSubmission{
		ID:            "sub-1",
		Status:        entity.SubmissionStatusVerified,
		EmailVerified: true,
	}
	subRepo.On("GetByToken", mock.Anything, testToken).Return(verified, nil)

	result := svc.Confirm(context.Background(), testToken)

	assert.Equal(t, VerificationAlreadyVerified, result)
	subRepo.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationService_Confirm_Expired(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	svc, _ := NewVerificationService(subRepo)

	submission := pendingSubmission(time.Now().Add(-1 * time.Hour))
	subRepo.On("GetByToken", mock.Anything, testToken).Return(submission, nil)

	result := svc.Confirm(context.Background(), testToken)

	// Запись остается как есть — удалением занимается cleanup job
	assert.Equal(t, VerificationExpired, result)
	assert.False(t, submission.EmailVerified)
	subRepo.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationService_Confirm_Valid(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	svc, _ := NewVerificationService(subRepo)

	submission := pendingSubmission(time.Now().Add(12 * time.Hour))
	subRepo.On("GetByToken", mock.Anything, testToken).Return(submission, nil)
	subRepo.On("MarkVerified", mock.Anything, "sub-1", mock.AnythingOfType("time.Time")).Return(nil)

	result := svc.Confirm(context.Background(), testToken)

	assert.Equal(t, VerificationSuccess, result)
	subRepo.AssertExpectations(t)
}

func TestVerificationService_Confirm_SecondAttemptFindsNothing(t *testing.T) {
	// Round-trip: после успешного подтверждения токен удален, повторное
	// обращение по той же ссылке дает invalid, а не повторный успех
	subRepo := new(MockSubmissionRepository)
	svc, _ := NewVerificationService(subRepo)

	submission := pendingSubmission(time.Now().Add(12 * time.Hour))
	subRepo.On("GetByToken", mock.Anything, testToken).Return(submission, nil).Once()
	subRepo.On("MarkVerified", mock.Anything, "sub-1", mock.Anything).Return(nil).Once()
	subRepo.On("GetByToken", mock.Anything, testToken).Return(nil, apperrors.ErrNotFound).Once()

	first := svc.Confirm(context.Background(), testToken)
	second := svc.Confirm(context.Background(), testToken)

	assert.Equal(t, VerificationSuccess, first)
	assert.Equal(t, VerificationInvalid, second)
}

func TestVerificationService_Confirm_ConcurrentConfirmsYieldOneSuccess(t *testing.T) {
	// Два конкурентных перехода по одной ссылке: оба читают pending-запись,
	// но guarded update в хранилище пропускает только одного. Проигравший
	// получает ErrConflict и репортится как already-verified, не как успех.
	subRepo := new(MockSubmissionRepository)
	svc, _ := NewVerificationService(subRepo)

	submission := pendingSubmission(time.Now().Add(12 * time.Hour))
	subRepo.On("GetByToken", mock.Anything, testToken).Return(submission, nil).Twice()
	subRepo.On("MarkVerified", mock.Anything, "sub-1", mock.Anything).Return(nil).Once()
	subRepo.On("MarkVerified", mock.Anything, "sub-1", mock.Anything).Return(apperrors.ErrConflict).Once()

	winner := svc.Confirm(context.Background(), testToken)
	loser := svc.Confirm(context.Background(), testToken)

	assert.Equal(t, VerificationSuccess, winner)
	assert.Equal(t, VerificationAlreadyVerified, loser)
	subRepo.AssertExpectations(t)
}

func TestVerificationService_Confirm_StoreErrorIsInvalid(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	svc, _ := NewVerificationService(subRepo)

	subRepo.On("GetByToken", mock.Anything, testToken).Return(nil, assert.AnError)

	result := svc.Confirm(context.Background(), testToken)

	// Внутренние ошибки никогда не выходят за пределы handler'а
	assert.Equal(t, VerificationInvalid, result)
}

func TestVerificationService_Confirm_MarkVerifiedErrorIsInvalid(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	svc, _ := NewVerificationService(subRepo)

	submission := pendingSubmission(time.Now().Add(12 * time.Hour))
	subRepo.On("GetByToken", mock.Anything, testToken).Return(submission, nil)
	subRepo.On("MarkVerified", mock.Anything, "sub-1", mock.Anything).Return(assert.AnError)

	result := svc.Confirm(context.Background(), testToken)

	assert.Equal(t, VerificationInvalid, result)
}
