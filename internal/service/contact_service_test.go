package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixbytes/contact-api/internal/domain/entity"
	apperrors "github.com/helixbytes/contact-api/internal/pkg/errors"
)

// ============================================================================
// Моки для тестирования пайплайна контактной формы
// ============================================================================

// MockSubmissionRepository реализует repository.SubmissionRepository
type MockSubmissionRepository struct {
	mock.Mock
}

func (m *MockSubmissionRepository) Create(ctx context.Context, submission *entity.ContactSubmission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

func (m *MockSubmissionRepository) GetByToken(ctx context.Context, token string) (*entity.ContactSubmission, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ContactSubmission), args.Error(1)
}

func (m *MockSubmissionRepository) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	args := m.Called(ctx, id, verifiedAt)
	return args.Error(0)
}

func (m *MockSubmissionRepository) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	args := m.Called(ctx, cutoff, batchSize)
	return args.Get(0).(int64), args.Error(1)
}

// MockRateLimitRepository реализует repository.RateLimitRepository
type MockRateLimitRepository struct {
	mock.Mock
}

func (m *MockRateLimitRepository) CheckAndConsume(ctx context.Context, identityHash string, max int, window time.Duration) (bool, error) {
	args := m.Called(ctx, identityHash, max, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimitRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	args := m.Called(ctx, cutoff, batchSize)
	return args.Get(0).(int64), args.Error(1)
}

// MockEmailService реализует EmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendTeamNotification(ctx context.Context, submission *entity.ContactSubmission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, submission *entity.ContactSubmission, verifyURL string) error {
	args := m.Called(ctx, submission, verifyURL)
	return args.Error(0)
}

// ============================================================================
// Тесты ContactService.Submit
// ============================================================================

func newContactService(t *testing.T, subRepo *MockSubmissionRepository, rlRepo *MockRateLimitRepository, email *MockEmailService) *ContactService {
	t.Helper()
	svc, err := NewContactService(
		subRepo, rlRepo, email,
		5, time.Hour, 24*time.Hour,
		"https://api.helixbytes.digital",
	)
	require.NoError(t, err)
	return svc
}

var tokenHexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestContactService_Submit_Success(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	rlRepo := new(MockRateLimitRepository)
	email := new(MockEmailService)
	svc := newContactService(t, subRepo, rlRepo, email)

	var stored *entity.ContactSubmission
	rlRepo.On("CheckAndConsume", mock.Anything, mock.Anything, 5, time.Hour).Return(true, nil)
	subRepo.On("Create", mock.Anything, mock.AnythingOfType("*entity.ContactSubmission")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*entity.ContactSubmission)
		}).Return(nil)
	email.On("SendTeamNotification", mock.Anything, mock.Anything).Return(nil)
	email.On("SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	outcome, err := svc.Submit(context.Background(), validInput(), "203.0.113.7")

	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Honeypot)
	assert.NotEmpty(t, outcome.SubmissionID)

	require.NotNil(t, stored)
	assert.Equal(t, outcome.SubmissionID, stored.ID)
	assert.Equal(t, entity.SubmissionStatusPending, stored.Status)
	assert.False(t, stored.EmailVerified)
	assert.Equal(t, entity.SubmissionSource, stored.Source)
	assert.Equal(t, HashClientIP("203.0.113.7"), stored.IPHash)

	// Токен: 64 hex-символа, expiry ровно createdAt + 24h
	require.NotNil(t, stored.VerificationToken)
	assert.Regexp(t, tokenHexPattern, *stored.VerificationToken)
	require.NotNil(t, stored.TokenExpiresAt)
	assert.Equal(t, stored.CreatedAt.Add(24*time.Hour), *stored.TokenExpiresAt)

	subRepo.AssertExpectations(t)
	email.AssertExpectations(t)
}

func TestContactService_Submit_VerificationLinkContainsToken(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	rlRepo := new(MockRateLimitRepository)
	email := new(MockEmailService)
	svc := newContactService(t, subRepo, rlRepo, email)

	var stored *entity.ContactSubmission
	var verifyURL string
	rlRepo.On("CheckAndConsume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	subRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*entity.ContactSubmission) }).Return(nil)
	email.On("SendTeamNotification", mock.Anything, mock.Anything).Return(nil)
	email.On("SendVerificationEmail", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { verifyURL = args.Get(2).(string) }).Return(nil)

	_, err := svc.Submit(context.Background(), validInput(), "203.0.113.7")

	require.NoError(t, err)
	require.NotNil(t, stored.VerificationToken)
	assert.Equal(t, "https://api.helixbytes.digital/api/contact/verify?token="+*stored.VerificationToken, verifyURL)
}

func TestContactService_Submit_Honeypot(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	rlRepo := new(MockRateLimitRepository)
	email := new(MockEmailService)
	svc := newContactService(t, subRepo, rlRepo, email)

	input := validInput()
	input.Website = "https://spam.example.com"

	outcome, err := svc.Submit(context.Background(), input, "203.0.113.7")

	// Симулированный успех: есть id, но ничего не сохранено и не отправлено
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.True(t, outcome.Honeypot)
	assert.NotEmpty(t, outcome.SubmissionID)

	subRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	rlRepo.AssertNotCalled(t, "CheckAndConsume", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	email.AssertNotCalled(t, "SendTeamNotification", mock.Anything, mock.Anything)
	email.AssertNotCalled(t, "SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestContactService_Submit_RateLimited(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	rlRepo := new(MockRateLimitRepository)
	email := new(MockEmailService)
	svc := newContactService(t, subRepo, rlRepo, email)

	rlRepo.On("CheckAndConsume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	outcome, err := svc.Submit(context.Background(), validInput(), "203.0.113.7")

	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	subRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestContactService_Submit_RateLimitFailsOpen(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	rlRepo := new(MockRateLimitRepository)
	email := new(MockEmailService)
	svc := newContactService(t, subRepo, rlRepo, email)

	// Хранилище счетчиков недоступно — запрос все равно проходит
	rlRepo.On("CheckAndConsume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(false, assert.AnError)
	subRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	email.On("SendTeamNotification", mock.Anything, mock.Anything).Return(nil)
	email.On("SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	outcome, err := svc.Submit(context.Background(), validInput(), "203.0.113.7")

	require.NoError(t, err)
	assert.NotEmpty(t, outcome.SubmissionID)
}

func TestContactService_Submit_ValidationShortCircuits(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	rlRepo := new(MockRateLimitRepository)
	email := new(MockEmailService)
	svc := newContactService(t, subRepo, rlRepo, email)

	rlRepo.On("CheckAndConsume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	input := validInput()
	input.Email = "not-an-email"

	outcome, err := svc.Submit(context.Background(), input, "203.0.113.7")

	assert.Nil(t, outcome)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Invalid email format", vErr.Message)
	subRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestContactService_Submit_StoreFailureIsFatal(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	rlRepo := new(MockRateLimitRepository)
	email := new(MockEmailService)
	svc := newContactService(t, subRepo, rlRepo, email)

	rlRepo.On("CheckAndConsume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	subRepo.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

	outcome, err := svc.Submit(context.Background(), validInput(), "203.0.113.7")

	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, ErrSubmissionStoreFailed)
	email.AssertNotCalled(t, "SendTeamNotification", mock.Anything, mock.Anything)
}

func TestContactService_Submit_EmailFailureIsNotFatal(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	rlRepo := new(MockRateLimitRepository)
	email := new(MockEmailService)
	svc := newContactService(t, subRepo, rlRepo, email)

	rlRepo.On("CheckAndConsume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	subRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	email.On("SendTeamNotification", mock.Anything, mock.Anything).Return(assert.AnError)
	email.On("SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	outcome, err := svc.Submit(context.Background(), validInput(), "203.0.113.7")

	// Заявка уже сохранена — ошибки писем не валят запрос
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.NotEmpty(t, outcome.SubmissionID)
}

func TestHashClientIP(t *testing.T) {
	h1 := HashClientIP("203.0.113.7")
	h2 := HashClientIP("203.0.113.7")
	h3 := HashClientIP("203.0.113.8")

	assert.Equal(t, h1, h2, "хеш должен быть детерминированным")
	assert.NotEqual(t, h1, h3)
	assert.Regexp(t, `^[0-9a-z]+$`, h1, "ключ — base36")
}
