package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/helixbytes/contact-api/internal/domain/entity"
	"github.com/helixbytes/contact-api/internal/domain/repository"
	apperrors "github.com/helixbytes/contact-api/internal/pkg/errors"
)

// Defaults for the submission pipeline.
const (
	DefaultRateLimitMax    = 5
	DefaultRateLimitWindow = time.Hour
	DefaultVerificationTTL = 24 * time.Hour

	verificationTokenBytes = 32
	cleanupBatchSize       = 500
)

// SubmitOutcome is the result of a processed submission request.
type SubmitOutcome struct {
	SubmissionID string

	// Honeypot marks a bot submission that was absorbed: the caller must
	// respond with a simulated success and nothing was persisted.
	Honeypot bool
}

// ContactService runs the submit pipeline: honeypot check, rate limiting,
// validation, persistence and best-effort notification emails.
type ContactService struct {
	submissionRepo  repository.SubmissionRepository
	rateLimitRepo   repository.RateLimitRepository
	emailService    EmailService
	rateLimitMax    int
	rateLimitWindow time.Duration
	verificationTTL time.Duration
	publicBaseURL   string
}

func NewContactService(
	submissionRepo repository.SubmissionRepository,
	rateLimitRepo repository.RateLimitRepository,
	emailService EmailService,
	rateLimitMax int,
	rateLimitWindow time.Duration,
	verificationTTL time.Duration,
	publicBaseURL string,
) (*ContactService, error) {
	if submissionRepo == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if rateLimitRepo == nil {
		return nil, fmt.Errorf("rate limit repository is required")
	}
	if emailService == nil {
		return nil, fmt.Errorf("email service is required")
	}
	if rateLimitMax <= 0 {
		rateLimitMax = DefaultRateLimitMax
	}
	if rateLimitWindow <= 0 {
		rateLimitWindow = DefaultRateLimitWindow
	}
	if verificationTTL <= 0 {
		verificationTTL = DefaultVerificationTTL
	}
	if publicBaseURL == "" {
		return nil, fmt.Errorf("public base url is required")
	}

	return &ContactService{
		submissionRepo:  submissionRepo,
		rateLimitRepo:   rateLimitRepo,
		emailService:    emailService,
		rateLimitMax:    rateLimitMax,
		rateLimitWindow: rateLimitWindow,
		verificationTTL: verificationTTL,
		publicBaseURL:   publicBaseURL,
	}, nil
}

// Submit processes one contact-form request. Error values the handler maps to
// responses: *ValidationError (400), apperrors.ErrRateLimited (429); anything
// else is an internal failure (500). A honeypot hit is not an error — the
// outcome instructs the handler to fake success.
func (s *ContactService) Submit(ctx context.Context, input *ContactFormInput, clientIP string) (*SubmitOutcome, error) {
	if input != nil && input.Website != "" {
		// Bot filled the hidden field. Absorb silently: simulated success,
		// nothing persisted, throwaway id so the response shape matches.
		log.Printf("[ContactService] Honeypot triggered, absorbing submission (ip_hash=%s)", HashClientIP(clientIP))
		return &SubmitOutcome{SubmissionID: uuid.NewString(), Honeypot: true}, nil
	}

	ipHash := HashClientIP(clientIP)
	if !s.checkRateLimit(ctx, ipHash) {
		return nil, apperrors.ErrRateLimited
	}

	draft, validationErr := ValidateContactForm(input)
	if validationErr != nil {
		return nil, validationErr
	}

	token, err := generateVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.verificationTTL)
	submission := &entity.ContactSubmission{
		ID:                uuid.NewString(),
		Name:              draft.Name,
		Email:             draft.Email,
		Company:           draft.Company,
		ProjectType:       draft.ProjectType,
		Message:           draft.Message,
		IPHash:            ipHash,
		ClientTimestamp:   draft.ClientTimestamp,
		ClientTimezone:    draft.ClientTimezone,
		Status:            entity.SubmissionStatusPending,
		EmailVerified:     false,
		VerificationToken: &token,
		TokenExpiresAt:    &expiresAt,
		Source:            entity.SubmissionSource,
		CreatedAt:         now,
	}

	if err := s.submissionRepo.Create(ctx, submission); err != nil {
		// The store is the source of truth — a create failure fails the request.
		return nil, fmt.Errorf("%w: %v", ErrSubmissionStoreFailed, err)
	}

	log.Printf("[ContactService] Submission stored id=%s", submission.ID)

	s.notify(ctx, submission, token)

	return &SubmitOutcome{SubmissionID: submission.ID}, nil
}

// checkRateLimit consumes a slot for the identity. Fails open on store
// errors: availability of the contact channel wins over strict limiting.
func (s *ContactService) checkRateLimit(ctx context.Context, ipHash string) bool {
	allowed, err := s.rateLimitRepo.CheckAndConsume(ctx, ipHash, s.rateLimitMax, s.rateLimitWindow)
	if err != nil {
		log.Printf("[ContactService] Rate limit check failed for identity=%s: %v. Allowing request (fail-open).", ipHash, err)
		return true
	}
	return allowed
}

// notify sends both pipeline emails. Failures are logged and swallowed — the
// submission is already stored and email is only a side channel.
func (s *ContactService) notify(ctx context.Context, submission *entity.ContactSubmission, token string) {
	if err := s.emailService.SendTeamNotification(ctx, submission); err != nil {
		log.Printf("[ContactService] Failed to send team notification for id=%s: %v", submission.ID, err)
	}

	verifyURL := fmt.Sprintf("%s/api/contact/verify?token=%s", s.publicBaseURL, token)
	if err := s.emailService.SendVerificationEmail(ctx, submission, verifyURL); err != nil {
		log.Printf("[ContactService] Failed to send verification email for id=%s: %v", submission.ID, err)
	}
}

// HashClientIP buckets a client IP into a short base36 key. fnv32a is a fast
// non-cryptographic hash; collisions are acceptable because the value is a
// rate-limit bucket, not a security identity.
func HashClientIP(ip string) string {
	h := fnv.New32a()
	h.Write([]byte(ip))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}

func generateVerificationToken() (string, error) {
	b := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
