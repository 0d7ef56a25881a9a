package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/helixbytes/contact-api/internal/domain/repository"
	apperrors "github.com/helixbytes/contact-api/internal/pkg/errors"
)

// VerificationResult is the terminal outcome of a verification attempt. The
// values double as the status flag on the redirect target.
type VerificationResult string

const (
	VerificationSuccess         VerificationResult = "success"
	VerificationAlreadyVerified VerificationResult = "already-verified"
	VerificationExpired         VerificationResult = "expired"
	VerificationInvalid         VerificationResult = "invalid"
)

// Token format: hex encoding of 32 random bytes. Anything else is rejected
// before a store lookup happens.
var verificationTokenPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// VerificationService transitions submissions from pending to verified based
// on the emailed token.
type VerificationService struct {
	submissionRepo repository.SubmissionRepository
}

func NewVerificationService(submissionRepo repository.SubmissionRepository) (*VerificationService, error) {
	if submissionRepo == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	return &VerificationService{submissionRepo: submissionRepo}, nil
}

// Confirm resolves a token to a terminal outcome. It never returns an error:
// internal store failures are logged and reported as invalid, so the caller
// can always redirect with a status flag.
//
// A missing record covers both "never existed" and "already consumed", since
// the token is deleted on success. Both are reported as invalid on purpose —
// the response must not leak whether a token ever existed.
func (s *VerificationService) Confirm(ctx context.Context, token string) VerificationResult {
	if !verificationTokenPattern.MatchString(token) {
		return VerificationInvalid
	}

	submission, err := s.submissionRepo.GetByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[VerificationService] Token lookup failed: %v", err)
		}
		return VerificationInvalid
	}

	if submission.EmailVerified {
		return VerificationAlreadyVerified
	}

	now := time.Now()
	if submission.IsTokenExpired(now) {
		// Left as-is: the cleanup job owns deletion of expired submissions.
		return VerificationExpired
	}

	if err := s.submissionRepo.MarkVerified(ctx, submission.ID, now); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Lost the race: a concurrent request consumed the token between
			// our read and the guarded update. Exactly one caller sees success.
			return VerificationAlreadyVerified
		}
		log.Printf("[VerificationService] Failed to mark submission id=%s verified: %v", submission.ID, err)
		return VerificationInvalid
	}

	log.Printf("[VerificationService] Submission id=%s verified", submission.ID)
	return VerificationSuccess
}
