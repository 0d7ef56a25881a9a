package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/helixbytes/contact-api/internal/domain/repository"
)

// Retention windows for the two sweepers.
const (
	DefaultSubmissionRetention = 7 * 24 * time.Hour
	DefaultCounterRetention    = 24 * time.Hour
)

// CleanupService implements the two scheduled sweepers: unverified
// submissions past retention and stale rate-limit counters. Both sweeps are
// idempotent and a no-op when nothing matches.
type CleanupService struct {
	submissionRepo      repository.SubmissionRepository
	rateLimitRepo       repository.RateLimitRepository
	submissionRetention time.Duration
	counterRetention    time.Duration
}

func NewCleanupService(
	submissionRepo repository.SubmissionRepository,
	rateLimitRepo repository.RateLimitRepository,
	submissionRetention time.Duration,
	counterRetention time.Duration,
) (*CleanupService, error) {
	if submissionRepo == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if rateLimitRepo == nil {
		return nil, fmt.Errorf("rate limit repository is required")
	}
	if submissionRetention <= 0 {
		submissionRetention = DefaultSubmissionRetention
	}
	if counterRetention <= 0 {
		counterRetention = DefaultCounterRetention
	}
	return &CleanupService{
		submissionRepo:      submissionRepo,
		rateLimitRepo:       rateLimitRepo,
		submissionRetention: submissionRetention,
		counterRetention:    counterRetention,
	}, nil
}

// SweepUnverifiedSubmissions deletes submissions that are still unverified
// after the retention window. Returns the number of deleted rows.
func (s *CleanupService) SweepUnverifiedSubmissions(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.submissionRetention)
	deleted, err := s.submissionRepo.DeleteUnverifiedBefore(ctx, cutoff, cleanupBatchSize)
	if err != nil {
		return deleted, fmt.Errorf("unverified submission sweep failed: %w", err)
	}
	log.Printf("[Cleanup] Removed %d unverified submissions older than %s", deleted, s.submissionRetention)
	return deleted, nil
}

// SweepRateLimitCounters deletes counters whose window started before the
// counter retention cutoff, regardless of activity.
func (s *CleanupService) SweepRateLimitCounters(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.counterRetention)
	deleted, err := s.rateLimitRepo.DeleteExpiredBefore(ctx, cutoff, cleanupBatchSize)
	if err != nil {
		return deleted, fmt.Errorf("rate limit counter sweep failed: %w", err)
	}
	log.Printf("[Cleanup] Removed %d stale rate limit counters older than %s", deleted, s.counterRetention)
	return deleted, nil
}
