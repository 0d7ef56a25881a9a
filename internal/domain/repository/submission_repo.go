package repository

import (
	"context"
	"time"

	"github.com/helixbytes/contact-api/internal/domain/entity"
)

// SubmissionRepository persists contact-form submissions and their
// verification lifecycle.
type SubmissionRepository interface {
	// Create inserts a new submission. It never overwrites an existing record.
	Create(ctx context.Context, submission *entity.ContactSubmission) error

	// GetByToken looks up a submission by its verification token.
	// Returns apperrors.ErrNotFound when no record matches; callers must
	// validate the token format before calling.
	GetByToken(ctx context.Context, token string) (*entity.ContactSubmission, error)

	// MarkVerified atomically flips the record to verified, stamps
	// verified_at and clears both token fields. The transition is guarded by
	// the row state: if the record is already verified (e.g. a concurrent
	// request consumed the token first), it returns apperrors.ErrConflict.
	MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error

	// DeleteUnverifiedBefore removes unverified submissions created before
	// cutoff, in batches of at most batchSize rows. Returns the total number
	// of deleted rows.
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}
