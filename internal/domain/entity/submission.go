package entity

import "time"

// Submission statuses. A rejected submission is never stored, so the only
// persisted states are pending and verified.
const (
	SubmissionStatusPending  = "pending"
	SubmissionStatusVerified = "verified"
)

// SubmissionSource is stamped on every record created by the website form.
const SubmissionSource = "website"

// ContactSubmission stores one contact-form entry together with its
// double-opt-in verification state. Token fields are cleared once the
// submitter confirms the email address.
type ContactSubmission struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	Name        string  `gorm:"size:100;not null" json:"name"`
	Email       string  `gorm:"size:254;not null" json:"email"`
	Company     *string `gorm:"size:200" json:"company,omitempty"`
	ProjectType *string `gorm:"size:100" json:"project_type,omitempty"`
	Message     string  `gorm:"type:text;not null" json:"message"`

	// IPHash is a short non-cryptographic hash of the client IP, kept for
	// abuse tracking only.
	IPHash string `gorm:"size:16;not null" json:"-"`

	// ClientTimestamp and ClientTimezone are reported by the browser and are
	// advisory only. They are never used for any enforcement decision.
	ClientTimestamp *int64  `gorm:"column:client_timestamp" json:"-"`
	ClientTimezone  *string `gorm:"size:64" json:"-"`

	Status        string `gorm:"size:16;not null;default:pending" json:"status"`
	EmailVerified bool   `gorm:"not null;default:false" json:"email_verified"`

	VerificationToken *string    `gorm:"size:64;uniqueIndex" json:"-"`
	TokenExpiresAt    *time.Time `gorm:"column:token_expires_at" json:"-"`

	Source     string     `gorm:"size:32;not null;default:website" json:"source"`
	CreatedAt  time.Time  `gorm:"not null;index" json:"created_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

func (ContactSubmission) TableName() string {
	return "contact_submissions"
}

// IsTokenExpired reports whether the verification window has closed.
// A submission without token fields (already verified) is never expired.
func (s *ContactSubmission) IsTokenExpired(now time.Time) bool {
	if s.TokenExpiresAt == nil {
		return false
	}
	return now.After(*s.TokenExpiresAt)
}
