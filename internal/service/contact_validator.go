package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation limits for the contact form.
const (
	NameMinLength    = 2
	NameMaxLength    = 100
	MessageMinLength = 20
	MessageMaxLength = 5000
)

var (
	// Permissive local@domain.tld shape. Deliverability is proven by the
	// double-opt-in email, not by this pattern.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
)

// ContactFormInput is the raw, untrusted payload of the submit endpoint.
type ContactFormInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	ProjectType string `json:"projectType"`
	Message     string `json:"message"`

	// Website is the honeypot field. Humans never see it; bots fill it.
	Website string `json:"website"`

	// Advisory metadata reported by the browser, never trusted.
	Timestamp *int64 `json:"_timestamp"`
	Timezone  string `json:"_timezone"`
}

// ContactDraft is a normalized, validated submission ready for persistence.
type ContactDraft struct {
	Name        string
	Email       string
	Company     *string
	ProjectType *string
	Message     string

	ClientTimestamp *int64
	ClientTimezone  *string
}

// ValidationError carries the field-specific message returned to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateContactForm checks the payload and returns a normalized draft.
// The check order is fixed so error messages are deterministic per input:
// required fields, then lengths, then email format. Pure, no side effects.
func ValidateContactForm(input *ContactFormInput) (*ContactDraft, *ValidationError) {
	if input == nil {
		return nil, &ValidationError{Message: "Invalid request body"}
	}

	if strings.TrimSpace(input.Name) == "" {
		return nil, &ValidationError{Message: "Name is required"}
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, &ValidationError{Message: "Email is required"}
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, &ValidationError{Message: "Message is required"}
	}

	name := sanitizeString(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	message := sanitizeString(input.Message)

	// Bounds count characters, not bytes, so multibyte names measure correctly.
	if utf8.RuneCountInString(name) < NameMinLength {
		return nil, &ValidationError{Message: "Name is too short"}
	}
	if utf8.RuneCountInString(name) > NameMaxLength {
		return nil, &ValidationError{Message: "Name is too long"}
	}
	if utf8.RuneCountInString(message) < MessageMinLength {
		return nil, &ValidationError{Message: "Message is too short"}
	}
	if utf8.RuneCountInString(message) > MessageMaxLength {
		return nil, &ValidationError{Message: "Message is too long"}
	}

	if !emailPattern.MatchString(email) {
		return nil, &ValidationError{Message: "Invalid email format"}
	}

	draft := &ContactDraft{
		Name:            name,
		Email:           email,
		Message:         message,
		ClientTimestamp: input.Timestamp,
	}

	if company := sanitizeString(input.Company); company != "" {
		draft.Company = &company
	}
	if projectType := sanitizeString(input.ProjectType); projectType != "" {
		draft.ProjectType = &projectType
	}
	if tz := strings.TrimSpace(input.Timezone); tz != "" {
		draft.ClientTimezone = &tz
	}

	return draft, nil
}

// sanitizeString trims the value and strips HTML tags and stray angle
// brackets. This only blunts trivial injection; rendering layers still must
// escape on output.
func sanitizeString(s string) string {
	s = strings.TrimSpace(s)
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	return s
}
