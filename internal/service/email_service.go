package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/helixbytes/contact-api/internal/domain/entity"
)

// EmailService sends the two transactional emails of the contact pipeline.
// Both sends are best-effort: the caller logs failures and never propagates
// them, because the submission is already durably stored.
type EmailService interface {
	// SendTeamNotification delivers the submitted fields to the internal
	// team inbox.
	SendTeamNotification(ctx context.Context, submission *entity.ContactSubmission) error

	// SendVerificationEmail delivers the double-opt-in link to the submitter.
	SendVerificationEmail(ctx context.Context, submission *entity.ContactSubmission, verifyURL string) error
}

// NoopEmailService is used when outbound email is disabled (local dev).
type NoopEmailService struct{}

func (s *NoopEmailService) SendTeamNotification(ctx context.Context, submission *entity.ContactSubmission) error {
	log.Printf("[EmailService] noop team notification for submission id=%s", submission.ID)
	return nil
}

func (s *NoopEmailService) SendVerificationEmail(ctx context.Context, submission *entity.ContactSubmission, verifyURL string) error {
	log.Printf("[EmailService] noop verification email to=%s", submission.Email)
	return nil
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from   string
	teamTo string
	client *resend.Client
}

func NewResendEmailService(apiKey, from, teamTo string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	if teamTo == "" {
		return nil, fmt.Errorf("team recipient is required")
	}
	return &ResendEmailService{
		from:   from,
		teamTo: teamTo,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendTeamNotification(ctx context.Context, submission *entity.ContactSubmission) error {
	if submission == nil || submission.ID == "" {
		return fmt.Errorf("submission with id is required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{s.teamTo},
		ReplyTo: submission.Email,
		Subject: fmt.Sprintf("New contact form submission: %s", submission.Name),
		Text:    teamNotificationText(submission),
		Html:    teamNotificationHTML(submission),
	}

	idempotencyKey := fmt.Sprintf("contact-team:%s", submission.ID)
	return s.sendWithRetry(ctx, params, idempotencyKey)
}

func (s *ResendEmailService) SendVerificationEmail(ctx context.Context, submission *entity.ContactSubmission, verifyURL string) error {
	if submission == nil || submission.Email == "" {
		return fmt.Errorf("submission with email is required")
	}
	if verifyURL == "" {
		return fmt.Errorf("verification url is required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{submission.Email},
		Subject: "Please confirm your message",
		Text:    verificationText(submission, verifyURL),
		Html:    verificationHTML(submission, verifyURL),
	}

	idempotencyKey := fmt.Sprintf("contact-verify:%s", submission.ID)
	return s.sendWithRetry(ctx, params, idempotencyKey)
}

func (s *ResendEmailService) sendWithRetry(ctx context.Context, params *resend.SendEmailRequest, idempotencyKey string) error {
	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}

// Templates. Name, company, project type and message are attacker-controlled
// strings, so every interpolation into HTML goes through html.EscapeString.

func teamNotificationText(s *entity.ContactSubmission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New contact form submission %s\n\n", s.ID)
	fmt.Fprintf(&b, "Name: %s\n", s.Name)
	fmt.Fprintf(&b, "Email: %s\n", s.Email)
	if s.Company != nil {
		fmt.Fprintf(&b, "Company: %s\n", *s.Company)
	}
	if s.ProjectType != nil {
		fmt.Fprintf(&b, "Project type: %s\n", *s.ProjectType)
	}
	fmt.Fprintf(&b, "\nMessage:\n%s\n", s.Message)
	return b.String()
}

func teamNotificationHTML(s *entity.ContactSubmission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>New contact form submission</h2>")
	fmt.Fprintf(&b, "<p><em>%s</em></p>", html.EscapeString(s.ID))
	fmt.Fprintf(&b, "<p><strong>Name:</strong> %s</p>", html.EscapeString(s.Name))
	fmt.Fprintf(&b, "<p><strong>Email:</strong> %s</p>", html.EscapeString(s.Email))
	if s.Company != nil {
		fmt.Fprintf(&b, "<p><strong>Company:</strong> %s</p>", html.EscapeString(*s.Company))
	}
	if s.ProjectType != nil {
		fmt.Fprintf(&b, "<p><strong>Project type:</strong> %s</p>", html.EscapeString(*s.ProjectType))
	}
	fmt.Fprintf(&b, "<p><strong>Message:</strong></p><p>%s</p>", html.EscapeString(s.Message))
	return b.String()
}

func verificationText(s *entity.ContactSubmission, verifyURL string) string {
	return fmt.Sprintf(
		"Hi %s,\n\nPlease confirm your message by opening this link:\n%s\n\nThe link expires in 24 hours. If you did not contact us, you can ignore this email.\n",
		s.Name, verifyURL,
	)
}

func verificationHTML(s *entity.ContactSubmission, verifyURL string) string {
	escapedURL := html.EscapeString(verifyURL)
	return fmt.Sprintf(
		"<p>Hi %s,</p><p>Please confirm your message by clicking the link below:</p><p><a href=\"%s\">%s</a></p><p>The link expires in 24 hours. If you did not contact us, you can ignore this email.</p>",
		html.EscapeString(s.Name), escapedURL, escapedURL,
	)
}
