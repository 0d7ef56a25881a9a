package service

import "errors"

// Contact pipeline specific errors used by handlers for stable error mapping.
var (
	ErrAttestationFailed       = errors.New("attestation_failed")
	ErrAttestationTokenMissing = errors.New("attestation_token_missing")
	ErrSubmissionStoreFailed   = errors.New("submission_store_failed")
)
