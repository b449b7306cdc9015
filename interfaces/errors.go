package interfaces

import "errors"

var (
	// ErrValidation is returned when request input is missing, malformed, or
	// out of range. Maps to HTTP 400.
	ErrValidation = errors.New("invalid request")

	// ErrAuthMissing is returned when a required signature, timestamp, or cron
	// secret is absent. Maps to HTTP 401.
	ErrAuthMissing = errors.New("missing authentication")

	// ErrInvalidSignature is returned for every signed-request failure:
	// malformed encodings, wrong key length, signature mismatch, or a
	// timestamp outside the skew window. The sub-check that failed is
	// deliberately not distinguishable from the error. Maps to HTTP 403.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrGuardianNotAuthorized is returned when a guardian approves a session
	// it was not requested for. Maps to HTTP 403.
	ErrGuardianNotAuthorized = errors.New("guardian not authorized for this session")

	// ErrNotFound is returned when a config, session, or switch does not
	// exist, has expired, or belongs to someone else. Maps to HTTP 404.
	ErrNotFound = errors.New("not found")

	// ErrUnknownUsername is returned when the identity registry has no entry
	// for a recipient username. Maps to HTTP 404.
	ErrUnknownUsername = errors.New("unknown username")

	// ErrAlreadyApproved is returned when a guardian approves the same session
	// twice. Maps to HTTP 409.
	ErrAlreadyApproved = errors.New("guardian already approved this session")

	// ErrNotReady is returned when shares are requested before the approval
	// threshold is reached. Maps to HTTP 403.
	ErrNotReady = errors.New("not enough guardians have approved yet")

	// ErrBackendUnavailable is returned when an external collaborator (blob
	// store, identity registry) is not reachable.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
