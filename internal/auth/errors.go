package auth

import "errors"

// Internal error taxonomy. The HTTP boundary collapses these onto two
// external shapes: a generic authentication failure and a generic
// authorization failure. The specific values exist for dispatch, metrics
// and audit only and must never reach a response body.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password;
	// the two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccountDisabled means the credentials matched but the account's
	// tenant is inactive.
	ErrAccountDisabled = errors.New("auth: account disabled")

	ErrTokenMalformed = errors.New("auth: malformed token")
	ErrBadSignature   = errors.New("auth: bad token signature")
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrWrongTokenType = errors.New("auth: wrong token type")
	ErrTokenRevoked   = errors.New("auth: token revoked")

	ErrForbidden = errors.New("auth: forbidden")
	// ErrUnavailable marks a downstream store timeout or outage; callers
	// may treat it as retryable.
	ErrUnavailable = errors.New("auth: store unavailable")

	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")
)
