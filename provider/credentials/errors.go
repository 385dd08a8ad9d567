package credentials

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeUserAlreadyExists  = "USER_ALREADY_EXISTS"
	TextCodeInvalidCredentials = "INVALID_EMAIL_OR_PASSWORD"
	TextCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
)

// ErrUserAlreadyExists is returned when sign up hits a taken email.
var ErrUserAlreadyExists = errors.New("User already exists", errors.CategoryConflict).
	WithTextCode(TextCodeUserAlreadyExists).
	WithCode(http.StatusUnprocessableEntity)

// ErrInvalidCredentials is returned for a bad email/password pair. Unknown
// accounts answer the same way so callers cannot probe for registered emails.
var ErrInvalidCredentials = errors.New("Invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(http.StatusUnauthorized)

// ErrEmailNotVerified is returned when sign in is attempted before the
// account's email has been verified.
var ErrEmailNotVerified = errors.New("Email is not verified", errors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(http.StatusForbidden)

// ErrInvalidToken is returned for verification tokens that do not check out
// or reference an unknown account.
var ErrInvalidToken = errors.New("Invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(http.StatusUnauthorized)

// ErrTokenExpired is returned for verification tokens past their TTL.
var ErrTokenExpired = errors.New("Token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(http.StatusUnauthorized)

// ErrTooManyAttempts is returned while an account is cooling down after
// repeated failed logins.
var ErrTooManyAttempts = errors.New("Too many attempts, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)
