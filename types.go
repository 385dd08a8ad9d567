package gateway

import (
	"context"
	"fmt"
	"net/http"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// IdentityProvider is the collaborator that owns credential storage, password
// verification, token issuance, and session persistence. The gateway only
// orchestrates calls into it: domain failures come back as rich errors the
// handlers translate, internal failures bubble up untouched.
type IdentityProvider interface {
	SignUp(ctx context.Context, name, email, password string) (*RawResponse, error)
	SignIn(ctx context.Context, email, password string) (*RawResponse, error)
	VerifyEmail(ctx context.Context, token, redirectTo string) (*RawResponse, error)
	GetSession(ctx context.Context, headers http.Header) (*SessionData, error)

	// PassthroughHandler serves every provider owned route the gateway does
	// not shape itself, mounted under the auth prefix catch-all.
	PassthroughHandler() http.Handler
}

// RawResponse is a fully formed HTTP response produced by the provider.
// Handlers forward it verbatim, headers included, so provider-set session
// cookies survive the trip through the gateway.
type RawResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// SetHeader replaces the named header, allocating the map if needed.
func (r *RawResponse) SetHeader(key, value string) *RawResponse {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set(key, value)
	return r
}

// AddHeader appends a value to the named header, allocating the map if needed.
func (r *RawResponse) AddHeader(key, value string) *RawResponse {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Add(key, value)
	return r
}

// DefaultLogger returns the fallback stdout logger used when no logger is
// injected.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] GATEWAY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] GATEWAY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] GATEWAY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] GATEWAY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

var _ Logger = defLogger{}
