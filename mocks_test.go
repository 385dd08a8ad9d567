package gateway_test

import (
	"context"
	"net/http"

	gateway "github.com/goliatone/go-auth-gateway"
)

// stubProvider implements gateway.IdentityProvider with canned results and
// per capability call counters, so tests can assert the provider was (or was
// not) reached.
type stubProvider struct {
	SignUpCalls     int
	SignInCalls     int
	VerifyCalls     int
	GetSessionCalls int

	SignUpRes *gateway.RawResponse
	SignUpErr error

	SignInRes *gateway.RawResponse
	SignInErr error

	VerifyRes *gateway.RawResponse
	VerifyErr error

	SessionData *gateway.SessionData
	SessionErr  error

	LastVerifyRedirect string
	LastHeaders        http.Header
}

func (s *stubProvider) SignUp(ctx context.Context, name, email, password string) (*gateway.RawResponse, error) {
	s.SignUpCalls++
	return s.SignUpRes, s.SignUpErr
}

func (s *stubProvider) SignIn(ctx context.Context, email, password string) (*gateway.RawResponse, error) {
	s.SignInCalls++
	return s.SignInRes, s.SignInErr
}

func (s *stubProvider) VerifyEmail(ctx context.Context, token, redirectTo string) (*gateway.RawResponse, error) {
	s.VerifyCalls++
	s.LastVerifyRedirect = redirectTo
	return s.VerifyRes, s.VerifyErr
}

func (s *stubProvider) GetSession(ctx context.Context, headers http.Header) (*gateway.SessionData, error) {
	s.GetSessionCalls++
	s.LastHeaders = headers
	return s.SessionData, s.SessionErr
}

func (s *stubProvider) PassthroughHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
}
