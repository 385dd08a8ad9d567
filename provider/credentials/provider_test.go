package credentials

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-auth-gateway"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    email_verified BOOLEAN NOT NULL DEFAULT FALSE,
    password_hash TEXT NOT NULL,
    login_attempts INTEGER NOT NULL DEFAULT 0,
    login_attempt_at TIMESTAMP NULL,
    loggedin_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`
	sqliteCreateSessions = `CREATE TABLE sessions (
    id TEXT NOT NULL PRIMARY KEY,
    token TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    ip_address TEXT,
    user_agent TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);`
)

type capturingSender struct {
	tokens []string
	emails []string
}

func (s *capturingSender) SendVerification(ctx context.Context, user *gateway.User, token string) error {
	s.tokens = append(s.tokens, token)
	s.emails = append(s.emails, user.Email)
	return nil
}

func (s *capturingSender) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.tokens, "no verification token was delivered")
	return s.tokens[len(s.tokens)-1]
}

func setupProvider(t *testing.T, opts ...Option) (*Provider, *capturingSender) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	_, err = bunDB.Exec(sqliteCreateUsers)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateSessions)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	sender := &capturingSender{}
	opts = append([]Option{
		WithBcryptCost(bcrypt.MinCost),
		WithVerificationSender(sender),
	}, opts...)

	return New(bunDB, []byte("test-signing-key"), time.Hour, opts...), sender
}

func requireRichError(t *testing.T, err error, textCode string, status int) {
	t.Helper()

	var rich *goerrors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, textCode, rich.TextCode)
	assert.Equal(t, status, int(rich.Code))
}

func signUp(t *testing.T, p *Provider, email string) *gateway.RawResponse {
	t.Helper()
	res, err := p.SignUp(context.Background(), "tester", email, "secret123")
	require.NoError(t, err)
	return res
}

func verify(t *testing.T, p *Provider, sender *capturingSender) *gateway.RawResponse {
	t.Helper()
	res, err := p.VerifyEmail(context.Background(), sender.lastToken(t), "/api/v1")
	require.NoError(t, err)
	return res
}

func TestSignUp_CreatesUnverifiedAccount(t *testing.T) {
	p, sender := setupProvider(t)

	res := signUp(t, p, "user@example.com")

	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, string(res.Body), `"token":null`)
	assert.Contains(t, string(res.Body), `"email":"user@example.com"`)
	assert.NotContains(t, string(res.Body), "password", "hashes must never serialize")
	assert.Empty(t, res.Header.Get("Set-Cookie"), "sign up must not create a session")

	require.Len(t, sender.tokens, 1)
	assert.Equal(t, []string{"user@example.com"}, sender.emails)
}

func TestSignUp_NormalizesEmail(t *testing.T) {
	p, _ := setupProvider(t)

	res := signUp(t, p, "  MiXeD@Example.COM ")
	assert.Contains(t, string(res.Body), `"email":"mixed@example.com"`)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	p, _ := setupProvider(t)

	signUp(t, p, "user@example.com")

	_, err := p.SignUp(context.Background(), "other", "user@example.com", "secret456")
	requireRichError(t, err, TextCodeUserAlreadyExists, http.StatusUnprocessableEntity)
}

func TestSignIn_RequiresVerifiedEmail(t *testing.T) {
	p, _ := setupProvider(t)

	signUp(t, p, "user@example.com")

	_, err := p.SignIn(context.Background(), "user@example.com", "secret123")
	requireRichError(t, err, TextCodeEmailNotVerified, http.StatusForbidden)
}

func TestSignIn_UnknownAndWrongPasswordAnswerTheSame(t *testing.T) {
	p, _ := setupProvider(t)

	signUp(t, p, "user@example.com")

	_, wrongErr := p.SignIn(context.Background(), "user@example.com", "not-the-password")
	requireRichError(t, wrongErr, TextCodeInvalidCredentials, http.StatusUnauthorized)

	_, unknownErr := p.SignIn(context.Background(), "missing@example.com", "secret123")
	requireRichError(t, unknownErr, TextCodeInvalidCredentials, http.StatusUnauthorized)
}

func TestVerifyEmail_RedirectsAndSignsIn(t *testing.T) {
	p, sender := setupProvider(t)

	signUp(t, p, "user@example.com")
	res := verify(t, p, sender)

	assert.Equal(t, http.StatusFound, res.Status)
	assert.Equal(t, "/api/v1", res.Header.Get("Location"))

	cookie := res.Header.Get("Set-Cookie")
	require.NotEmpty(t, cookie)
	assert.Contains(t, cookie, DefaultCookieName+"=")
	assert.Contains(t, cookie, "HttpOnly")

	// The verification cookie is a live session.
	headers := http.Header{}
	headers.Set("Cookie", strings.Split(cookie, ";")[0])

	data, err := p.GetSession(context.Background(), headers)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "user@example.com", data.User.Email)
	assert.True(t, data.User.EmailVerified)
}

func TestVerifyEmail_GarbageToken(t *testing.T) {
	p, _ := setupProvider(t)

	_, err := p.VerifyEmail(context.Background(), "not-a-token", "/api/v1")
	requireRichError(t, err, TextCodeInvalidToken, http.StatusUnauthorized)
}

func TestVerifyEmail_UnknownAccount(t *testing.T) {
	p, _ := setupProvider(t)

	token, err := p.tokens.Mint(uuid.NewString(), "ghost@example.com")
	require.NoError(t, err)

	_, err = p.VerifyEmail(context.Background(), token, "/api/v1")
	requireRichError(t, err, TextCodeInvalidToken, http.StatusUnauthorized)
}

func TestVerifyEmail_ExpiredToken(t *testing.T) {
	p, _ := setupProvider(t)

	stale := NewTokenService([]byte("test-signing-key"), time.Nanosecond, "go-auth-gateway")
	token, err := stale.Mint(uuid.NewString(), "user@example.com")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = p.VerifyEmail(context.Background(), token, "/api/v1")
	requireRichError(t, err, TextCodeTokenExpired, http.StatusUnauthorized)
}

func TestSignIn_IssuesSessionAfterVerification(t *testing.T) {
	p, sender := setupProvider(t)

	signUp(t, p, "user@example.com")
	verify(t, p, sender)

	res, err := p.SignIn(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, string(res.Body), `"redirect":false`)
	assert.Contains(t, string(res.Body), `"token":"`)
	assert.Contains(t, res.Header.Get("Set-Cookie"), DefaultCookieName+"=")
}

func TestSignIn_CoolsDownAfterRepeatedFailures(t *testing.T) {
	p, sender := setupProvider(t)

	signUp(t, p, "user@example.com")
	verify(t, p, sender)

	for i := 0; i < MaxLoginAttempts; i++ {
		_, err := p.SignIn(context.Background(), "user@example.com", "not-the-password")
		requireRichError(t, err, TextCodeInvalidCredentials, http.StatusUnauthorized)
	}

	// Even the right password is refused during the cool down window.
	_, err := p.SignIn(context.Background(), "user@example.com", "secret123")
	requireRichError(t, err, TextCodeTooManyAttempts, http.StatusTooManyRequests)
}

func TestSignIn_SuccessResetsAttemptCounter(t *testing.T) {
	p, sender := setupProvider(t)

	signUp(t, p, "user@example.com")
	verify(t, p, sender)

	for i := 0; i < MaxLoginAttempts-1; i++ {
		_, err := p.SignIn(context.Background(), "user@example.com", "not-the-password")
		require.Error(t, err)
	}

	_, err := p.SignIn(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	user, err := p.repo.Users().GetByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, user.LoginAttempts)
	assert.Nil(t, user.LoginAttemptAt)
	require.NotNil(t, user.LoggedInAt)
}

func TestGetSession_AnonymousHeaders(t *testing.T) {
	p, _ := setupProvider(t)

	data, err := p.GetSession(context.Background(), http.Header{})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGetSession_UnknownTokenIsAnonymous(t *testing.T) {
	p, _ := setupProvider(t)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer no-such-token")

	data, err := p.GetSession(context.Background(), headers)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGetSession_BearerToken(t *testing.T) {
	p, sender := setupProvider(t)

	signUp(t, p, "user@example.com")
	verify(t, p, sender)

	res, err := p.SignIn(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)

	token := cookieValue(t, res.Header.Get("Set-Cookie"))

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	data, err := p.GetSession(context.Background(), headers)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, token, data.Session.Token)
	assert.Equal(t, data.User.ID, data.Session.UserID)
}

func TestGetSession_ExpiredSessionIsDeleted(t *testing.T) {
	p, sender := setupProvider(t)

	signUp(t, p, "user@example.com")
	verify(t, p, sender)

	user, err := p.repo.Users().GetByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)

	stale := &Session{
		ID:        uuid.New(),
		Token:     "stale-token",
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	_, err = p.repo.Sessions().Create(context.Background(), stale)
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer stale-token")

	data, err := p.GetSession(context.Background(), headers)
	require.NoError(t, err)
	assert.Nil(t, data)

	// The stale row is gone, not just ignored.
	_, err = p.repo.Sessions().GetByToken(context.Background(), "stale-token")
	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err))
}

func TestPassthrough_SignOutRevokesSession(t *testing.T) {
	p, sender := setupProvider(t)

	signUp(t, p, "user@example.com")
	verify(t, p, sender)

	res, err := p.SignIn(context.Background(), "user@example.com", "secret123")
	require.NoError(t, err)
	token := cookieValue(t, res.Header.Get("Set-Cookie"))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-out", nil)
	req.Header.Set("Cookie", DefaultCookieName+"="+token)

	rec := httptest.NewRecorder()
	p.PassthroughHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	expired := rec.Header().Get("Set-Cookie")
	assert.Contains(t, expired, DefaultCookieName+"=")
	assert.Contains(t, expired, "Max-Age=0")

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	data, err := p.GetSession(context.Background(), headers)
	require.NoError(t, err)
	assert.Nil(t, data, "revoked session must not resolve")
}

func TestPassthrough_UnknownRouteIs404(t *testing.T) {
	p, _ := setupProvider(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/whatever", nil)
	rec := httptest.NewRecorder()
	p.PassthroughHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not Found")
}

func TestSignUp_HashIDsAreDeterministic(t *testing.T) {
	first, _ := setupProvider(t, WithHashIDs(true))
	second, _ := setupProvider(t, WithHashIDs(true))

	signUp(t, first, "user@example.com")
	signUp(t, second, "user@example.com")

	a, err := first.repo.Users().GetByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	b, err := second.repo.Users().GetByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID, "same email must derive the same account id")

	want, err := hashid.NewUUID("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, want, a.ID)
}

func TestNew_PanicsWithoutStorage(t *testing.T) {
	assert.Panics(t, func() {
		New(nil, []byte("key"), time.Hour)
	})
}

func cookieValue(t *testing.T, setCookie string) string {
	t.Helper()
	require.NotEmpty(t, setCookie)

	pair := strings.Split(setCookie, ";")[0]
	parts := strings.SplitN(pair, "=", 2)
	require.Len(t, parts, 2)
	require.Equal(t, DefaultCookieName, parts[0])
	return parts[1]
}
