// Package credentials is a bun backed identity provider: bcrypt password
// hashing, signed email verification tokens, and opaque server side sessions.
// It is the default collaborator behind the gateway's auth endpoints.
package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-auth-gateway"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MaxLoginAttempts is the number of failed logins before a cool down.
var MaxLoginAttempts = 5

// CoolDownPeriod is how long an account stays locked after too many attempts.
var CoolDownPeriod = 15 * time.Minute

// DefaultCookieName carries the session token in responses and requests.
const DefaultCookieName = "gateway.session_token"

// DefaultSessionTTL is how long issued sessions live.
const DefaultSessionTTL = 7 * 24 * time.Hour

// VerificationSender delivers the verification token to the account owner.
// The default implementation logs it, matching a development mail setup.
type VerificationSender interface {
	SendVerification(ctx context.Context, user *gateway.User, token string) error
}

type logSender struct {
	logger gateway.Logger
}

func (s logSender) SendVerification(ctx context.Context, user *gateway.User, token string) error {
	s.logger.Info("verification email requested", "email", user.Email, "token", token)
	return nil
}

var _ gateway.IdentityProvider = (*Provider)(nil)

// Provider implements gateway.IdentityProvider over bun storage.
type Provider struct {
	repo          RepositoryManager
	tokens        *TokenService
	logger        gateway.Logger
	sender        VerificationSender
	sessionTTL    time.Duration
	cookieName    string
	secureCookies bool
	useHashIDs    bool
	bcryptCost    int
}

type Option func(*Provider)

func WithLogger(l gateway.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithVerificationSender(s VerificationSender) Option {
	return func(p *Provider) {
		if s != nil {
			p.sender = s
		}
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.sessionTTL = ttl
		}
	}
}

func WithCookieName(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.cookieName = name
		}
	}
}

func WithSecureCookies(secure bool) Option {
	return func(p *Provider) {
		p.secureCookies = secure
	}
}

// WithHashIDs derives account ids deterministically from the email instead
// of random UUIDs.
func WithHashIDs(enabled bool) Option {
	return func(p *Provider) {
		p.useHashIDs = enabled
	}
}

func WithBcryptCost(cost int) Option {
	return func(p *Provider) {
		if cost > 0 {
			p.bcryptCost = cost
		}
	}
}

// WithRepositoryManager swaps the storage layer, mostly for tests.
func WithRepositoryManager(repo RepositoryManager) Option {
	return func(p *Provider) {
		if repo != nil {
			p.repo = repo
		}
	}
}

// New creates a Provider over db. An empty signingKey gets replaced with an
// ephemeral random key; pending verification tokens then die with the
// process.
func New(db *bun.DB, signingKey []byte, verifyTokenTTL time.Duration, opts ...Option) *Provider {
	if len(signingKey) == 0 {
		signingKey = randomBytes(32)
	}

	p := &Provider{
		tokens:     NewTokenService(signingKey, verifyTokenTTL, "go-auth-gateway"),
		logger:     gateway.DefaultLogger(),
		sessionTTL: DefaultSessionTTL,
		cookieName: DefaultCookieName,
		bcryptCost: DefaultBcryptCost,
	}

	if db != nil {
		p.repo = NewRepositoryManager(db)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.sender == nil {
		p.sender = logSender{logger: p.logger}
	}

	if p.repo == nil {
		panic("Missing repository manager in credentials provider...")
	}

	return p
}

// SignUp creates the account, issues a verification token, and hands it to
// the sender. No session is created here: the email has to be verified before
// the first sign in.
func (p *Provider) SignUp(ctx context.Context, name, email, password string) (*gateway.RawResponse, error) {
	email = normalizeEmail(email)

	hash, err := HashPassword(password, p.bcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Name:         displayName(name, email),
		Email:        email,
		PasswordHash: hash,
	}

	if p.useHashIDs {
		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	err = p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := p.repo.Users().CreateTx(ctx, tx, user); err != nil {
			if isUniqueViolation(err) {
				return ErrUserAlreadyExists
			}
			return errors.Wrap(err, errors.CategoryInternal, "failed to persist account")
		}
		return nil
	})
	if err != nil {
		return nil, passthroughRich(err, "sign up transaction failed")
	}

	token, err := p.tokens.Mint(user.ID.String(), email)
	if err != nil {
		return nil, err
	}

	// Delivery is best effort, matching send-on-sign-up semantics: the
	// account exists either way and verification can be re-requested.
	if err := p.sender.SendVerification(ctx, user.APIUser(), token); err != nil {
		p.logger.Error("failed to deliver verification token", "email", email, "error", err)
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"token": nil,
		"user":  user.APIUser(),
	})
}

// SignIn verifies credentials and issues a session. The response carries the
// session cookie; the gateway forwards it untouched.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*gateway.RawResponse, error) {
	user, err := p.repo.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during sign in")
	}

	if p.coolingDown(user) {
		return nil, ErrTooManyAttempts
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if trackErr := p.repo.Users().TrackAttemptedLogin(ctx, user); trackErr != nil {
			p.logger.Error("failed to track attempted login", "error", trackErr)
		}
		return nil, passthroughRich(err, "failed to compare password")
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if err := p.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		p.logger.Error("failed to track successful login", "error", err)
	}

	sess, cookie, err := p.createSession(ctx, user)
	if err != nil {
		return nil, err
	}

	res, err := jsonResponse(http.StatusOK, map[string]any{
		"redirect": false,
		"token":    sess.Token,
		"user":     user.APIUser(),
	})
	if err != nil {
		return nil, err
	}

	return res.AddHeader("Set-Cookie", cookie.String()), nil
}

// VerifyEmail validates the signed token, marks the account verified, then
// signs the caller in and redirects to the callback target.
func (p *Provider) VerifyEmail(ctx context.Context, token, redirectTo string) (*gateway.RawResponse, error) {
	claims, err := p.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := p.repo.Users().MarkEmailVerified(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to mark email verified")
	}

	_, cookie, err := p.createSession(ctx, user)
	if err != nil {
		return nil, err
	}

	res := &gateway.RawResponse{Status: http.StatusFound}
	res.SetHeader("Location", redirectTo)
	res.AddHeader("Set-Cookie", cookie.String())

	return res, nil
}

// GetSession resolves the caller's session from the inbound headers: session
// cookie first, bearer token second. Anonymous callers and stale tokens
// return nil without error.
func (p *Provider) GetSession(ctx context.Context, headers http.Header) (*gateway.SessionData, error) {
	token := sessionTokenFromHeaders(headers, p.cookieName)
	if token == "" {
		return nil, nil
	}

	sess, err := p.repo.Sessions().GetByToken(ctx, token)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve session")
	}

	if sess.Expired(time.Now()) {
		if err := p.repo.Sessions().DeleteByToken(ctx, token); err != nil {
			p.logger.Error("failed to delete expired session", "error", err)
		}
		return nil, nil
	}

	user := sess.User
	if user == nil {
		return nil, nil
	}

	return &gateway.SessionData{
		Session: sess.APISession(),
		User:    user.APIUser(),
	}, nil
}

// RevokeSession deletes the session behind token. Used by the sign out
// passthrough route.
func (p *Provider) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return p.repo.Sessions().DeleteByToken(ctx, token)
}

func (p *Provider) createSession(ctx context.Context, user *User) (*Session, *http.Cookie, error) {
	sess := &Session{
		ID:        uuid.New(),
		Token:     base64.RawURLEncoding.EncodeToString(randomBytes(32)),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(p.sessionTTL),
	}

	if _, err := p.repo.Sessions().Create(ctx, sess); err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist session")
	}

	cookie := &http.Cookie{
		Name:     p.cookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(p.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   p.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	return sess, cookie, nil
}

func (p *Provider) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     p.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * 24 * 365),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (p *Provider) coolingDown(user *User) bool {
	if user.LoginAttempts < MaxLoginAttempts || user.LoginAttemptAt == nil {
		return false
	}
	return time.Since(*user.LoginAttemptAt) < CoolDownPeriod
}

func sessionTokenFromHeaders(headers http.Header, cookieName string) string {
	req := http.Request{Header: headers}
	if cookie, err := req.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authz := headers.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}

	return ""
}

func jsonResponse(status int, body any) (*gateway.RawResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode provider response")
	}

	res := &gateway.RawResponse{
		Status: status,
		Body:   payload,
	}
	res.SetHeader("Content-Type", "application/json; charset=utf-8")

	return res, nil
}

// passthroughRich keeps provider domain errors intact and wraps everything
// else as internal.
func passthroughRich(err error, msg string) error {
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich
	}
	return errors.Wrap(err, errors.CategoryInternal, msg)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}

	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}

	return email
}

func randomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}
