package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const verificationPurpose = "email-verification"

// VerificationClaims are the signed claims carried by an email verification
// token. The subject is the account id.
type VerificationClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

// TokenService mints and validates verification tokens.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
}

// NewTokenService creates a TokenService. A zero ttl falls back to one hour.
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
	}
}

// Mint signs a verification token for the given account.
func (ts *TokenService) Mint(userID, email string) (string, error) {
	now := time.Now()
	claims := &VerificationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		Email:   email,
		Purpose: verificationPurpose,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign verification token")
	}

	return signed, nil
}

// Validate parses a verification token and returns its claims. Expired
// tokens map to ErrTokenExpired, everything else malformed to
// ErrInvalidToken.
func (ts *TokenService) Validate(tokenString string) (*VerificationClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 1)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &VerificationClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*VerificationClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Purpose != verificationPurpose {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
