package jwttoken

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/middleware/requesttime"
)

const scopeIssuer = "consentd"

// ScopeClaims identifies one visitor-storage-scope. The subject is the scope
// ID; nothing else about the visitor is carried.
type ScopeClaims struct {
	jwt.RegisteredClaims
}

// ScopeTokenService signs and validates visitor scope tokens.
type ScopeTokenService struct {
	signingKey []byte
	tokenTTL   time.Duration
}

func NewScopeTokenService(signingKey string, tokenTTL time.Duration) *ScopeTokenService {
	return &ScopeTokenService{
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
	}
}

// TTL returns how long issued tokens stay valid.
func (s *ScopeTokenService) TTL() time.Duration {
	return s.tokenTTL
}

// NewScope creates a fresh scope ID.
func NewScope() string {
	return uuid.NewString()
}

// Issue signs a token for scope, valid from the request time.
func (s *ScopeTokenService) Issue(ctx context.Context, scope string) (string, error) {
	if _, err := uuid.Parse(scope); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "scope must be a UUID")
	}
	now := requesttime.Now(ctx)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ScopeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   scope,
			Issuer:    scopeIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign scope token")
	}
	return signed, nil
}

// Validate returns the scope ID carried by tokenString.
func (s *ScopeTokenService) Validate(ctx context.Context, tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &ScopeClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(scopeIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return requesttime.Now(ctx) }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "scope token expired")
		}
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid scope token")
	}

	claims, ok := parsed.Claims.(*ScopeClaims)
	if !ok || !parsed.Valid {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid scope token claims")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid scope token subject")
	}
	return claims.Subject, nil
}
