package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors returned by Authenticate. All map to 401.
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// AuthenticatedUser is the identity resolved from a bearer token.
type AuthenticatedUser struct {
	Subject string
}

// Claims is the accepted token payload. Only the registered claims are used.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens. Issuing tokens is out of scope;
// IssueToken exists for tests and local tooling.
type Authenticator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// Config holds Authenticator settings. An empty Issuer accepts any issuer.
type Config struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: JWT secret is required")
	}
	return &Authenticator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: expected \"Bearer <token>\"", ErrInvalidToken)
	}
	return strings.TrimSpace(parts[1]), nil
}

// Authenticate validates tokenString and returns the user named by its subject.
func (a *Authenticator) Authenticate(tokenString string) (AuthenticatedUser, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return AuthenticatedUser{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return AuthenticatedUser{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return AuthenticatedUser{}, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}
	return AuthenticatedUser{Subject: claims.Subject}, nil
}

// IssueToken signs a token for subject valid for ttl.
func (a *Authenticator) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

type contextKey struct{}

// WithUser returns ctx carrying user.
func WithUser(ctx context.Context, user AuthenticatedUser) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	u, ok := ctx.Value(contextKey{}).(AuthenticatedUser)
	return u, ok
}
