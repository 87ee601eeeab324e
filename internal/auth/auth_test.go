package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-with-enough-entropy"

func newTestAuthenticator(t *testing.T, issuer string) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(Config{Secret: testSecret, Issuer: issuer})
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}
	return a
}

func TestNewAuthenticator_RequiresSecret(t *testing.T) {
	if _, err := NewAuthenticator(Config{}); err == nil {
		t.Fatal("NewAuthenticator() with empty secret error = nil")
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	a := newTestAuthenticator(t, "weather-gateway")
	token, err := a.IssueToken("alice", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	user, err := a.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.Subject != "alice" {
		t.Errorf("Subject = %q, want alice", user.Subject)
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	a := newTestAuthenticator(t, "weather-gateway")

	sign := func(method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Subject:   "bob",
		Issuer:    "weather-gateway",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	noSubject := valid
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("other-secret"), valid)},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret), valid)},
		{"none algorithm", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
		{"expired", sign(jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer)},
		{"no subject", sign(jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Authenticate() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "missing", header: "", wantErr: ErrMissingToken},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: ErrInvalidToken},
		{name: "no token", header: "Bearer ", wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("BearerToken(%q) error = %v, want %v", tt.header, err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("BearerToken(%q) = (%q, %v), want %q", tt.header, got, err, tt.want)
			}
		})
	}
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := UserFromContext(ctx); ok {
		t.Error("UserFromContext(empty) ok = true")
	}
	ctx = WithUser(ctx, AuthenticatedUser{Subject: "carol"})
	u, ok := UserFromContext(ctx)
	if !ok || u.Subject != "carol" {
		t.Errorf("UserFromContext() = (%+v, %v)", u, ok)
	}
}
