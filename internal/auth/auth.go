// Package auth issues and verifies the access tokens that identify a user.
//
// Tokens are HS256 JWTs whose subject is the user id. The HTTP API checks
// one per request; the MCP server checks the configured one at startup.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is wrapped by every verification failure.
var ErrUnauthenticated = errors.New("unauthenticated")

// TokenType distinguishes token purposes carried in the claims.
type TokenType string

const AccessToken TokenType = "access_token"

const issuer = "routinequest"

// Claims are the JWT claims of a routine quest token.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
}

// Identity is the authenticated user of a request.
type Identity struct {
	UserID    int64
	ExpiresAt time.Time
}

// Issuer signs access tokens.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer returns an Issuer signing with secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Issue returns a signed access token for userID valid for ttl.
func (i *Issuer) Issue(userID int64, ttl time.Duration) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("auth: empty signing secret")
	}
	now := i.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TokenType: AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verifier checks access tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier accepting tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates token and returns the identity it carries.
func (v *Verifier) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("auth: no token provided: %w", ErrUnauthenticated)
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("auth: %w: %w", ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token: %w", ErrUnauthenticated)
	}
	if claims.TokenType != AccessToken {
		return Identity{}, fmt.Errorf("auth: token type %q: %w", claims.TokenType, ErrUnauthenticated)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("auth: bad subject %q: %w", claims.Subject, ErrUnauthenticated)
	}
	return Identity{UserID: userID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. It returns "" when the header has another shape.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok {
		return Identity{}, fmt.Errorf("auth: user id not found in context: %w", ErrUnauthenticated)
	}
	return id, nil
}
