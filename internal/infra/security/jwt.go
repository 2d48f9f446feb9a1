package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds embedded in the "kind" claim. A token of one kind is never
// accepted where another kind is expected.
const (
	TokenKindAccess            = "access"
	TokenKindRefresh           = "refresh"
	TokenKindPasswordReset     = "password_reset"
	TokenKindEmailVerification = "email_verification"
)

// ErrInvalidToken indicates a token that failed signature, structure, or kind
// checks. The cause is deliberately not distinguished.
var ErrInvalidToken = errors.New("jwt: invalid token")

// ErrTokenExpired indicates a structurally valid token past its expiry.
var ErrTokenExpired = errors.New("jwt: token expired")

// Claims is the claim set carried by every token the service issues.
type Claims struct {
	Email string `json:"email,omitempty"`
	Kind  string `json:"kind"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the service's HS256 tokens.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenCodec constructs a codec for the supplied signing secret.
func NewTokenCodec(secret, issuer string) (*TokenCodec, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt: signing secret must be at least 32 bytes")
	}
	return &TokenCodec{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock overrides the codec's time source. Intended for tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// Issue signs a token of the given kind for the subject.
func (c *TokenCodec) Issue(kind, subject, email string, ttl time.Duration) (string, error) {
	issuedAt := c.now().UTC()

	claims := Claims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the token and returns its claims. The token must carry the
// expected kind; any signature, structure, or kind mismatch yields
// ErrInvalidToken, and expiry yields ErrTokenExpired.
func (c *TokenCodec) Decode(tokenString, expectedKind string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !parsed.Valid || claims.Kind != expectedKind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
