package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken   = errors.New("malformed session token")
	ErrInvalidSignature = errors.New("invalid session token signature")
	ErrTokenExpired     = errors.New("session token expired")
	ErrInvalidPayload   = errors.New("session token payload invalid")
)

// Claims wraps the session payload in registered JWT claims. The outer
// expiry bounds the token format; the payload's own expiresAt is enforced
// separately because re-signing on token rotation can carry a stale outer
// lifetime.
type Claims struct {
	jwt.RegisteredClaims
	Payload
}

// Codec signs and verifies session tokens with a single HS256 secret.
// Sign and Verify are CPU-bound and safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign produces a compact signed token for the payload. The payload's
// expiresAt is populated from the codec TTL when the caller left it unset.
func (c *Codec) Sign(p Payload) (string, error) {
	now := c.now().UTC()
	if p.CreatedAt == 0 {
		p.CreatedAt = now.Unix()
	}
	if p.ExpiresAt == 0 {
		p.ExpiresAt = now.Add(c.ttl).Unix()
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Payload: p,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks the token's integrity and returns its payload. It fails on
// malformed tokens, signature or algorithm mismatch, outer expiry, an
// already-passed inner expiresAt, or a missing userId. Errors are typed;
// nothing panics across this boundary.
func (c *Codec) Verify(token string) (Payload, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Payload{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Payload{}, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenUnverifiable):
			return Payload{}, ErrInvalidSignature
		default:
			return Payload{}, ErrMalformedToken
		}
	}
	if !parsed.Valid {
		return Payload{}, ErrInvalidSignature
	}

	if claims.UserID == "" {
		return Payload{}, ErrInvalidPayload
	}
	if claims.SessionExpired(c.now()) {
		return Payload{}, ErrTokenExpired
	}
	return claims.Payload, nil
}

// TTL exposes the configured session lifetime, used for cookie expiry.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}
