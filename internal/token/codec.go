// Package token implements the bearer-credential subsystem: JWT access and
// refresh tokens signed with a shared secret, and the self-contained
// encrypted enduser token.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"qpin/internal/domain"
)

// Type tags every credential so an access token can never be replayed
// against the refresh endpoint and vice versa.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the verified payload of a bearer credential.
type Claims struct {
	Subject   string
	Type      Type
	ExpiresAt time.Time
	Role      domain.Role // access tokens only; role snapshot at issuance
	JTI       string      // refresh tokens only
}

// Codec signs and verifies bearer credentials. It is stateless and safe
// for concurrent use.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
}

// NewCodec creates a Codec from the shared secret and the configured
// HMAC algorithm (HS256, HS384, or HS512).
func NewCodec(secret, algorithm string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	var method jwt.SigningMethod
	switch algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	return &Codec{secret: []byte(secret), method: method}, nil
}

// IssueAccess signs a short-lived access token embedding the subject and a
// snapshot of the user's global role at issuance time.
func (c *Codec) IssueAccess(subject string, role domain.Role, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"exp":  time.Now().Add(ttl).Unix(),
		"type": string(TypeAccess),
		"role": string(role),
	}
	return jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
}

// IssueRefresh signs a refresh token carrying the given unique identifier.
// Collision-avoidance for the jti is the caller's responsibility; this
// function performs no store lookups and no retries.
func (c *Codec) IssueRefresh(subject, jti string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"exp":  expiresAt.Unix(),
		"type": string(TypeRefresh),
		"jti":  jti,
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify decodes a credential and checks signature, expiry, type tag, and
// subject presence. Any failure yields ok=false with no further detail:
// callers cannot distinguish a forged token from an expired one, which
// keeps the verifier from acting as an oracle.
func (c *Codec) Verify(credential string, expected Type) (*Claims, bool) {
	tok, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if t.Method == nil || t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{c.method.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, false
	}

	raw, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	typ, _ := raw["type"].(string)
	if Type(typ) != expected {
		return nil, false
	}
	sub, _ := raw["sub"].(string)
	if sub == "" {
		return nil, false
	}
	exp, err := raw.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, false
	}

	claims := &Claims{
		Subject:   sub,
		Type:      expected,
		ExpiresAt: exp.Time,
	}
	switch expected {
	case TypeAccess:
		role, _ := raw["role"].(string)
		parsed, err := domain.ParseRole(role)
		if err != nil {
			return nil, false
		}
		claims.Role = parsed
	case TypeRefresh:
		jti, _ := raw["jti"].(string)
		if jti == "" {
			return nil, false
		}
		claims.JTI = jti
	}
	return claims, true
}
