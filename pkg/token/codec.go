// Package token implements the shared-secret identity token scheme: a compact
// HS256-signed claims set issued at login and validated by the gateway on
// every proxied request. The token content is the sole source of identity;
// no secondary lookup happens after a successful decode.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Decode failure kinds. Decode returns exactly one of these; callers collapse
// them into a single generic authentication failure so responses never reveal
// which check failed.
var (
	ErrMalformed        = errors.New("token: malformed")
	ErrSignature        = errors.New("token: signature mismatch")
	ErrExpired          = errors.New("token: expired")
	ErrIssuerMismatch   = errors.New("token: issuer mismatch")
	ErrAudienceMismatch = errors.New("token: audience mismatch")
)

// Claims is the structured identity payload carried inside a token. Fixed
// typed fields only; no dynamic key/value bag.
type Claims struct {
	SubjectID int64
	Username  string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
	Audience  string
}

// Codec encodes and decodes signed tokens with a single shared secret.
// Immutable after construction; safe for concurrent use.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
}

func NewCodec(secret, issuer, audience string) *Codec {
	return &Codec{secret: []byte(secret), issuer: issuer, audience: audience}
}

// Encode serializes the claims into a compact JWS string (three dot-separated
// base64url segments, HS256 over header.payload).
func (c *Codec) Encode(cl Claims) (string, error) {
	b := jwt.NewBuilder().
		Subject(strconv.FormatInt(cl.SubjectID, 10)).
		Issuer(cl.Issuer).
		Audience([]string{cl.Audience}).
		IssuedAt(cl.IssuedAt).
		Expiration(cl.ExpiresAt).
		Claim("username", cl.Username)
	if cl.Role != "" {
		b = b.Claim("role", cl.Role)
	}
	tok, err := b.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, c.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Decode verifies the signature byte-for-byte before trusting any field, then
// checks expiry, issuer and audience with zero clock skew. All-or-nothing: a
// failed decode returns no partial claims.
func (c *Codec) Decode(raw string) (Claims, error) {
	// Structural parse without verification to separate "cannot parse" from
	// "signature does not match".
	if _, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false)); err != nil {
		return Claims{}, ErrMalformed
	}
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, c.secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, ErrSignature
	}
	// Time checks first (zero skew), then exact issuer/audience comparison.
	if err := jwt.Validate(tok); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}
	if tok.Issuer() != c.issuer {
		return Claims{}, ErrIssuerMismatch
	}
	if !containsAudience(tok.Audience(), c.audience) {
		return Claims{}, ErrAudienceMismatch
	}

	sub, err := strconv.ParseInt(tok.Subject(), 10, 64)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	cl := Claims{
		SubjectID: sub,
		IssuedAt:  tok.IssuedAt(),
		ExpiresAt: tok.Expiration(),
		Issuer:    tok.Issuer(),
	}
	if aud := tok.Audience(); len(aud) > 0 {
		cl.Audience = aud[0]
	}
	if v, ok := tok.Get("username"); ok {
		cl.Username, _ = v.(string)
	}
	if v, ok := tok.Get("role"); ok {
		cl.Role, _ = v.(string)
	}
	return cl, nil
}

func containsAudience(aud []string, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
