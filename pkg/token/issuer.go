package token

import (
	"time"

	"parapet/pkg/users"
)

// Issuer turns a verified user record into a signed token. Stateless: no
// counters, no persistence. Credential verification happens before Issue;
// the record is assumed valid.
type Issuer struct {
	codec    *Codec
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(codec *Codec, issuer, audience string, ttl time.Duration) *Issuer {
	return &Issuer{codec: codec, issuer: issuer, audience: audience, ttl: ttl, now: time.Now}
}

// Issue builds claims with iat=now, exp=now+ttl and the role copied verbatim
// from the user record.
func (i *Issuer) Issue(u users.User) (string, error) {
	now := i.now().UTC().Truncate(time.Second)
	return i.codec.Encode(Claims{
		SubjectID: u.ID,
		Username:  u.Username,
		Role:      u.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
		Issuer:    i.issuer,
		Audience:  i.audience,
	})
}
