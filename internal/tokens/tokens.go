package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that cannot be trusted:
// malformed, wrong algorithm, bad signature or missing claims.
var ErrInvalidToken = errors.New("invalid token")

// Claims binds a subject to the moment the token was issued.
// IssuedAt is milliseconds since the Unix epoch. There is no exp claim;
// callers compare Age against their own maximum.
type Claims struct {
	jwt.RegisteredClaims
	IssuedAt int64 `json:"issuedAt"`
}

// Age returns how long ago the token was issued relative to now.
func (c Claims) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(c.IssuedAt))
}

// Codec issues and parses HS256 session tokens.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// Issue creates a signed token for subject stamped with the current time.
func (c *Codec) Issue(subject string) (string, error) {
	return c.IssueAt(subject, c.now())
}

// IssueAt creates a signed token for subject stamped with t.
func (c *Codec) IssueAt(subject string, t time.Time) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		IssuedAt:         t.UnixMilli(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString(c.secret)
}

// Parse verifies the signature and returns the embedded claims.
// Every failure is reported as ErrInvalidToken.
func (c *Codec) Parse(raw string) (Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.IssuedAt <= 0 {
		return Claims{}, fmt.Errorf("%w: missing subject or issuedAt", ErrInvalidToken)
	}
	return claims, nil
}
