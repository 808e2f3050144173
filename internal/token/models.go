package token

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mehmetcc/polyconsole/internal/person"
)

// Claims is the part of the credential payload the console reads.
// Only Role is required; Subject and ExpiresAt are best-effort display data
// and stay empty when the payload carries them in a shape we don't know.
type Claims struct {
	Role      person.Role
	Subject   string
	ExpiresAt *jwt.NumericDate
}

// ExpiresAtTime returns the exp claim, or the zero time when the payload has none.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// payload types role strictly and keeps the display fields raw.
type payload struct {
	Role person.Role     `json:"role"`
	Sub  json.RawMessage `json:"sub"`
	Exp  json.RawMessage `json:"exp"`
}
