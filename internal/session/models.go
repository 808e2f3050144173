package session

import (
	"time"

	"github.com/mehmetcc/polyconsole/internal/person"
	"github.com/mehmetcc/polyconsole/internal/token"
)

// Identity is what the console knows about its operator, read from the
// credential payload without verifying it. It decides what pages render and
// nothing else.
type Identity struct {
	Role      person.Role `json:"role"`
	Subject   string      `json:"subject,omitempty"`
	ExpiresAt time.Time   `json:"expires_at,omitempty"`
}

// state is an immutable snapshot; a nil *state means no session.
type state struct {
	credential string
	identity   Identity
}

func newState(credential string, claims *token.Claims) *state {
	return &state{
		credential: credential,
		identity: Identity{
			Role:      claims.Role,
			Subject:   claims.Subject,
			ExpiresAt: claims.ExpiresAtTime(),
		},
	}
}
