package session

import (
	"errors"

	"github.com/mehmetcc/polyconsole/internal/api"
)

// DefaultLoginFailure is shown when the backend gives no reason.
const DefaultLoginFailure = "login failed"

var (
	ErrNoAuthenticator   = errors.New("session manager has no authenticator")
	ErrFollowUnsupported = errors.New("store cannot report external changes")
)

// AuthError is the only error the session manager surfaces: a rejected or
// failed login. Message is safe to show next to the login form.
type AuthError struct {
	Message string
	// Status is the backend's HTTP status, or 0 when the request never got an answer.
	Status int
	Err    error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

func newAuthError(err error) *AuthError {
	ae := &AuthError{Message: DefaultLoginFailure, Err: err}
	var re *api.RemoteError
	if errors.As(err, &re) {
		ae.Status = re.Status
		if re.Message != "" {
			ae.Message = re.Message
		}
	}
	return ae
}
