// Package session owns the console's credential and the identity derived from it.
//
// The identity comes from decoding the credential payload without checking
// its signature. It is a display convenience: the backend authorizes every
// protected request on its own, and nothing here should be treated as an
// access control.
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mehmetcc/polyconsole/internal/store"
	"github.com/mehmetcc/polyconsole/internal/token"
	"go.uber.org/zap"
)

const storeTimeout = 5 * time.Second

// Authenticator exchanges operator credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type Manager struct {
	store  store.Store
	logger *zap.Logger

	authMu sync.RWMutex
	auth   Authenticator

	mu  sync.Mutex // serializes writers; readers only load cur
	cur atomic.Pointer[state]
}

func NewManager(st store.Store, logger *zap.Logger) *Manager {
	return &Manager{store: st, logger: logger}
}

// SetAuthenticator wires the login backend. The API client needs the manager
// as its credential source, so it is attached after construction.
func (m *Manager) SetAuthenticator(a Authenticator) {
	m.authMu.Lock()
	m.auth = a
	m.authMu.Unlock()
}

// Initialize loads the persisted credential. Every failure, including an
// unreadable store, ends in "no session"; nothing is returned.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("failed to read stored credential", zap.Error(err))
		m.cur.Store(nil)
		return
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		m.cur.Store(nil)
		return
	}

	claims, err := token.Decode(raw)
	if err != nil {
		m.logger.Warn("stored credential is unreadable, discarding it", zap.Error(err))
		m.cur.Store(nil)
		m.clearStore(ctx)
		return
	}
	m.cur.Store(newState(raw, claims))
	m.logger.Debug("session restored", zap.String("role", claims.Role.String()))
}

// Login authenticates against the backend. On success the new credential is
// in effect for the next outbound request. On failure nothing changes and an
// *AuthError is returned.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.authMu.RLock()
	auth := m.auth
	m.authMu.RUnlock()
	if auth == nil {
		return &AuthError{Message: DefaultLoginFailure, Err: ErrNoAuthenticator}
	}

	raw, err := auth.Login(ctx, username, password)
	if err != nil {
		ae := newAuthError(err)
		m.logger.Info("login rejected",
			zap.String("username", username),
			zap.Int("status", ae.Status),
			zap.Error(err),
		)
		return ae
	}

	claims, decodeErr := token.Decode(raw)

	m.mu.Lock()
	defer m.mu.Unlock()

	if decodeErr != nil {
		m.logger.Warn("issued credential is unreadable, staying logged out", zap.Error(decodeErr))
		m.cur.Store(nil)
		m.clearStore(ctx)
		return nil
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := m.store.Save(sctx, raw); err != nil {
		m.logger.Warn("failed to persist credential, session lasts until restart", zap.Error(err))
	}
	m.cur.Store(newState(raw, claims))
	m.logger.Info("logged in", zap.String("username", username), zap.String("role", claims.Role.String()))
	return nil
}

// Logout drops the session in memory and in the store. It never fails.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	had := m.cur.Swap(nil) != nil
	m.clearStore(ctx)
	if had {
		m.logger.Info("logged out")
	}
}

// HandleUnauthorized drops the session if credential is still the current
// one. A 401 for a credential that has since been replaced is ignored.
func (m *Manager) HandleUnauthorized(credential string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.cur.Load()
	if cur == nil || cur.credential != credential {
		return
	}
	m.cur.Store(nil)
	m.clearStore(context.Background())
	m.logger.Info("backend rejected credential, session dropped")
}

// Follow re-initializes the session whenever another process changes the
// store. It blocks until ctx is done.
func (m *Manager) Follow(ctx context.Context) error {
	w, ok := m.store.(store.Watcher)
	if !ok {
		return ErrFollowUnsupported
	}
	return w.Watch(ctx, func() {
		m.logger.Info("stored credential changed, reloading session")
		m.Initialize(ctx)
	})
}

// CurrentIdentity returns the operator identity, if any.
func (m *Manager) CurrentIdentity() (Identity, bool) {
	if s := m.cur.Load(); s != nil {
		return s.identity, true
	}
	return Identity{}, false
}

// Credential returns the raw credential, if any. It satisfies api.CredentialSource.
func (m *Manager) Credential() (string, bool) {
	if s := m.cur.Load(); s != nil {
		return s.credential, true
	}
	return "", false
}

func (m *Manager) clearStore(ctx context.Context) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := m.store.Clear(sctx); err != nil {
		m.logger.Warn("failed to clear stored credential", zap.Error(err))
	}
}
