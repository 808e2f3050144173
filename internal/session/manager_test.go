package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mehmetcc/polyconsole/internal/api"
	"github.com/mehmetcc/polyconsole/internal/person"
	"github.com/mehmetcc/polyconsole/internal/store"
	"github.com/mehmetcc/polyconsole/internal/token"
	"go.uber.org/zap"
)

func mint(t *testing.T, role person.Role) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": string(role),
		"sub":  "user-" + string(role),
	}).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return s
}

// fakeBackend answers /login from a script and records the Authorization
// header of every /api request.
type fakeBackend struct {
	mu         sync.Mutex
	loginCode  int
	loginBody  any
	apiAuth    []string
	apiHandler func(w http.ResponseWriter)
}

func (b *fakeBackend) respondLogin(code int, body any) {
	b.mu.Lock()
	b.loginCode, b.loginBody = code, body
	b.mu.Unlock()
}

func (b *fakeBackend) authHeaders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.apiAuth...)
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/login" {
		w.WriteHeader(b.loginCode)
		_ = json.NewEncoder(w).Encode(b.loginBody)
		return
	}
	b.apiAuth = append(b.apiAuth, r.Header.Get("Authorization"))
	if b.apiHandler != nil {
		b.apiHandler(w)
		return
	}
	_, _ = w.Write([]byte(`[]`))
}

type harness struct {
	backend *fakeBackend
	store   store.Store
	manager *Manager
	client  *api.Client
}

func newHarness(t *testing.T, st store.Store) *harness {
	t.Helper()
	backend := &fakeBackend{loginCode: http.StatusOK, loginBody: map[string]string{}}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	mgr := NewManager(st, zap.NewNop())
	client := api.New(api.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, mgr, zap.NewNop())
	mgr.SetAuthenticator(client)
	return &harness{backend: backend, store: st, manager: mgr, client: client}
}

func loaded(t *testing.T, st store.Store) string {
	t.Helper()
	v, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("store Load: %v", err)
	}
	return v
}

func TestInitializeEmptyStore(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	h.manager.Initialize(context.Background())

	if id, ok := h.manager.CurrentIdentity(); ok {
		t.Fatalf("expected no identity, got %+v", id)
	}
	if _, ok := h.manager.Credential(); ok {
		t.Fatal("expected no credential")
	}
	if _, err := h.client.ListPatients(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := h.backend.authHeaders(); got[0] != "" {
		t.Fatalf("anonymous call carried %q", got[0])
	}
}

func TestInitializeRestoresStoredCredential(t *testing.T) {
	raw := mint(t, person.RoleDoctor)
	h := newHarness(t, store.NewMemoryWith(raw))
	h.manager.Initialize(context.Background())

	id, ok := h.manager.CurrentIdentity()
	if !ok || id.Role != person.RoleDoctor || id.Subject != "user-doctor" {
		t.Fatalf("identity = %+v, %v", id, ok)
	}
	if _, err := h.client.ListDoctors(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := h.backend.authHeaders()[0]; got != "Bearer "+raw {
		t.Fatalf("Authorization = %q", got)
	}
}

func TestInitializeMalformedStoredCredential(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	tests := map[string]string{
		"one segment":     "garbage",
		"two segments":    "a.b",
		"bad base64":      "a.%%%.c",
		"payload no json": "a." + enc([]byte("hello")) + ".c",
		"no role claim":   "a." + enc([]byte(`{"sub":"x"}`)) + ".c",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			st := store.NewMemoryWith(raw)
			h := newHarness(t, st)
			h.manager.Initialize(context.Background())

			if _, ok := h.manager.CurrentIdentity(); ok {
				t.Fatal("malformed credential must mean no session")
			}
			if _, ok := h.manager.Credential(); ok {
				t.Fatal("malformed credential must not be sent")
			}
			if got := loaded(t, st); got != "" {
				t.Fatalf("malformed credential left in store: %q", got)
			}
		})
	}
}

type failingStore struct {
	store.Memory
	loadErr, saveErr, clearErr error
}

func (f *failingStore) Load(ctx context.Context) (string, error) {
	if f.loadErr != nil {
		return "", f.loadErr
	}
	return f.Memory.Load(ctx)
}

func (f *failingStore) Save(ctx context.Context, tok string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Memory.Save(ctx, tok)
}

func (f *failingStore) Clear(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.Memory.Clear(ctx)
}

func TestInitializeStoreFailureIsNoSession(t *testing.T) {
	h := newHarness(t, &failingStore{loadErr: errors.New("disk on fire")})
	h.manager.Initialize(context.Background())
	if _, ok := h.manager.CurrentIdentity(); ok {
		t.Fatal("unreadable store must mean no session")
	}
}

func TestLoginRegistrar(t *testing.T) {
	st := store.NewMemory()
	h := newHarness(t, st)
	h.manager.Initialize(context.Background())

	raw := mint(t, person.RoleRegistrar)
	h.backend.respondLogin(http.StatusOK, map[string]string{"token": raw})

	if err := h.manager.Login(context.Background(), "reg1", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, ok := h.manager.CurrentIdentity()
	if !ok || id.Role != person.RoleRegistrar {
		t.Fatalf("identity = %+v, %v", id, ok)
	}
	if got := loaded(t, st); got != raw {
		t.Fatalf("stored = %q, want issued token", got)
	}

	// The very next call carries the new credential.
	if _, err := h.client.ListVisits(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := h.backend.authHeaders()[0]; got != "Bearer "+raw {
		t.Fatalf("Authorization = %q", got)
	}
}

func TestLoginUnsignedPayload(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte(`{"role":"registrar"}`))
	raw := "eyJhbGciOiJub25lIn0." + payload + ".sig"
	h := newHarness(t, store.NewMemory())
	h.backend.respondLogin(http.StatusOK, map[string]string{"token": raw})

	if err := h.manager.Login(context.Background(), "reg1", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, ok := h.manager.CurrentIdentity()
	if !ok || id != (Identity{Role: person.RoleRegistrar}) {
		t.Fatalf("identity = %+v, %v", id, ok)
	}
}

func TestLoginLooseRegisteredClaims(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"role":"registrar","sub":42,"exp":"2030-01-01T00:00:00Z","iat":"now"}`))
	raw := "h." + payload + ".s"
	h := newHarness(t, store.NewMemory())
	h.backend.respondLogin(http.StatusOK, map[string]string{"token": raw})

	if err := h.manager.Login(context.Background(), "reg1", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, ok := h.manager.CurrentIdentity()
	if !ok || id.Role != person.RoleRegistrar || id.Subject != "42" {
		t.Fatalf("identity = %+v, %v", id, ok)
	}
	if !id.ExpiresAt.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expires = %v", id.ExpiresAt)
	}
	if got := loaded(t, h.store); got != raw {
		t.Fatalf("stored %q, want %q", got, raw)
	}

	restarted := newHarness(t, h.store)
	restarted.manager.Initialize(context.Background())
	if id, ok := restarted.manager.CurrentIdentity(); !ok || id.Subject != "42" {
		t.Fatalf("restored identity = %+v, %v", id, ok)
	}
}

func TestLoginRoleRoundTrip(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	for _, role := range []person.Role{person.RoleRegistrar, person.RoleDoctor, person.RoleNurse, "auditor"} {
		raw := mint(t, role)
		h.backend.respondLogin(http.StatusOK, map[string]string{"token": raw})
		if err := h.manager.Login(context.Background(), "u", "p"); err != nil {
			t.Fatalf("Login(%s): %v", role, err)
		}
		id, ok := h.manager.CurrentIdentity()
		if !ok || id.Role != role {
			t.Fatalf("role = %q, want %q", id.Role, role)
		}
	}
}

func TestLoginRejected(t *testing.T) {
	prev := mint(t, person.RoleDoctor)
	st := store.NewMemoryWith(prev)
	h := newHarness(t, st)
	h.manager.Initialize(context.Background())
	h.backend.respondLogin(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})

	err := h.manager.Login(context.Background(), "reg1", "wrong")

	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AuthError", err)
	}
	if ae.Message != "invalid credentials" || ae.Error() != "invalid credentials" {
		t.Fatalf("message = %q", ae.Message)
	}
	if ae.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", ae.Status)
	}
	id, ok := h.manager.CurrentIdentity()
	if !ok || id.Role != person.RoleDoctor {
		t.Fatalf("identity changed by failed login: %+v, %v", id, ok)
	}
	if got := loaded(t, st); got != prev {
		t.Fatal("store changed by failed login")
	}
}

func TestLoginFailureDefaultMessage(t *testing.T) {
	tests := []struct {
		name string
		code int
		body any
	}{
		{name: "no error field", code: http.StatusUnauthorized, body: map[string]string{}},
		{name: "server error", code: http.StatusInternalServerError, body: "boom"},
		{name: "2xx without token", code: http.StatusOK, body: map[string]string{"token": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, store.NewMemory())
			h.backend.respondLogin(tt.code, tt.body)

			err := h.manager.Login(context.Background(), "u", "p")
			var ae *AuthError
			if !errors.As(err, &ae) || ae.Message != DefaultLoginFailure {
				t.Fatalf("err = %v", err)
			}
			if _, ok := h.manager.CurrentIdentity(); ok {
				t.Fatal("failed login created a session")
			}
		})
	}
}

func TestLoginTransportFailure(t *testing.T) {
	mgr := NewManager(store.NewMemory(), zap.NewNop())
	client := api.New(api.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, mgr, zap.NewNop())
	mgr.SetAuthenticator(client)

	err := mgr.Login(context.Background(), "u", "p")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v", err)
	}
	if ae.Message != DefaultLoginFailure || ae.Status != 0 || ae.Unwrap() == nil {
		t.Fatalf("AuthError = %+v", ae)
	}
}

func TestLoginWithoutAuthenticator(t *testing.T) {
	mgr := NewManager(store.NewMemory(), zap.NewNop())
	err := mgr.Login(context.Background(), "u", "p")
	if !errors.Is(err, ErrNoAuthenticator) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoginUndecodableTokenMeansNoSession(t *testing.T) {
	st := store.NewMemoryWith(mint(t, person.RoleDoctor))
	h := newHarness(t, st)
	h.manager.Initialize(context.Background())
	h.backend.respondLogin(http.StatusOK, map[string]string{"token": "opaque-session-id"})

	if err := h.manager.Login(context.Background(), "u", "p"); err != nil {
		t.Fatalf("decode failure must not surface: %v", err)
	}
	if _, ok := h.manager.CurrentIdentity(); ok {
		t.Fatal("undecodable token must mean no session")
	}
	if got := loaded(t, st); got != "" {
		t.Fatalf("store = %q, want empty", got)
	}
}

func TestLoginStoreFailureKeepsSession(t *testing.T) {
	h := newHarness(t, &failingStore{saveErr: errors.New("read-only fs")})
	raw := mint(t, person.RoleRegistrar)
	h.backend.respondLogin(http.StatusOK, map[string]string{"token": raw})

	if err := h.manager.Login(context.Background(), "u", "p"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if cred, ok := h.manager.Credential(); !ok || cred != raw {
		t.Fatal("session should hold in memory when persisting fails")
	}
}

func TestLogoutIdempotent(t *testing.T) {
	st := store.NewMemory()
	h := newHarness(t, st)
	raw := mint(t, person.RoleRegistrar)
	h.backend.respondLogin(http.StatusOK, map[string]string{"token": raw})
	if err := h.manager.Login(context.Background(), "u", "p"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		h.manager.Logout(context.Background())
		if _, ok := h.manager.CurrentIdentity(); ok {
			t.Fatalf("identity after logout #%d", i+1)
		}
		if _, ok := h.manager.Credential(); ok {
			t.Fatalf("credential after logout #%d", i+1)
		}
		if got := loaded(t, st); got != "" {
			t.Fatalf("store after logout #%d = %q", i+1, got)
		}
	}

	if _, err := h.client.ListSections(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := h.backend.authHeaders()[0]; got != "" {
		t.Fatalf("call after logout carried %q", got)
	}
}

func TestLogoutWithoutSessionAndBrokenStore(t *testing.T) {
	h := newHarness(t, &failingStore{clearErr: errors.New("gone")})
	h.manager.Logout(context.Background())
	if _, ok := h.manager.CurrentIdentity(); ok {
		t.Fatal("unexpected identity")
	}
}

func TestRemoteFailureKeepsSession(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	h.backend.respondLogin(http.StatusOK, map[string]string{"token": mint(t, person.RoleRegistrar)})
	if err := h.manager.Login(context.Background(), "u", "p"); err != nil {
		t.Fatal(err)
	}
	h.backend.mu.Lock()
	h.backend.apiHandler = func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"expired"}`))
	}
	h.backend.mu.Unlock()

	if _, err := h.client.ListPatients(context.Background()); !api.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := h.manager.CurrentIdentity(); !ok {
		t.Fatal("a failed resource call must not end the session")
	}
}

func TestHandleUnauthorized(t *testing.T) {
	st := store.NewMemory()
	mgr := NewManager(st, zap.NewNop())
	raw := mint(t, person.RoleRegistrar)
	newer := mint(t, person.RoleDoctor)

	backend := &fakeBackend{loginCode: http.StatusOK, loginBody: map[string]string{"token": raw}}
	backend.apiHandler = func(w http.ResponseWriter) { w.WriteHeader(http.StatusUnauthorized) }
	srv := httptest.NewServer(backend)
	defer srv.Close()

	client := api.New(api.Config{BaseURL: srv.URL, OnUnauthorized: mgr.HandleUnauthorized}, mgr, zap.NewNop())
	mgr.SetAuthenticator(client)

	if err := mgr.Login(context.Background(), "u", "p"); err != nil {
		t.Fatal(err)
	}

	// A 401 for a credential that is no longer current is ignored.
	mgr.HandleUnauthorized(newer)
	if _, ok := mgr.CurrentIdentity(); !ok {
		t.Fatal("stale 401 dropped the session")
	}

	_, _ = client.ListPatients(context.Background())
	if _, ok := mgr.CurrentIdentity(); ok {
		t.Fatal("401 for the current credential should drop the session")
	}
	if got := loaded(t, st); got != "" {
		t.Fatalf("store = %q", got)
	}
}

func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	tokens := map[string]person.Role{
		mint(t, person.RoleRegistrar): person.RoleRegistrar,
		mint(t, person.RoleDoctor):    person.RoleDoctor,
	}
	var raws []string
	for raw := range tokens {
		raws = append(raws, raw)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	errs := make(chan string, 1)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				cred, ok := h.manager.Credential()
				if !ok {
					continue
				}
				// Both accessors read one snapshot each; a credential must
				// always decode to one of the roles the writer used.
				claims, err := token.Decode(cred)
				if err != nil || tokens[cred] != claims.Role {
					select {
					case errs <- "credential and role out of step":
					default:
					}
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		h.backend.respondLogin(http.StatusOK, map[string]string{"token": raws[i%2]})
		if err := h.manager.Login(context.Background(), "u", "p"); err != nil {
			t.Fatal(err)
		}
		if i%7 == 0 {
			h.manager.Logout(context.Background())
		}
	}
	cancel()
	wg.Wait()

	select {
	case msg := <-errs:
		t.Fatal(msg)
	default:
	}
}

func TestFollowReloadsOnExternalChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	st, err := store.NewFile(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, st)
	raw := mint(t, person.RoleRegistrar)
	h.backend.respondLogin(http.StatusOK, map[string]string{"token": raw})
	if err := h.manager.Login(context.Background(), "u", "p"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.manager.Follow(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// Another console process sharing the file logs out.
	other, err := store.NewFile(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := h.manager.CurrentIdentity(); !ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("external logout was not observed")
}

func TestFollowUnsupported(t *testing.T) {
	mgr := NewManager(store.NewMemory(), zap.NewNop())
	if err := mgr.Follow(context.Background()); !errors.Is(err, ErrFollowUnsupported) {
		t.Fatalf("err = %v", err)
	}
}
