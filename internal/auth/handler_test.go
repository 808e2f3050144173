package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mehmetcc/polyconsole/internal/guard"
	"github.com/mehmetcc/polyconsole/internal/person"
	"github.com/mehmetcc/polyconsole/internal/session"
	"github.com/mehmetcc/polyconsole/internal/view"
	"go.uber.org/zap"
)

type fakeSessions struct {
	mu       sync.Mutex
	identity *session.Identity
	loginErr error
	issue    *session.Identity
	logins   []string
	logouts  int
}

func (f *fakeSessions) Login(ctx context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins = append(f.logins, username)
	if f.loginErr != nil {
		return f.loginErr
	}
	f.identity = f.issue
	return nil
}

func (f *fakeSessions) Logout(ctx context.Context) {
	f.mu.Lock()
	f.identity = nil
	f.logouts++
	f.mu.Unlock()
}

func (f *fakeSessions) CurrentIdentity() (session.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identity == nil {
		return session.Identity{}, false
	}
	return *f.identity, true
}

func newRouter(t *testing.T, sessions *fakeSessions, opts Options) http.Handler {
	t.Helper()
	renderer, err := view.New(zap.NewNop())
	if err != nil {
		t.Fatalf("view.New: %v", err)
	}
	r := chi.NewRouter()
	r.Use(guard.SameOrigin)
	NewAuthenticationHandler(sessions, renderer, opts, zap.NewNop()).Mount(r)
	return r
}

func postLogin(h http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registrar() *session.Identity {
	return &session.Identity{Role: person.RoleRegistrar, Subject: "reg1"}
}

func TestLoginPage(t *testing.T) {
	h := newRouter(t, &fakeSessions{}, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?next=%2Fpatients%2F3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="next" value="/patients/3"`) {
		t.Fatalf("next not carried into the form:\n%s", body)
	}
	if strings.Contains(body, `action="/logout"`) {
		t.Fatal("anonymous page shows logout")
	}
}

func TestLoginPageWhenLoggedIn(t *testing.T) {
	h := newRouter(t, &fakeSessions{identity: registrar()}, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?next=%2Fvisits", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/visits" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLoginSuccess(t *testing.T) {
	tests := []struct {
		next, location string
	}{
		{next: "/doctors", location: "/doctors"},
		{next: "", location: "/"},
		{next: "//evil.example/x", location: "/"},
		{next: "https://evil.example", location: "/"},
	}
	for _, tt := range tests {
		sessions := &fakeSessions{issue: registrar()}
		h := newRouter(t, sessions, Options{})

		rec := postLogin(h, url.Values{"username": {" reg1 "}, "password": {"pw"}, "next": {tt.next}})
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("next %q: status = %d", tt.next, rec.Code)
		}
		if got := rec.Header().Get("Location"); got != tt.location {
			t.Fatalf("next %q: Location = %q, want %q", tt.next, got, tt.location)
		}
		if len(sessions.logins) != 1 || sessions.logins[0] != "reg1" {
			t.Fatalf("logins = %v", sessions.logins)
		}
	}
}

func TestLoginRejected(t *testing.T) {
	sessions := &fakeSessions{loginErr: &session.AuthError{Message: "invalid credentials", Status: http.StatusUnauthorized}}
	h := newRouter(t, sessions, Options{})

	rec := postLogin(h, url.Values{"username": {"reg1"}, "password": {"hunter22"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "invalid credentials") {
		t.Fatalf("server message missing:\n%s", body)
	}
	if !strings.Contains(body, `value="reg1"`) {
		t.Fatal("username should be kept in the form")
	}
	if strings.Contains(body, "hunter22") {
		t.Fatal("password echoed back")
	}
}

func TestLoginValidation(t *testing.T) {
	sessions := &fakeSessions{}
	h := newRouter(t, sessions, Options{})

	rec := postLogin(h, url.Values{"username": {"  "}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"username is required", "password is required"} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
	if len(sessions.logins) != 0 {
		t.Fatal("invalid form reached the backend")
	}
}

func TestLoginUnreadableToken(t *testing.T) {
	// Login succeeds but leaves no identity behind.
	h := newRouter(t, &fakeSessions{}, Options{})
	rec := postLogin(h, url.Values{"username": {"reg1"}, "password": {"pw"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	sessions := &fakeSessions{loginErr: &session.AuthError{Message: "invalid credentials"}}
	h := newRouter(t, sessions, Options{LoginRateLimit: 2, LoginRateWindow: time.Hour})

	form := url.Values{"username": {"reg1"}, "password": {"pw"}}
	for i := 0; i < 2; i++ {
		if rec := postLogin(h, form); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d", i+1, rec.Code)
		}
	}
	rec := postLogin(h, form)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if len(sessions.logins) != 2 {
		t.Fatalf("throttled attempt reached the backend: %v", sessions.logins)
	}
}

func TestLogout(t *testing.T) {
	sessions := &fakeSessions{identity: registrar()}
	h := newRouter(t, sessions, Options{})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
		}
	}
	if _, ok := sessions.CurrentIdentity(); ok || sessions.logouts != 2 {
		t.Fatalf("logouts = %d", sessions.logouts)
	}
}

func TestCrossSiteLoginAndLogoutAreRejected(t *testing.T) {
	sessions := &fakeSessions{identity: registrar(), issue: &session.Identity{Role: person.RoleDoctor}}
	h := newRouter(t, sessions, Options{})

	form := url.Values{"username": {"attacker"}, "password": {"pw"}}
	for _, target := range []string{"/login", "/logout"} {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
	}

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if len(sessions.logins) != 0 || sessions.logouts != 0 {
		t.Fatalf("logins = %v, logouts = %d", sessions.logins, sessions.logouts)
	}
	if sessions.identity == nil || sessions.identity.Role != person.RoleRegistrar {
		t.Fatalf("identity = %+v", sessions.identity)
	}
}

func TestSession(t *testing.T) {
	exp := time.Date(2031, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name     string
		identity *session.Identity
		want     sessionResponse
	}{
		{name: "anonymous", want: sessionResponse{}},
		{
			name:     "registrar",
			identity: &session.Identity{Role: person.RoleRegistrar, Subject: "reg1", ExpiresAt: exp},
			want:     sessionResponse{Authenticated: true, Role: "registrar", Subject: "reg1", ExpiresAt: &exp},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(t, &fakeSessions{identity: tt.identity}, Options{})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

			var body struct {
				Data sessionResponse `json:"data"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			got := body.Data
			if got.Authenticated != tt.want.Authenticated || got.Role != tt.want.Role || got.Subject != tt.want.Subject {
				t.Fatalf("session = %+v, want %+v", got, tt.want)
			}
			if (got.ExpiresAt == nil) != (tt.want.ExpiresAt == nil) ||
				(got.ExpiresAt != nil && !got.ExpiresAt.Equal(*tt.want.ExpiresAt)) {
				t.Fatalf("expires_at = %v, want %v", got.ExpiresAt, tt.want.ExpiresAt)
			}
		})
	}
}

func TestSessionCORS(t *testing.T) {
	h := newRouter(t, &fakeSessions{}, Options{AllowedOrigins: []string{"https://ops.example"}})

	for origin, want := range map[string]string{
		"https://ops.example":  "https://ops.example",
		"https://evil.example": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("origin %s: allow-origin = %q, want %q", origin, got, want)
		}
	}
}
