// Package auth serves the login page, logout and the session status endpoint.
package auth

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/mehmetcc/polyconsole/internal/httpx"
	"github.com/mehmetcc/polyconsole/internal/session"
	"github.com/mehmetcc/polyconsole/internal/view"
	"go.uber.org/zap"
)

const (
	LoginPath    = "/login"
	loginTimeout = 15 * time.Second
)

type SessionManager interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context)
	CurrentIdentity() (session.Identity, bool)
}

type AuthenticationHandler interface {
	LoginPage(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Session(w http.ResponseWriter, r *http.Request)
	Mount(r chi.Router)
}

type Options struct {
	// LoginRateLimit is the number of login attempts allowed per client IP
	// in LoginRateWindow. Zero disables throttling.
	LoginRateLimit  int
	LoginRateWindow time.Duration
	// AllowedOrigins may read GET /session from a browser.
	AllowedOrigins []string
}

type authenticationHandler struct {
	logger    *zap.Logger
	sessions  SessionManager
	view      *view.Renderer
	validator *validator.Validate
	opts      Options
}

func NewAuthenticationHandler(sessions SessionManager, renderer *view.Renderer, opts Options, l *zap.Logger) AuthenticationHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	return &authenticationHandler{
		logger:    l,
		sessions:  sessions,
		view:      renderer,
		validator: v,
		opts:      opts,
	}
}

// Mount registers the routes on the top-level router, outside the guard.
func (a *authenticationHandler) Mount(r chi.Router) {
	r.Get(LoginPath, a.LoginPage)
	r.With(a.loginLimiter()).Post(LoginPath, a.Login)
	r.Post("/logout", a.Logout)

	if len(a.opts.AllowedOrigins) == 0 {
		r.Get("/session", a.Session)
		return
	}
	c := cors.Handler(cors.Options{
		AllowedOrigins: a.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"Accept"},
		MaxAge:         300,
	})
	r.With(c).Get("/session", a.Session)
	// Preflight requests are answered by the cors middleware itself.
	r.With(c).Options("/session", func(w http.ResponseWriter, r *http.Request) {})
}

func (a *authenticationHandler) loginLimiter() func(http.Handler) http.Handler {
	if a.opts.LoginRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	window := a.opts.LoginRateWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(a.opts.LoginRateLimit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			a.logger.Warn("login rate limit hit", zap.String("remote_addr", r.RemoteAddr))
			a.renderLogin(w, r, http.StatusTooManyRequests, loginForm{Next: httpx.SafeRedirectPath(r.PostFormValue("next"), "")}, nil,
				"Too many login attempts. Please wait and try again.")
		}),
	)
}

func (a *authenticationHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := httpx.SafeRedirectPath(r.URL.Query().Get("next"), "")
	if _, ok := a.sessions.CurrentIdentity(); ok {
		http.Redirect(w, r, httpx.SafeRedirectPath(next, "/"), http.StatusSeeOther)
		return
	}
	a.renderLogin(w, r, http.StatusOK, loginForm{Next: next}, nil, "")
}

func (a *authenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	/** common checks **/
	ctx, cancel := context.WithTimeout(r.Context(), loginTimeout)
	defer cancel()
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		a.logger.Warn("failed to parse login form", zap.Error(err))
		a.renderLogin(w, r, http.StatusBadRequest, loginForm{}, nil, "The login form could not be read.")
		return
	}

	/** validate */
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Next:     httpx.SafeRedirectPath(r.PostFormValue("next"), ""),
	}
	if err := a.validator.Struct(form); err != nil {
		a.logger.Debug("login validation failed", zap.Error(err))
		fields := httpx.FieldMessages(httpx.ValidationDetails(err))
		a.renderLogin(w, r, http.StatusUnprocessableEntity, form, fields, "")
		return
	}

	/** Business logic */
	if err := a.sessions.Login(ctx, form.Username, form.Password); err != nil {
		var ae *session.AuthError
		if errors.As(err, &ae) {
			a.renderLogin(w, r, http.StatusUnauthorized, form, nil, ae.Message)
			return
		}
		a.logger.Error("unexpected login failure", zap.Error(err))
		a.renderLogin(w, r, http.StatusInternalServerError, form, nil, session.DefaultLoginFailure)
		return
	}

	// An undecodable token leaves the operator logged out without an error.
	if _, ok := a.sessions.CurrentIdentity(); !ok {
		a.renderLogin(w, r, http.StatusUnauthorized, form, nil, "The server issued a session this console cannot read.")
		return
	}
	http.Redirect(w, r, httpx.SafeRedirectPath(form.Next, "/"), http.StatusSeeOther)
}

func (a *authenticationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	a.sessions.Logout(r.Context())
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (a *authenticationHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, ok := a.sessions.CurrentIdentity()
	res := sessionResponse{Authenticated: ok}
	if ok {
		res.Role = id.Role.String()
		res.Subject = id.Subject
		if !id.ExpiresAt.IsZero() {
			exp := id.ExpiresAt.UTC()
			res.ExpiresAt = &exp
		}
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (a *authenticationHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, form loginForm, fields map[string]string, errMsg string) {
	form.Password = ""
	a.view.Render(w, status, "login", view.Page{
		Title:  "Login",
		Error:  errMsg,
		Fields: fields,
		Form:   form,
	})
}

type loginForm struct {
	Username string `form:"username" validate:"required,max=64"`
	Password string `form:"password" validate:"required,max=128"`
	Next     string `form:"-"`
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	Role          string     `json:"role,omitempty"`
	Subject       string     `json:"subject,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}
