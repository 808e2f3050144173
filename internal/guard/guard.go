// Package guard keeps anonymous operators on the login page.
package guard

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mehmetcc/polyconsole/internal/person"
	"github.com/mehmetcc/polyconsole/internal/session"
)

type IdentitySource interface {
	CurrentIdentity() (session.Identity, bool)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id session.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity Require saw for this request.
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(session.Identity)
	return id, ok
}

// Require redirects requests without a session to loginPath, remembering the
// requested page in the next query parameter. The identity is read once per
// request and stored in the request context.
func Require(source IdentitySource, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := source.CurrentIdentity()
			if ok {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}
			if r.URL.Path == loginPath {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, LoginURL(loginPath, r.URL.RequestURI()), http.StatusSeeOther)
		})
	}
}

// Allow answers with forbidden unless the identity's role passes can, for
// example person.Role.CanManageRecords. It must run after Require.
func Allow(can func(person.Role) bool, forbidden http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok || !can(id.Role) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func LoginURL(loginPath, next string) string {
	if next == "" || next == "/" {
		return loginPath
	}
	return loginPath + "?" + url.Values{"next": {next}}.Encode()
}
