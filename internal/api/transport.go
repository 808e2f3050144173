package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/mehmetcc/polyconsole/internal/httpx"
)

// CredentialSource yields the credential to attach at the moment a request
// is sent. The session manager implements it.
type CredentialSource interface {
	Credential() (string, bool)
}

// BearerTransport stamps the current credential and device headers on every
// request. Nothing is cached: a login or logout is visible to the very next
// request.
type BearerTransport struct {
	Base   http.RoundTripper
	Source CredentialSource
	Device httpx.DeviceMeta

	// OnUnauthorized, when set, is called with the credential a request
	// carried if the backend answered 401.
	OnUnauthorized func(credential string)
}

type anonymousKey struct{}

// withoutCredential marks ctx so BearerTransport sends no Authorization header.
func withoutCredential(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// A RoundTripper must not modify the caller's request.
	out := req.Clone(req.Context())
	t.Device.Apply(out.Header)

	var sent string
	anonymous, _ := req.Context().Value(anonymousKey{}).(bool)
	if cred, ok := t.credential(); ok && !anonymous {
		out.Header.Set("Authorization", "Bearer "+cred)
		sent = cred
	} else {
		out.Header.Del("Authorization")
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && sent != "" && t.OnUnauthorized != nil {
		t.OnUnauthorized(sent)
	}
	return resp, nil
}

func (t *BearerTransport) credential() (string, bool) {
	if t.Source == nil {
		return "", false
	}
	cred, ok := t.Source.Credential()
	cred = strings.TrimSpace(cred)
	return cred, ok && cred != ""
}

func (t *BearerTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
