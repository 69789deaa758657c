package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/oauth2client"
)

// Transport is an http.RoundTripper that applies a credential Attacher to
// every outgoing request before delegating to Base.
type Transport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Attacher sets the Authorization header.
	Attacher auth.Attacher
}

// NewTransport creates a Transport. The base transport defaults to
// http.DefaultTransport if not specified.
func NewTransport(a auth.Attacher, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Attacher: a}
}

// RoundTrip implements http.RoundTripper. The caller's request is not modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Attacher == nil {
		return nil, errors.New("httpclient: Attacher is nil")
	}

	reqClone := req.Clone(req.Context())
	if err := t.Attacher.Attach(reqClone); err != nil {
		return nil, fmt.Errorf("httpclient: attach credentials: %w", err)
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(reqClone)
}

// OAuth2Transport is an http.RoundTripper that adds access tokens from a
// TokenManager to outgoing requests, as "Bearer <token>" or "JWT <token>"
// depending on the token type.
type OAuth2Transport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// TokenManager provides access tokens.
	TokenManager *oauth2client.TokenManager
}

// RoundTrip implements http.RoundTripper.
// The token fetch respects the request context's cancellation and deadline.
func (t *OAuth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.TokenManager == nil {
		return nil, errors.New("httpclient: TokenManager is nil")
	}

	token, err := t.TokenManager.GetTokenWithContext(req.Context())
	if err != nil {
		return nil, fmt.Errorf("httpclient: failed to get token: %w", err)
	}

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", t.TokenManager.Scheme()+" "+token)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(reqClone)
}

// NewOAuth2Transport creates a new OAuth2Transport with the given token manager.
// The base transport defaults to http.DefaultTransport if not specified.
func NewOAuth2Transport(tm *oauth2client.TokenManager, base http.RoundTripper) *OAuth2Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &OAuth2Transport{
		Base:         base,
		TokenManager: tm,
	}
}
