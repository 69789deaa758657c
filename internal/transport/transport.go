// Package transport builds the HTTP transports shared by token fetches and API calls.
package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Default network timeouts.
const (
	DefaultConnectTimeout = 3050 * time.Millisecond
	DefaultReadTimeout    = 5 * time.Second
)

// Timeouts splits the network budget into connection setup and response wait.
type Timeouts struct {
	// Connect bounds dialing and the TLS handshake.
	Connect time.Duration
	// Read bounds the wait for response headers once the request is written.
	Read time.Duration
}

// DefaultTimeouts returns the library defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{Connect: DefaultConnectTimeout, Read: DefaultReadTimeout}
}

// New returns a RoundTripper with the given timeouts and TLS config.
// It clones http.DefaultTransport when that is an *http.Transport; otherwise
// (for example a test stub) the default transport is returned unchanged.
func New(timeouts Timeouts, tlsConfig *tls.Config) http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}

	t := base.Clone()
	if timeouts.Connect > 0 {
		dialer := &net.Dialer{Timeout: timeouts.Connect, KeepAlive: 30 * time.Second}
		t.DialContext = dialer.DialContext
		t.TLSHandshakeTimeout = timeouts.Connect
	}
	if timeouts.Read > 0 {
		t.ResponseHeaderTimeout = timeouts.Read
	}
	if tlsConfig != nil {
		t.TLSClientConfig = tlsConfig
	} else {
		t.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return t
}

// NewClient wraps New in an *http.Client.
func NewClient(timeouts Timeouts) *http.Client {
	return &http.Client{Transport: New(timeouts, nil)}
}
