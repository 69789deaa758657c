package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/internal/transport"
	"github.com/openedx/edx-rest-api-client/oauth2client"
)

// DefaultTimeout bounds a whole request made by a built client.
const DefaultTimeout = 30 * time.Second

// Builder provides a fluent interface for constructing HTTP clients with
// credential injection, connect/read timeouts and TLS/mTLS support.
type Builder struct {
	// Credentials; tokenManager wins over attacher when both are set.
	tokenManager *oauth2client.TokenManager
	attacher     auth.Attacher

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	// HTTP client configuration
	timeout         time.Duration
	timeouts        transport.Timeouts
	baseTransport   http.RoundTripper
	followRedirects bool
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         DefaultTimeout,
		timeouts:        transport.DefaultTimeouts(),
		followRedirects: true,
	}
}

// WithTokenManager injects tokens from tm into every request.
func (b *Builder) WithTokenManager(tm *oauth2client.TokenManager) *Builder {
	b.tokenManager = tm
	return b
}

// WithOAuth2 creates a TokenManager for the client credentials grant against
// the authorization server at baseURL.
func (b *Builder) WithOAuth2(ctx context.Context, baseURL, clientID, clientSecret string, opts ...oauth2client.Option) *Builder {
	b.tokenManager = oauth2client.NewTokenManager(ctx, nil, baseURL, clientID, clientSecret, opts...)
	return b
}

// WithAttacher applies a static credential (signed JWT, supplied JWT or
// bearer token) to every request.
func (b *Builder) WithAttacher(a auth.Attacher) *Builder {
	b.attacher = a
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
// This should only be used for testing or development purposes.
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithTimeout sets the overall request timeout. Default is 30 seconds.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithTimeouts sets the connect timeout (dial and TLS handshake) and the
// read timeout (wait for response headers). Defaults are 3.05s and 5s.
func (b *Builder) WithTimeouts(connect, read time.Duration) *Builder {
	b.timeouts = transport.Timeouts{Connect: connect, Read: read}
	return b
}

// WithBaseTransport sets a custom base transport. Timeouts and TLS settings
// are not applied to it.
func (b *Builder) WithBaseTransport(rt http.RoundTripper) *Builder {
	b.baseTransport = rt
	return b
}

// WithoutRedirects disables automatic redirect following.
// By default, the client follows up to 10 redirects.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// Build constructs the HTTP client with the configured options.
func (b *Builder) Build() (*http.Client, error) {
	rt := b.baseTransport
	if rt == nil {
		var tlsConfig *tls.Config
		if b.tlsEnabled || b.tlsSkipVerify {
			var err error
			tlsConfig, err = b.buildTLSConfig()
			if err != nil {
				return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
			}
		}
		rt = transport.New(b.timeouts, tlsConfig)
	}

	rt = &RequestIDTransport{Base: rt}

	switch {
	case b.tokenManager != nil:
		rt = NewOAuth2Transport(b.tokenManager, rt)
	case b.attacher != nil:
		rt = NewTransport(b.attacher, rt)
	}

	client := &http.Client{
		Transport: rt,
		Timeout:   b.timeout,
	}

	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
	}

	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	// Client certificate for mTLS needs both halves.
	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}

// NewHTTPClient is a convenience function that creates an HTTP client
// injecting tokens from tm, with default timeouts.
// For more configuration options, use Builder instead.
//
// Example:
//
//	tm := oauth2client.NewTokenManager(ctx, nil, "https://lms.example.com", clientID, clientSecret)
//	client := httpclient.NewHTTPClient(tm)
//	resp, err := client.Get("https://api.example.com/data")
func NewHTTPClient(tm *oauth2client.TokenManager) *http.Client {
	rt := &RequestIDTransport{Base: transport.New(transport.DefaultTimeouts(), nil)}
	return &http.Client{
		Transport: NewOAuth2Transport(tm, rt),
		Timeout:   DefaultTimeout,
	}
}
