package grpcclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/oauth2client"
)

// Builder provides a fluent interface for constructing gRPC client connections
// that carry edX OAuth2 access tokens, with TLS/mTLS support.
type Builder struct {
	address string

	// Credentials; tokenManager wins over the OAuth2 settings.
	tokenManager       *oauth2client.TokenManager
	oauth2Enabled      bool
	oauth2BaseURL      string
	oauth2ClientID     string
	oauth2ClientSecret string
	oauth2Opts         []oauth2client.Option

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsServerName string
	plaintext     bool

	// Additional dial options
	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "discovery.example.com:9090").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithTokenManager attaches tokens from tm to every call. Share one manager
// between gRPC and HTTP clients to reuse tokens.
func (b *Builder) WithTokenManager(tm *oauth2client.TokenManager) *Builder {
	b.tokenManager = tm
	return b
}

// WithOAuth2 enables the client credentials grant against the authorization
// server at baseURL. The TokenManager is created by Build.
//
// Parameters:
//   - baseURL: authorization server (e.g., "https://lms.example.com"), normalized to <base>/oauth2/access_token
//   - clientID: OAuth2 client identifier
//   - clientSecret: OAuth2 client secret
//   - opts: token type, cache, logger and other oauth2client options
func (b *Builder) WithOAuth2(baseURL, clientID, clientSecret string, opts ...oauth2client.Option) *Builder {
	b.oauth2Enabled = true
	b.oauth2BaseURL = baseURL
	b.oauth2ClientID = clientID
	b.oauth2ClientSecret = clientSecret
	b.oauth2Opts = opts
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
//   - serverName: Expected server name for TLS verification (optional, overrides SNI)
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	b.tlsServerName = serverName
	return b
}

// WithInsecure disables transport security. Tokens are then sent in plain
// text, so use it only for local development and tests.
func (b *Builder) WithInsecure() *Builder {
	b.plaintext = true
	return b
}

// WithDialOptions adds custom gRPC dial options.
// These options are applied after the credential and TLS options.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Build constructs the gRPC client connection. ctx becomes the fallback
// context of a TokenManager created from WithOAuth2.
func (b *Builder) Build(ctx context.Context) (*grpc.ClientConn, error) {
	if b.address == "" {
		return nil, fmt.Errorf("%w: grpcclient: server address is required", auth.ErrInvalidConfig)
	}
	if b.plaintext && b.tlsEnabled {
		return nil, fmt.Errorf("%w: grpcclient: WithInsecure and WithTLS are mutually exclusive", auth.ErrInvalidConfig)
	}

	var opts []grpc.DialOption

	tm, err := b.buildTokenManager(ctx)
	if err != nil {
		return nil, err
	}
	if tm != nil {
		opts = append(opts,
			grpc.WithUnaryInterceptor(tm.UnaryClientInterceptor()),
			grpc.WithStreamInterceptor(tm.StreamClientInterceptor()),
		)
	}

	switch {
	case b.plaintext:
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	case b.tlsEnabled:
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	default:
		// System roots, TLS 1.2 minimum.
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}

	opts = append(opts, b.dialOpts...)

	conn, err := grpc.NewClient(b.address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}

func (b *Builder) buildTokenManager(ctx context.Context) (*oauth2client.TokenManager, error) {
	if b.tokenManager != nil {
		return b.tokenManager, nil
	}
	if !b.oauth2Enabled {
		return nil, nil
	}
	if err := b.validateOAuth2Config(); err != nil {
		return nil, err
	}
	return oauth2client.NewTokenManager(ctx, nil, b.oauth2BaseURL,
		b.oauth2ClientID, b.oauth2ClientSecret, b.oauth2Opts...), nil
}

// validateOAuth2Config ensures OAuth2 configuration is complete.
func (b *Builder) validateOAuth2Config() error {
	if b.oauth2BaseURL == "" {
		return fmt.Errorf("%w: grpcclient: OAuth2 URL is required", auth.ErrInvalidConfig)
	}
	if b.oauth2ClientID == "" {
		return fmt.Errorf("%w: grpcclient: OAuth2 client ID is required", auth.ErrInvalidConfig)
	}
	if b.oauth2ClientSecret == "" {
		return fmt.Errorf("%w: grpcclient: OAuth2 client secret is required", auth.ErrInvalidConfig)
	}
	return nil
}

// buildTLSConfig constructs the TLS configuration for the gRPC connection.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: b.tlsServerName,
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
