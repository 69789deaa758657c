package restclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/cache"
	"github.com/openedx/edx-rest-api-client/config"
	"github.com/openedx/edx-rest-api-client/oauth2client"
)

// NewFromConfig creates a client from configuration. With OAuth client
// credentials configured it authenticates through a token cache built from
// cfg.Cache, which Close releases. opts are applied after the configured
// values and win over them.
func NewFromConfig(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", auth.ErrInvalidConfig)
	}
	c := *cfg
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrInvalidConfig, err)
	}

	base := []Option{
		WithLogger(logger),
		WithTimeouts(c.Timeouts.Connect.Duration(), c.Timeouts.Read.Duration()),
	}

	var store cache.Cache
	if c.OAuth.Enabled() {
		var err error
		store, err = cache.New(&c.Cache, logger)
		if err != nil {
			return nil, err
		}

		base = append(base,
			WithClientCredentials(c.OAuth.ClientID, c.OAuth.ClientSecret),
			WithOAuthURL(c.OAuth.URL),
			WithTokenType(c.OAuth.TokenType),
			WithTokenStore(store),
			withCloser(store.Close),
		)
		if c.ClientName != "" {
			base = append(base, WithOAuthOptions(oauth2client.WithUserAgent(oauth2client.UserAgentFor(c.ClientName))))
		}
	}

	client, err := New(c.URL, append(base, opts...)...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return client, nil
}
