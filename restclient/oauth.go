package restclient

import (
	"context"
	"fmt"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/oauth2client"
)

// OAuthClient is a Client that always authenticates with the OAuth2 client
// credentials grant. Tokens are cached and refreshed transparently before
// the request that needs them.
type OAuthClient struct {
	*Client
}

// NewOAuthClient creates a client for the API at baseURL. Tokens come from
// the authorization server at baseURL unless WithOAuthURL says otherwise.
// JWT, access token and signing key options are ignored.
func NewOAuthClient(baseURL, clientID, clientSecret string, opts ...Option) (*OAuthClient, error) {
	switch {
	case baseURL == "":
		return nil, fmt.Errorf("%w: an API url must be supplied", auth.ErrInvalidConfig)
	case clientID == "":
		return nil, fmt.Errorf("%w: client id is required", auth.ErrInvalidConfig)
	case clientSecret == "":
		return nil, fmt.Errorf("%w: client secret is required", auth.ErrInvalidConfig)
	}

	o := newOptions(opts)
	o.creds = auth.Credentials{ClientID: clientID, ClientSecret: clientSecret}

	c, err := newClient(baseURL, o)
	if err != nil {
		return nil, err
	}
	return &OAuthClient{Client: c}, nil
}

// EnsureAuthenticated makes sure a valid token is held, fetching one if
// needed. Requests call it implicitly.
func (c *OAuthClient) EnsureAuthenticated(ctx context.Context) error {
	return c.session.EnsureAuthenticated(ctx)
}

// Token returns a valid access token.
func (c *OAuthClient) Token(ctx context.Context) (oauth2client.AccessToken, error) {
	return c.session.TokenManager().Token(ctx)
}

// GetOAuthAccessToken performs a single client credentials exchange against
// tokenURL exactly as given; it is neither normalized nor cached.
// tokenType is "bearer" or "jwt"; empty means bearer.
func GetOAuthAccessToken(ctx context.Context, tokenURL, clientID, clientSecret, tokenType string, opts ...oauth2client.Option) (oauth2client.AccessToken, error) {
	return oauth2client.NewFetcher(opts...).Fetch(ctx, oauth2client.TokenRequest{
		URL:          tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenType:    tokenType,
		GrantType:    oauth2client.GrantTypeClientCredentials,
	})
}
