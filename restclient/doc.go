// Package restclient is a client for edX REST APIs.
//
// New picks one credential at construction, in priority order: a supplied
// JWT, an OAuth2 access token, a signing key with username (a fresh HS256
// JWT per request), then client credentials. Client credentials run through
// an httpclient.Session backed by a shared oauth2client.TokenCache, so
// tokens are reused across clients and refreshed before they expire.
// NewOAuthClient always uses client credentials.
//
// Resource maps path segments to URLs below the base URL and exchanges
// JSON:
//
//	client, err := restclient.NewOAuthClient("https://ecommerce.example.com/api/v2",
//	    clientID, clientSecret,
//	    restclient.WithOAuthURL("https://lms.example.com"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	var processors []string
//	err = client.Resource("payment", "processors").Get(ctx, &processors)
//
// Non-2xx responses are returned as *APIError. Token endpoint failures keep
// their oauth2client types (*oauth2client.HTTPError,
// *oauth2client.MalformedResponseError) and are not retried.
package restclient
