package oauth2client

import "strings"

// NormalizeTokenURL maps any spelling of the authorization server base URL
// to its canonical access token endpoint, <base>/oauth2/access_token.
// Trailing slashes are ignored and an existing /oauth2 or /oauth2/access_token
// suffix is not appended twice.
func NormalizeTokenURL(base string) string {
	u := strings.TrimRight(base, "/")
	switch {
	case strings.HasSuffix(u, "/access_token"):
		return u
	case strings.HasSuffix(u, "/oauth2"):
		return u + "/access_token"
	default:
		return u + "/oauth2/access_token"
	}
}
