package auth

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies which credential variant a Credentials value resolves to.
type Kind int

// Credential variants in descending priority.
const (
	KindNone Kind = iota
	KindSuppliedJWT
	KindAccessToken
	KindSignedJWT
	KindClientCredentials
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSuppliedJWT:
		return "supplied_jwt"
	case KindAccessToken:
		return "access_token"
	case KindSignedJWT:
		return "signed_jwt"
	case KindClientCredentials:
		return "client_credentials"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrDynamicCredentials is returned by Credentials.Attacher for client
// credentials, which need a token session rather than a static attacher.
var ErrDynamicCredentials = errors.New("auth: client credentials require a token session")

// Credentials collects every credential a client may be configured with.
// Only one variant is used; Kind picks it by priority:
// supplied JWT, then access token, then signing key with username,
// then client id with client secret. A zero ExpiresIn omits the exp claim.
type Credentials struct {
	JWT         string
	AccessToken string

	// Signed-JWT material.
	Username        string
	FullName        string
	Email           string
	SigningKey      string
	Issuer          string
	ExpiresIn       time.Duration
	TrackingContext map[string]any

	// OAuth2 client-credentials grant.
	ClientID     string
	ClientSecret string
}

// Kind resolves the active variant.
func (c Credentials) Kind() Kind {
	switch {
	case c.JWT != "":
		return KindSuppliedJWT
	case c.AccessToken != "":
		return KindAccessToken
	case c.SigningKey != "" && c.Username != "":
		return KindSignedJWT
	case c.ClientID != "" && c.ClientSecret != "":
		return KindClientCredentials
	default:
		return KindNone
	}
}

// Attacher builds the attacher for the active variant. KindNone yields a nil
// attacher and no error.
func (c Credentials) Attacher() (Attacher, error) {
	switch kind := c.Kind(); kind {
	case KindNone:
		return nil, nil
	case KindSuppliedJWT:
		return NewSuppliedJWTAuth(c.JWT)
	case KindAccessToken:
		return NewBearerAuth(c.AccessToken)
	case KindSignedJWT:
		return NewJWTAuth(c.Username, c.SigningKey,
			WithFullName(c.FullName),
			WithEmail(c.Email),
			WithIssuer(c.Issuer),
			WithExpiresIn(c.ExpiresIn),
			WithTrackingContext(c.TrackingContext),
		)
	case KindClientCredentials:
		return nil, ErrDynamicCredentials
	default:
		return nil, fmt.Errorf("auth: unhandled credential kind %s", kind)
	}
}
