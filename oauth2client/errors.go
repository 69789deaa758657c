package oauth2client

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrRefreshTokenRequired is returned, before any network call, when the
// refresh_token grant is requested without a refresh token.
var ErrRefreshTokenRequired = errors.New("oauth2: refresh_token grant requires a refresh token")

// HTTPError reports a non-success status from the token endpoint.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("oauth2: token endpoint returned %s", e.Status)
}

// MalformedResponseError reports a success status whose body is not valid
// JSON or lacks access_token or expires_in.
type MalformedResponseError struct {
	StatusCode int
	Body       []byte
	Reason     string
	Err        error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth2: malformed auth response: %s: %v", e.Reason, e.Err)
	}
	return "oauth2: malformed auth response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsTransportError reports whether err means the token endpoint rejected the
// request or could not be reached. Malformed responses are not transport errors.
func IsTransportError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
