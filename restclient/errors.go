package restclient

import (
	"errors"
	"fmt"
	"net/http"
)

// maxErrorBody is how much of the response body APIError.Error includes.
const maxErrorBody = 256

// APIError is returned for a non-2xx API response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("restclient: %s %s: %s", e.Method, e.URL, e.Status)
	if len(e.Body) == 0 {
		return msg
	}
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return msg + ": " + string(body)
}

// IsClientError reports a 4xx status.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsServerError reports a 5xx status.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
