package httpclient

import (
	"context"
	"net/http"
)

// RequestIDHeader carries the caller's request id to downstream services.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID returns a context carrying id. Outbound requests made with
// the context through a Session or RequestIDTransport carry it as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// RequestIDMiddleware stores the X-Request-ID of incoming requests in their
// context so that API calls made while serving them forward the same id.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(RequestIDHeader); id != "" {
			r = r.WithContext(WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// setRequestID copies the context request id onto req. Absent ids leave
// the header untouched.
func setRequestID(req *http.Request) {
	if id, ok := RequestIDFromContext(req.Context()); ok {
		req.Header.Set(RequestIDHeader, id)
	}
}

// RequestIDTransport forwards the context request id on every request.
type RequestIDTransport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *RequestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if _, ok := RequestIDFromContext(req.Context()); !ok {
		return base.RoundTrip(req)
	}

	reqClone := req.Clone(req.Context())
	setRequestID(reqClone)
	return base.RoundTrip(reqClone)
}
