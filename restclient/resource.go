package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/openedx/edx-rest-api-client/restclient"

// maxResponseBody caps how much of an API response is read.
const maxResponseBody = 10 << 20

// Resource is a path below the API base URL. Segments are path-escaped, so
// Resource("baskets", 7, "order") addresses <base>/baskets/7/order/.
// Resources are immutable; Query, Header and Resource return copies.
type Resource struct {
	client *Client
	path   []string
	query  url.Values
	header http.Header
}

// Resource returns the resource at the given path segments.
func (c *Client) Resource(segments ...any) *Resource {
	return &Resource{
		client: c,
		path:   formatSegments(segments),
		query:  url.Values{},
		header: http.Header{},
	}
}

// Resource returns a child resource.
func (r *Resource) Resource(segments ...any) *Resource {
	child := r.clone()
	child.path = append(child.path, formatSegments(segments)...)
	return child
}

// Query returns a copy of r with the query parameter key added.
func (r *Resource) Query(key string, values ...string) *Resource {
	child := r.clone()
	for _, v := range values {
		child.query.Add(key, v)
	}
	return child
}

// Header returns a copy of r that sends the header on every request.
func (r *Resource) Header(key, value string) *Resource {
	child := r.clone()
	child.header.Set(key, value)
	return child
}

// URL returns the absolute resource URL including query parameters.
func (r *Resource) URL() *url.URL {
	segments := r.path
	if r.client.appendSlash {
		segments = append(segments[:len(segments):len(segments)], "/")
	}
	u := r.client.baseURL.JoinPath(segments...)

	if len(r.query) > 0 {
		q := u.Query()
		for k, vs := range r.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u
}

// Get decodes the JSON response into out. out may be nil, or a *[]byte to
// receive the raw body.
func (r *Resource) Get(ctx context.Context, out any) error {
	return r.Do(ctx, http.MethodGet, nil, out)
}

// Post sends body as JSON and decodes the response into out.
func (r *Resource) Post(ctx context.Context, body, out any) error {
	return r.Do(ctx, http.MethodPost, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (r *Resource) Put(ctx context.Context, body, out any) error {
	return r.Do(ctx, http.MethodPut, body, out)
}

// Patch sends body as JSON and decodes the response into out.
func (r *Resource) Patch(ctx context.Context, body, out any) error {
	return r.Do(ctx, http.MethodPatch, body, out)
}

// Delete deletes the resource.
func (r *Resource) Delete(ctx context.Context) error {
	return r.Do(ctx, http.MethodDelete, nil, nil)
}

// Do sends a request with an optional JSON body. A non-2xx response yields
// an *APIError. Authentication and transport errors are returned as the
// client produced them.
func (r *Resource) Do(ctx context.Context, method string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	u := r.URL()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "restclient.Resource.Do",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", u.Path),
		),
	)
	defer span.End()

	err := r.do(ctx, method, u, body, out)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	return err
}

func (r *Resource) do(ctx context.Context, method string, u *url.URL, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("restclient: encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("restclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range r.header {
		req.Header[k] = append([]string(nil), vs...)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("restclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Method:     method,
			URL:        u.Redacted(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}
	}
	return decode(data, out)
}

func decode(data []byte, out any) error {
	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = data
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("restclient: decode response: %w", err)
	}
	return nil
}

func (r *Resource) clone() *Resource {
	return &Resource{
		client: r.client,
		path:   append([]string(nil), r.path...),
		query:  cloneValues(r.query),
		header: r.header.Clone(),
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// formatSegments escapes each segment so it stays a single path element.
// "." and ".." are percent-encoded, so path cleaning cannot resolve them
// against the parent.
func formatSegments(segments []any) []string {
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		seg := url.PathEscape(fmt.Sprint(s))
		if seg == "." || seg == ".." {
			seg = strings.ReplaceAll(seg, ".", "%2E")
		}
		out = append(out, seg)
	}
	return out
}
