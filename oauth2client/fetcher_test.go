package oauth2client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/internal/testutil"
)

var fetchTime = time.Date(2016, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestFetcher(server *testutil.MockOAuth2Server, opts ...Option) *Fetcher {
	base := []Option{WithHTTPClient(server.Client), WithClock(func() time.Time { return fetchTime })}
	return NewFetcher(append(base, opts...)...)
}

func TestFetcher_Fetch(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, testutil.StaticJSONResponse(`{"access_token": "my-token", "expires_in": 1000}`))
	f := newTestFetcher(server)

	token, err := f.Fetch(context.Background(), TokenRequest{
		URL:          server.URL + "/oauth2/access_token",
		ClientID:     "id",
		ClientSecret: "secret",
		GrantType:    GrantTypeClientCredentials,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if token.Token != "my-token" {
		t.Errorf("expected my-token, got %s", token.Token)
	}
	if want := fetchTime.Add(1000 * time.Second); !token.ExpiresAt.Equal(want) {
		t.Errorf("expected expires_at %v, got %v", want, token.ExpiresAt)
	}
	if token.ExpiresIn != 1000*time.Second {
		t.Errorf("expected expires_in 1000s, got %v", token.ExpiresIn)
	}

	if server.RequestCount() != 1 {
		t.Fatalf("expected 1 request, got %d", server.RequestCount())
	}
	req := server.Requests()[0]
	if req.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.Method)
	}
	if req.URL.String() != "https://mock-oauth.example.com/oauth2/access_token" {
		t.Errorf("unexpected URL %s", req.URL)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Errorf("unexpected content type %q", ct)
	}
	if ua := req.Header.Get("User-Agent"); !strings.HasPrefix(ua, "edx-rest-api-client/"+Version+" Go-http-client/1.1 ") {
		t.Errorf("unexpected user agent %q", ua)
	}

	form := server.LastForm()
	want := map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     "id",
		"client_secret": "secret",
		"token_type":    "bearer",
	}
	for k, v := range want {
		if got := form.Get(k); got != v {
			t.Errorf("form %s = %q, want %q", k, got, v)
		}
	}
	if form.Has("refresh_token") {
		t.Error("refresh_token must not be sent for client_credentials")
	}
}

func TestFetcher_ClockSampledBeforeRequest(t *testing.T) {
	clock := testutil.NewClock(fetchTime)
	server := testutil.NewMockOAuth2Server(t, func(req *http.Request) (*http.Response, error) {
		clock.Advance(3 * time.Second)
		return testutil.Response(req, http.StatusOK, `{"access_token": "slow", "expires_in": 60}`), nil
	})
	f := NewFetcher(WithHTTPClient(server.Client), WithClock(clock.Now))

	token, err := f.Fetch(context.Background(), TokenRequest{URL: server.URL, ClientID: "id", ClientSecret: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	if want := fetchTime.Add(60 * time.Second); !token.ExpiresAt.Equal(want) {
		t.Errorf("expected expiry from request-issue time %v, got %v", want, token.ExpiresAt)
	}
}

func TestFetcher_RefreshGrant(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, testutil.TokenJSON("refreshed", 600))
	f := newTestFetcher(server)

	_, err := f.Fetch(context.Background(), TokenRequest{
		URL:          server.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		TokenType:    TokenTypeJWT,
		GrantType:    GrantTypeRefreshToken,
		RefreshToken: "r-123",
	})
	if err != nil {
		t.Fatal(err)
	}

	form := server.LastForm()
	if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "r-123" || form.Get("token_type") != "jwt" {
		t.Errorf("unexpected form %v", form)
	}
}

func TestFetcher_RefreshGrantWithoutTokenMakesNoRequest(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, nil)
	f := newTestFetcher(server)

	_, err := f.Fetch(context.Background(), TokenRequest{
		URL:       server.URL,
		ClientID:  "id",
		GrantType: GrantTypeRefreshToken,
	})
	if !errors.Is(err, ErrRefreshTokenRequired) {
		t.Fatalf("expected ErrRefreshTokenRequired, got %v", err)
	}
	if server.RequestCount() != 0 {
		t.Errorf("expected no request, got %d", server.RequestCount())
	}
}

func TestFetcher_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantHTTP      bool
		wantMalformed string
	}{
		{name: "server error empty body", status: http.StatusInternalServerError, body: "", wantHTTP: true},
		{name: "unauthorized json", status: http.StatusUnauthorized, body: `{"error": "invalid_client"}`, wantHTTP: true},
		{name: "not json", status: http.StatusOK, body: "Not JSON", wantMalformed: "invalid JSON"},
		{name: "empty body", status: http.StatusOK, body: "", wantMalformed: "invalid JSON"},
		{name: "missing access_token", status: http.StatusOK, body: `{"expires_in": 100}`, wantMalformed: "missing access_token"},
		{name: "missing expires_in", status: http.StatusOK, body: `{"access_token": "x"}`, wantMalformed: "missing expires_in"},
		{name: "null access_token", status: http.StatusOK, body: `{"access_token": null, "expires_in": 100}`, wantMalformed: "missing access_token"},
		{name: "empty access_token", status: http.StatusOK, body: `{"access_token": "", "expires_in": 100}`, wantMalformed: "empty access_token"},
		{name: "array body", status: http.StatusOK, body: `[]`, wantMalformed: "invalid JSON"},
		{name: "null expires_in", status: http.StatusOK, body: `{"access_token": "x", "expires_in": null}`, wantMalformed: "missing expires_in"},
		{name: "string expires_in", status: http.StatusOK, body: `{"access_token": "x", "expires_in": "1000"}`, wantMalformed: "invalid expires_in"},
		{name: "fractional expires_in", status: http.StatusOK, body: `{"access_token": "x", "expires_in": 1.5}`, wantMalformed: "invalid expires_in"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewMockOAuth2Server(t, testutil.StatusResponse(tt.status, tt.body))
			f := newTestFetcher(server)

			_, err := f.Fetch(context.Background(), TokenRequest{URL: server.URL, ClientID: "id", ClientSecret: "secret"})
			if err == nil {
				t.Fatal("expected error")
			}

			var httpErr *HTTPError
			var malformed *MalformedResponseError
			switch {
			case tt.wantHTTP:
				if !errors.As(err, &httpErr) {
					t.Fatalf("expected *HTTPError, got %T: %v", err, err)
				}
				if httpErr.StatusCode != tt.status || string(httpErr.Body) != tt.body {
					t.Errorf("unexpected HTTPError %+v", httpErr)
				}
				if errors.As(err, &malformed) {
					t.Error("HTTP error must not be a malformed response")
				}
				if !IsTransportError(err) {
					t.Error("expected IsTransportError")
				}
			default:
				if !errors.As(err, &malformed) {
					t.Fatalf("expected *MalformedResponseError, got %T: %v", err, err)
				}
				if malformed.Reason != tt.wantMalformed {
					t.Errorf("expected reason %q, got %q", tt.wantMalformed, malformed.Reason)
				}
				if string(malformed.Body) != tt.body {
					t.Errorf("expected raw body to be kept, got %q", malformed.Body)
				}
				if IsTransportError(err) {
					t.Error("malformed response must not be a transport error")
				}
			}
		})
	}
}

func TestFetcher_ConnectionFailure(t *testing.T) {
	client := &http.Client{Transport: testutil.RoundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	f := NewFetcher(WithHTTPClient(client))

	_, err := f.Fetch(context.Background(), TokenRequest{URL: "https://auth.example.com/oauth2/access_token", ClientID: "id"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransportError(err) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestFetcher_RequiresURL(t *testing.T) {
	_, err := NewFetcher().Fetch(context.Background(), TokenRequest{ClientID: "id"})
	if !errors.Is(err, auth.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestFetcher_UsesContextHTTPClient(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, nil)
	f := NewFetcher()

	if _, err := f.Fetch(server.Ctx, TokenRequest{URL: server.URL, ClientID: "id"}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if server.RequestCount() != 1 {
		t.Errorf("expected the context client to be used, got %d requests", server.RequestCount())
	}
}

func TestFetcher_ReusesConnections(t *testing.T) {
	var opened atomic.Int32
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "pooled", "expires_in": 3600}`))
	}))
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create IPv4 listener: %v", err)
	}
	server.Listener = listener
	server.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			opened.Add(1)
		}
	}
	server.Start()
	t.Cleanup(server.Close)

	f := NewFetcher()
	defer f.fallback.CloseIdleConnections()

	for i := 0; i < 5; i++ {
		if _, err := f.Fetch(context.Background(), TokenRequest{URL: server.URL, ClientID: "id"}); err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
	}
	if n := opened.Load(); n != 1 {
		t.Errorf("expected 5 sequential fetches to share 1 connection, got %d", n)
	}
}

func TestFetcher_CustomUserAgent(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, nil)
	f := newTestFetcher(server, WithUserAgent("custom/1.0"))

	if _, err := f.Fetch(context.Background(), TokenRequest{URL: server.URL}); err != nil {
		t.Fatal(err)
	}
	if ua := server.Requests()[0].Header.Get("User-Agent"); ua != "custom/1.0" {
		t.Errorf("unexpected user agent %q", ua)
	}
}

func TestFetcher_ContextCanceled(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	f := newTestFetcher(server)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, TokenRequest{URL: server.URL, ClientID: "id"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
