package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/internal/testutil"
	"github.com/openedx/edx-rest-api-client/oauth2client"
	"github.com/openedx/edx-rest-api-client/restclient"
)

const (
	signingKey  = "edx"
	username    = "edx"
	fullName    = "édx äpp"
	email       = "edx@example.com"
	accessToken = "abc123"
)

const orderBody = `{
	"number": "EDX-100001",
	"status": "Complete",
	"date_placed": "2015-07-02T10:10:10Z",
	"currency": "USD",
	"total_excl_tax": "100.00",
	"lines": [{"title": "Seat in DemoX", "quantity": 1, "product": {"id": 3}}],
	"user": {"username": "edx", "email": "edx@example.com"}
}`

var datePlaced = time.Date(2015, 7, 2, 10, 10, 10, 0, time.UTC)

// ecommerceAPI serves canned responses by path and records requests.
type ecommerceAPI struct {
	url string

	mu     sync.Mutex
	routes map[string]string
	last   *http.Request
	body   string
}

func newEcommerceAPI(t *testing.T, routes map[string]string) *ecommerceAPI {
	t.Helper()

	api := &ecommerceAPI{routes: routes}
	srv := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.last = r
		api.body = string(data)
		body, ok := api.routes[r.Method+" "+r.URL.Path]
		api.mu.Unlock()

		if !ok {
			http.Error(w, `{"detail": "Not found."}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	api.url = srv.URL + "/api/v2"
	return api
}

func (a *ecommerceAPI) lastRequest(t *testing.T) (*http.Request, string) {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		t.Fatal("API received no request")
	}
	return a.last, a.body
}

func newTestClient(t *testing.T, api *ecommerceAPI) *Client {
	t.Helper()
	c, err := New(api.url,
		restclient.WithSigningKey(signingKey),
		restclient.WithUsername(username),
		restclient.WithEmail(email),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_ValidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		opts []restclient.Option
		want auth.Kind
	}{
		{
			name: "all claims",
			opts: []restclient.Option{restclient.WithSigningKey(signingKey), restclient.WithUsername(username), restclient.WithFullName(fullName), restclient.WithEmail(email)},
			want: auth.KindSignedJWT,
		},
		{
			name: "no full name",
			opts: []restclient.Option{restclient.WithSigningKey(signingKey), restclient.WithUsername(username), restclient.WithEmail(email)},
			want: auth.KindSignedJWT,
		},
		{
			name: "no email",
			opts: []restclient.Option{restclient.WithSigningKey(signingKey), restclient.WithUsername(username), restclient.WithFullName(fullName)},
			want: auth.KindSignedJWT,
		},
		{
			name: "signing key and username only",
			opts: []restclient.Option{restclient.WithSigningKey(signingKey), restclient.WithUsername(username)},
			want: auth.KindSignedJWT,
		},
		{
			name: "access token",
			opts: []restclient.Option{restclient.WithAccessToken(accessToken)},
			want: auth.KindAccessToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New("http://example.com/api/v2", tt.opts...)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if got := c.API().Credentials(); got != tt.want {
				t.Errorf("Credentials() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNew_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		url  string
		opts []restclient.Option
	}{
		{name: "missing url", opts: []restclient.Option{restclient.WithSigningKey(signingKey), restclient.WithUsername(username)}},
		{name: "missing signing key", url: "http://example.com/api/v2", opts: []restclient.Option{restclient.WithUsername(username)}},
		{name: "missing username", url: "http://example.com/api/v2", opts: []restclient.Option{restclient.WithSigningKey(signingKey)}},
		{name: "nothing", url: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.url, tt.opts...); !errors.Is(err, auth.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestClient_SignsRequests(t *testing.T) {
	api := newEcommerceAPI(t, map[string]string{"GET /api/v2/payment/processors/": `["cybersource", "paypal"]`})
	c, err := New(api.url,
		restclient.WithSigningKey(signingKey),
		restclient.WithUsername(username),
		restclient.WithEmail(email),
		restclient.WithTrackingContext(map[string]any{"foo": "bar"}),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.GetProcessors(context.Background()); err != nil {
		t.Fatal(err)
	}

	req, _ := api.lastRequest(t)
	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, "JWT ") {
		t.Fatalf("expected JWT scheme, got %q", header)
	}
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "JWT "), claims,
		func(*jwt.Token) (any, error) { return []byte(signingKey), nil }); err != nil {
		t.Fatalf("invalid JWT: %v", err)
	}
	if claims["username"] != username || claims["email"] != email {
		t.Errorf("unexpected claims %v", claims)
	}
	if tc, _ := claims["tracking_context"].(map[string]any); tc["foo"] != "bar" {
		t.Errorf("tracking context missing: %v", claims)
	}
}

func TestClient_GetOrder(t *testing.T) {
	api := newEcommerceAPI(t, map[string]string{"GET /api/v2/orders/EDX-100001/": orderBody})
	c := newTestClient(t, api)

	order, err := c.GetOrder(context.Background(), "EDX-100001")
	if err != nil {
		t.Fatal(err)
	}

	if order.Number != "EDX-100001" || order.Status != "Complete" {
		t.Errorf("unexpected order %+v", order)
	}
	if !order.DatePlaced.Equal(datePlaced) || order.DatePlaced.Location() != time.UTC {
		t.Errorf("DatePlaced = %v, want %v", order.DatePlaced, datePlaced)
	}
	if len(order.Lines) != 1 || order.Lines[0].Title != "Seat in DemoX" || string(order.Lines[0].Product) != `{"id": 3}` {
		t.Errorf("unexpected lines %+v", order.Lines)
	}
	if order.User == nil || order.User.Username != "edx" {
		t.Errorf("unexpected user %+v", order.User)
	}
}

func TestClient_GetOrderNotFound(t *testing.T) {
	api := newEcommerceAPI(t, nil)
	c := newTestClient(t, api)

	_, err := c.GetOrder(context.Background(), "EDX-404")
	if !restclient.IsNotFound(err) {
		t.Errorf("expected 404 APIError, got %v", err)
	}
}

func TestClient_GetProcessors(t *testing.T) {
	api := newEcommerceAPI(t, map[string]string{"GET /api/v2/payment/processors/": `["cybersource", "paypal"]`})
	c := newTestClient(t, api)

	processors, err := c.GetProcessors(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(processors, ",") != "cybersource,paypal" {
		t.Errorf("unexpected processors %v", processors)
	}
}

func TestClient_CreateBasket(t *testing.T) {
	response := `{
		"id": 7,
		"order": {"number": "EDX-100007"},
		"payment_data": {"payment_processor_name": "paypal", "payment_page_url": "https://paypal.example.com/pay"}
	}`

	tests := []struct {
		name      string
		processor string
		wantBody  string
	}{
		{
			name:      "with processor",
			processor: "paypal",
			wantBody:  `{"products":[{"sku":"ABC123"}],"checkout":true,"payment_processor_name":"paypal"}`,
		},
		{
			name:     "default processor",
			wantBody: `{"products":[{"sku":"ABC123"}],"checkout":true,"payment_processor_name":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newEcommerceAPI(t, map[string]string{"POST /api/v2/baskets/": response})
			c := newTestClient(t, api)

			basket, err := c.CreateBasket(context.Background(), "ABC123", tt.processor)
			if err != nil {
				t.Fatal(err)
			}

			req, body := api.lastRequest(t)
			if body != tt.wantBody {
				t.Errorf("body = %s, want %s", body, tt.wantBody)
			}
			if req.Header.Get("Content-Type") != "application/json" {
				t.Errorf("unexpected Content-Type %q", req.Header.Get("Content-Type"))
			}
			if basket.ID != 7 || basket.Order == nil || basket.Order.Number != "EDX-100007" {
				t.Errorf("unexpected basket %+v", basket)
			}
			if basket.PaymentData == nil || basket.PaymentData.PaymentPageURL != "https://paypal.example.com/pay" {
				t.Errorf("unexpected payment data %+v", basket.PaymentData)
			}
		})
	}
}

func TestClient_GetBasketOrder(t *testing.T) {
	api := newEcommerceAPI(t, map[string]string{"GET /api/v2/baskets/7/order/": orderBody})
	c := newTestClient(t, api)

	order, err := c.GetBasketOrder(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if order.Number != "EDX-100001" || !order.DatePlaced.Equal(datePlaced) {
		t.Errorf("unexpected order %+v", order)
	}
}

func TestClient_GetOrders(t *testing.T) {
	list := `{"count": 2, "next": null, "results": [` + orderBody + `,
		{"number": "EDX-100002", "status": "Open", "date_placed": "2016-01-31T23:59:59Z"}]}`
	api := newEcommerceAPI(t, map[string]string{"GET /api/v2/orders/": list})
	c := newTestClient(t, api)

	orders, err := c.GetOrders(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	want := time.Date(2016, 1, 31, 23, 59, 59, 0, time.UTC)
	if orders[1].Number != "EDX-100002" || !orders[1].DatePlaced.Equal(want) {
		t.Errorf("unexpected second order %+v", orders[1])
	}
}

func TestClient_InvalidDatePlaced(t *testing.T) {
	api := newEcommerceAPI(t, map[string]string{
		"GET /api/v2/orders/EDX-1/": `{"number": "EDX-1", "date_placed": "2015-07-02 10:10:10"}`,
	})
	c := newTestClient(t, api)

	_, err := c.GetOrder(context.Background(), "EDX-1")
	var parseErr *time.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected a time.ParseError, got %v", err)
	}
}

func TestOrder_MarshalJSON(t *testing.T) {
	order := Order{Number: "EDX-100001", Status: "Complete", DatePlaced: datePlaced}

	data, err := json.Marshal(order)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"date_placed":"2015-07-02T10:10:10Z"`) {
		t.Errorf("unexpected JSON %s", data)
	}

	var back Order
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.DatePlaced.Equal(datePlaced) || back.Number != order.Number {
		t.Errorf("unexpected order %+v", back)
	}
}

func TestClient_WithOAuthClient(t *testing.T) {
	api := newEcommerceAPI(t, map[string]string{"GET /api/v2/payment/processors/": `["paypal"]`})
	oauth := testutil.NewMockOAuth2Server(t, nil)

	oc, err := restclient.NewOAuthClient(api.url, "client", "secret",
		restclient.WithOAuthURL(oauth.URL),
		restclient.WithOAuthOptions(oauth2client.WithHTTPClient(oauth.Client)),
	)
	if err != nil {
		t.Fatal(err)
	}
	c := NewWithClient(oc.Client)

	if _, err := c.GetProcessors(context.Background()); err != nil {
		t.Fatal(err)
	}
	req, _ := api.lastRequest(t)
	if got := req.Header.Get("Authorization"); got != "Bearer mock-access-token" {
		t.Errorf("unexpected header %q", got)
	}
}
