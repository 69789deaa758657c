package ecommerce

import (
	"context"
	"fmt"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/restclient"
)

// Client calls the E-Commerce API.
type Client struct {
	api *restclient.Client
}

// New creates a client for the E-Commerce API at rawURL. Requests must be
// authenticated: pass a signing key with a username, an access token, a JWT
// or client credentials.
func New(rawURL string, opts ...restclient.Option) (*Client, error) {
	api, err := restclient.New(rawURL, opts...)
	if err != nil {
		return nil, err
	}
	if api.Credentials() == auth.KindNone {
		_ = api.Close()
		return nil, fmt.Errorf("%w: signing key and username, or an access token, are required", auth.ErrInvalidConfig)
	}
	return &Client{api: api}, nil
}

// NewWithClient wraps an existing API client.
func NewWithClient(api *restclient.Client) *Client {
	return &Client{api: api}
}

// API returns the underlying REST client.
func (c *Client) API() *restclient.Client {
	return c.api
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.api.Close()
}

// GetOrder retrieves a paid order by number.
func (c *Client) GetOrder(ctx context.Context, number string) (*Order, error) {
	var order Order
	if err := c.api.Resource("orders", number).Get(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetProcessors lists the available payment processors.
func (c *Client) GetProcessors(ctx context.Context) ([]string, error) {
	var processors []string
	if err := c.api.Resource("payment", "processors").Get(ctx, &processors); err != nil {
		return nil, err
	}
	return processors, nil
}

// CreateBasket creates a basket holding sku and checks out immediately.
// An empty paymentProcessor lets the service pick its default.
func (c *Client) CreateBasket(ctx context.Context, sku, paymentProcessor string) (*Basket, error) {
	body := basketRequest{
		Products: []basketProduct{{SKU: sku}},
		Checkout: true,
	}
	if paymentProcessor != "" {
		body.PaymentProcessorName = &paymentProcessor
	}

	var basket Basket
	if err := c.api.Resource("baskets").Post(ctx, body, &basket); err != nil {
		return nil, err
	}
	return &basket, nil
}

// GetBasketOrder retrieves the order placed for a basket.
func (c *Client) GetBasketOrder(ctx context.Context, basketID int) (*Order, error) {
	var order Order
	if err := c.api.Resource("baskets", basketID, "order").Get(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrders retrieves the first page of the user's orders.
func (c *Client) GetOrders(ctx context.Context) ([]Order, error) {
	var list orderList
	if err := c.api.Resource("orders").Get(ctx, &list); err != nil {
		return nil, err
	}
	return list.Results, nil
}
