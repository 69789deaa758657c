package ecommerce

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateTimeLayout is the format of date_placed.
const DateTimeLayout = "2006-01-02T15:04:05Z"

// Order is an E-Commerce order. DatePlaced is parsed from date_placed in UTC.
type Order struct {
	Number           string    `json:"number"`
	Status           string    `json:"status"`
	DatePlaced       time.Time `json:"date_placed"`
	Currency         string    `json:"currency,omitempty"`
	TotalExclTax     string    `json:"total_excl_tax,omitempty"`
	PaymentProcessor string    `json:"payment_processor,omitempty"`
	Lines            []Line    `json:"lines,omitempty"`
	User             *User     `json:"user,omitempty"`
}

// Line is one product in an order.
type Line struct {
	Title            string          `json:"title"`
	Quantity         int             `json:"quantity"`
	Description      string          `json:"description,omitempty"`
	Status           string          `json:"status,omitempty"`
	LinePriceExclTax string          `json:"line_price_excl_tax,omitempty"`
	UnitPriceExclTax string          `json:"unit_price_excl_tax,omitempty"`
	Product          json.RawMessage `json:"product,omitempty"`
}

// User owns an order.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type orderAlias Order

type orderJSON struct {
	*orderAlias
	DatePlaced string `json:"date_placed"`
}

// UnmarshalJSON parses date_placed with DateTimeLayout.
func (o *Order) UnmarshalJSON(data []byte) error {
	aux := orderJSON{orderAlias: (*orderAlias)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.DatePlaced == "" {
		o.DatePlaced = time.Time{}
		return nil
	}
	t, err := time.Parse(DateTimeLayout, aux.DatePlaced)
	if err != nil {
		return fmt.Errorf("ecommerce: order %s: invalid date_placed: %w", o.Number, err)
	}
	o.DatePlaced = t
	return nil
}

// MarshalJSON writes date_placed with DateTimeLayout.
func (o Order) MarshalJSON() ([]byte, error) {
	aux := orderJSON{orderAlias: (*orderAlias)(&o)}
	if !o.DatePlaced.IsZero() {
		aux.DatePlaced = o.DatePlaced.UTC().Format(DateTimeLayout)
	}
	return json.Marshal(aux)
}

// Basket is the result of creating a basket with immediate checkout.
type Basket struct {
	ID          int          `json:"id"`
	Order       *BasketOrder `json:"order"`
	PaymentData *PaymentData `json:"payment_data"`
}

// BasketOrder identifies the order placed for a basket, if any.
type BasketOrder struct {
	Number string `json:"number"`
}

// PaymentData tells the caller how to complete payment.
type PaymentData struct {
	PaymentProcessorName string         `json:"payment_processor_name"`
	PaymentFormData      map[string]any `json:"payment_form_data,omitempty"`
	PaymentPageURL       string         `json:"payment_page_url,omitempty"`
}

type basketProduct struct {
	SKU string `json:"sku"`
}

type basketRequest struct {
	Products             []basketProduct `json:"products"`
	Checkout             bool            `json:"checkout"`
	PaymentProcessorName *string         `json:"payment_processor_name"`
}

type orderList struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []Order `json:"results"`
}
