package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultPaymentMethod is used when checkout does not name one
const DefaultPaymentMethod = "Cash on Delivery"

// OrderItem is a product line priced at order time
type OrderItem struct {
	Product  string  `bson:"product" json:"product"`
	Quantity int     `bson:"quantity" json:"quantity"`
	Price    float64 `bson:"price" json:"price"`
}

// ShippingAddress is where an order is delivered
type ShippingAddress struct {
	Address    string `bson:"address" json:"address"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Country    string `bson:"country" json:"country"`
}

// Order represents a user's order
type Order struct {
	ID              string          `bson:"-" json:"id"`
	User            string          `bson:"user" json:"user"`
	Items           []OrderItem     `bson:"items" json:"items"`
	Total           float64         `bson:"total" json:"total"`
	ShippingAddress ShippingAddress `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string          `bson:"paymentMethod" json:"paymentMethod"`
	PaymentIntentID string          `bson:"paymentIntentId,omitempty" json:"paymentIntentId,omitempty"`
	IsPaid          bool            `bson:"isPaid" json:"isPaid"`
	PaidAt          *time.Time      `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	IsDelivered     bool            `bson:"isDelivered" json:"isDelivered"`
	DeliveredAt     *time.Time      `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `bson:"createdAt" json:"createdAt"`
}

func (o *Order) GetID() string   { return o.ID }
func (o *Order) SetID(id string) { o.ID = id }

// Prepare fills creation defaults and fixes the total from the item lines.
func (o *Order) Prepare(_ int, now time.Time) {
	if strings.TrimSpace(o.PaymentMethod) == "" {
		o.PaymentMethod = DefaultPaymentMethod
	}
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
	o.Total = o.ItemsTotal()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
}

// ItemsTotal sums price x quantity over all lines
func (o *Order) ItemsTotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Price * float64(item.Quantity)
	}
	return RoundPrice(total)
}

// Validate checks ownership, lines, address and the total invariant
func (o *Order) Validate() error {
	if o.User == "" {
		return &ValidationError{Field: "user", Message: "user is required"}
	}
	if len(o.Items) == 0 {
		return &ValidationError{Field: "items", Message: "order has no items"}
	}
	for i, item := range o.Items {
		if item.Product == "" {
			return &ValidationError{Field: fmt.Sprintf("items[%d].product", i), Message: "product is required"}
		}
		if item.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "quantity must be positive"}
		}
		if item.Price < 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].price", i), Message: "price must not be negative"}
		}
	}
	if err := o.ShippingAddress.Validate(); err != nil {
		return err
	}
	if math.Abs(o.Total-o.ItemsTotal()) > 0.005 {
		return &ValidationError{Field: "total", Message: "total does not match items"}
	}
	return nil
}

// Validate requires every address field
func (a ShippingAddress) Validate() error {
	fields := []struct{ name, value string }{
		{"shippingAddress.address", a.Address},
		{"shippingAddress.city", a.City},
		{"shippingAddress.postalCode", a.PostalCode},
		{"shippingAddress.country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Message: "is required"}
		}
	}
	return nil
}
