package models

// Payment describes a provider payment started for an order
type Payment struct {
	OrderID       string  `json:"orderId,omitempty"`
	PaymentMethod string  `json:"paymentMethod"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	IntentID      string  `json:"intentId,omitempty"`
	ClientSecret  string  `json:"clientSecret,omitempty"` // handed to the browser to confirm the card
}
