package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventPaymentCompleted = "PaymentCompleted"
	EventPaymentFailed    = "PaymentFailed"
	EventReviewReceived   = "ReviewReceived"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID         int64  `json:"order_id"`
	CustomerPhone   string `json:"customer_phone"`
	DeliveryAddress string `json:"delivery_address"`
	TotalCents      int64  `json:"total_cents"`
	Currency        string `json:"currency"`
	PaymentProvider string `json:"payment_provider"`
}

type PaymentCompletedPayload struct {
	OrderID       int64  `json:"order_id"`
	TxRef         string `json:"tx_ref"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
}

type PaymentFailedPayload struct {
	OrderID int64  `json:"order_id"`
	TxRef   string `json:"tx_ref"`
	Reason  string `json:"reason"`
}

type ReviewReceivedPayload struct {
	OrderID int64  `json:"order_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}
