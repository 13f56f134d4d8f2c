package events

import (
	"context"
	"time"
)

// PaymentCompleted is emitted after a transfer transaction commits.
type PaymentCompleted struct {
	TransactionID string    `json:"transactionId"`
	SenderID      string    `json:"senderId"`
	RecipientID   string    `json:"recipientId"`
	Amount        float64   `json:"amount"`
	Description   string    `json:"description,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher delivers payment events to an external consumer.
type Publisher interface {
	Publish(ctx context.Context, event PaymentCompleted) error
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, PaymentCompleted) error { return nil }
