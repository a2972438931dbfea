// Package email sends the finance mailbox copies of customer uploads.
package email

import (
	"context"
	"time"
)

// Attachment represents a file attachment for an email.
type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// PaymentProof is the notice sent to the finance mailbox when a customer
// uploads a payment proof.
type PaymentProof struct {
	ProofID     int64
	ClientName  string
	ClientPhone string
	InvoiceID   *int64
	AmountCents int64
	DueDate     *time.Time
	StoredAt    string
	ReceivedAt  time.Time
	Attachment  *Attachment
}

// Sender delivers finance notices.
type Sender interface {
	SendPaymentProof(ctx context.Context, proof PaymentProof) error
}

// NoopSender is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendPaymentProof(context.Context, PaymentProof) error {
	return nil
}
