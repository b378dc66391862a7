package payment

import (
	"context"

	"atomovision-editorial/internal/domain"
)

// Session is the provider-side checkout session the client is redirected to.
type Session struct {
	ID  string
	URL string
}

// EventKind classifies verified webhook events into the transitions the
// ledger understands.
type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventRefunded  EventKind = "refunded"
	// EventIgnored covers event types the ledger has no transition for.
	EventIgnored EventKind = "ignored"
)

// Event is a provider webhook event reduced to what the ledger needs.
type Event struct {
	Kind            EventKind
	PurchaseID      string
	SessionID       string
	PaymentIntentID string
	ReceiptURL      string
	Reason          string
}

// Gateway wraps the external payment provider.
type Gateway interface {
	// CreateCheckoutSession opens a provider checkout session for the
	// purchase. The purchase id travels in provider metadata and comes back
	// in webhook events.
	CreateCheckoutSession(ctx context.Context, p *domain.Purchase, bookTitles map[string]string) (*Session, error)

	// VerifyEvent authenticates a raw webhook payload against its signature
	// header and reduces it to an Event.
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}
