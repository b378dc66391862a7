package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"atomovision-editorial/internal/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeGateway implements Gateway against the Stripe Checkout API.
type StripeGateway struct {
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripe(secretKey, webhookSecret, successURL, cancelURL string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p *domain.Purchase, bookTitles map[string]string) (*Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.Items))
	for _, it := range p.Items {
		title := bookTitles[it.BookID]
		if title == "" {
			title = it.BookID
		}
		name := fmt.Sprintf("%s (%s)", title, it.Format)
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(it.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(p.Currency)),
				UnitAmount: stripe.Int64(it.UnitPriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail:     stripe.String(p.Email),
		ClientReferenceID: stripe.String(p.ID),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		LineItems:         lineItems,
	}
	params.Context = ctx
	params.AddMetadata("purchase_id", p.ID)

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", domain.ErrGateway, err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: verify webhook: %v", domain.ErrGateway, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: decode session: %v", domain.ErrGateway, err)
		}
		out := &Event{
			Kind:       EventCompleted,
			PurchaseID: purchaseIDFromSession(&sess),
			SessionID:  sess.ID,
		}
		if sess.PaymentIntent != nil {
			out.PaymentIntentID = sess.PaymentIntent.ID
		}
		return out, nil

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: decode session: %v", domain.ErrGateway, err)
		}
		return &Event{
			Kind:       EventFailed,
			PurchaseID: purchaseIDFromSession(&sess),
			SessionID:  sess.ID,
			Reason:     "checkout session expired",
		}, nil

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("%w: decode charge: %v", domain.ErrGateway, err)
		}
		out := &Event{Kind: EventRefunded}
		if charge.PaymentIntent != nil {
			out.PaymentIntentID = charge.PaymentIntent.ID
		}
		return out, nil
	}

	return &Event{Kind: EventIgnored}, nil
}

func purchaseIDFromSession(sess *stripe.CheckoutSession) string {
	if id := sess.Metadata["purchase_id"]; id != "" {
		return id
	}
	return sess.ClientReferenceID
}
