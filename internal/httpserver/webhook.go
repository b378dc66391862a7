package httpserver

import (
	"io"
	"log"
	"net/http"

	"atomovision-editorial/internal/payment"
	"github.com/gin-gonic/gin"
)

// maxWebhookBody bounds the webhook payload read.
const maxWebhookBody = 1 << 16

// webhookHandler verifies and applies gateway events. A notification failure
// after a successful completion is logged and left to the admin resend
// operation; the purchase stays completed and the gateway gets a 200 so it
// does not retry a payment that already settled.
func webhookHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "unreadable payload"})
			return
		}

		event, err := deps.Gateway.VerifyEvent(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			logger.Printf("webhook: signature verification failed: %v", err)
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "invalid signature"})
			return
		}

		ctx := c.Request.Context()
		switch event.Kind {
		case payment.EventCompleted:
			p, first, err := deps.Purchases.MarkCompleted(ctx, event.PurchaseID, event.PaymentIntentID, event.ReceiptURL)
			if err != nil {
				respondError(c, err)
				return
			}
			if first {
				ids := make([]string, 0, len(p.Items))
				for _, it := range p.Items {
					ids = append(ids, it.BookID)
				}
				books, err := deps.Catalog.BooksByIDs(ctx, ids)
				if err != nil {
					books = nil
				}
				if err := deps.Notifier.SendPurchaseConfirmation(ctx, p, books); err != nil {
					logger.Printf("webhook: confirmation email for purchase %s failed, admin resend available: %v", p.ID, err)
				}
			}

		case payment.EventFailed:
			if err := deps.Purchases.MarkFailed(ctx, event.PurchaseID, event.Reason); err != nil {
				respondError(c, err)
				return
			}

		case payment.EventRefunded:
			if err := deps.Purchases.MarkRefundedByIntent(ctx, event.PaymentIntentID); err != nil {
				respondError(c, err)
				return
			}
		}

		respondData(c, http.StatusOK, gin.H{"received": true})
	}
}
