package httpserver

import (
	"log"
	"net/http"

	purchasesvc "atomovision-editorial/internal/service/purchase"
	"github.com/gin-gonic/gin"
)

type checkoutRequest struct {
	Email string                  `json:"email"`
	Name  string                  `json:"name"`
	Items []purchasesvc.ItemInput `json:"items"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// checkoutHandler creates a pending purchase and opens the gateway checkout
// session the client is redirected to. An abandoned session simply leaves
// the purchase pending.
func checkoutHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "invalid request body"})
			return
		}

		ctx := c.Request.Context()
		p, err := deps.Purchases.CreatePending(ctx, req.Email, req.Name, req.Items)
		if err != nil {
			respondError(c, err)
			return
		}

		ids := make([]string, 0, len(p.Items))
		for _, it := range p.Items {
			ids = append(ids, it.BookID)
		}
		titles := map[string]string{}
		if books, err := deps.Catalog.BooksByIDs(ctx, ids); err == nil {
			for id, b := range books {
				titles[id] = b.Title
			}
		}

		sess, err := deps.Gateway.CreateCheckoutSession(ctx, p, titles)
		if err != nil {
			logger.Printf("checkout: create session for purchase %s: %v", p.ID, err)
			respondError(c, err)
			return
		}

		if err := deps.Purchases.AttachSession(ctx, p.ID, sess.ID); err != nil {
			logger.Printf("checkout: attach session %s to purchase %s: %v", sess.ID, p.ID, err)
			respondError(c, err)
			return
		}

		respondData(c, http.StatusCreated, checkoutResponse{SessionID: sess.ID, URL: sess.URL})
	}
}
