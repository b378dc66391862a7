package httpserver

import (
	"log"
	"net/http"

	"atomovision-editorial/internal/domain"
	"github.com/gin-gonic/gin"
)

func listPurchasesHandler(purchases PurchaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := purchases.List(c.Request.Context(), domain.PurchaseStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}
		if list == nil {
			list = []domain.Purchase{}
		}
		// DownloadToken is excluded from serialization; admins resend the
		// email instead of reading raw tokens.
		respondData(c, http.StatusOK, list)
	}
}

func getPurchaseHandler(purchases PurchaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := purchases.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, p)
	}
}

// resendEmailHandler forces a confirmation resend. It deliberately skips the
// first-completion guard: an explicit admin resend is always allowed.
func resendEmailHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p, err := deps.Purchases.Get(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if p.Status != domain.PurchaseCompleted {
			respondError(c, domain.ErrInvalidState)
			return
		}

		ids := make([]string, 0, len(p.Items))
		for _, it := range p.Items {
			ids = append(ids, it.BookID)
		}
		books, err := deps.Catalog.BooksByIDs(ctx, ids)
		if err != nil {
			books = nil
		}

		if err := deps.Notifier.SendPurchaseConfirmation(ctx, p, books); err != nil {
			logger.Printf("admin: resend email for purchase %s failed: %v", p.ID, err)
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, gin.H{"sent": true})
	}
}

type bookRequest struct {
	GenreID     string            `json:"genreId"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Author      string            `json:"author"`
	Description string            `json:"description"`
	PriceCents  int64             `json:"priceCents"`
	Currency    string            `json:"currency"`
	Formats     map[string]string `json:"formats"`
	CoverURL    string            `json:"coverUrl"`
	Published   *bool             `json:"published"`
}

func (r bookRequest) toDomain(id string) domain.Book {
	published := true
	if r.Published != nil {
		published = *r.Published
	}
	currency := r.Currency
	if currency == "" {
		currency = "EUR"
	}
	return domain.Book{
		ID:          id,
		GenreID:     r.GenreID,
		Title:       r.Title,
		Slug:        r.Slug,
		Author:      r.Author,
		Description: r.Description,
		PriceCents:  r.PriceCents,
		Currency:    currency,
		Formats:     r.Formats,
		CoverURL:    r.CoverURL,
		Published:   published,
	}
}

func createBookHandler(catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "invalid request body"})
			return
		}
		book, err := catalog.CreateBook(c.Request.Context(), req.toDomain(""))
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, book)
	}
}

func updateBookHandler(catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "invalid request body"})
			return
		}
		book, err := catalog.UpdateBook(c.Request.Context(), req.toDomain(c.Param("id")))
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, book)
	}
}

func deleteBookHandler(catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := catalog.DeleteBook(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, gin.H{"deleted": true})
	}
}

type genreRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func createGenreHandler(catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req genreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "invalid request body"})
			return
		}
		genre, err := catalog.CreateGenre(c.Request.Context(), req.Code, req.Name)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, genre)
	}
}
