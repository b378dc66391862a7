package httpserver

import (
	"context"
	"log"

	"atomovision-editorial/internal/domain"
	"atomovision-editorial/internal/payment"
	downloadsvc "atomovision-editorial/internal/service/download"
	purchasesvc "atomovision-editorial/internal/service/purchase"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CatalogService interface {
	ListBooks(ctx context.Context, genreCode string) ([]domain.Book, error)
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	BooksByIDs(ctx context.Context, ids []string) (map[string]domain.Book, error)
	ListGenres(ctx context.Context) ([]domain.Genre, error)
	CreateGenre(ctx context.Context, code, name string) (*domain.Genre, error)
	CreateBook(ctx context.Context, book domain.Book) (*domain.Book, error)
	UpdateBook(ctx context.Context, book domain.Book) (*domain.Book, error)
	DeleteBook(ctx context.Context, id string) error
}

type PurchaseService interface {
	CreatePending(ctx context.Context, email, customerName string, items []purchasesvc.ItemInput) (*domain.Purchase, error)
	AttachSession(ctx context.Context, id, sessionID string) error
	MarkCompleted(ctx context.Context, id, paymentIntentID, receiptURL string) (*domain.Purchase, bool, error)
	MarkFailed(ctx context.Context, id, reason string) error
	MarkRefundedByIntent(ctx context.Context, paymentIntentID string) error
	Get(ctx context.Context, id string) (*domain.Purchase, error)
	List(ctx context.Context, status domain.PurchaseStatus) ([]domain.Purchase, error)
}

type DownloadService interface {
	Authorize(ctx context.Context, req downloadsvc.Request) (string, error)
}

type NotifyService interface {
	SendPurchaseConfirmation(ctx context.Context, p *domain.Purchase, books map[string]domain.Book) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Deps carries the services the router wires into handlers.
type Deps struct {
	Catalog   CatalogService
	Purchases PurchaseService
	Downloads DownloadService
	Notifier  NotifyService
	Gateway   payment.Gateway
	Limiter   RateLimiter
	// AdminToken guards the back-office routes. Empty disables them.
	AdminToken string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "X-Admin-Token", "Stripe-Signature"},
	}))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	api := router.Group("/api")

	api.GET("/books", listBooksHandler(deps.Catalog))
	api.GET("/books/:id", getBookHandler(deps.Catalog))
	api.GET("/genres", listGenresHandler(deps.Catalog))

	limited := api.Group("", rateLimitMiddleware(deps.Limiter, logger))
	limited.POST("/checkout", checkoutHandler(deps, logger))
	limited.GET("/download/:token", downloadHandler(deps.Downloads))

	api.POST("/stripe/webhook", webhookHandler(deps, logger))

	admin := api.Group("/admin", adminAuthMiddleware(deps.AdminToken))
	admin.GET("/purchases", listPurchasesHandler(deps.Purchases))
	admin.GET("/purchases/:id", getPurchaseHandler(deps.Purchases))
	admin.POST("/purchases/:id/resend-email", resendEmailHandler(deps, logger))
	admin.POST("/books", createBookHandler(deps.Catalog))
	admin.PUT("/books/:id", updateBookHandler(deps.Catalog))
	admin.DELETE("/books/:id", deleteBookHandler(deps.Catalog))
	admin.POST("/genres", createGenreHandler(deps.Catalog))

	return router
}
