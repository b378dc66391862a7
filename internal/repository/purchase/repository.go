package purchase

import (
	"context"
	"time"

	"atomovision-editorial/internal/domain"
)

// CreateInput carries a fully validated pending purchase.
type CreateInput struct {
	Email          string
	CustomerName   string
	Items          []domain.PurchaseItem
	TotalCents     int64
	Currency       string
	DownloadToken  string
	DownloadExpiry time.Time
}

// DownloadAttempt is one download request to record against the entitlement.
type DownloadAttempt struct {
	PurchaseID string
	BookID     string
	IPAddress  string
	UserAgent  string
}

type Repository interface {
	CreatePending(ctx context.Context, in CreateInput) (*domain.Purchase, error)
	GetByID(ctx context.Context, id string) (*domain.Purchase, error)
	GetByToken(ctx context.Context, token string) (*domain.Purchase, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Purchase, error)
	List(ctx context.Context, status domain.PurchaseStatus) ([]domain.Purchase, error)
	AttachSession(ctx context.Context, id, sessionID string) error

	// MarkCompleted transitions pending -> completed as a single conditional
	// write. first is true only for the call that performed the transition.
	MarkCompleted(ctx context.Context, id, paymentIntentID, receiptURL string) (first bool, err error)
	MarkFailed(ctx context.Context, id, reason string) error
	MarkRefunded(ctx context.Context, id string) error

	// RecordDownload increments the download counter and appends a history
	// entry, guarded on status, cap and expiry in one conditional statement.
	RecordDownload(ctx context.Context, attempt DownloadAttempt, maxDownloads int) error
}
