package domain

import "time"

// PurchaseStatus is the purchase state machine. Transitions are monotonic:
// pending -> completed | failed, completed -> refunded. failed and refunded
// are terminal.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

const (
	// MaxDownloads caps successful downloads per purchase. The pool is
	// shared across all items in the purchase, not per book.
	MaxDownloads = 3
	// DownloadWindow is the fixed entitlement window starting at purchase
	// creation. Downloads do not extend it.
	DownloadWindow = 7 * 24 * time.Hour
)

// Purchase is one checkout transaction and the download entitlement attached
// to it.
type Purchase struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	CustomerName     string          `json:"customerName,omitempty"`
	Items            []PurchaseItem  `json:"items"`
	TotalCents       int64           `json:"totalCents"`
	Currency         string          `json:"currency"`
	PaymentSessionID string          `json:"paymentSessionId,omitempty"`
	PaymentIntentID  string          `json:"paymentIntentId,omitempty"`
	ReceiptURL       string          `json:"receiptUrl,omitempty"`
	DownloadToken    string          `json:"-"`
	DownloadExpiry   time.Time       `json:"downloadExpiry"`
	DownloadCount    int             `json:"downloadCount"`
	DownloadHistory  []DownloadEntry `json:"downloadHistory,omitempty"`
	Status           PurchaseStatus  `json:"status"`
	FailureReason    string          `json:"failureReason,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// PurchaseItem is one ordered line of a purchase.
type PurchaseItem struct {
	BookID         string     `json:"bookId"`
	Format         BookFormat `json:"format"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unitPriceCents"`
}

// DownloadEntry is one successful download, append-only.
type DownloadEntry struct {
	BookID       string    `json:"bookId"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent,omitempty"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// Item returns the purchase item for a book, if the book is part of the
// purchase.
func (p Purchase) Item(bookID string) (PurchaseItem, bool) {
	for _, it := range p.Items {
		if it.BookID == bookID {
			return it, true
		}
	}
	return PurchaseItem{}, false
}
