package purchase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"atomovision-editorial/internal/domain"
	purchaserepo "atomovision-editorial/internal/repository/purchase"
)

// tokenAttempts bounds retries when a generated download token collides.
const tokenAttempts = 5

type purchaseRepo interface {
	CreatePending(ctx context.Context, in purchaserepo.CreateInput) (*domain.Purchase, error)
	GetByID(ctx context.Context, id string) (*domain.Purchase, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Purchase, error)
	List(ctx context.Context, status domain.PurchaseStatus) ([]domain.Purchase, error)
	AttachSession(ctx context.Context, id, sessionID string) error
	MarkCompleted(ctx context.Context, id, paymentIntentID, receiptURL string) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) error
	MarkRefunded(ctx context.Context, id string) error
}

type bookReader interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Book, error)
}

// Service is the purchase ledger: it creates pending purchases against the
// catalog and owns the status state machine.
type Service struct {
	repo  purchaseRepo
	books bookReader
	now   func() time.Time
}

func New(repo purchaserepo.Repository, books bookReader) *Service {
	return &Service{repo: repo, books: books, now: time.Now}
}

// ItemInput is one cart line as submitted by the storefront client.
type ItemInput struct {
	BookID   string            `json:"bookId"`
	Format   domain.BookFormat `json:"format"`
	Quantity int               `json:"quantity"`
	Price    int64             `json:"price"`
}

// CreatePending validates the cart against catalog prices, generates the
// download entitlement and persists the purchase in pending status. Item
// prices must match the catalog; the client-submitted price is only a
// cross-check, never the charged amount.
func (s *Service) CreatePending(ctx context.Context, email, customerName string, items []ItemInput) (*domain.Purchase, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email required", domain.ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items required", domain.ErrValidation)
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.BookID == "" {
			return nil, fmt.Errorf("%w: bookId required", domain.ErrValidation)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
		}
		if !domain.ValidFormat(it.Format) {
			return nil, fmt.Errorf("%w: unknown format %q", domain.ErrValidation, it.Format)
		}
		ids = append(ids, it.BookID)
	}

	books, err := s.books.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var total int64
	currency := ""
	lines := make([]domain.PurchaseItem, 0, len(items))
	for _, it := range items {
		book, ok := books[it.BookID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown book %s", domain.ErrValidation, it.BookID)
		}
		if it.Price != 0 && it.Price != book.PriceCents {
			return nil, fmt.Errorf("%w: price mismatch for book %s", domain.ErrValidation, it.BookID)
		}
		if currency == "" {
			currency = book.Currency
		} else if currency != book.Currency {
			return nil, fmt.Errorf("%w: mixed currencies in one purchase", domain.ErrValidation)
		}
		lines = append(lines, domain.PurchaseItem{
			BookID:         it.BookID,
			Format:         it.Format,
			Quantity:       it.Quantity,
			UnitPriceCents: book.PriceCents,
		})
		total += book.PriceCents * int64(it.Quantity)
	}
	if currency == "" {
		currency = "EUR"
	}

	in := purchaserepo.CreateInput{
		Email:          email,
		CustomerName:   strings.TrimSpace(customerName),
		Items:          lines,
		TotalCents:     total,
		Currency:       currency,
		DownloadExpiry: s.now().Add(domain.DownloadWindow),
	}

	for i := 0; i < tokenAttempts; i++ {
		token, err := randomToken()
		if err != nil {
			return nil, err
		}
		in.DownloadToken = token
		p, err := s.repo.CreatePending(ctx, in)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		return nil, err
	}
	return nil, errors.New("download token collision, retries exhausted")
}

// AttachSession stores the gateway session reference once checkout starts.
func (s *Service) AttachSession(ctx context.Context, id, sessionID string) error {
	return s.repo.AttachSession(ctx, id, sessionID)
}

// MarkCompleted transitions the purchase to completed. first is true only on
// the call that performed the transition; callers trigger exactly one
// confirmation email off that flag. Calling again on a completed purchase is
// a no-op; failed or refunded purchases reject with ErrInvalidState.
func (s *Service) MarkCompleted(ctx context.Context, id, paymentIntentID, receiptURL string) (*domain.Purchase, bool, error) {
	first, err := s.repo.MarkCompleted(ctx, id, paymentIntentID, receiptURL)
	if err != nil {
		return nil, false, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return p, first, nil
}

// MarkFailed records a gateway-reported payment failure. Valid from pending
// only; idempotent on failed.
func (s *Service) MarkFailed(ctx context.Context, id, reason string) error {
	return s.repo.MarkFailed(ctx, id, reason)
}

// MarkRefunded revokes the entitlement. Valid from completed only; idempotent
// on refunded.
func (s *Service) MarkRefunded(ctx context.Context, id string) error {
	return s.repo.MarkRefunded(ctx, id)
}

// MarkRefundedByIntent resolves the purchase through the gateway payment
// intent reference, for refund webhooks that carry no purchase id.
func (s *Service) MarkRefundedByIntent(ctx context.Context, paymentIntentID string) error {
	p, err := s.repo.GetByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return err
	}
	return s.repo.MarkRefunded(ctx, p.ID)
}

// Get returns a purchase with items and download history.
func (s *Service) Get(ctx context.Context, id string) (*domain.Purchase, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns purchases, optionally filtered by status. Pending purchases
// older than the operational threshold surface here for manual
// reconciliation.
func (s *Service) List(ctx context.Context, status domain.PurchaseStatus) ([]domain.Purchase, error) {
	if status != "" {
		switch status {
		case domain.PurchasePending, domain.PurchaseCompleted, domain.PurchaseFailed, domain.PurchaseRefunded:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
		}
	}
	return s.repo.List(ctx, status)
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
