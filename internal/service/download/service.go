package download

import (
	"context"
	"fmt"
	"time"

	"atomovision-editorial/internal/domain"
	purchaserepo "atomovision-editorial/internal/repository/purchase"
)

type purchaseRepo interface {
	GetByToken(ctx context.Context, token string) (*domain.Purchase, error)
	RecordDownload(ctx context.Context, attempt purchaserepo.DownloadAttempt, maxDownloads int) error
}

type bookReader interface {
	GetByID(ctx context.Context, id string) (*domain.Book, error)
}

// Service is the download gate: it decides whether a download request is
// entitled and records successful attempts.
type Service struct {
	purchases purchaseRepo
	books     bookReader
	now       func() time.Time
}

func New(purchases purchaserepo.Repository, books bookReader) *Service {
	return &Service{purchases: purchases, books: books, now: time.Now}
}

// Request is one incoming download attempt.
type Request struct {
	Token     string
	BookID    string
	IPAddress string
	UserAgent string
}

// Authorize validates the request against the purchase entitlement and, on
// success, atomically consumes one download and returns the stored file URL.
// Unknown token and book-not-in-purchase both map to ErrNotFound so the
// response does not reveal which part was wrong.
func (s *Service) Authorize(ctx context.Context, req Request) (string, error) {
	if req.Token == "" || req.BookID == "" {
		return "", domain.ErrNotFound
	}

	p, err := s.purchases.GetByToken(ctx, req.Token)
	if err != nil {
		return "", err
	}

	// Pre-checks give precise denials without burning the conditional
	// write; the write below re-checks all of them atomically.
	if p.Status != domain.PurchaseCompleted {
		return "", domain.ErrForbidden
	}
	// Expired at the exact expiry instant, matching the repo guard
	// (download_expiry > now()).
	if !s.now().Before(p.DownloadExpiry) {
		return "", domain.ErrExpired
	}
	if p.DownloadCount >= domain.MaxDownloads {
		return "", domain.ErrLimitExceeded
	}

	item, ok := p.Item(req.BookID)
	if !ok {
		return "", domain.ErrNotFound
	}

	book, err := s.books.GetByID(ctx, req.BookID)
	if err != nil {
		return "", err
	}
	fileURL := book.FileURL(item.Format)
	if fileURL == "" {
		// Physical editions carry no downloadable file.
		fileURL = book.FileURL(domain.FormatEbook)
	}
	if fileURL == "" {
		return "", fmt.Errorf("%w: no file for book %s", domain.ErrNotFound, req.BookID)
	}

	err = s.purchases.RecordDownload(ctx, purchaserepo.DownloadAttempt{
		PurchaseID: p.ID,
		BookID:     req.BookID,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
	}, domain.MaxDownloads)
	if err != nil {
		return "", err
	}
	return fileURL, nil
}
