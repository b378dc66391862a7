package purchase

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"atomovision-editorial/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const purchaseColumns = `id::text, email, COALESCE(customer_name, ''), total_cents, currency,
COALESCE(payment_session_id, ''), COALESCE(payment_intent_id, ''), COALESCE(receipt_url, ''),
download_token, download_expiry, download_count, status, COALESCE(failure_reason, ''), created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) CreatePending(ctx context.Context, in CreateInput) (*domain.Purchase, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	q := `
INSERT INTO purchases (email, customer_name, total_cents, currency, download_token, download_expiry)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
RETURNING ` + purchaseColumns + `
`
	row := tx.QueryRow(ctx, q, in.Email, in.CustomerName, in.TotalCents, in.Currency, in.DownloadToken, in.DownloadExpiry)
	p, err := scanPurchase(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Printf("purchase repo: create email=%s error=%v", in.Email, err)
		return nil, err
	}

	for i, it := range in.Items {
		if _, err := tx.Exec(ctx, `
INSERT INTO purchase_items (purchase_id, book_id, format, quantity, unit_price_cents, position)
VALUES ($1, $2, $3, $4, $5, $6)
`, p.ID, it.BookID, it.Format, it.Quantity, it.UnitPriceCents, i); err != nil {
			r.logger.Printf("purchase repo: create item purchase_id=%s book_id=%s error=%v", p.ID, it.BookID, err)
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	p.Items = in.Items
	return &p, nil
}

// validID reports whether id parses as a uuid. Purchase ids arrive from admin
// URLs and gateway webhook metadata; a malformed one is rejected before it
// reaches a uuid cast, where it would surface as an untyped encoding error.
func validID(id string) bool {
	var u pgtype.UUID
	return u.Scan(id) == nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Purchase, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	return r.fetchPurchase(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE id = $1
`, true, id)
}

func (r *postgresRepo) GetByToken(ctx context.Context, token string) (*domain.Purchase, error) {
	return r.fetchPurchase(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE download_token = $1
`, false, token)
}

func (r *postgresRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*domain.Purchase, error) {
	return r.fetchPurchase(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE payment_intent_id = $1
`, false, intentID)
}

func (r *postgresRepo) List(ctx context.Context, status domain.PurchaseStatus) ([]domain.Purchase, error) {
	q := `
SELECT ` + purchaseColumns + `
FROM purchases
ORDER BY created_at DESC
`
	args := []interface{}{}
	if status != "" {
		q = `
SELECT ` + purchaseColumns + `
FROM purchases
WHERE status = $1
ORDER BY created_at DESC
`
		args = append(args, status)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		items, err := r.fetchItems(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Items = items
	}
	return result, nil
}

func (r *postgresRepo) AttachSession(ctx context.Context, id, sessionID string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, `
UPDATE purchases
SET payment_session_id = $2, updated_at = now()
WHERE id = $1
`, id, sessionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) MarkCompleted(ctx context.Context, id, paymentIntentID, receiptURL string) (bool, error) {
	if !validID(id) {
		return false, domain.ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, `
UPDATE purchases
SET status = 'completed',
    payment_intent_id = NULLIF($2, ''),
    receipt_url = COALESCE(NULLIF($3, ''), receipt_url),
    updated_at = now()
WHERE id = $1 AND status = 'pending'
`, id, paymentIntentID, receiptURL)
	if err != nil {
		r.logger.Printf("purchase repo: complete id=%s error=%v", id, err)
		return false, err
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}

	status, err := r.currentStatus(ctx, id)
	if err != nil {
		return false, err
	}
	if status == domain.PurchaseCompleted {
		return false, nil
	}
	return false, domain.ErrInvalidState
}

func (r *postgresRepo) MarkFailed(ctx context.Context, id, reason string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, `
UPDATE purchases
SET status = 'failed', failure_reason = NULLIF($2, ''), updated_at = now()
WHERE id = $1 AND status = 'pending'
`, id, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	status, err := r.currentStatus(ctx, id)
	if err != nil {
		return err
	}
	if status == domain.PurchaseFailed {
		return nil
	}
	return domain.ErrInvalidState
}

func (r *postgresRepo) MarkRefunded(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, `
UPDATE purchases
SET status = 'refunded', updated_at = now()
WHERE id = $1 AND status = 'completed'
`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	status, err := r.currentStatus(ctx, id)
	if err != nil {
		return err
	}
	if status == domain.PurchaseRefunded {
		return nil
	}
	return domain.ErrInvalidState
}

// RecordDownload performs the guarded increment and the history append in one
// transaction. Concurrent attempts at the cap race on the conditional UPDATE;
// losers get zero rows and are classified by a re-read.
func (r *postgresRepo) RecordDownload(ctx context.Context, attempt DownloadAttempt, maxDownloads int) error {
	if !validID(attempt.PurchaseID) || !validID(attempt.BookID) {
		return domain.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
UPDATE purchases
SET download_count = download_count + 1, updated_at = now()
WHERE id = $1
  AND status = 'completed'
  AND download_count < $2
  AND download_expiry > now()
`, attempt.PurchaseID, maxDownloads)
	if err != nil {
		r.logger.Printf("purchase repo: record download purchase_id=%s error=%v", attempt.PurchaseID, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.classifyDenied(ctx, attempt.PurchaseID, maxDownloads)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO download_history (purchase_id, book_id, ip_address, user_agent)
VALUES ($1, $2, $3, NULLIF($4, ''))
`, attempt.PurchaseID, attempt.BookID, attempt.IPAddress, attempt.UserAgent); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *postgresRepo) classifyDenied(ctx context.Context, id string, maxDownloads int) error {
	var status string
	var count int
	var expiry time.Time
	err := r.pool.QueryRow(ctx, `
SELECT status, download_count, download_expiry
FROM purchases
WHERE id = $1
`, id).Scan(&status, &count, &expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	switch {
	case domain.PurchaseStatus(status) != domain.PurchaseCompleted:
		return domain.ErrForbidden
	// The update guard requires download_expiry > now(), so the expiry
	// instant itself already counts as expired.
	case !time.Now().Before(expiry):
		return domain.ErrExpired
	case count >= maxDownloads:
		return domain.ErrLimitExceeded
	default:
		return domain.ErrForbidden
	}
}

func (r *postgresRepo) currentStatus(ctx context.Context, id string) (domain.PurchaseStatus, error) {
	var status string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM purchases WHERE id = $1`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return domain.PurchaseStatus(status), nil
}

func (r *postgresRepo) fetchPurchase(ctx context.Context, q string, withHistory bool, args ...interface{}) (*domain.Purchase, error) {
	row := r.pool.QueryRow(ctx, q, args...)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	p.Items, err = r.fetchItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	if withHistory {
		p.DownloadHistory, err = r.fetchHistory(ctx, p.ID)
		if err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (r *postgresRepo) fetchItems(ctx context.Context, purchaseID string) ([]domain.PurchaseItem, error) {
	rows, err := r.pool.Query(ctx, `
SELECT book_id::text, format, quantity, unit_price_cents
FROM purchase_items
WHERE purchase_id = $1
ORDER BY position ASC
`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PurchaseItem
	for rows.Next() {
		var it domain.PurchaseItem
		if err := rows.Scan(&it.BookID, &it.Format, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *postgresRepo) fetchHistory(ctx context.Context, purchaseID string) ([]domain.DownloadEntry, error) {
	rows, err := r.pool.Query(ctx, `
SELECT book_id::text, ip_address, COALESCE(user_agent, ''), downloaded_at
FROM download_history
WHERE purchase_id = $1
ORDER BY downloaded_at ASC
`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.DownloadEntry
	for rows.Next() {
		var e domain.DownloadEntry
		if err := rows.Scan(&e.BookID, &e.IPAddress, &e.UserAgent, &e.DownloadedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanPurchase(row pgx.Row) (domain.Purchase, error) {
	var p domain.Purchase
	err := row.Scan(&p.ID, &p.Email, &p.CustomerName, &p.TotalCents, &p.Currency,
		&p.PaymentSessionID, &p.PaymentIntentID, &p.ReceiptURL,
		&p.DownloadToken, &p.DownloadExpiry, &p.DownloadCount, &p.Status,
		&p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
