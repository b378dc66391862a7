package book

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"atomovision-editorial/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookColumns = `id::text, COALESCE(genre_id::text, ''), title, slug, COALESCE(author, ''), COALESCE(description, ''), price_cents, currency, formats, COALESCE(cover_url, ''), published, created_at, updated_at`

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

func (r *postgresRepo) List(ctx context.Context, genreID string) ([]domain.Book, error) {
	q := `
SELECT ` + bookColumns + `
FROM books
WHERE published
ORDER BY created_at DESC
`
	args := []interface{}{}
	if genreID != "" {
		q = `
SELECT ` + bookColumns + `
FROM books
WHERE published AND genre_id = $1
ORDER BY created_at DESC
`
		args = append(args, genreID)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Printf("book repo: list genre_id=%s error=%v", genreID, err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("book repo: list rows genre_id=%s error=%v", genreID, err)
		return nil, err
	}
	return result, nil
}

// validID reports whether id parses as a uuid. Malformed ids are rejected
// before they reach a uuid cast inside a query, where they would surface as an
// untyped encoding error.
func validID(id string) bool {
	var u pgtype.UUID
	return u.Scan(id) == nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	q := `
SELECT ` + bookColumns + `
FROM books
WHERE id = $1
`
	row := r.pool.QueryRow(ctx, q, id)
	b, err := scanBook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("book repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return &b, nil
}

func (r *postgresRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Book, error) {
	// A malformed id cannot match any book; dropping it here leaves it absent
	// from the result, which callers treat the same as an unknown book.
	wellFormed := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			wellFormed = append(wellFormed, id)
		}
	}
	if len(wellFormed) == 0 {
		return map[string]domain.Book{}, nil
	}
	q := `
SELECT ` + bookColumns + `
FROM books
WHERE id = ANY($1::uuid[])
`
	rows, err := r.pool.Query(ctx, q, wellFormed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.Book, len(ids))
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		result[b.ID] = b
	}
	return result, rows.Err()
}

// Create inserts a book and bumps the genre counter in the same transaction.
func (r *postgresRepo) Create(ctx context.Context, book domain.Book) (*domain.Book, error) {
	if book.GenreID != "" && !validID(book.GenreID) {
		return nil, fmt.Errorf("%w: malformed genre id %q", domain.ErrValidation, book.GenreID)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	q := `
INSERT INTO books (genre_id, title, slug, author, description, price_cents, currency, formats, cover_url, published)
VALUES (NULLIF($1, '')::uuid, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, COALESCE($8, '{}'::jsonb), NULLIF($9, ''), $10)
RETURNING ` + bookColumns + `
`
	row := tx.QueryRow(ctx, q, book.GenreID, book.Title, book.Slug, book.Author, book.Description,
		book.PriceCents, book.Currency, book.Formats, book.CoverURL, book.Published)
	created, err := scanBook(row)
	if err != nil {
		r.logger.Printf("book repo: create slug=%s error=%v", book.Slug, err)
		return nil, err
	}

	if created.GenreID != "" {
		if err := adjustGenreCount(ctx, tx, created.GenreID, 1); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update rewrites a book and moves the genre counter when the genre
// assignment changes, inside one transaction.
func (r *postgresRepo) Update(ctx context.Context, book domain.Book) (*domain.Book, error) {
	if !validID(book.ID) {
		return nil, domain.ErrNotFound
	}
	if book.GenreID != "" && !validID(book.GenreID) {
		return nil, fmt.Errorf("%w: malformed genre id %q", domain.ErrValidation, book.GenreID)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var prevGenreID string
	err = tx.QueryRow(ctx, `SELECT COALESCE(genre_id::text, '') FROM books WHERE id = $1 FOR UPDATE`, book.ID).Scan(&prevGenreID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	q := `
UPDATE books
SET genre_id = NULLIF($2, '')::uuid,
    title = $3,
    slug = $4,
    author = NULLIF($5, ''),
    description = NULLIF($6, ''),
    price_cents = $7,
    currency = $8,
    formats = COALESCE($9, '{}'::jsonb),
    cover_url = NULLIF($10, ''),
    published = $11,
    updated_at = now()
WHERE id = $1
RETURNING ` + bookColumns + `
`
	row := tx.QueryRow(ctx, q, book.ID, book.GenreID, book.Title, book.Slug, book.Author,
		book.Description, book.PriceCents, book.Currency, book.Formats, book.CoverURL, book.Published)
	updated, err := scanBook(row)
	if err != nil {
		r.logger.Printf("book repo: update id=%s error=%v", book.ID, err)
		return nil, err
	}

	if prevGenreID != updated.GenreID {
		if prevGenreID != "" {
			if err := adjustGenreCount(ctx, tx, prevGenreID, -1); err != nil {
				return nil, err
			}
		}
		if updated.GenreID != "" {
			if err := adjustGenreCount(ctx, tx, updated.GenreID, 1); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var genreID string
	err = tx.QueryRow(ctx, `DELETE FROM books WHERE id = $1 RETURNING COALESCE(genre_id::text, '')`, id).Scan(&genreID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		r.logger.Printf("book repo: delete id=%s error=%v", id, err)
		return err
	}

	if genreID != "" {
		if err := adjustGenreCount(ctx, tx, genreID, -1); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// UpsertBySlug inserts or rewrites a book keyed by slug. Used by the catalog
// importer; counter maintenance matches Create/Update.
func (r *postgresRepo) UpsertBySlug(ctx context.Context, book domain.Book) (*domain.Book, error) {
	var existingID string
	err := r.pool.QueryRow(ctx, `SELECT id::text FROM books WHERE slug = $1`, book.Slug).Scan(&existingID)
	switch {
	case err == nil:
		book.ID = existingID
		return r.Update(ctx, book)
	case errors.Is(err, pgx.ErrNoRows):
		return r.Create(ctx, book)
	default:
		return nil, err
	}
}

func adjustGenreCount(ctx context.Context, tx pgx.Tx, genreID string, delta int) error {
	cmd, err := tx.Exec(ctx, `
UPDATE genres
SET book_count = book_count + $2
WHERE id = $1
`, genreID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanBook(row pgx.Row) (domain.Book, error) {
	var b domain.Book
	err := row.Scan(&b.ID, &b.GenreID, &b.Title, &b.Slug, &b.Author, &b.Description,
		&b.PriceCents, &b.Currency, &b.Formats, &b.CoverURL, &b.Published, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}
