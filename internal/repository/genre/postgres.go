package genre

import (
	"context"
	"errors"

	"atomovision-editorial/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Genre, error) {
	const q = `
SELECT id::text, code, name, book_count, created_at
FROM genres
ORDER BY name ASC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Genre
	for rows.Next() {
		var g domain.Genre
		if err := rows.Scan(&g.ID, &g.Code, &g.Name, &g.BookCount, &g.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.Genre, error) {
	const q = `
SELECT id::text, code, name, book_count, created_at
FROM genres
WHERE code = $1
`
	var g domain.Genre
	if err := r.pool.QueryRow(ctx, q, code).Scan(&g.ID, &g.Code, &g.Name, &g.BookCount, &g.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, genre domain.Genre) (*domain.Genre, error) {
	const q = `
INSERT INTO genres (code, name)
VALUES ($1, $2)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
RETURNING id::text, code, name, book_count, created_at
`
	var g domain.Genre
	if err := r.pool.QueryRow(ctx, q, genre.Code, genre.Name).Scan(&g.ID, &g.Code, &g.Name, &g.BookCount, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}
