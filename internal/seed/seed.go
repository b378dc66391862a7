package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type genreSeed struct {
	Code string
	Name string
}

type bookSeed struct {
	Genre       string
	Title       string
	Slug        string
	Author      string
	Description string
	PriceCents  int64
	Currency    string
	EbookURL    string
	CoverURL    string
}

// Apply inserts basic seed data for manual testing. It is idempotent: genres
// upsert by code, books by slug, and the genre counter is only bumped when a
// book row is actually inserted.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	genres := []genreSeed{
		{Code: "ciencia-ficcion", Name: "Ciencia Ficción"},
		{Code: "fantasia", Name: "Fantasía"},
	}
	genreIDs := make(map[string]string, len(genres))
	for _, g := range genres {
		id, err := upsertGenre(ctx, pool, g)
		if err != nil {
			return fmt.Errorf("upsert genre %s: %w", g.Code, err)
		}
		genreIDs[g.Code] = id
	}

	books := []bookSeed{
		{
			Genre:       "ciencia-ficcion",
			Title:       "Crónicas del Átomo",
			Slug:        "cronicas-del-atomo",
			Author:      "L. Herrero",
			Description: "Relatos de una ciudad que aprendió a vivir dentro de un reactor.",
			PriceCents:  999,
			Currency:    "EUR",
			EbookURL:    "https://files.atomovision.local/cronicas-del-atomo.epub",
			CoverURL:    "https://files.atomovision.local/covers/cronicas-del-atomo.jpg",
		},
		{
			Genre:       "fantasia",
			Title:       "El Jardín Invertido",
			Slug:        "el-jardin-invertido",
			Author:      "M. Solís",
			Description: "Una cartógrafa descubre que los mapas de su abuela crecen de noche.",
			PriceCents:  1299,
			Currency:    "EUR",
			EbookURL:    "https://files.atomovision.local/el-jardin-invertido.epub",
			CoverURL:    "https://files.atomovision.local/covers/el-jardin-invertido.jpg",
		},
	}

	for _, b := range books {
		if err := insertBook(ctx, pool, genreIDs[b.Genre], b); err != nil {
			return fmt.Errorf("insert book %s: %w", b.Slug, err)
		}
	}

	return nil
}

func upsertGenre(ctx context.Context, pool *pgxpool.Pool, g genreSeed) (string, error) {
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO genres (code, name)
VALUES ($1, $2)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
RETURNING id::text
`, g.Code, g.Name).Scan(&id)
	return id, err
}

func insertBook(ctx context.Context, pool *pgxpool.Pool, genreID string, b bookSeed) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
INSERT INTO books (genre_id, title, slug, author, description, price_cents, currency, formats, cover_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, jsonb_build_object('ebook', $8::text), $9)
ON CONFLICT (slug) DO NOTHING
`, genreID, b.Title, b.Slug, b.Author, b.Description, b.PriceCents, b.Currency, b.EbookURL, b.CoverURL)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 1 {
		if _, err := tx.Exec(ctx, `UPDATE genres SET book_count = book_count + 1 WHERE id = $1`, genreID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
