package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"atomovision-editorial/internal/domain"
)

type BookWriter interface {
	UpsertBySlug(ctx context.Context, book domain.Book) (*domain.Book, error)
}

type GenreWriter interface {
	Upsert(ctx context.Context, genre domain.Genre) (*domain.Genre, error)
}

// JSONImporter reads a catalog export and inserts/updates genres and books.
// Books reference genres by code; unknown codes fail the import.
type JSONImporter struct {
	reader io.Reader
	books  BookWriter
	genres GenreWriter
}

func NewJSONImporter(r io.Reader, books BookWriter, genres GenreWriter) *JSONImporter {
	return &JSONImporter{reader: r, books: books, genres: genres}
}

type catalogExport struct {
	Genres []genreRow `json:"genres"`
	Books  []bookRow  `json:"books"`
}

type genreRow struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type bookRow struct {
	Genre       string            `json:"genre"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Author      string            `json:"author"`
	Description string            `json:"description"`
	PriceCents  int64             `json:"priceCents"`
	Currency    string            `json:"currency"`
	Formats     map[string]string `json:"formats"`
	CoverURL    string            `json:"coverUrl"`
}

// Run parses the export and upserts genres first, then books. It returns the
// number of books written.
func (i *JSONImporter) Run(ctx context.Context) (int, error) {
	var export catalogExport
	if err := json.NewDecoder(i.reader).Decode(&export); err != nil {
		return 0, fmt.Errorf("decode export: %w", err)
	}

	genreIDs := make(map[string]string, len(export.Genres))
	for _, g := range export.Genres {
		if g.Code == "" || g.Name == "" {
			return 0, fmt.Errorf("genre with empty code or name")
		}
		saved, err := i.genres.Upsert(ctx, domain.Genre{Code: g.Code, Name: g.Name})
		if err != nil {
			return 0, fmt.Errorf("upsert genre %s: %w", g.Code, err)
		}
		genreIDs[saved.Code] = saved.ID
	}

	imported := 0
	for _, b := range export.Books {
		if b.Slug == "" || b.Title == "" {
			return imported, fmt.Errorf("book with empty slug or title")
		}
		genreID := ""
		if b.Genre != "" {
			id, ok := genreIDs[b.Genre]
			if !ok {
				return imported, fmt.Errorf("book %s references unknown genre %q", b.Slug, b.Genre)
			}
			genreID = id
		}
		currency := b.Currency
		if currency == "" {
			currency = "EUR"
		}
		_, err := i.books.UpsertBySlug(ctx, domain.Book{
			GenreID:     genreID,
			Title:       b.Title,
			Slug:        b.Slug,
			Author:      b.Author,
			Description: b.Description,
			PriceCents:  b.PriceCents,
			Currency:    currency,
			Formats:     b.Formats,
			CoverURL:    b.CoverURL,
			Published:   true,
		})
		if err != nil {
			return imported, fmt.Errorf("upsert book %s: %w", b.Slug, err)
		}
		imported++
	}

	return imported, nil
}
