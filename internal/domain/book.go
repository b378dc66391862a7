package domain

import "time"

// BookFormat is a sellable edition of a book.
type BookFormat string

const (
	FormatEbook     BookFormat = "ebook"
	FormatPaperback BookFormat = "paperback"
	FormatHardcover BookFormat = "hardcover"
)

// ValidFormat reports whether f is one of the known formats.
func ValidFormat(f BookFormat) bool {
	switch f {
	case FormatEbook, FormatPaperback, FormatHardcover:
		return true
	}
	return false
}

// Book is a catalog entry. Formats maps a format to the stored file URL for
// that edition; physical editions carry no file.
type Book struct {
	ID          string            `json:"id"`
	GenreID     string            `json:"genreId,omitempty"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Author      string            `json:"author,omitempty"`
	Description string            `json:"description,omitempty"`
	PriceCents  int64             `json:"priceCents"`
	Currency    string            `json:"currency"`
	Formats     map[string]string `json:"formats,omitempty"`
	CoverURL    string            `json:"coverUrl,omitempty"`
	Published   bool              `json:"published"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// FileURL returns the stored file location for a format, if any.
func (b Book) FileURL(format BookFormat) string {
	if b.Formats == nil {
		return ""
	}
	return b.Formats[string(format)]
}
