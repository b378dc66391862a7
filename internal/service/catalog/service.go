package catalog

import (
	"context"
	"fmt"
	"strings"

	"atomovision-editorial/internal/domain"
	bookrepo "atomovision-editorial/internal/repository/book"
	genrerepo "atomovision-editorial/internal/repository/genre"
)

type bookRepo interface {
	List(ctx context.Context, genreID string) ([]domain.Book, error)
	GetByID(ctx context.Context, id string) (*domain.Book, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Book, error)
	Create(ctx context.Context, book domain.Book) (*domain.Book, error)
	Update(ctx context.Context, book domain.Book) (*domain.Book, error)
	Delete(ctx context.Context, id string) error
}

type genreRepo interface {
	List(ctx context.Context) ([]domain.Genre, error)
	GetByCode(ctx context.Context, code string) (*domain.Genre, error)
	Upsert(ctx context.Context, genre domain.Genre) (*domain.Genre, error)
}

// Service exposes catalog reads to the storefront and writes to the admin
// back-office. The purchase flow only ever reads through it.
type Service struct {
	books  bookRepo
	genres genreRepo
}

func New(books bookrepo.Repository, genres genrerepo.Repository) *Service {
	return &Service{books: books, genres: genres}
}

func (s *Service) ListBooks(ctx context.Context, genreCode string) ([]domain.Book, error) {
	genreID := ""
	if genreCode != "" {
		g, err := s.genres.GetByCode(ctx, genreCode)
		if err != nil {
			return nil, err
		}
		genreID = g.ID
	}
	return s.books.List(ctx, genreID)
}

func (s *Service) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	return s.books.GetByID(ctx, id)
}

func (s *Service) BooksByIDs(ctx context.Context, ids []string) (map[string]domain.Book, error) {
	return s.books.GetByIDs(ctx, ids)
}

func (s *Service) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	return s.genres.List(ctx)
}

func (s *Service) CreateGenre(ctx context.Context, code, name string) (*domain.Genre, error) {
	code = strings.TrimSpace(strings.ToLower(code))
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, fmt.Errorf("%w: code and name required", domain.ErrValidation)
	}
	return s.genres.Upsert(ctx, domain.Genre{Code: code, Name: name})
}

func (s *Service) CreateBook(ctx context.Context, book domain.Book) (*domain.Book, error) {
	if err := validateBook(book); err != nil {
		return nil, err
	}
	return s.books.Create(ctx, book)
}

func (s *Service) UpdateBook(ctx context.Context, book domain.Book) (*domain.Book, error) {
	if book.ID == "" {
		return nil, fmt.Errorf("%w: id required", domain.ErrValidation)
	}
	if err := validateBook(book); err != nil {
		return nil, err
	}
	return s.books.Update(ctx, book)
}

func (s *Service) DeleteBook(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id required", domain.ErrValidation)
	}
	return s.books.Delete(ctx, id)
}

func validateBook(book domain.Book) error {
	if strings.TrimSpace(book.Title) == "" {
		return fmt.Errorf("%w: title required", domain.ErrValidation)
	}
	if strings.TrimSpace(book.Slug) == "" {
		return fmt.Errorf("%w: slug required", domain.ErrValidation)
	}
	if book.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}
	if book.Currency == "" {
		return fmt.Errorf("%w: currency required", domain.ErrValidation)
	}
	for format := range book.Formats {
		if !domain.ValidFormat(domain.BookFormat(format)) {
			return fmt.Errorf("%w: unknown format %q", domain.ErrValidation, format)
		}
	}
	return nil
}
