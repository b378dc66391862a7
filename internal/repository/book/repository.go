package book

import (
	"context"

	"atomovision-editorial/internal/domain"
)

type Repository interface {
	List(ctx context.Context, genreID string) ([]domain.Book, error)
	GetByID(ctx context.Context, id string) (*domain.Book, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Book, error)
	Create(ctx context.Context, book domain.Book) (*domain.Book, error)
	Update(ctx context.Context, book domain.Book) (*domain.Book, error)
	Delete(ctx context.Context, id string) error
	UpsertBySlug(ctx context.Context, book domain.Book) (*domain.Book, error)
}
