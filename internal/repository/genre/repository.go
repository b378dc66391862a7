package genre

import (
	"context"

	"atomovision-editorial/internal/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.Genre, error)
	GetByCode(ctx context.Context, code string) (*domain.Genre, error)
	Upsert(ctx context.Context, genre domain.Genre) (*domain.Genre, error)
}
