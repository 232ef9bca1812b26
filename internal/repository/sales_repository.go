package repository

import (
	"context"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

// SalesRepository persists raw sales records.
type SalesRepository interface {
	EnsureSchema(ctx context.Context) error
	InsertSales(ctx context.Context, records []domain.SalesRecord) (int, error)
	ListSales(ctx context.Context, filter domain.SalesFilter) ([]domain.SalesRecord, error)
	ListProducts(ctx context.Context) ([]string, error)
}
