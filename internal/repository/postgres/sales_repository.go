package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/repository"
)

const salesSchema = `
CREATE TABLE IF NOT EXISTS sales (
	id            BIGSERIAL PRIMARY KEY,
	sale_date     DATE NOT NULL,
	company       TEXT NOT NULL DEFAULT '',
	product       TEXT NOT NULL,
	quantity_sold DOUBLE PRECISION NOT NULL,
	unit_price    DOUBLE PRECISION NOT NULL,
	revenue       DOUBLE PRECISION NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sales_product_date ON sales (product, company, sale_date);
`

type salesRepository struct {
	db *DB
}

func NewSalesRepository(db *DB) repository.SalesRepository {
	return &salesRepository{db: db}
}

func (r *salesRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, salesSchema); err != nil {
		return fmt.Errorf("failed to create sales schema: %w", err)
	}
	return nil
}

// insertBatchSize keeps one statement well under the 65535 bind parameter
// limit of postgres.
const insertBatchSize = 1000

const insertSales = `
	INSERT INTO sales (sale_date, company, product, quantity_sold, unit_price, revenue)
	VALUES (:sale_date, :company, :product, :quantity_sold, :unit_price, :revenue)
`

func (r *salesRepository) InsertSales(ctx context.Context, records []domain.SalesRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for start := 0; start < len(records); start += insertBatchSize {
			batch := records[start:min(start+insertBatchSize, len(records))]
			res, err := tx.NamedExecContext(ctx, insertSales, batch)
			if err != nil {
				return fmt.Errorf("failed to insert sales batch at row %d: %w", start, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				n = int64(len(batch))
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *salesRepository) ListSales(ctx context.Context, filter domain.SalesFilter) ([]domain.SalesRecord, error) {
	query, args, err := buildSalesQuery(filter)
	if err != nil {
		return nil, err
	}

	var records []domain.SalesRecord
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return records, nil
}

func (r *salesRepository) ListProducts(ctx context.Context) ([]string, error) {
	var products []string
	if err := r.db.SelectContext(ctx, &products, `SELECT DISTINCT product FROM sales ORDER BY product`); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// buildSalesQuery returns a query with ? placeholders; callers rebind it.
func buildSalesQuery(filter domain.SalesFilter) (string, []interface{}, error) {
	var (
		clauses []string
		args    []interface{}
	)

	if filter.Company != "" {
		clauses = append(clauses, "company = ?")
		args = append(args, filter.Company)
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, "sale_date >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		clauses = append(clauses, "sale_date <= ?")
		args = append(args, filter.To)
	}

	query := `SELECT id, sale_date, company, product, quantity_sold, unit_price, revenue FROM sales`
	if len(filter.Products) > 0 {
		in, inArgs, err := sqlx.In("product IN (?)", filter.Products)
		if err != nil {
			return "", nil, fmt.Errorf("failed to build product filter: %w", err)
		}
		clauses = append(clauses, in)
		args = append(args, inArgs...)
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY company, product, sale_date"
	return query, args, nil
}
