package postgres

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"
)

// LookupRepository answers the existence questions the validation pipeline
// asks about customers and products. It implements both
// sale.CustomerDirectory and sale.ProductCatalog.
type LookupRepository struct {
	storage *Storage
	log     *slog.Logger
}

func NewLookupRepository(storage *Storage, log *slog.Logger) *LookupRepository {
	return &LookupRepository{
		storage: storage,
		log:     log.With("component", "lookup_repository"),
	}
}

func (r *LookupRepository) Exists(ctx context.Context, customerID int) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1 AND active)`, customerID)
}

// Products returns a view of this repository scoped to the products table,
// so the same instance can serve both lookup interfaces.
func (r *LookupRepository) Products() *ProductLookup {
	return &ProductLookup{repo: r}
}

type ProductLookup struct {
	repo *LookupRepository
}

func (p *ProductLookup) Exists(ctx context.Context, productID int) (bool, error) {
	return p.repo.exists(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND active)`, productID)
}

func (r *LookupRepository) exists(ctx context.Context, query string, id int) (bool, error) {
	var found bool
	if err := r.storage.Pool().QueryRow(ctx, query, id).Scan(&found); err != nil {
		r.log.Error("existence lookup failed", "id", id, "error", err)
		return false, fmt.Errorf("existence lookup: %w", err)
	}
	return found, nil
}
