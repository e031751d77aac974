package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"

	"salesync/internal/domain/sale"
)

// SaleRepository persists sales and their ledgers in PostgreSQL. The
// (owner_id, local_id) unique index and the version-guarded UPDATE are the
// only coordination points; no in-process locks.
type SaleRepository struct {
	storage *Storage
	log     *slog.Logger
	now     func() time.Time
}

func NewSaleRepository(storage *Storage, log *slog.Logger) *SaleRepository {
	return &SaleRepository{
		storage: storage,
		log:     log.With("component", "sale_repository"),
		now:     time.Now,
	}
}

const saleColumns = `
	id, number, owner_id, local_id::text, customer_id, notes, version, deleted,
	sync_status, sync_attempt_count, sync_last_attempt, sync_succeeded_at,
	sync_error, conflict_resolution,
	subtotal::text, discount::text, tax::text, total::text,
	created_at, updated_at`

func (r *SaleRepository) GetByLocalID(ctx context.Context, ownerID int, localID string) (*sale.Sale, error) {
	query := `SELECT` + saleColumns + ` FROM sales WHERE owner_id = $1 AND local_id = $2::uuid`

	s, err := r.scanSale(r.storage.Pool().QueryRow(ctx, query, ownerID, localID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		return nil, fmt.Errorf("get sale by local_id: %w", err)
	}

	if err := r.loadLines(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SaleRepository) GetByID(ctx context.Context, ownerID, saleID int) (*sale.Sale, error) {
	query := `SELECT` + saleColumns + ` FROM sales WHERE id = $1 AND owner_id = $2`

	s, err := r.scanSale(r.storage.Pool().QueryRow(ctx, query, saleID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	if err := r.loadLines(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SaleRepository) ListPending(ctx context.Context, ownerID, limit int) ([]sale.Sale, error) {
	query := `SELECT` + saleColumns + `
		FROM sales
		WHERE owner_id = $1 AND sync_status IN ('pending', 'error') AND NOT deleted
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.storage.Pool().Query(ctx, query, ownerID, limit)
	if err != nil {
		r.log.Error("failed to list pending sales", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var sales []sale.Sale
	for rows.Next() {
		s, err := r.scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending sale: %w", err)
		}
		sales = append(sales, *s)
	}
	return sales, rows.Err()
}

func (r *SaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	tx, err := r.storage.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	const insert = `
		INSERT INTO sales (
			number, owner_id, local_id, customer_id, notes, version,
			sync_status, sync_attempt_count, sync_last_attempt, sync_succeeded_at,
			sync_error, conflict_resolution,
			subtotal, discount, tax, total
		)
		VALUES ('', $1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12::numeric, $13::numeric, $14::numeric, $15::numeric)
		ON CONFLICT (owner_id, local_id) DO NOTHING
		RETURNING id, created_at, updated_at`

	err = tx.QueryRow(ctx, insert,
		s.OwnerID, s.LocalID, s.CustomerID, s.Notes, s.Version,
		s.Sync.Status, s.Sync.AttemptCount, s.Sync.LastAttemptAt, s.Sync.SucceededAt,
		s.Sync.LastError, string(s.Sync.Resolution),
		s.Subtotal.String(), s.Discount.String(), s.Tax.String(), s.Total.String(),
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sale.ErrDuplicateLocalID
		}
		r.log.Error("failed to insert sale", "owner_id", s.OwnerID, "local_id", s.LocalID, "error", err)
		return fmt.Errorf("insert sale: %w", err)
	}

	s.Number = fmt.Sprintf("VTA-%d-%05d", s.CreatedAt.Year(), s.ID)
	if _, err := tx.Exec(ctx, `UPDATE sales SET number = $1 WHERE id = $2`, s.Number, s.ID); err != nil {
		return fmt.Errorf("assign sale number: %w", err)
	}

	if err := insertLines(ctx, tx, s.ID, s.Lines); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

func (r *SaleRepository) Overwrite(ctx context.Context, s *sale.Sale, expectedVersion int) error {
	tx, err := r.storage.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin overwrite: %w", err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE sales SET
			customer_id = $1, notes = $2, version = version + 1,
			sync_status = $3, sync_attempt_count = $4, sync_last_attempt = $5,
			sync_succeeded_at = $6, sync_error = $7, conflict_resolution = $8,
			subtotal = $9::numeric, discount = $10::numeric,
			tax = $11::numeric, total = $12::numeric,
			updated_at = $13
		WHERE id = $14 AND owner_id = $15 AND version = $16
		RETURNING version`

	err = tx.QueryRow(ctx, update,
		s.CustomerID, s.Notes,
		s.Sync.Status, s.Sync.AttemptCount, s.Sync.LastAttemptAt,
		s.Sync.SucceededAt, s.Sync.LastError, string(s.Sync.Resolution),
		s.Subtotal.String(), s.Discount.String(), s.Tax.String(), s.Total.String(),
		r.now(), s.ID, s.OwnerID, expectedVersion,
	).Scan(&s.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The guarded write found no row at the expected version:
			// a concurrent writer won.
			return sale.ErrVersionConflict
		}
		r.log.Error("failed to overwrite sale", "sale_id", s.ID, "error", err)
		return fmt.Errorf("overwrite sale: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM sale_lines WHERE sale_id = $1`, s.ID); err != nil {
		return fmt.Errorf("clear sale lines: %w", err)
	}
	if err := insertLines(ctx, tx, s.ID, s.Lines); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit overwrite: %w", err)
	}
	return nil
}

func (r *SaleRepository) UpdateSync(ctx context.Context, ownerID, saleID int, st sale.SyncState) error {
	const query = `
		UPDATE sales SET
			sync_status = $1, sync_attempt_count = $2, sync_last_attempt = $3,
			sync_succeeded_at = $4, sync_error = $5, conflict_resolution = $6,
			updated_at = $7
		WHERE id = $8 AND owner_id = $9`

	tag, err := r.storage.Pool().Exec(ctx, query,
		st.Status, st.AttemptCount, st.LastAttemptAt,
		st.SucceededAt, st.LastError, string(st.Resolution),
		r.now(), saleID, ownerID,
	)
	if err != nil {
		r.log.Error("failed to update sync state", "sale_id", saleID, "error", err)
		return fmt.Errorf("update sync state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sale.ErrNotFound
	}
	return nil
}

func (r *SaleRepository) Requeue(ctx context.Context, ownerID, saleID int) (*sale.Sale, error) {
	const query = `
		UPDATE sales SET
			sync_status = 'pending',
			sync_attempt_count = sync_attempt_count + 1,
			sync_last_attempt = $1,
			sync_error = '',
			updated_at = $1
		WHERE id = $2 AND owner_id = $3 AND sync_status IN ('pending', 'error')
		RETURNING id, number, local_id::text, sync_attempt_count, sync_last_attempt`

	var (
		s           sale.Sale
		lastAttempt sql.NullTime
	)
	err := r.storage.Pool().QueryRow(ctx, query, r.now(), saleID, ownerID).Scan(
		&s.ID, &s.Number, &s.LocalID, &s.Sync.AttemptCount, &lastAttempt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		r.log.Error("failed to requeue sale", "sale_id", saleID, "error", err)
		return nil, fmt.Errorf("requeue sale: %w", err)
	}

	s.OwnerID = ownerID
	s.Sync.Status = sale.StatusPending
	if lastAttempt.Valid {
		s.Sync.LastAttemptAt = &lastAttempt.Time
	}
	return &s, nil
}

func (r *SaleRepository) scanSale(row pgx.Row) (*sale.Sale, error) {
	var (
		s                        sale.Sale
		lastAttempt, succeededAt sql.NullTime
		resolution               string
		subtotal, discount       string
		tax, total               string
	)

	err := row.Scan(
		&s.ID, &s.Number, &s.OwnerID, &s.LocalID, &s.CustomerID, &s.Notes,
		&s.Version, &s.Deleted,
		&s.Sync.Status, &s.Sync.AttemptCount, &lastAttempt, &succeededAt,
		&s.Sync.LastError, &resolution,
		&subtotal, &discount, &tax, &total,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastAttempt.Valid {
		s.Sync.LastAttemptAt = &lastAttempt.Time
	}
	if succeededAt.Valid {
		s.Sync.SucceededAt = &succeededAt.Time
	}
	s.Sync.Resolution = sale.Resolution(resolution)

	if s.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("parse subtotal: %w", err)
	}
	if s.Discount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("parse discount: %w", err)
	}
	if s.Tax, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("parse tax: %w", err)
	}
	if s.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	return &s, nil
}

func (r *SaleRepository) loadLines(ctx context.Context, s *sale.Sale) error {
	const query = `
		SELECT id, product_id, quantity::text, unit_price::text,
		       discount_type, discount_value::text, tax_percentage::text, line_order
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY line_order, id`

	rows, err := r.storage.Pool().Query(ctx, query, s.ID)
	if err != nil {
		return fmt.Errorf("load sale lines: %w", err)
	}
	defer rows.Close()

	s.Lines = nil
	for rows.Next() {
		var (
			l                            sale.SaleLine
			quantity, unitPrice          string
			discountValue, taxPercentage string
		)
		if err := rows.Scan(&l.ID, &l.ProductID, &quantity, &unitPrice,
			&l.DiscountType, &discountValue, &taxPercentage, &l.LineOrder); err != nil {
			return fmt.Errorf("scan sale line: %w", err)
		}
		if l.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return fmt.Errorf("parse quantity: %w", err)
		}
		if l.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return fmt.Errorf("parse unit_price: %w", err)
		}
		if l.DiscountValue, err = decimal.NewFromString(discountValue); err != nil {
			return fmt.Errorf("parse discount_value: %w", err)
		}
		if l.TaxPercentage, err = decimal.NewFromString(taxPercentage); err != nil {
			return fmt.Errorf("parse tax_percentage: %w", err)
		}
		s.Lines = append(s.Lines, l)
	}
	return rows.Err()
}

func insertLines(ctx context.Context, tx pgx.Tx, saleID int, lines []sale.SaleLine) error {
	const insert = `
		INSERT INTO sale_lines (
			sale_id, product_id, quantity, unit_price,
			discount_type, discount_value, tax_percentage, line_order
		)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6::numeric, $7::numeric, $8)`

	for _, l := range lines {
		_, err := tx.Exec(ctx, insert,
			saleID, l.ProductID, l.Quantity.String(), l.UnitPrice.String(),
			l.DiscountType, l.DiscountValue.String(), l.TaxPercentage.String(), l.LineOrder,
		)
		if err != nil {
			return fmt.Errorf("insert sale line %d: %w", l.LineOrder, err)
		}
	}
	return nil
}
