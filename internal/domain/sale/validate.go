package sale

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

// LedgerFinder is the slice of Repository the pipeline needs for its
// idempotency stage.
type LedgerFinder interface {
	GetByLocalID(ctx context.Context, ownerID int, localID string) (*Sale, error)
}

// Pipeline runs the ordered validation stages on one inbound sale.
// Stages run in a fixed order and stop at the first failure so that error
// messages are deterministic:
//
//  1. identity: local_id present and a valid RFC 4122 UUID
//  2. customer reference exists
//  3. idempotency: already-synced duplicate short-circuits
//  4. at least one line item
//  5. per-line product reference exists
//  6. per-line quantity/price/discount/tax parse as exact decimals,
//     quantity strictly positive, unit price non-negative
//
// Beyond the existence lookups and the idempotency read it has no side
// effects.
type Pipeline struct {
	customers CustomerDirectory
	products  ProductCatalog
	ledger    LedgerFinder
	log       *slog.Logger
}

func NewPipeline(customers CustomerDirectory, products ProductCatalog, ledger LedgerFinder, log *slog.Logger) *Pipeline {
	return &Pipeline{
		customers: customers,
		products:  products,
		ledger:    ledger,
		log:       log.With("component", "validation_pipeline"),
	}
}

// Outcome is the pipeline result for one inbound sale. Exactly one of
// Validated, AlreadySynced, or Rejection is meaningful. Existing carries
// the stored sale for the same identity, if any, so the conflict resolver
// does not have to look it up again.
type Outcome struct {
	Validated     *Sale
	Existing      *Sale
	AlreadySynced bool
	Rejection     *Rejection
}

// Run validates one inbound sale for the given owner. A non-nil error means
// an infrastructure failure (lookup or ledger read), not a validation verdict.
func (p *Pipeline) Run(ctx context.Context, ownerID int, in InboundSale) (Outcome, error) {
	// Stage 1: identity.
	localID := strings.TrimSpace(in.LocalID)
	if localID == "" {
		p.log.Warn("validation failed: missing local_id", "owner_id", ownerID)
		return Outcome{Rejection: rejectf(RejectInvalidIdentity, "local_id is required and cannot be empty")}, nil
	}
	if _, err := uuid.Parse(localID); err != nil {
		p.log.Warn("validation failed: malformed local_id", "owner_id", ownerID, "local_id", localID)
		return Outcome{Rejection: rejectf(RejectInvalidIdentity, "local_id must be a valid UUID (RFC 4122), got: %s", localID)}, nil
	}

	// Stage 2: customer reference.
	if in.CustomerID == 0 {
		return Outcome{Rejection: rejectf(RejectUnknownReference, "customer_id is required")}, nil
	}
	ok, err := p.customers.Exists(ctx, in.CustomerID)
	if err != nil {
		return Outcome{}, fmt.Errorf("customer lookup: %w", err)
	}
	if !ok {
		p.log.Warn("validation failed: unknown customer", "owner_id", ownerID, "local_id", localID, "customer_id", in.CustomerID)
		return Outcome{Rejection: rejectf(RejectUnknownReference, "customer with id=%d does not exist", in.CustomerID)}, nil
	}

	// Stage 3: idempotency. A duplicate that is already synced and does not
	// declare an older version is informational, not an error. A duplicate
	// whose stored version has advanced keeps flowing so the conflict
	// resolver can classify it.
	existing, err := p.ledger.GetByLocalID(ctx, ownerID, localID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Outcome{}, fmt.Errorf("ledger read: %w", err)
	}
	if existing != nil && existing.Sync.Status == StatusSynced && declaredVersion(in, existing) >= existing.Version {
		return Outcome{Existing: existing, AlreadySynced: true}, nil
	}

	// Stage 4: content must not be empty.
	if len(in.Lines) == 0 {
		return Outcome{Existing: existing, Rejection: rejectf(RejectEmptyContent, "sale must have at least 1 item")}, nil
	}

	lines := make([]SaleLine, 0, len(in.Lines))
	for idx, raw := range in.Lines {
		// Stage 5: product reference, tagged with the line index.
		if raw.ProductID == 0 {
			return Outcome{Existing: existing, Rejection: rejectLinef(RejectUnknownReference, idx, "product_id", "item #%d: product_id is required", idx)}, nil
		}
		ok, err := p.products.Exists(ctx, raw.ProductID)
		if err != nil {
			return Outcome{}, fmt.Errorf("product lookup: %w", err)
		}
		if !ok {
			p.log.Warn("validation failed: unknown product", "owner_id", ownerID, "local_id", localID, "line", idx, "product_id", raw.ProductID)
			return Outcome{Existing: existing, Rejection: rejectLinef(RejectUnknownReference, idx, "product_id", "item #%d: product with id=%d does not exist", idx, raw.ProductID)}, nil
		}

		// Stage 6: numeric fields, exact decimal only.
		line, rej := parseLine(idx, raw)
		if rej != nil {
			p.log.Warn("validation failed: bad numeric field", "owner_id", ownerID, "local_id", localID, "line", idx, "field", rej.Field)
			return Outcome{Existing: existing, Rejection: rej}, nil
		}
		lines = append(lines, line)
	}

	validated := &Sale{
		OwnerID:    ownerID,
		LocalID:    localID,
		CustomerID: in.CustomerID,
		Notes:      in.Notes,
		Lines:      lines,
	}
	validated.Recalculate()
	return Outcome{Validated: validated, Existing: existing}, nil
}

// declaredVersion is the version the inbound payload was last built
// against. A missing version means the client claims to have the latest.
func declaredVersion(in InboundSale, existing *Sale) int {
	if in.Version == 0 {
		return existing.Version
	}
	return in.Version
}

func parseLine(idx int, raw InboundLine) (SaleLine, *Rejection) {
	quantity, rej := parseDecimal(idx, "quantity", raw.Quantity, true)
	if rej != nil {
		return SaleLine{}, rej
	}
	if !quantity.IsPositive() {
		return SaleLine{}, rejectLinef(RejectInvalidNumeric, idx, "quantity", "item #%d: quantity must be greater than 0, got: %s", idx, raw.Quantity)
	}

	unitPrice, rej := parseDecimal(idx, "unit_price", raw.UnitPrice, true)
	if rej != nil {
		return SaleLine{}, rej
	}
	if unitPrice.IsNegative() {
		return SaleLine{}, rejectLinef(RejectInvalidNumeric, idx, "unit_price", "item #%d: unit_price cannot be negative, got: %s", idx, raw.UnitPrice)
	}

	discountType := DiscountType(raw.DiscountType)
	if discountType == "" {
		discountType = DiscountNone
	}
	switch discountType {
	case DiscountNone, DiscountPercentage, DiscountFixed:
	default:
		return SaleLine{}, rejectLinef(RejectInvalidNumeric, idx, "discount_type", "item #%d: unknown discount_type: %s", idx, raw.DiscountType)
	}

	discountValue, rej := parseDecimal(idx, "discount_value", raw.DiscountValue, false)
	if rej != nil {
		return SaleLine{}, rej
	}
	taxPercentage, rej := parseDecimal(idx, "tax_percentage", raw.TaxPercentage, false)
	if rej != nil {
		return SaleLine{}, rej
	}

	return SaleLine{
		ProductID:     raw.ProductID,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		DiscountType:  discountType,
		DiscountValue: discountValue,
		TaxPercentage: taxPercentage,
		LineOrder:     idx,
	}, nil
}

func parseDecimal(idx int, field, raw string, required bool) (decimal.Decimal, *Rejection) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if required {
			return decimal.Zero, rejectLinef(RejectInvalidNumeric, idx, field, "item #%d: %s is required", idx, field)
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, rejectLinef(RejectInvalidNumeric, idx, field, "item #%d: %s must be a valid decimal number, got: %s", idx, field, raw)
	}
	return d, nil
}
