package sale

import (
	"time"

	"github.com/shopspring/decimal"
)

// SyncStatus is the ledger state of a sale with respect to synchronization.
type SyncStatus string

const (
	StatusPending  SyncStatus = "pending"
	StatusSynced   SyncStatus = "synced"
	StatusError    SyncStatus = "error"
	StatusConflict SyncStatus = "conflict"
)

// Resolution records how a conflict was settled. Empty until resolved.
type Resolution string

const (
	ResolutionNone       Resolution = ""
	ResolutionServerWins Resolution = "server_wins"
	ResolutionClientWins Resolution = "client_wins"
	ResolutionManual     Resolution = "manual"
)

// DiscountType selects how a line discount is applied.
type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// SaleLine is one line item of a sale. All monetary fields are exact
// decimals; binary floats are never used for money.
type SaleLine struct {
	ID            int
	ProductID     int
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	TaxPercentage decimal.Decimal
	LineOrder     int
}

// Subtotal is unit price times quantity, before discount and tax.
func (l SaleLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity)
}

// DiscountAmount resolves the discount descriptor into an absolute amount.
func (l SaleLine) DiscountAmount() decimal.Decimal {
	switch l.DiscountType {
	case DiscountPercentage:
		return l.Subtotal().Mul(l.DiscountValue).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		return l.DiscountValue
	}
	return decimal.Zero
}

// SubtotalWithDiscount is the line subtotal after the discount.
func (l SaleLine) SubtotalWithDiscount() decimal.Decimal {
	return l.Subtotal().Sub(l.DiscountAmount())
}

// TaxAmount applies the tax percentage to the discounted subtotal.
func (l SaleLine) TaxAmount() decimal.Decimal {
	return l.SubtotalWithDiscount().Mul(l.TaxPercentage).Div(decimal.NewFromInt(100))
}

// Total is the final line amount.
func (l SaleLine) Total() decimal.Decimal {
	return l.SubtotalWithDiscount().Add(l.TaxAmount())
}

// SyncState is the per-sale synchronization ledger, stored alongside the
// sale itself and updated after every processing attempt.
type SyncState struct {
	Status        SyncStatus
	AttemptCount  int
	LastAttemptAt *time.Time
	SucceededAt   *time.Time
	Resolution    Resolution
	LastError     string
}

// Sale is the server-of-record transactional entity. ID and Number are
// assigned on first successful commit and immutable afterwards. Version is
// the optimistic-concurrency token and only ever increases. Sales are never
// physically deleted, only flagged.
type Sale struct {
	ID         int
	Number     string
	OwnerID    int
	LocalID    string
	CustomerID int
	Notes      string
	Version    int
	Deleted    bool
	Lines      []SaleLine
	Sync       SyncState

	// Totals cached from the lines at commit time.
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recalculate refreshes the cached totals from the current lines.
func (s *Sale) Recalculate() {
	subtotal, discount, tax, total := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range s.Lines {
		subtotal = subtotal.Add(l.Subtotal())
		discount = discount.Add(l.DiscountAmount())
		tax = tax.Add(l.TaxAmount())
		total = total.Add(l.Total())
	}
	s.Subtotal, s.Discount, s.Tax, s.Total = subtotal, discount, tax, total
}
