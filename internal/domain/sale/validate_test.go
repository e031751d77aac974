package sale

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"
)

const validLocalID = "9f1c8e2a-3b47-4a64-9d2e-0c5b8f1a7d33"

// MockLookup is a mock for both CustomerDirectory and ProductCatalog.
type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) Exists(ctx context.Context, id int) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockLedger is a mock for the pipeline's idempotency read.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetByLocalID(ctx context.Context, ownerID int, localID string) (*Sale, error) {
	args := m.Called(ctx, ownerID, localID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Sale), args.Error(1)
}

func newTestPipeline(customers, products *MockLookup, ledger *MockLedger) *Pipeline {
	return NewPipeline(customers, products, ledger, slog.Default())
}

func validInbound() InboundSale {
	return InboundSale{
		LocalID:    validLocalID,
		CustomerID: 5,
		Lines: []InboundLine{
			{ProductID: 10, Quantity: "2", UnitPrice: "25.50"},
		},
	}
}

func TestPipeline_Run_Valid(t *testing.T) {
	customers, products, ledger := new(MockLookup), new(MockLookup), new(MockLedger)
	customers.On("Exists", mock.Anything, 5).Return(true, nil)
	products.On("Exists", mock.Anything, 10).Return(true, nil)
	ledger.On("GetByLocalID", mock.Anything, 1, validLocalID).Return(nil, ErrNotFound)

	p := newTestPipeline(customers, products, ledger)
	out, err := p.Run(context.Background(), 1, validInbound())

	assert.NoError(t, err)
	assert.Nil(t, out.Rejection)
	assert.False(t, out.AlreadySynced)
	assert.NotNil(t, out.Validated)
	assert.Equal(t, 1, out.Validated.OwnerID)
	assert.Equal(t, validLocalID, out.Validated.LocalID)
	assert.Len(t, out.Validated.Lines, 1)
	assert.True(t, out.Validated.Total.Equal(dec("51")))

	customers.AssertExpectations(t)
	products.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestPipeline_Run_IdentityStage(t *testing.T) {
	tests := []struct {
		name    string
		localID string
	}{
		{name: "empty local_id", localID: ""},
		{name: "whitespace local_id", localID: "   "},
		{name: "not a uuid", localID: "sale-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(new(MockLookup), new(MockLookup), new(MockLedger))
			in := validInbound()
			in.LocalID = tt.localID

			out, err := p.Run(context.Background(), 1, in)

			assert.NoError(t, err)
			assert.NotNil(t, out.Rejection)
			assert.Equal(t, RejectInvalidIdentity, out.Rejection.Kind)
			assert.Equal(t, -1, out.Rejection.Line)
		})
	}
}

func TestPipeline_Run_UnknownCustomer(t *testing.T) {
	customers := new(MockLookup)
	customers.On("Exists", mock.Anything, 999).Return(false, nil)

	p := newTestPipeline(customers, new(MockLookup), new(MockLedger))
	in := validInbound()
	in.CustomerID = 999

	out, err := p.Run(context.Background(), 1, in)

	assert.NoError(t, err)
	assert.NotNil(t, out.Rejection)
	assert.Equal(t, RejectUnknownReference, out.Rejection.Kind)
	assert.Contains(t, out.Rejection.Message, "customer with id=999 does not exist")
}

func TestPipeline_Run_MissingCustomer(t *testing.T) {
	p := newTestPipeline(new(MockLookup), new(MockLookup), new(MockLedger))
	in := validInbound()
	in.CustomerID = 0

	out, err := p.Run(context.Background(), 1, in)

	assert.NoError(t, err)
	assert.NotNil(t, out.Rejection)
	assert.Equal(t, RejectUnknownReference, out.Rejection.Kind)
	assert.Contains(t, out.Rejection.Message, "customer_id is required")
}

func TestPipeline_Run_AlreadySynced(t *testing.T) {
	existing := &Sale{ID: 7, Version: 2, LocalID: validLocalID, Sync: SyncState{Status: StatusSynced}}

	customers, ledger := new(MockLookup), new(MockLedger)
	customers.On("Exists", mock.Anything, 5).Return(true, nil)
	ledger.On("GetByLocalID", mock.Anything, 1, validLocalID).Return(existing, nil)

	p := newTestPipeline(customers, new(MockLookup), ledger)
	in := validInbound()
	in.Version = 2

	out, err := p.Run(context.Background(), 1, in)

	assert.NoError(t, err)
	assert.True(t, out.AlreadySynced)
	assert.Equal(t, existing, out.Existing)
	assert.Nil(t, out.Validated)
}

func TestPipeline_Run_SyncedDuplicateWithOlderVersionFlowsOn(t *testing.T) {
	// The stored record advanced past what the client saw. The record must
	// reach the conflict resolver instead of being acknowledged as a
	// duplicate.
	existing := &Sale{ID: 7, Version: 3, LocalID: validLocalID, Sync: SyncState{Status: StatusSynced}}

	customers, products, ledger := new(MockLookup), new(MockLookup), new(MockLedger)
	customers.On("Exists", mock.Anything, 5).Return(true, nil)
	products.On("Exists", mock.Anything, 10).Return(true, nil)
	ledger.On("GetByLocalID", mock.Anything, 1, validLocalID).Return(existing, nil)

	p := newTestPipeline(customers, products, ledger)
	in := validInbound()
	in.Version = 1

	out, err := p.Run(context.Background(), 1, in)

	assert.NoError(t, err)
	assert.False(t, out.AlreadySynced)
	assert.Nil(t, out.Rejection)
	assert.NotNil(t, out.Validated)
	assert.Equal(t, existing, out.Existing)
}

func TestPipeline_Run_EmptyLines(t *testing.T) {
	customers, ledger := new(MockLookup), new(MockLedger)
	customers.On("Exists", mock.Anything, 5).Return(true, nil)
	ledger.On("GetByLocalID", mock.Anything, 1, validLocalID).Return(nil, ErrNotFound)

	p := newTestPipeline(customers, new(MockLookup), ledger)
	in := validInbound()
	in.Lines = nil

	out, err := p.Run(context.Background(), 1, in)

	assert.NoError(t, err)
	assert.NotNil(t, out.Rejection)
	assert.Equal(t, RejectEmptyContent, out.Rejection.Kind)
	assert.Contains(t, out.Rejection.Message, "at least 1 item")
}

func TestPipeline_Run_UnknownProduct(t *testing.T) {
	customers, products, ledger := new(MockLookup), new(MockLookup), new(MockLedger)
	customers.On("Exists", mock.Anything, 5).Return(true, nil)
	products.On("Exists", mock.Anything, 10).Return(true, nil)
	products.On("Exists", mock.Anything, 404).Return(false, nil)
	ledger.On("GetByLocalID", mock.Anything, 1, validLocalID).Return(nil, ErrNotFound)

	p := newTestPipeline(customers, products, ledger)
	in := validInbound()
	in.Lines = append(in.Lines, InboundLine{ProductID: 404, Quantity: "1", UnitPrice: "5"})

	out, err := p.Run(context.Background(), 1, in)

	assert.NoError(t, err)
	assert.NotNil(t, out.Rejection)
	assert.Equal(t, RejectUnknownReference, out.Rejection.Kind)
	assert.Equal(t, 1, out.Rejection.Line)
	assert.Equal(t, "product_id", out.Rejection.Field)
}

func TestPipeline_Run_NumericStage(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*InboundLine)
		wantField string
	}{
		{
			name:      "zero quantity",
			mutate:    func(l *InboundLine) { l.Quantity = "0" },
			wantField: "quantity",
		},
		{
			name:      "negative quantity",
			mutate:    func(l *InboundLine) { l.Quantity = "-1" },
			wantField: "quantity",
		},
		{
			name:      "quantity not a number",
			mutate:    func(l *InboundLine) { l.Quantity = "two" },
			wantField: "quantity",
		},
		{
			name:      "missing unit price",
			mutate:    func(l *InboundLine) { l.UnitPrice = "" },
			wantField: "unit_price",
		},
		{
			name:      "negative unit price",
			mutate:    func(l *InboundLine) { l.UnitPrice = "-0.01" },
			wantField: "unit_price",
		},
		{
			name:      "unknown discount type",
			mutate:    func(l *InboundLine) { l.DiscountType = "loyalty" },
			wantField: "discount_type",
		},
		{
			name:      "malformed tax percentage",
			mutate:    func(l *InboundLine) { l.TaxPercentage = "21%" },
			wantField: "tax_percentage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			customers, products, ledger := new(MockLookup), new(MockLookup), new(MockLedger)
			customers.On("Exists", mock.Anything, 5).Return(true, nil)
			products.On("Exists", mock.Anything, 10).Return(true, nil)
			ledger.On("GetByLocalID", mock.Anything, 1, validLocalID).Return(nil, ErrNotFound)

			p := newTestPipeline(customers, products, ledger)
			in := validInbound()
			tt.mutate(&in.Lines[0])

			out, err := p.Run(context.Background(), 1, in)

			assert.NoError(t, err)
			assert.NotNil(t, out.Rejection)
			assert.Equal(t, RejectInvalidNumeric, out.Rejection.Kind)
			assert.Equal(t, 0, out.Rejection.Line)
			assert.Equal(t, tt.wantField, out.Rejection.Field)
		})
	}
}

func TestPipeline_Run_LookupFailure(t *testing.T) {
	customers := new(MockLookup)
	customers.On("Exists", mock.Anything, 5).Return(false, errors.New("connection refused"))

	p := newTestPipeline(customers, new(MockLookup), new(MockLedger))

	_, err := p.Run(context.Background(), 1, validInbound())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "customer lookup")
}

func TestPipeline_Run_LedgerFailure(t *testing.T) {
	customers, ledger := new(MockLookup), new(MockLedger)
	customers.On("Exists", mock.Anything, 5).Return(true, nil)
	ledger.On("GetByLocalID", mock.Anything, 1, validLocalID).Return(nil, errors.New("connection refused"))

	p := newTestPipeline(customers, new(MockLookup), ledger)

	_, err := p.Run(context.Background(), 1, validInbound())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ledger read")
}
