package sale

import "context"

// Repository persists sales and their ledgers. Create and Overwrite are
// atomic units: the sale and all its lines commit together or not at all,
// and Overwrite is conditional on the expected version so that two
// concurrent writers cannot both succeed.
type Repository interface {
	// GetByLocalID finds the sale for one (owner, localID) identity.
	// Returns ErrNotFound when no such sale exists.
	GetByLocalID(ctx context.Context, ownerID int, localID string) (*Sale, error)

	// GetByID finds a sale by server id, scoped to its owner. A sale owned
	// by someone else is ErrNotFound, never a permission error.
	GetByID(ctx context.Context, ownerID, saleID int) (*Sale, error)

	// ListPending returns the owner's pending/error sales, most recent
	// first, at most limit rows.
	ListPending(ctx context.Context, ownerID, limit int) ([]Sale, error)

	// Create inserts the sale and its lines in one transaction, assigning
	// ID and Number. Returns ErrDuplicateLocalID when the (owner, localID)
	// identity was committed concurrently.
	Create(ctx context.Context, s *Sale) error

	// Overwrite replaces the sale's content and lines in one transaction,
	// guarded by expectedVersion. On success the stored version is
	// expectedVersion+1 and s.Version is updated to match. Returns
	// ErrVersionConflict when another writer advanced the record.
	Overwrite(ctx context.Context, s *Sale, expectedVersion int) error

	// UpdateSync writes only the ledger columns of an existing sale.
	UpdateSync(ctx context.Context, ownerID, saleID int, st SyncState) error

	// Requeue re-admits one pending/error sale: status back to pending,
	// attempt count incremented, last error cleared. Returns ErrNotFound
	// for unknown, foreign, or already-synced sales.
	Requeue(ctx context.Context, ownerID, saleID int) (*Sale, error)
}

// CustomerDirectory is the external customer-existence collaborator.
type CustomerDirectory interface {
	Exists(ctx context.Context, customerID int) (bool, error)
}

// ProductCatalog is the external product-existence collaborator.
type ProductCatalog interface {
	Exists(ctx context.Context, productID int) (bool, error)
}
