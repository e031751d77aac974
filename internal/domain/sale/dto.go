package sale

import "time"

// ResultStatus is the per-record outcome of a batch upload.
type ResultStatus string

const (
	ResultSuccess       ResultStatus = "success"
	ResultError         ResultStatus = "error"
	ResultConflict      ResultStatus = "conflict"
	ResultAlreadySynced ResultStatus = "already_synced"
)

// InboundSale is one untrusted record from an offline client. Nothing past
// the validation pipeline ever touches these raw fields.
type InboundSale struct {
	LocalID    string        `json:"local_id" example:"9f1c8e2a-3b47-4a64-9d2e-0c5b8f1a7d33" doc:"Client-generated UUID, the idempotency key"`
	CustomerID int           `json:"customer_id" example:"5"`
	Version    int           `json:"version,omitempty" minimum:"0" doc:"Version the client last saw; 0 means the client claims latest"`
	Notes      string        `json:"notes,omitempty"`
	Lines      []InboundLine `json:"items"`
}

// InboundLine carries quantity and prices as exact decimal strings.
type InboundLine struct {
	ProductID     int    `json:"product_id" example:"10"`
	Quantity      string `json:"quantity" example:"5"`
	UnitPrice     string `json:"unit_price" example:"25.50"`
	DiscountType  string `json:"discount_type,omitempty" enum:"none,percentage,fixed" default:"none"`
	DiscountValue string `json:"discount_value,omitempty" example:"10.00"`
	TaxPercentage string `json:"tax_percentage,omitempty" example:"21.00"`
}

// UploadRequest is an ordered batch of client records.
type UploadRequest struct {
	Sales []InboundSale `json:"sales"`
}

// ConflictData tells the client which versions diverged.
type ConflictData struct {
	ServerVersion int `json:"server_version"`
	ClientVersion int `json:"client_version"`
}

// UploadResult is the outcome for one inbound record.
type UploadResult struct {
	LocalID  string        `json:"local_id"`
	Status   ResultStatus  `json:"status" enum:"success,error,conflict,already_synced"`
	SaleID   int           `json:"sale_id,omitempty"`
	Number   string        `json:"sale_number,omitempty"`
	Message  string        `json:"message,omitempty"`
	Conflict *ConflictData `json:"conflict_data,omitempty"`
}

// UploadSummary aggregates the per-record outcomes of one batch.
type UploadSummary struct {
	Total         int `json:"total"`
	Successful    int `json:"successful"`
	Conflicts     int `json:"conflicts"`
	Errors        int `json:"errors"`
	AlreadySynced int `json:"already_synced"`
}

type UploadResponse struct {
	Results []UploadResult `json:"results"`
	Summary UploadSummary  `json:"summary"`
}

// PendingSale is the list-view projection of a not-yet-synced sale.
type PendingSale struct {
	SaleID       int        `json:"sale_id"`
	Number       string     `json:"sale_number"`
	LocalID      string     `json:"local_id"`
	CustomerID   int        `json:"customer_id"`
	Status       SyncStatus `json:"sync_status"`
	AttemptCount int        `json:"attempt_count"`
	LastError    string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type PendingResponse struct {
	Count   int           `json:"count"`
	Limit   int           `json:"limit"`
	Results []PendingSale `json:"results"`
}

// RetryRequest names previously failed sales to re-admit.
type RetryRequest struct {
	SaleIDs []int `json:"sale_ids"`
}

// RetryResult reports the queuing outcome for one requested id.
type RetryResult struct {
	SaleID  int    `json:"sale_id"`
	Number  string `json:"sale_number,omitempty"`
	Status  string `json:"status" enum:"queued,not_found"`
	Attempt int    `json:"attempt,omitempty"`
}

type RetryResponse struct {
	Queued  int           `json:"queued"`
	Results []RetryResult `json:"results"`
}

// ResolveRequest settles a conflicted sale. ClientData is required for
// client_wins and manual.
type ResolveRequest struct {
	Resolution Resolution   `json:"resolution" enum:"server_wins,client_wins,manual"`
	ClientData *InboundSale `json:"client_data,omitempty"`
}

// StatusResponse is the full ledger snapshot of one sale.
type StatusResponse struct {
	SaleID        int        `json:"sale_id"`
	Number        string     `json:"sale_number"`
	LocalID       string     `json:"local_id"`
	Status        SyncStatus `json:"sync_status"`
	SucceededAt   *time.Time `json:"sync_succeeded_at,omitempty"`
	LastAttemptAt *time.Time `json:"sync_last_attempt,omitempty"`
	AttemptCount  int        `json:"sync_attempt_count"`
	Version       int        `json:"version"`
	Resolution    Resolution `json:"conflict_resolution,omitempty"`
	LastError     string     `json:"error,omitempty"`
}
