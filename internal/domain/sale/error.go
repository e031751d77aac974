package sale

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("sale not found")
	ErrDuplicateLocalID = errors.New("sale with this local_id already exists")
	ErrVersionConflict  = errors.New("sale version conflict")
	ErrNotInConflict    = errors.New("sale is not in conflict state")
	ErrEmptyBatch       = errors.New("empty batch")
	ErrInvalidPayload   = errors.New("invalid payload")
)

// RejectKind classifies why the validation pipeline refused a record.
// Every kind is auto-retryable after client-side correction; conflicts are
// detected later and are deliberately not part of this taxonomy.
type RejectKind string

const (
	RejectInvalidIdentity  RejectKind = "invalid_identity"
	RejectUnknownReference RejectKind = "unknown_reference"
	RejectEmptyContent     RejectKind = "empty_content"
	RejectInvalidNumeric   RejectKind = "invalid_numeric"
)

// Rejection is a validation failure propagated as data, not as a Go error.
// Line is -1 when the failure is not scoped to a line item.
type Rejection struct {
	Kind    RejectKind
	Line    int
	Field   string
	Message string
}

func rejectf(kind RejectKind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Line: -1, Message: fmt.Sprintf(format, args...)}
}

func rejectLinef(kind RejectKind, line int, field, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Line: line, Field: field, Message: fmt.Sprintf(format, args...)}
}
