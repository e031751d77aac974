package sale

// Decision is the conflict resolver's verdict for one validated upload.
type Decision int

const (
	// DecisionCreate: no stored record for this identity, first commit.
	DecisionCreate Decision = iota
	// DecisionOverwrite: the declared version matches or exceeds the stored
	// one, the write may proceed.
	DecisionOverwrite
	// DecisionConflict: another writer advanced the record since the client
	// last saw it. Requires explicit resolution, never auto-retried.
	DecisionConflict
)

// Detect compares the inbound declared version against the stored record.
// The comparison is absolute: it does not depend on batch order.
func Detect(existing *Sale, declared int) Decision {
	if existing == nil {
		return DecisionCreate
	}
	if existing.Version > declared {
		return DecisionConflict
	}
	return DecisionOverwrite
}
