package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

// Servicer is the synchronization engine's service surface.
type Servicer interface {
	// Upload processes one ordered batch of client records. Each record is
	// validated, checked for conflicts, and committed in its own atomic
	// unit; one record's failure never aborts its siblings.
	Upload(ctx context.Context, ownerID int, req UploadRequest) (*UploadResponse, error)

	// Pending lists the owner's pending/error sales, most recent first.
	Pending(ctx context.Context, ownerID, limit int) (*PendingResponse, error)

	// Retry re-admits previously failed sales into pending state.
	Retry(ctx context.Context, ownerID int, req RetryRequest) (*RetryResponse, error)

	// Resolve settles a conflicted sale with the chosen strategy.
	Resolve(ctx context.Context, ownerID, saleID int, req ResolveRequest) (*StatusResponse, error)

	// Status returns the full ledger snapshot of one owned sale.
	Status(ctx context.Context, ownerID, saleID int) (*StatusResponse, error)
}

// Config bounds batch processing.
type Config struct {
	// BatchTimeout caps one upload batch. Records not reached before the
	// deadline are reported as errors rather than left indeterminate.
	BatchTimeout   time.Duration
	PendingDefault int
	PendingMax     int
}

func (c Config) withDefaults() Config {
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 30 * time.Second
	}
	if c.PendingDefault <= 0 {
		c.PendingDefault = 50
	}
	if c.PendingMax <= 0 {
		c.PendingMax = 200
	}
	return c
}

// Service implements Servicer on top of a Repository and the validation
// pipeline.
type Service struct {
	repo     Repository
	pipeline *Pipeline
	log      *slog.Logger
	config   Config
	now      func() time.Time
}

func NewService(repo Repository, pipeline *Pipeline, log *slog.Logger, cfg Config) *Service {
	return &Service{
		repo:     repo,
		pipeline: pipeline,
		log:      log.With("component", "sync_service"),
		config:   cfg.withDefaults(),
		now:      time.Now,
	}
}

func (s *Service) Upload(ctx context.Context, ownerID int, req UploadRequest) (*UploadResponse, error) {
	if len(req.Sales) == 0 {
		return nil, fmt.Errorf("%w: no sales data provided", ErrEmptyBatch)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.BatchTimeout)
	defer cancel()

	resp := &UploadResponse{
		Results: make([]UploadResult, 0, len(req.Sales)),
		Summary: UploadSummary{Total: len(req.Sales)},
	}

	for _, in := range req.Sales {
		var result UploadResult
		if ctx.Err() != nil {
			// Deadline hit: the remaining records fail fast instead of
			// being left in an indeterminate state. Already committed
			// siblings stay synced.
			result = UploadResult{
				LocalID: in.LocalID,
				Status:  ResultError,
				Message: "batch deadline exceeded before this record was processed",
			}
		} else {
			result = s.syncOne(ctx, ownerID, in)
		}

		resp.Results = append(resp.Results, result)
		switch result.Status {
		case ResultSuccess:
			resp.Summary.Successful++
		case ResultConflict:
			resp.Summary.Conflicts++
		case ResultAlreadySynced:
			resp.Summary.AlreadySynced++
		default:
			resp.Summary.Errors++
		}
	}

	s.log.Info("batch processed",
		"owner_id", ownerID,
		"total", resp.Summary.Total,
		"successful", resp.Summary.Successful,
		"conflicts", resp.Summary.Conflicts,
		"errors", resp.Summary.Errors,
	)
	return resp, nil
}

// syncOne runs validate-resolve-persist for a single record. Every failure
// is captured in the returned result; nothing escapes to abort the batch.
func (s *Service) syncOne(ctx context.Context, ownerID int, in InboundSale) UploadResult {
	out, err := s.pipeline.Run(ctx, ownerID, in)
	if err != nil {
		s.log.Error("pipeline infrastructure failure", "owner_id", ownerID, "local_id", in.LocalID, "error", err)
		return UploadResult{LocalID: in.LocalID, Status: ResultError, Message: fmt.Sprintf("storage error: %v", err)}
	}

	if out.Rejection != nil {
		// Only a pending or errored ledger takes the error state. A
		// conflicted ledger waits for its resolution request and a synced
		// ledger is terminal; a bad re-upload rewrites neither.
		if out.Existing != nil {
			switch out.Existing.Sync.Status {
			case StatusPending, StatusError:
				s.markError(ctx, out.Existing, out.Rejection.Message)
			}
		}
		return UploadResult{LocalID: in.LocalID, Status: ResultError, Message: out.Rejection.Message}
	}

	if out.AlreadySynced {
		return UploadResult{
			LocalID: in.LocalID,
			Status:  ResultAlreadySynced,
			SaleID:  out.Existing.ID,
			Number:  out.Existing.Number,
			Message: "sale already synced",
		}
	}

	declared := in.Version
	if out.Existing != nil {
		declared = declaredVersion(in, out.Existing)
	}

	// A conflicted record only leaves that state through an explicit
	// resolution request, never through another upload.
	if out.Existing != nil && out.Existing.Sync.Status == StatusConflict {
		return s.markConflict(ctx, out.Existing, declared)
	}

	switch Detect(out.Existing, declared) {
	case DecisionConflict:
		return s.markConflict(ctx, out.Existing, declared)
	case DecisionOverwrite:
		return s.commitOverwrite(ctx, out.Validated, out.Existing, declared)
	default:
		return s.commitCreate(ctx, out.Validated)
	}
}

func (s *Service) commitCreate(ctx context.Context, v *Sale) UploadResult {
	now := s.now()
	v.Version = 1
	v.Sync = SyncState{
		Status:        StatusSynced,
		LastAttemptAt: &now,
		SucceededAt:   &now,
	}

	if err := s.repo.Create(ctx, v); err != nil {
		if errors.Is(err, ErrDuplicateLocalID) {
			// Lost a race against a concurrent upload of the same identity.
			// Safe to retry: the next attempt resolves via idempotency.
			return UploadResult{LocalID: v.LocalID, Status: ResultError, Message: "sale was committed concurrently, retry the upload"}
		}
		s.log.Error("commit failed", "owner_id", v.OwnerID, "local_id", v.LocalID, "error", err)
		return UploadResult{LocalID: v.LocalID, Status: ResultError, Message: fmt.Sprintf("storage error: %v", err)}
	}

	s.log.Info("sale synced",
		"owner_id", v.OwnerID, "local_id", v.LocalID,
		"sale_id", v.ID, "sale_number", v.Number, "items", len(v.Lines),
	)
	return UploadResult{LocalID: v.LocalID, Status: ResultSuccess, SaleID: v.ID, Number: v.Number}
}

func (s *Service) commitOverwrite(ctx context.Context, v, existing *Sale, declared int) UploadResult {
	now := s.now()
	v.ID = existing.ID
	v.Number = existing.Number
	v.Sync = SyncState{
		Status:        StatusSynced,
		AttemptCount:  existing.Sync.AttemptCount,
		LastAttemptAt: &now,
		SucceededAt:   &now,
		Resolution:    existing.Sync.Resolution,
	}

	err := s.repo.Overwrite(ctx, v, existing.Version)
	if err == nil {
		s.log.Info("sale re-synced", "owner_id", v.OwnerID, "local_id", v.LocalID, "sale_id", v.ID, "version", v.Version)
		return UploadResult{LocalID: v.LocalID, Status: ResultSuccess, SaleID: v.ID, Number: v.Number}
	}
	if errors.Is(err, ErrVersionConflict) {
		// Another writer advanced the record between our read and the
		// conditional write. The loser observes a conflict, not a silent
		// overwrite.
		return s.markConflict(ctx, existing, declared)
	}

	s.log.Error("overwrite failed", "owner_id", v.OwnerID, "sale_id", v.ID, "error", err)
	s.markError(ctx, existing, fmt.Sprintf("storage error: %v", err))
	return UploadResult{LocalID: v.LocalID, Status: ResultError, Message: fmt.Sprintf("storage error: %v", err)}
}

func (s *Service) markConflict(ctx context.Context, existing *Sale, declared int) UploadResult {
	now := s.now()
	message := fmt.Sprintf("version mismatch: client=%d, server=%d", declared, existing.Version)
	st := existing.Sync
	st.Status = StatusConflict
	st.AttemptCount++
	st.LastAttemptAt = &now
	st.LastError = message

	if err := s.repo.UpdateSync(ctx, existing.OwnerID, existing.ID, st); err != nil {
		s.log.Error("failed to persist conflict state", "owner_id", existing.OwnerID, "sale_id", existing.ID, "error", err)
	}

	s.log.Warn("sync conflict detected",
		"owner_id", existing.OwnerID, "local_id", existing.LocalID,
		"sale_id", existing.ID, "server_version", existing.Version, "client_version", declared,
	)
	return UploadResult{
		LocalID: existing.LocalID,
		Status:  ResultConflict,
		SaleID:  existing.ID,
		Message: message,
		Conflict: &ConflictData{
			ServerVersion: existing.Version,
			ClientVersion: declared,
		},
	}
}

func (s *Service) markError(ctx context.Context, existing *Sale, message string) {
	now := s.now()
	st := existing.Sync
	st.Status = StatusError
	st.AttemptCount++
	st.LastAttemptAt = &now
	st.LastError = message

	if err := s.repo.UpdateSync(ctx, existing.OwnerID, existing.ID, st); err != nil {
		s.log.Error("failed to persist error state", "owner_id", existing.OwnerID, "sale_id", existing.ID, "error", err)
	}
}

func (s *Service) Pending(ctx context.Context, ownerID, limit int) (*PendingResponse, error) {
	if limit < 1 {
		limit = s.config.PendingDefault
	}
	if limit > s.config.PendingMax {
		limit = s.config.PendingMax
	}

	sales, err := s.repo.ListPending(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	results := make([]PendingSale, 0, len(sales))
	for _, sl := range sales {
		results = append(results, PendingSale{
			SaleID:       sl.ID,
			Number:       sl.Number,
			LocalID:      sl.LocalID,
			CustomerID:   sl.CustomerID,
			Status:       sl.Sync.Status,
			AttemptCount: sl.Sync.AttemptCount,
			LastError:    sl.Sync.LastError,
			CreatedAt:    sl.CreatedAt,
		})
	}

	s.log.Info("pending syncs requested", "owner_id", ownerID, "count", len(results))
	return &PendingResponse{Count: len(results), Limit: limit, Results: results}, nil
}

func (s *Service) Retry(ctx context.Context, ownerID int, req RetryRequest) (*RetryResponse, error) {
	if len(req.SaleIDs) == 0 {
		return nil, fmt.Errorf("%w: sale_ids is required", ErrEmptyBatch)
	}

	resp := &RetryResponse{Results: make([]RetryResult, 0, len(req.SaleIDs))}
	for _, id := range req.SaleIDs {
		requeued, err := s.repo.Requeue(ctx, ownerID, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Unknown, foreign, or already synced: reported, not
				// silently dropped, and never anyone else's data.
				resp.Results = append(resp.Results, RetryResult{SaleID: id, Status: "not_found"})
				continue
			}
			return nil, fmt.Errorf("requeue sale %d: %w", id, err)
		}

		resp.Queued++
		resp.Results = append(resp.Results, RetryResult{
			SaleID:  requeued.ID,
			Number:  requeued.Number,
			Status:  "queued",
			Attempt: requeued.Sync.AttemptCount,
		})
		s.log.Info("sale queued for retry", "owner_id", ownerID, "sale_id", requeued.ID, "attempt_count", requeued.Sync.AttemptCount)
	}
	return resp, nil
}

func (s *Service) Resolve(ctx context.Context, ownerID, saleID int, req ResolveRequest) (*StatusResponse, error) {
	switch req.Resolution {
	case ResolutionServerWins, ResolutionClientWins, ResolutionManual:
	default:
		return nil, fmt.Errorf("%w: resolution must be server_wins, client_wins or manual", ErrInvalidPayload)
	}

	stored, err := s.repo.GetByID(ctx, ownerID, saleID)
	if err != nil {
		return nil, err
	}
	if stored.Sync.Status != StatusConflict {
		return nil, ErrNotInConflict
	}

	switch req.Resolution {
	case ResolutionServerWins:
		return s.resolveServerWins(ctx, stored)
	default:
		return s.resolveWithClientData(ctx, stored, req)
	}
}

// resolveServerWins keeps the stored content untouched and only settles the
// ledger. The version does not change.
func (s *Service) resolveServerWins(ctx context.Context, stored *Sale) (*StatusResponse, error) {
	now := s.now()
	st := stored.Sync
	st.Status = StatusSynced
	st.Resolution = ResolutionServerWins
	st.SucceededAt = &now
	st.LastError = ""

	if err := s.repo.UpdateSync(ctx, stored.OwnerID, stored.ID, st); err != nil {
		return nil, fmt.Errorf("resolve server_wins: %w", err)
	}
	stored.Sync = st

	s.log.Info("conflict resolved", "owner_id", stored.OwnerID, "sale_id", stored.ID, "resolution", ResolutionServerWins)
	return snapshot(stored), nil
}

// resolveWithClientData handles client_wins and manual. Both replace the
// stored content with the supplied payload; client_wins rejects an invalid
// payload outright while manual re-enters the retry cycle as pending.
func (s *Service) resolveWithClientData(ctx context.Context, stored *Sale, req ResolveRequest) (*StatusResponse, error) {
	if req.ClientData == nil {
		return nil, fmt.Errorf("%w: client_data is required when resolution=%s", ErrInvalidPayload, req.Resolution)
	}

	payload := *req.ClientData
	payload.LocalID = stored.LocalID
	if payload.CustomerID == 0 {
		payload.CustomerID = stored.CustomerID
	}

	out, err := s.pipeline.Run(ctx, stored.OwnerID, payload)
	if err != nil {
		return nil, fmt.Errorf("validate resolution payload: %w", err)
	}
	if out.Rejection != nil {
		if req.Resolution == ResolutionClientWins {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, out.Rejection.Message)
		}
		// Manual merge that fails validation goes back to pending so the
		// corrected payload can re-enter the next upload cycle.
		now := s.now()
		st := stored.Sync
		st.Status = StatusPending
		st.Resolution = ResolutionManual
		st.AttemptCount++
		st.LastAttemptAt = &now
		st.LastError = out.Rejection.Message
		if err := s.repo.UpdateSync(ctx, stored.OwnerID, stored.ID, st); err != nil {
			return nil, fmt.Errorf("resolve manual: %w", err)
		}
		stored.Sync = st
		return snapshot(stored), nil
	}

	now := s.now()
	v := out.Validated
	v.ID = stored.ID
	v.Number = stored.Number
	v.Sync = SyncState{
		Status:        StatusSynced,
		AttemptCount:  stored.Sync.AttemptCount,
		LastAttemptAt: &now,
		SucceededAt:   &now,
		Resolution:    req.Resolution,
	}

	if err := s.repo.Overwrite(ctx, v, stored.Version); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", req.Resolution, err)
	}

	s.log.Info("conflict resolved", "owner_id", v.OwnerID, "sale_id", v.ID, "resolution", req.Resolution, "version", v.Version)
	return snapshot(v), nil
}

func (s *Service) Status(ctx context.Context, ownerID, saleID int) (*StatusResponse, error) {
	stored, err := s.repo.GetByID(ctx, ownerID, saleID)
	if err != nil {
		return nil, err
	}
	return snapshot(stored), nil
}

func snapshot(s *Sale) *StatusResponse {
	return &StatusResponse{
		SaleID:        s.ID,
		Number:        s.Number,
		LocalID:       s.LocalID,
		Status:        s.Sync.Status,
		SucceededAt:   s.Sync.SucceededAt,
		LastAttemptAt: s.Sync.LastAttemptAt,
		AttemptCount:  s.Sync.AttemptCount,
		Version:       s.Version,
		Resolution:    s.Sync.Resolution,
		LastError:     s.Sync.LastError,
	}
}
