package sync

import (
	"context"
	"errors"

	"salesync/internal/app/server/api/http/middleware/auth"
	"salesync/internal/domain/sale"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    sale.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sale.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.uploadOp(), h.upload)
	huma.Register(api, h.pendingOp(), h.pending)
	huma.Register(api, h.retryOp(), h.retry)
	huma.Register(api, h.resolveOp(), h.resolve)
	huma.Register(api, h.statusOp(), h.status)
}

func (h *Handler) upload(ctx context.Context, input *uploadInput) (*uploadOutput, error) {
	ownerID, ok := auth.GetOwnerID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resp, err := h.service.Upload(ctx, ownerID, input.Body)
	if err != nil {
		return nil, mapError(err)
	}

	return &uploadOutput{Body: *resp}, nil
}

func (h *Handler) pending(ctx context.Context, input *pendingInput) (*pendingOutput, error) {
	ownerID, ok := auth.GetOwnerID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resp, err := h.service.Pending(ctx, ownerID, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}

	return &pendingOutput{Body: *resp}, nil
}

func (h *Handler) retry(ctx context.Context, input *retryInput) (*retryOutput, error) {
	ownerID, ok := auth.GetOwnerID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resp, err := h.service.Retry(ctx, ownerID, input.Body)
	if err != nil {
		return nil, mapError(err)
	}

	return &retryOutput{Body: *resp}, nil
}

func (h *Handler) resolve(ctx context.Context, input *resolveInput) (*statusOutput, error) {
	ownerID, ok := auth.GetOwnerID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resp, err := h.service.Resolve(ctx, ownerID, input.ID, input.Body)
	if err != nil {
		return nil, mapError(err)
	}

	return &statusOutput{Body: *resp}, nil
}

func (h *Handler) status(ctx context.Context, input *statusInput) (*statusOutput, error) {
	ownerID, ok := auth.GetOwnerID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	resp, err := h.service.Status(ctx, ownerID, input.ID)
	if err != nil {
		return nil, mapError(err)
	}

	return &statusOutput{Body: *resp}, nil
}

// mapError translates domain sentinels into HTTP status errors so
// storage details never leak through the API surface.
func mapError(err error) error {
	switch {
	case errors.Is(err, sale.ErrEmptyBatch), errors.Is(err, sale.ErrInvalidPayload):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, sale.ErrNotFound):
		return huma.Error404NotFound("sale not found")
	case errors.Is(err, sale.ErrNotInConflict):
		return huma.Error409Conflict("sale is not in conflict state")
	case errors.Is(err, sale.ErrVersionConflict):
		return huma.Error409Conflict("sale was modified concurrently, re-fetch and resolve again")
	default:
		return err
	}
}
