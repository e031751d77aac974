package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) uploadOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-upload",
		Method:      http.MethodPost,
		Path:        "/api/sync/upload",
		Summary:     "Upload a batch of offline sales",
		Description: "Validates and commits each sale independently. Duplicates are acknowledged, version mismatches are reported as conflicts.",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) pendingOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-pending",
		Method:      http.MethodGet,
		Path:        "/api/sync/pending",
		Summary:     "List sales still awaiting synchronization",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) retryOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-retry",
		Method:      http.MethodPost,
		Path:        "/api/sync/retry",
		Summary:     "Requeue failed sales for another sync attempt",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) resolveOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-resolve",
		Method:      http.MethodPost,
		Path:        "/api/sync/sales/{id}/resolve",
		Summary:     "Resolve a conflicted sale",
		Description: "Applies server_wins, client_wins or manual resolution to a sale stuck in conflict.",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) statusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-status",
		Method:      http.MethodGet,
		Path:        "/api/sync/sales/{id}/status",
		Summary:     "Inspect the sync ledger of one sale",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
