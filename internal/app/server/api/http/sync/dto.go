package sync

import (
	"salesync/internal/domain/sale"
)

type uploadInput struct {
	Body sale.UploadRequest
}

type uploadOutput struct {
	Body sale.UploadResponse
}

type pendingInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Maximum number of pending sales to return"`
}

type pendingOutput struct {
	Body sale.PendingResponse
}

type retryInput struct {
	Body sale.RetryRequest
}

type retryOutput struct {
	Body sale.RetryResponse
}

type resolveInput struct {
	ID   int `path:"id" example:"1" doc:"Server-side sale id"`
	Body sale.ResolveRequest
}

type statusInput struct {
	ID int `path:"id" example:"1" doc:"Server-side sale id"`
}

type statusOutput struct {
	Body sale.StatusResponse
}
