package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// OwnerResolver turns an opaque bearer token into an owner id. The real
// identity service lives outside this system; callers inject whatever
// implementation they have.
type OwnerResolver interface {
	Resolve(ctx context.Context, token string) (int, error)
}

type Auth struct {
	resolver OwnerResolver
	log      *slog.Logger
}

func New(resolver OwnerResolver, log *slog.Logger) *Auth {
	return &Auth{
		resolver: resolver,
		log:      log.With("component", "auth_middleware"),
	}
}

type contextKey string

const ownerIDKey contextKey = "ownerID"

// Middleware authenticates the request and stores the owner id in the
// request context for the handlers and the ingress gate.
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		header := ctx.Header("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			a.reject(ctx)
			return
		}

		ownerID, err := a.resolver.Resolve(ctx.Context(), token)
		if err != nil {
			a.log.Warn("token rejected", "error", err)
			a.reject(ctx)
			return
		}

		next(huma.WithContext(ctx, WithOwnerID(ctx.Context(), ownerID)))
	}
}

func (a *Auth) reject(ctx huma.Context) {
	ctx.SetStatus(http.StatusUnauthorized)
	ctx.SetHeader("Content-Type", "application/json")
	if err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{"error": "Unauthorized"}); err != nil {
		a.log.Error("failed to write unauthorized response", "error", err)
	}
}

// WithOwnerID returns ctx carrying the authenticated owner id.
func WithOwnerID(ctx context.Context, ownerID int) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// GetOwnerID extracts the authenticated owner id set by Middleware.
func GetOwnerID(ctx context.Context) (int, bool) {
	ownerID, ok := ctx.Value(ownerIDKey).(int)
	return ownerID, ok
}

// StaticResolver is a fixed token table, enough for deployments where
// callers are provisioned by configuration.
type StaticResolver map[string]int

var ErrUnknownToken = errors.New("unknown token")

func (r StaticResolver) Resolve(_ context.Context, token string) (int, error) {
	ownerID, ok := r[token]
	if !ok {
		return 0, ErrUnknownToken
	}
	return ownerID, nil
}
