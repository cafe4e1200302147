package handler

import (
	"context"

	"github.com/faxingberling1/mailward/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	workspaceContextKey contextKey = "workspace"
	adminContextKey     contextKey = "admin"
)

// WithWorkspace returns a context carrying the authenticated workspace and
// its admin flag. The auth middleware calls this after resolving the API key.
func WithWorkspace(ctx context.Context, workspace *domain.Workspace, isAdmin bool) context.Context {
	ctx = context.WithValue(ctx, workspaceContextKey, workspace)
	return context.WithValue(ctx, adminContextKey, isAdmin)
}

// GetWorkspace retrieves the authenticated workspace from the request
// context. Returns nil if the request is unauthenticated.
func GetWorkspace(ctx context.Context) *domain.Workspace {
	workspace, ok := ctx.Value(workspaceContextKey).(*domain.Workspace)
	if !ok {
		return nil
	}
	return workspace
}

// IsAdmin reports whether the request's API key carries admin rights.
func IsAdmin(ctx context.Context) bool {
	isAdmin, ok := ctx.Value(adminContextKey).(bool)
	return ok && isAdmin
}
