// Package principal resolves the acting user identity from ambient request context.
//
// Resolution is deliberately infallible: audit stamping must never become a
// point of failure for unrelated business transactions, so a missing or
// malformed principal always resolves to nil rather than an error.
package principal

import (
	"context"

	appctx "papyrus/internal/core/context"
)

type principalKey struct{}

// WithUserID adds the acting user ID to context.
// Used by middleware to propagate the authenticated user through the request chain.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, principalKey{}, userID)
}

// CurrentUserID returns the acting user ID from context, or nil when no
// principal is present. It never returns an error.
//
// Lookup order: explicit principal value first, then the authenticated
// UserContext installed by the HTTP layer.
func CurrentUserID(ctx context.Context) *int64 {
	if ctx == nil {
		return nil
	}
	if uid, ok := ctx.Value(principalKey{}).(int64); ok {
		return &uid
	}
	if u := appctx.GetUser(ctx); u != nil && u.UserID != 0 {
		uid := u.UserID
		return &uid
	}
	return nil
}
