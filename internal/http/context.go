package http

import (
	"context"
	"net/http"
	"strings"
)

// ActingUserHeader names the request header that carries the acting username.
const ActingUserHeader = "X-Campus-User"

type contextKey string

const actingUserContextKey contextKey = "acting_user"

// ContextWithActingUser returns a derived context containing the acting username.
func ContextWithActingUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actingUserContextKey, username)
}

// ActingUserFromContext extracts the acting username if one was supplied.
func ActingUserFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(actingUserContextKey).(string)
	if !ok || username == "" {
		return "", false
	}
	return username, true
}

func actingUserFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActingUserHeader))
}
