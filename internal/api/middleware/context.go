package middleware

import (
	"context"
	"net/http"
)

// Context key for request ID.
type contextKey string

const requestIDKey contextKey = "requestID"

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the ID set by RequestID, or "".
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
