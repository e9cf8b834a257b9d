package testutil

import (
	"net/http"
	"time"

	"veris/internal/domain"
	"veris/pkg/requestcontext"
)

// WithActor attaches an authenticated actor to the request context, simulating
// what the identity middleware does for verified tokens.
func WithActor(req *http.Request, actor domain.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithSessionID adds a session ID to the request context.
func WithSessionID(req *http.Request, sessionID string) *http.Request {
	return req.WithContext(requestcontext.WithSessionID(req.Context(), sessionID))
}

// WithRequestTime pins the request clock, so assertions on timestamps are
// exact rather than windowed.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
