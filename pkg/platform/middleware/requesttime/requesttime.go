// Package requesttime pins a single "now" per request. Every write within one
// operation (audit rows, event records, packet timestamps) then shares the
// same timestamp.
package requesttime

import (
	"net/http"
	"time"

	"veris/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and stores
// it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
