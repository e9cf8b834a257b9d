// Package metadata extracts client context (IP, User-Agent, device) from the
// request so audit records and event publishes can carry it without touching
// net/http themselves.
package metadata

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"veris/pkg/requestcontext"
)

// ClientMetadata captures client IP, User-Agent, a parsed device descriptor,
// and the caller-reported device id. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), ua)
		if name := deviceName(ua); name != "" {
			ctx = requestcontext.WithDeviceName(ctx, name)
		}
		if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
			ctx = requestcontext.WithDeviceID(ctx, deviceID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// deviceName renders "Browser Version (OS)" from the User-Agent, empty when
// nothing useful parses out.
func deviceName(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	parsed := useragent.New(rawUA)
	browser, version := parsed.Browser()
	if browser == "" {
		return ""
	}
	if os := parsed.OS(); os != "" {
		return fmt.Sprintf("%s %s (%s)", browser, version, os)
	}
	return fmt.Sprintf("%s %s", browser, version)
}

// ClientIPFromRequest extracts the real client IP, handling proxies.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For may hold a chain (client, proxy1, ...); the first entry
	// is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Direct connection.
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
