// Package metadata records caller details on the request context.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"pulsegate/pkg/requestcontext"
)

// DeviceHeader names the header a gateway uses to identify the sending
// device.
const DeviceHeader = "X-Device-ID"

// ClientMetadata stores the client IP, User-Agent and device id on the
// context. Apply it early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		if device := strings.TrimSpace(r.Header.Get(DeviceHeader)); device != "" {
			ctx = requestcontext.WithDeviceID(ctx, device)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest returns the originating client IP, preferring proxy
// headers over the socket address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
