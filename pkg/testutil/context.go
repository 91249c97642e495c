package testutil

import (
	"net/http"

	"pulsegate/pkg/requestcontext"
)

// WithRequestID attaches a request id the way the RequestID middleware does,
// for handlers tested without the full chain.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
