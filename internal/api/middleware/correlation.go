package middleware

import (
	"net/http"

	"github.com/rs/xid"

	"github.com/keylease/keylease/internal/core"
)

const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationIDMiddleware assigns every request a correlation ID (or
// honors the caller's) and echoes it in the response. Error responses
// and audit entries carry the same ID so a denial can be looked up.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = xid.New().String()
		}
		w.Header().Set(CorrelationIDHeader, id)

		ctx := core.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
