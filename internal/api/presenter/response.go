package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/keylease/keylease/internal/broker"
	"github.com/keylease/keylease/internal/core"
)

// ErrorResponse is the uniform error body. The message names the failing
// stage and a coarse category only; correlation_id links the response to
// the audit entry that carries the detail.
type ErrorResponse struct {
	Error         string `json:"error"`
	Stage         string `json:"stage,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	JSON(w, r, ErrorResponse{
		Error:         msg,
		CorrelationID: core.CorrelationIDFromContext(r.Context()),
	}, status)
}

// Err maps a pipeline error to its response. The mapping is driven by
// the error taxonomy; messages never include claim values, binding
// names or source errors.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		CorrelationID: core.CorrelationIDFromContext(r.Context()),
	}

	var stageErr *broker.StageError
	if errors.As(err, &stageErr) {
		resp.Stage = stageErr.Stage
	}

	status := http.StatusBadRequest
	switch {
	case errors.Is(err, core.ErrAuthenticationFailed):
		status = http.StatusUnauthorized
		resp.Error = "authentication failed"
	case errors.Is(err, core.ErrNoMatchingPolicy):
		status = http.StatusForbidden
		resp.Error = "no policy matched the presented identity"
	case errors.Is(err, core.ErrForbidden):
		status = http.StatusForbidden
		resp.Error = "access denied"
	case errors.Is(err, core.ErrLeaseNotFound):
		status = http.StatusNotFound
		resp.Error = "lease not found"
	case errors.Is(err, core.ErrLeaseExpired):
		status = http.StatusGone
		resp.Error = "lease expired"
	case errors.Is(err, core.ErrLeaseNotRenewable):
		status = http.StatusConflict
		resp.Error = "lease is not renewable"
	case errors.Is(err, core.ErrCredentialSourceUnavailable):
		status = http.StatusBadGateway
		resp.Error = "credential source unavailable"
	default:
		resp.Error = "request failed"
	}

	JSON(w, r, resp, status)
}
