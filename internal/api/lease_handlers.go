package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keylease/keylease/internal/api/presenter"
	"github.com/keylease/keylease/internal/core"
)

type RenewPayload struct {
	// Handle is the opaque lease handle from the exchange response.
	Handle string `json:"handle"`

	// TTL is the requested extension as a duration string. Empty renews
	// by the lease's issued TTL.
	TTL string `json:"ttl,omitempty"`
}

type RenewResponse struct {
	Handle    string    `json:"handle"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleLeaseRenew(w http.ResponseWriter, r *http.Request) {
	var payload RenewPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Handle == "" {
		presenter.Error(w, r, "missing handle", http.StatusBadRequest)
		return
	}

	var ttl time.Duration
	if payload.TTL != "" {
		parsed, err := time.ParseDuration(payload.TTL)
		if err != nil || parsed < 0 {
			presenter.Error(w, r, "invalid ttl", http.StatusBadRequest)
			return
		}
		ttl = parsed
	}

	expiry, err := s.broker.Renew(r.Context(), payload.Handle, ttl)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}

	presenter.JSON(w, r, RenewResponse{
		Handle:    payload.Handle,
		ExpiresAt: expiry,
	}, http.StatusOK)
}

type RevokePayload struct {
	Handle string `json:"handle"`
}

type RevokeResponse struct {
	Handle string `json:"handle"`
	Status string `json:"status"`
}

func (s *Server) handleLeaseRevoke(w http.ResponseWriter, r *http.Request) {
	var payload RevokePayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Handle == "" {
		presenter.Error(w, r, "missing handle", http.StatusBadRequest)
		return
	}

	err := s.broker.Revoke(r.Context(), payload.Handle)
	switch {
	case err == nil:
		presenter.JSON(w, r, RevokeResponse{
			Handle: payload.Handle,
			Status: "revoked",
		}, http.StatusOK)
	case errors.Is(err, core.ErrRevocationPending):
		// lease is dead; source-side cleanup not yet confirmed
		log.Ctx(r.Context()).Info().
			Str("lease", payload.Handle).
			Msg("revocation accepted, source-side cleanup pending")
		presenter.JSON(w, r, RevokeResponse{
			Handle: payload.Handle,
			Status: "revocation_pending",
		}, http.StatusAccepted)
	default:
		presenter.Err(w, r, err)
	}
}
