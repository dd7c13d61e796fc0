package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keylease/keylease/internal/api/presenter"
	"github.com/keylease/keylease/internal/core"
)

// handleAdminAudits retrieves audit stream entries.
func (s *Server) handleAdminAudits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	queryable, ok := s.auditor.(core.QueryableAuditor)
	if !ok {
		presenter.Error(w, r, "audit sink does not support queries", http.StatusNotImplemented)
		return
	}

	q := r.URL.Query()
	limitStr := q.Get("limit")

	filterCorrelationID := q.Get("correlation_id")
	filterPrincipalID := q.Get("principal_id")
	filterFingerprint := q.Get("fingerprint")
	filterLease := q.Get("lease")

	limit := 50
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil {
			logger.Warn().Err(err).Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	var entries []core.AuditEvent
	var err error

	if filterCorrelationID != "" || filterFingerprint != "" || filterPrincipalID != "" || filterLease != "" {
		logger.Info().Msg("applying audit stream filters")
		entries, err = queryable.Find(func(event core.AuditEvent) bool {
			if filterCorrelationID != "" && event.ID != filterCorrelationID {
				return false
			}
			if filterFingerprint != "" && event.Fingerprint != filterFingerprint {
				return false
			}
			if filterLease != "" && event.LeaseHandle != filterLease {
				return false
			}
			if filterPrincipalID != "" && (event.Principal == nil || event.Principal.ID != filterPrincipalID) {
				return false
			}
			return true
		}, limit)
	} else {
		entries, err = queryable.Recent(limit)
	}

	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit entries")
		presenter.Error(w, r, "failed to retrieve audit entries", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}

// handleAdminLeases lists all non-terminal leases.
func (s *Server) handleAdminLeases(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, s.leases.ListActive(), http.StatusOK)
}

// handleExplain evaluates every binding against a token (or a replayed
// audit entry) and returns the full match trace.
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	token := r.FormValue("token")

	q := r.URL.Query()
	requestedIssuer := q.Get("issuer")
	replayID := q.Get("replay_id")

	if replayID != "" {
		logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("replay_id", replayID)
		})

		queryable, ok := s.auditor.(core.QueryableAuditor)
		if !ok {
			presenter.Error(w, r, "audit sink does not support replay", http.StatusNotImplemented)
			return
		}

		entries, err := queryable.Find(func(event core.AuditEvent) bool {
			return event.ID == replayID
		}, 1)
		if err != nil {
			logger.Error().Err(err).Msg("failed to retrieve audit entry for replay")
			presenter.Error(w, r, "failed to retrieve audit entry for replay", http.StatusInternalServerError)
			return
		}
		if len(entries) == 0 || entries[0].Principal == nil {
			logger.Warn().Msg("no principal found in audit entry for replay")
			presenter.Error(w, r, "no principal found in audit entry for replay", http.StatusBadRequest)
			return
		}

		principal := entries[0].Principal
		logger.Debug().Str("sub", principal.ID).Msg("replaying audit entry")
		presenter.JSON(w, r, s.broker.TracePrincipal(ctx, principal), http.StatusOK)
		return
	}

	if token == "" {
		presenter.Error(w, r, "missing token", http.StatusBadRequest)
		return
	}

	trace, err := s.broker.Explain(ctx, token, requestedIssuer)
	if err != nil {
		logger.Warn().Err(err).Msg("explain verification failed")
		presenter.Err(w, r, err)
		return
	}

	presenter.JSON(w, r, trace, http.StatusOK)
}
