package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keylease/keylease/internal/api/presenter"
	"github.com/keylease/keylease/internal/broker"
)

type ExchangePayload struct {
	// Role names the credential role being requested.
	Role string `json:"role"`

	// TTL is the requested lease lifetime as a duration string ("15m").
	// Empty means the role default.
	TTL string `json:"ttl,omitempty"`

	// Issuer specifies the trust config to verify the token against.
	// It skips issuer auto-discovery.
	Issuer string `json:"issuer,omitempty"`
}

func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	switch r.Header.Get("Content-Type") {
	case "application/json", "":
		// strict encoding for JSON
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dest); err != nil {
			if !errors.Is(err, io.EOF) || !allowEmpty {
				return err
			}
		}
		// ensure there's no extra data
		if dec.More() {
			return errors.New("extra data in request body")
		}
		return nil
	default:
		return errors.New("unsupported content type")
	}
}

// bearerToken extracts the identity token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer"))
}

// handleExchange processes token-for-credential exchange requests.
func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload ExchangePayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode exchange request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Role == "" {
		presenter.Error(w, r, "missing role", http.StatusBadRequest)
		return
	}

	token := bearerToken(r)
	if token == "" {
		logger.Warn().Msg("missing or empty Authorization header")
		presenter.Error(w, r, "missing Authorization header", http.StatusUnauthorized)
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

	result, err := s.broker.Exchange(ctx, broker.ExchangeRequest{
		Token:  token,
		Role:   payload.Role,
		TTL:    ttl,
		Issuer: payload.Issuer,
	})
	if err != nil {
		presenter.Err(w, r, err)
		return
	}

	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("lease", result.Lease.Handle)
	})
	logger.Debug().Msg("exchange handled")

	presenter.JSON(w, r, result, http.StatusCreated)
}
