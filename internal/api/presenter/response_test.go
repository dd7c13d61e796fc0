package presenter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keylease/keylease/internal/broker"
	"github.com/keylease/keylease/internal/core"
)

func TestErrMapsTaxonomyToStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantStage  string
	}{
		{
			name:       "Authentication Failure",
			err:        &broker.StageError{Stage: broker.StageVerify, Err: fmt.Errorf("%w: token expired at 2026-01-01", core.ErrAuthenticationFailed)},
			wantStatus: http.StatusUnauthorized,
			wantError:  "authentication failed",
			wantStage:  "verify",
		},
		{
			name:       "No Matching Policy",
			err:        &broker.StageError{Stage: broker.StageMatch, Err: core.ErrNoMatchingPolicy},
			wantStatus: http.StatusForbidden,
			wantError:  "no policy matched the presented identity",
			wantStage:  "match",
		},
		{
			name:       "Forbidden",
			err:        &broker.StageError{Stage: broker.StageAuthorize, Err: core.ErrForbidden},
			wantStatus: http.StatusForbidden,
			wantError:  "access denied",
			wantStage:  "authorize",
		},
		{
			name:       "Lease Not Found",
			err:        core.ErrLeaseNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  "lease not found",
		},
		{
			name:       "Lease Expired",
			err:        core.ErrLeaseExpired,
			wantStatus: http.StatusGone,
			wantError:  "lease expired",
		},
		{
			name:       "Lease Not Renewable",
			err:        core.ErrLeaseNotRenewable,
			wantStatus: http.StatusConflict,
			wantError:  "lease is not renewable",
		},
		{
			name:       "Source Outage",
			err:        &broker.StageError{Stage: broker.StageIssue, Err: fmt.Errorf("%w: source 'gcp': rpc error", core.ErrCredentialSourceUnavailable)},
			wantStatus: http.StatusBadGateway,
			wantError:  "credential source unavailable",
			wantStage:  "issue",
		},
		{
			name:       "Unclassified",
			err:        errors.New("something odd"),
			wantStatus: http.StatusBadRequest,
			wantError:  "request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/exchange", nil)
			req = req.WithContext(core.WithCorrelationID(req.Context(), "corr-1"))

			Err(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
			if body.Stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", body.Stage, tt.wantStage)
			}
			if body.CorrelationID != "corr-1" {
				t.Errorf("correlation_id = %q", body.CorrelationID)
			}

			// the body must never echo the wrapped cause
			if s := rec.Body.String(); strings.Contains(s, "token expired") ||
				strings.Contains(s, "rpc error") || strings.Contains(s, "something odd") {
				t.Errorf("response leaked error detail: %s", s)
			}
		})
	}
}
