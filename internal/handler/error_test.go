package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faxingberling1/mailward/internal/domain"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation failure",
			err:        domain.Invalid("campaign.create", "name is required"),
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.EINVALID,
		},
		{
			name:       "missing workspace",
			err:        domain.Unauthorized("auth", "no active workspace"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   domain.EUNAUTHORIZED,
		},
		{
			name:       "not found",
			err:        domain.NotFound("campaign.get", "campaign", "abc"),
			wantStatus: http.StatusNotFound,
			wantCode:   domain.ENOTFOUND,
		},
		{
			name:       "duplicate contact",
			err:        domain.Conflict("contact.create", "a contact with this email already exists"),
			wantStatus: http.StatusConflict,
			wantCode:   domain.ECONFLICT,
		},
		{
			name:       "quota denial",
			err:        domain.LimitReached("campaign.create", domain.PlanStarter, "emails", 10000),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   domain.ELIMIT,
		},
		{
			name:       "suspended workspace",
			err:        domain.Suspended("campaign.create"),
			wantStatus: http.StatusForbidden,
			wantCode:   domain.ESUSPENDED,
		},
		{
			name:       "untyped error",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   domain.EINTERNAL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)

			Error(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			body := decodeErrorBody(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestError_InternalDetailsNeverLeak(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)

	Error(rec, req, domain.Internal(errors.New("dial tcp 10.0.0.5:5432: connection refused"),
		"usage.check_email_limit", "failed to load usage snapshot"))

	body := decodeErrorBody(t, rec)
	assert.NotContains(t, body.Error, "10.0.0.5")
	assert.NotContains(t, body.Error, "connection refused")
}

func TestError_LimitDenialCarriesPlanAndThreshold(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/campaigns", nil)

	Error(rec, req, domain.LimitReached("campaign.create", domain.PlanGrowth, "emails", 100000))

	body := decodeErrorBody(t, rec)
	assert.Contains(t, body.Error, "growth")
	assert.Contains(t, body.Error, "100,000")
	assert.Equal(t, "LIMIT_REACHED", body.Code)
}

func TestJSON_SuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()

	OK(rec, map[string]int{"value": 7})

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool           `json:"success"`
		Data    map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 7, body.Data["value"])
}
