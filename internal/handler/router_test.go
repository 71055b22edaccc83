package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"be-guichet/internal/config"
	"be-guichet/internal/container"
	"be-guichet/internal/domain"
	"be-guichet/pkg/errors"
	"be-guichet/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Environment:      "test",
		AllowedOrigins:   []string{"http://localhost:5173"},
		StoreLockTimeout: 5 * time.Second,
		RequestTimeout:   10 * time.Second,
	}
	c, err := container.New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return NewRouter(c)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, operator string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if operator != "" {
		req.Header.Set("X-Operator-ID", operator)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) errors.ErrorType {
	t.Helper()
	return decodeBody[errors.ErrorResponse](t, rec).Error.Type
}

var (
	testStart = time.Date(2026, 11, 14, 9, 0, 0, 0, time.UTC)
	testEnd   = testStart.Add(9 * time.Hour)
)

// seedPanel creates an event with one activity: capacity 3, Standard (2 at
// 1000) and VIP (1 at 2000)
func seedPanel(t *testing.T, h http.Handler) (eventID, activityID string) {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/events", map[string]interface{}{
		"name": "Forum", "starts_at": testStart, "ends_at": testEnd,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	event := decodeBody[domain.Event](t, rec)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/activities", map[string]interface{}{
		"event_id": event.ID, "name": "Panel A", "starts_at": testStart, "ends_at": testEnd,
		"capacity": 3,
		"tiers": []map[string]interface{}{
			{"name": "Standard", "price": 1000, "capacity": 2},
			{"name": "VIP", "price": 2000, "capacity": 1},
		},
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	activity := decodeBody[domain.Activity](t, rec)
	return event.ID, activity.ID
}

func register(t *testing.T, h http.Handler, email string, selections ...domain.Selection) registerResponse {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/participants", map[string]interface{}{
		"first_name": "Awa", "last_name": "Diallo", "email": email, "selections": selections,
	}, "desk-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[registerResponse](t, rec)
}

func TestRouter_DeskFlow(t *testing.T) {
	h := newTestRouter(t)
	eventID, activityID := seedPanel(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/activities/"+activityID+"/tiers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	tiers := decodeBody[struct {
		Tiers []domain.Tier `json:"tiers"`
	}](t, rec)
	assert.Len(t, tiers.Tiers, 2)

	reg := register(t, h, "awa@example.com", domain.Selection{ActivityID: activityID, Tier: "VIP"})
	require.NotNil(t, reg.Selection)
	assert.Equal(t, int64(2000), reg.Selection.TotalDue)
	participantPath := "/api/v1/participants/" + reg.Participant.ID

	// a failed payment is acknowledged and changes nothing
	rec = doJSON(t, h, http.MethodPost, "/api/v1/payments/callback", map[string]interface{}{
		"batch_id": reg.Selection.BatchID, "success": false,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodGet, participantPath+"/enrollments", nil, "")
	list := decodeBody[struct {
		Enrollments []domain.Enrollment `json:"enrollments"`
	}](t, rec)
	require.Len(t, list.Enrollments, 1)
	assert.Equal(t, domain.PaymentUnpaid, list.Enrollments[0].PaymentStatus)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/payments/callback", map[string]interface{}{
		"batch_id": reg.Selection.BatchID, "success": true,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeBody[domain.PaymentResult](t, rec)
	assert.Len(t, paid.Confirmed, 1)

	// replayed callback is a no-op
	rec = doJSON(t, h, http.MethodPost, "/api/v1/payments/callback", map[string]interface{}{
		"batch_id": reg.Selection.BatchID, "success": true,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	replay := decodeBody[domain.PaymentResult](t, rec)
	assert.Empty(t, replay.Confirmed)
	assert.Len(t, replay.AlreadyPaid, 1)

	// VIP is sold out for the next participant
	other := register(t, h, "binta@example.com", domain.Selection{ActivityID: activityID, Tier: "VIP"})
	rec = doJSON(t, h, http.MethodPost, "/api/v1/participants/"+other.Participant.ID+"/payments", map[string]interface{}{
		"activity_ids": []string{activityID},
	}, "desk-1")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.ErrorTypeCapacityExceeded, errorType(t, rec))

	// admission, then a double scan
	admissions := participantPath + "/events/" + eventID + "/admissions"
	rec = doJSON(t, h, http.MethodPost, admissions, map[string]interface{}{
		"activity_id": activityID, "method": "physical",
	}, "scanner-2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[domain.AdmissionRecord](t, rec)
	assert.Equal(t, "scanner-2", first.ConfirmedBy)

	rec = doJSON(t, h, http.MethodPost, admissions, map[string]interface{}{
		"activity_id": activityID, "method": "online",
	}, "scanner-3")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[domain.AdmissionRecord](t, rec)
	assert.Equal(t, domain.MethodPhysical, second.Method)
	assert.Equal(t, "scanner-2", second.ConfirmedBy)

	rec = doJSON(t, h, http.MethodGet, admissions, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decodeBody[struct {
		Admissions []domain.AdmissionStatus `json:"admissions"`
	}](t, rec)
	require.Len(t, rows.Admissions, 2)
	assert.Equal(t, "Forum", rows.Admissions[0].ActivityName)
	assert.Equal(t, domain.MethodPhysical, rows.Admissions[1].Status)

	// refund after admission is flagged
	rec = doJSON(t, h, http.MethodPost, participantPath+"/enrollments/"+activityID+"/refund", nil, "supervisor-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refund := decodeBody[domain.RefundResult](t, rec)
	assert.True(t, refund.AdmissionAnomaly)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/audit?kind=refund_after_admission", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	audit := decodeBody[struct {
		Entries []domain.AuditEntry `json:"entries"`
	}](t, rec)
	require.NotEmpty(t, audit.Entries)
	assert.Equal(t, "supervisor-1", audit.Entries[0].Actor)
}

func TestRouter_RegisterWithRejectedSelection(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/participants", map[string]interface{}{
		"first_name": "Awa", "last_name": "Diallo", "email": "awa@example.com",
		"selections": []domain.Selection{{ActivityID: "missing", Tier: "VIP"}},
	}, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeBody[errors.ErrorResponse](t, rec)
	participantID, ok := resp.Error.Details["participant_id"].(string)
	require.True(t, ok)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/participants/"+participantID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Survey(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/surveys", map[string]interface{}{
		"label": "Satisfaction", "options": []string{"Oui", "Non", "Sans avis"},
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	q := decodeBody[domain.SurveyQuestion](t, rec)
	base := "/api/v1/surveys/" + q.ID

	for _, option := range []string{"Oui", "Oui", "Non", "Sans avis"} {
		rec = doJSON(t, h, http.MethodPost, base+"/responses", map[string]string{"option": option}, "")
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, base+"/tally", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	tally := decodeBody[domain.QuestionTally](t, rec)
	assert.Equal(t, int64(4), tally.TotalResponses)
	assert.Equal(t, []domain.OptionTally{
		{Option: "Oui", Count: 2, Percentage: 50},
		{Option: "Non", Count: 1, Percentage: 25},
		{Option: "Sans avis", Count: 1, Percentage: 25},
	}, tally.Options)

	rec = doJSON(t, h, http.MethodGet, base+"/options/Sans%20avis", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	detail := decodeBody[domain.OptionDetail](t, rec)
	assert.Equal(t, "Sans avis", detail.Option)
	assert.Equal(t, 25, detail.Percentage)

	rec = doJSON(t, h, http.MethodPut, base+"/options/Oui", map[string]interface{}{
		"count": 1, "reason": "double submission",
	}, "supervisor-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	corrected := decodeBody[domain.OptionDetail](t, rec)
	assert.Equal(t, int64(1), corrected.Count)
	assert.Equal(t, int64(3), corrected.TotalResponses)

	rec = doJSON(t, h, http.MethodPut, base+"/options/Oui", map[string]interface{}{"reason": "missing count"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, base+"/responses", map[string]string{"option": "Peut-être"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_SurveyOptionLabelsInPath(t *testing.T) {
	h := newTestRouter(t)
	labels := []string{"50%", "100%41", "a/b", "Sans avis"}

	rec := doJSON(t, h, http.MethodPost, "/api/v1/surveys", map[string]interface{}{
		"label": "Réduction préférée", "options": labels,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	q := decodeBody[domain.SurveyQuestion](t, rec)
	base := "/api/v1/surveys/" + q.ID

	for _, label := range labels {
		t.Run(label, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, base+"/responses", map[string]string{"option": label}, "")
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			path := base + "/options/" + url.PathEscape(label)

			rec = doJSON(t, h, http.MethodGet, path, nil, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			detail := decodeBody[domain.OptionDetail](t, rec)
			assert.Equal(t, label, detail.Option)
			assert.Equal(t, int64(1), detail.Count)

			rec = doJSON(t, h, http.MethodPut, path, map[string]interface{}{
				"count": 0, "reason": "test kiosk",
			}, "supervisor-1")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			corrected := decodeBody[domain.OptionDetail](t, rec)
			assert.Equal(t, label, corrected.Option)
			assert.Equal(t, int64(0), corrected.Count)
		})
	}
}

func TestRouter_Errors(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name           string
		method         string
		path           string
		body           interface{}
		expectedStatus int
		expectedType   errors.ErrorType
	}{
		{"Unknown route", http.MethodGet, "/api/v1/nothing", nil, http.StatusNotFound, errors.ErrorTypeNotFound},
		{"Unknown event", http.MethodGet, "/api/v1/events/missing", nil, http.StatusNotFound, errors.ErrorTypeNotFound},
		{"Unknown participant", http.MethodGet, "/api/v1/participants/missing", nil, http.StatusNotFound, errors.ErrorTypeNotFound},
		{"Unknown field", http.MethodPost, "/api/v1/events", map[string]interface{}{"title": "Forum"}, http.StatusBadRequest, errors.ErrorTypeValidation},
		{"Invalid event", http.MethodPost, "/api/v1/events", map[string]interface{}{"name": "F"}, http.StatusBadRequest, errors.ErrorTypeValidation},
		{"Invalid email", http.MethodPost, "/api/v1/participants", map[string]interface{}{
			"first_name": "Awa", "last_name": "Diallo", "email": "not-an-email",
		}, http.StatusBadRequest, errors.ErrorTypeValidation},
		{"Empty batch", http.MethodPost, "/api/v1/payments/callback", map[string]interface{}{"success": true}, http.StatusBadRequest, errors.ErrorTypeValidation},
		{"Invalid audit limit", http.MethodGet, "/api/v1/audit?limit=many", nil, http.StatusBadRequest, errors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, tt.method, tt.path, tt.body, "")
			require.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			resp := decodeBody[errors.ErrorResponse](t, rec)
			assert.Equal(t, tt.expectedType, resp.Error.Type)
			assert.NotEmpty(t, resp.Error.RequestID)
			assert.NotEmpty(t, resp.Error.Timestamp)
		})
	}
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "memory", resp.Store)
	assert.Equal(t, map[string]string{"store": "healthy", "surveys": "healthy"}, resp.Components)
}
