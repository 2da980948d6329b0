package booking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddinghub/internal/middleware"
	jwtsvc "weddinghub/internal/pkg/jwt"
)

const testWebhookToken = "hook-token"

type TestResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *ErrorDetail           `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type apiSuite struct {
	router *gin.Engine
	engine *Engine
	tokens map[string]string
}

func setupAPI(t *testing.T) *apiSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := setupTestEngine(t)
	jwtService := jwtsvc.New("test_secret_key_32_characters_min", time.Hour)
	h := NewHandler(e, t.Logf)

	r := gin.New()
	v1 := r.Group("/api/v1")

	webhooks := v1.Group("")
	webhooks.Use(middleware.WebhookTokenAuth(testWebhookToken))
	h.RegisterWebhookRoutes(webhooks)

	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(jwtService))
	h.RegisterRoutes(protected, middleware.RequireRole)

	tokens := map[string]string{}
	for name, identity := range map[string]struct {
		id   int64
		role string
	}{
		"couple":       {testCouple, "couple"},
		"vendor":       {testVendor, "vendor"},
		"admin":        {testAdmin, "admin"},
		"other_vendor": {999, "vendor"},
	} {
		token, err := jwtService.GenerateToken(identity.id, identity.role)
		require.NoError(t, err)
		tokens[name] = token
	}

	return &apiSuite{router: r, engine: e, tokens: tokens}
}

func (s *apiSuite) request(t *testing.T, method, path string, body interface{}, auth string) (*httptest.ResponseRecorder, *TestResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp TestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	if resp.Error != nil {
		t.Logf("%s %s -> %d [%s] %s", method, path, w.Code, resp.Error.Code, resp.Error.Message)
	}
	return w, &resp
}

func (s *apiSuite) as(name string) string {
	return s.tokens[name]
}

func field(t *testing.T, m map[string]interface{}, keys ...string) interface{} {
	t.Helper()
	var cur interface{} = m
	for _, k := range keys {
		obj, ok := cur.(map[string]interface{})
		require.True(t, ok, "%s is not an object", k)
		cur = obj[k]
	}
	return cur
}

func idOf(t *testing.T, m map[string]interface{}, keys ...string) int64 {
	t.Helper()
	v, ok := field(t, m, keys...).(float64)
	require.True(t, ok)
	return int64(v)
}

func assertJSONMoney(t *testing.T, want string, got interface{}) {
	t.Helper()
	s, ok := got.(string)
	require.True(t, ok, "money should be a JSON string, got %T", got)
	assertMoney(t, want, dec(s))
}

// Scenario A over HTTP with the gateway callback replayed.
func TestAPI_QuoteAcceptAndWebhookPayment(t *testing.T) {
	s := setupAPI(t)

	w, resp := s.request(t, http.MethodPost, "/api/v1/bookings", map[string]interface{}{
		"vendor_id":    testVendor,
		"service_name": "Wedding photography",
	}, s.as("couple"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	bookingID := idOf(t, resp.Data, "booking", "id")
	assert.Equal(t, "request", field(t, resp.Data, "booking", "status"))

	w, resp = s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/quotes", bookingID), map[string]interface{}{
		"items": []map[string]interface{}{
			{"name": "Full-day coverage", "quantity": 1, "unit_price": "15000"},
			{"name": "Printed album", "quantity": 2, "unit_price": 2500},
		},
	}, s.as("vendor"))
	require.Equal(t, http.StatusCreated, w.Code)
	quoteID := idOf(t, resp.Data, "quote", "id")
	assertJSONMoney(t, "20000", field(t, resp.Data, "quote", "total"))
	assertJSONMoney(t, "6000", field(t, resp.Data, "quote", "downpayment_amount"))

	w, resp = s.request(t, http.MethodPost, fmt.Sprintf("/api/v1/quotes/%d/accept", quoteID), nil, s.as("couple"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "quote_accepted", field(t, resp.Data, "booking", "status"))

	hook := map[string]interface{}{
		"booking_id":        bookingID,
		"amount":            6000,
		"payment_reference": "gw-0001",
		"metadata":          map[string]string{"gateway": "paymongo"},
	}
	w, resp = s.request(t, http.MethodPost, "/api/v1/webhooks/payments", hook, testWebhookToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "downpayment", field(t, resp.Data, "booking", "status"))
	assertJSONMoney(t, "14000", field(t, resp.Data, "payment_summary", "remaining_balance"))
	assertJSONMoney(t, "30", field(t, resp.Data, "payment_summary", "progress_percent"))
	receiptNumber := field(t, resp.Data, "receipt", "receipt_number")
	assert.NotEmpty(t, receiptNumber)
	assert.Nil(t, resp.Data["duplicate"])

	w, resp = s.request(t, http.MethodPost, "/api/v1/webhooks/payments", hook, testWebhookToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data["duplicate"])
	assert.Equal(t, false, resp.Data["changed"])
	assert.Equal(t, receiptNumber, field(t, resp.Data, "receipt", "receipt_number"))
	assertJSONMoney(t, "6000", field(t, resp.Data, "booking", "total_paid"))

	w, resp = s.request(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", bookingID), nil, s.as("vendor"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []interface{}{"fully_paid", "in_progress", "cancelled", "refunded"}, resp.Data["next_statuses"])

	w, resp = s.request(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d/history", bookingID), nil, s.as("couple"))
	require.Equal(t, http.StatusOK, w.Code)
	history, ok := resp.Data["history"].([]interface{})
	require.True(t, ok)
	var statuses []interface{}
	for _, h := range history {
		statuses = append(statuses, h.(map[string]interface{})["new_status"])
	}
	assert.Equal(t, []interface{}{"request", "quote_sent", "quote_accepted", "downpayment"}, statuses)

	w, resp = s.request(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d/receipts", bookingID), nil, s.as("admin"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data["receipts"], 1)
}

func TestAPI_CompletionAndDispute(t *testing.T) {
	s := setupAPI(t)
	b := fullyPaidBooking(t, s.engine)
	path := fmt.Sprintf("/api/v1/bookings/%d", b.ID)

	w, resp := s.request(t, http.MethodPost, path+"/completion", map[string]string{"side": "vendor"}, s.as("vendor"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, field(t, resp.Data, "booking", "vendor_completed"))
	assert.Equal(t, "fully_paid", field(t, resp.Data, "booking", "status"))

	w, resp = s.request(t, http.MethodPost, path+"/completion", map[string]string{"side": "vendor"}, s.as("vendor"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp.Data["changed"])

	w, resp = s.request(t, http.MethodPost, path+"/completion", map[string]string{"side": "couple"}, s.as("couple"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", field(t, resp.Data, "booking", "status"))
	assert.Equal(t, true, field(t, resp.Data, "booking", "fully_completed"))

	w, _ = s.request(t, http.MethodPost, path+"/transitions", map[string]string{"status": "disputed", "reason": "late album"}, s.as("couple"))
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = s.request(t, http.MethodPost, path+"/dispute/resolve", nil, s.as("vendor"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)

	w, resp = s.request(t, http.MethodPost, path+"/dispute/resolve", map[string]string{"reason": "album delivered"}, s.as("admin"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", field(t, resp.Data, "booking", "status"))
}

func TestAPI_ErrorMapping(t *testing.T) {
	s := setupAPI(t)
	fresh := createBooking(t, s.engine)
	accepted := acceptedBooking(t, s.engine)

	tests := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		auth    string
		status  int
		code    string
		current string
	}{
		{
			name: "not a party", method: http.MethodGet, path: fmt.Sprintf("/api/v1/bookings/%d", fresh.ID),
			auth: s.as("other_vendor"), status: http.StatusForbidden, code: "UNAUTHORIZED_ACTOR",
		},
		{
			name: "unknown booking", method: http.MethodGet, path: "/api/v1/bookings/9999",
			auth: s.as("admin"), status: http.StatusNotFound, code: "BOOKING_NOT_FOUND",
		},
		{
			name: "bad id", method: http.MethodGet, path: "/api/v1/bookings/abc",
			auth: s.as("admin"), status: http.StatusBadRequest, code: "INVALID_ID",
		},
		{
			name: "edge not in graph", method: http.MethodPost, path: fmt.Sprintf("/api/v1/bookings/%d/transitions", fresh.ID),
			body: map[string]string{"status": "in_progress"}, auth: s.as("couple"),
			status: http.StatusConflict, code: "INVALID_TRANSITION", current: "request",
		},
		{
			name: "unknown status", method: http.MethodPost, path: fmt.Sprintf("/api/v1/bookings/%d/transitions", fresh.ID),
			body: map[string]string{"status": "shipped"}, auth: s.as("couple"),
			status: http.StatusBadRequest, code: "INVALID_STATUS",
		},
		{
			name: "payment missing", method: http.MethodPost, path: fmt.Sprintf("/api/v1/bookings/%d/transitions", accepted.ID),
			body: map[string]string{"status": "downpayment"}, auth: s.as("admin"),
			status: http.StatusBadRequest, code: "PAYMENT_REQUIRED",
		},
		{
			name: "wrong actor for edge", method: http.MethodPost, path: fmt.Sprintf("/api/v1/bookings/%d/transitions", fresh.ID),
			body: map[string]string{"status": "quote_requested"}, auth: s.as("vendor"),
			status: http.StatusForbidden, code: "UNAUTHORIZED_ACTOR", current: "request",
		},
		{
			name: "stale version", method: http.MethodPost, path: fmt.Sprintf("/api/v1/bookings/%d/transitions", fresh.ID),
			body: map[string]interface{}{"status": "quote_requested", "if_version": 42}, auth: s.as("couple"),
			status: http.StatusConflict, code: "CONCURRENT_MODIFICATION", current: "request",
		},
		{
			name: "completion before payment", method: http.MethodPost, path: fmt.Sprintf("/api/v1/bookings/%d/completion", accepted.ID),
			body: map[string]string{"side": "vendor"}, auth: s.as("vendor"),
			status: http.StatusConflict, code: "INVALID_STATE", current: "quote_accepted",
		},
		{
			name: "unknown quote", method: http.MethodPost, path: "/api/v1/quotes/4242/accept",
			auth: s.as("couple"), status: http.StatusNotFound, code: "QUOTE_NOT_FOUND",
		},
		{
			name: "vendor cannot book", method: http.MethodPost, path: "/api/v1/bookings",
			body: map[string]interface{}{"vendor_id": testVendor, "service_name": "x"}, auth: s.as("vendor"),
			status: http.StatusForbidden, code: "FORBIDDEN",
		},
		{
			name: "missing token", method: http.MethodGet, path: fmt.Sprintf("/api/v1/bookings/%d", fresh.ID),
			status: http.StatusUnauthorized, code: "AUTH_HEADER_MISSING",
		},
		{
			name: "webhook without token", method: http.MethodPost, path: "/api/v1/webhooks/payments",
			body: map[string]interface{}{"booking_id": accepted.ID, "amount": 1, "payment_reference": "x"},
			status: http.StatusUnauthorized, code: "AUTH_MISSING",
		},
		{
			name: "webhook with jwt", method: http.MethodPost, path: "/api/v1/webhooks/payments",
			body: map[string]interface{}{"booking_id": accepted.ID, "amount": 1, "payment_reference": "x"},
			auth: s.as("admin"), status: http.StatusForbidden, code: "AUTH_INVALID",
		},
		{
			name: "webhook missing reference", method: http.MethodPost, path: "/api/v1/webhooks/payments",
			body: map[string]interface{}{"booking_id": accepted.ID, "amount": 1}, auth: testWebhookToken,
			status: http.StatusBadRequest, code: "VALIDATION_ERROR",
		},
		{
			name: "webhook before agreement", method: http.MethodPost, path: "/api/v1/webhooks/payments",
			body: map[string]interface{}{"booking_id": fresh.ID, "amount": 100, "payment_reference": "early"}, auth: testWebhookToken,
			status: http.StatusConflict, code: "INVALID_STATE", current: "request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := s.request(t, tt.method, tt.path, tt.body, tt.auth)

			assert.Equal(t, tt.status, w.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.current != "" {
				assert.Equal(t, tt.current, resp.Error.Details["current_status"])
			}
			if tt.code == "CONCURRENT_MODIFICATION" {
				assert.Equal(t, true, resp.Error.Details["retryable"])
			}
		})
	}

	assert.Equal(t, StatusRequest, reload(t, s.engine, fresh.ID).Status)
	assert.Equal(t, StatusQuoteAccepted, reload(t, s.engine, accepted.ID).Status)
}
