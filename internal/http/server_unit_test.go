package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gatepass/visits/internal/notify"
	"gatepass/visits/internal/operations"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":     "abc",
		"bearer abc":     "abc",
		"Bearer  spaced": "spaced",
		"":               "",
		"Basic abc":      "",
		"Bearer":         "",
	}
	for header, expected := range cases {
		if got := bearerToken(header); got != expected {
			t.Fatalf("header %q: expected %q got %q", header, expected, got)
		}
	}
}

func TestPagination(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/preapprovals?limit=10&offset=5", nil)
	limit, offset := pagination(r)
	if limit != 10 || offset != 5 {
		t.Fatalf("expected 10/5, got %d/%d", limit, offset)
	}

	r = httptest.NewRequest(http.MethodGet, "/preapprovals", nil)
	limit, offset = pagination(r)
	if limit != 50 || offset != 0 {
		t.Fatalf("expected defaults 50/0, got %d/%d", limit, offset)
	}

	r = httptest.NewRequest(http.MethodGet, "/preapprovals?limit=1000", nil)
	limit, _ = pagination(r)
	if limit != 200 {
		t.Fatalf("expected limit cap 200, got %d", limit)
	}

	r = httptest.NewRequest(http.MethodGet, "/preapprovals?limit=abc&offset=-2", nil)
	limit, offset = pagination(r)
	if limit != 50 || offset != 0 {
		t.Fatalf("expected bad values to fall back, got %d/%d", limit, offset)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/preapprovals",
		strings.NewReader(`{"visitor_name":"x","surprise":true}`))
	var req submitPreApprovalRequest
	if err := decodeJSON(r, &req); err == nil {
		t.Fatalf("expected unknown field to error")
	}
}

func TestWriteOperationErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&operations.Error{Code: operations.ErrVisitNotFound}, http.StatusNotFound, "visit_not_found"},
		{&operations.Error{Code: operations.ErrPreApprovalNotFound}, http.StatusNotFound, "pre_approval_not_found"},
		{&operations.Error{Code: operations.ErrInvalidState}, http.StatusConflict, "invalid_state"},
		{&operations.Error{Code: operations.ErrPreconditionFailed, Detail: "token_expired"}, http.StatusPreconditionFailed, "precondition_failed:token_expired"},
		{&operations.Error{Code: operations.ErrMissingFields}, http.StatusBadRequest, "missing_fields"},
		{&operations.Error{Code: operations.ErrServerError}, http.StatusInternalServerError, "server_error"},
		{notify.ErrRecipientMissing, http.StatusNotFound, "recipient_not_found"},
		{notify.ErrInvalidInput, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeOperationError(rec, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("error %v: expected status %d got %d", tc.err, tc.status, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("body decode error: %v", err)
		}
		if body["error"] != tc.code {
			t.Fatalf("error %v: expected code %s got %s", tc.err, tc.code, body["error"])
		}
	}
}
