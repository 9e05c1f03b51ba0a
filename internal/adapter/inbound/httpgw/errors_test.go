package httpgw

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestWriteBlocked_IncludesEnforcementMode(t *testing.T) {
	rec := httptest.NewRecorder()
	writeBlocked(rec, "critical", "block")

	if rec.Code != 403 {
		t.Fatalf("got status %d, want 403", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["enforcement_mode"] != "block" {
		t.Errorf("enforcement_mode = %v, want block", body["enforcement_mode"])
	}
	if body["blocked"] != true {
		t.Errorf("blocked = %v, want true", body["blocked"])
	}
	if body["risk_category"] != "critical" {
		t.Errorf("risk_category = %v, want critical", body["risk_category"])
	}
}

func TestWriteFailClosed_Writes503(t *testing.T) {
	rec := httptest.NewRecorder()
	writeFailClosed(rec, "classifier timed out")

	if rec.Code != 503 {
		t.Fatalf("got status %d, want 503", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["error"] != "fail_closed" {
		t.Errorf("error = %v, want fail_closed", body["error"])
	}
}
