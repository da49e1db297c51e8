package token

import (
	"strings"
	"testing"
	"time"

	"gatepass/visits/internal/db"
)

func testPayload() Payload {
	return Payload{
		PreApprovalID:  "pre-1",
		VisitID:        "visit-1",
		VisitorName:    "Asha Rao",
		VisitorPhone:   "+919876500001",
		Purpose:        "delivery",
		ExpectedDate:   "2026-03-10",
		FlatNumber:     "B-204",
		ResidentID:     "user-1",
		BuildingID:     "bldg-1",
		ApprovalStatus: db.ApprovalApproved,
	}
}

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	pass, err := issuer.Issue(testPayload(), now)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if pass.String == "" || pass.Image == "" || len(pass.Data) == 0 {
		t.Fatalf("expected signed string, image and payload data")
	}
	if !pass.IssuedAt.Equal(now) {
		t.Fatalf("expected issued at %v, got %v", now, pass.IssuedAt)
	}
	if !pass.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(time.Hour), pass.ExpiresAt)
	}

	parsed, err := issuer.Parse(pass.String)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if parsed.Kind != KindGatePass {
		t.Fatalf("expected kind %s, got %s", KindGatePass, parsed.Kind)
	}
	if parsed.VisitID != "visit-1" || parsed.PreApprovalID != "pre-1" {
		t.Fatalf("payload references lost: %+v", parsed)
	}
	if parsed.ApprovalStatus != db.ApprovalApproved {
		t.Fatalf("expected embedded status approved, got %s", parsed.ApprovalStatus)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer("secret-a", time.Hour)
	pass, err := issuer.Issue(testPayload(), time.Now())
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	other := NewIssuer("secret-b", time.Hour)
	if _, err := other.Parse(pass.String); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestParseRejectsTampering(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	pass, err := issuer.Issue(testPayload(), time.Now())
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	parts := strings.Split(pass.String, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three JWT segments")
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := issuer.Parse(tampered); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed for tampered token, got %v", err)
	}
	if _, err := issuer.Parse("not-a-token"); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed for garbage, got %v", err)
	}
}

func TestExpiredTokenStillParses(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Minute)
	issuedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	pass, err := issuer.Issue(testPayload(), issuedAt)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	// Signature verification and expiry are separate concerns so the gate
	// can report "expired" rather than "malformed".
	parsed, err := issuer.Parse(pass.String)
	if err != nil {
		t.Fatalf("expected expired token to parse, got %v", err)
	}
	if !parsed.Expired(issuedAt.Add(2 * time.Minute)) {
		t.Fatalf("expected payload to be expired")
	}
	if parsed.Expired(issuedAt.Add(30 * time.Second)) {
		t.Fatalf("expected payload to still be valid")
	}
}

func TestIssueDoesNotMutateInput(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	payload := testPayload()
	if _, err := issuer.Issue(payload, time.Now()); err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if payload.Kind != "" || payload.IssuedAt != 0 || payload.ExpiresAt != 0 {
		t.Fatalf("input payload was mutated: %+v", payload)
	}
}
