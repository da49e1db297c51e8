package operations

import (
	"testing"
	"time"

	"gatepass/visits/internal/db"
)

func approvedScheduledVisit(now time.Time) db.Visit {
	expires := now.Add(time.Hour)
	return db.Visit{
		ID:             "visit-1",
		ApprovalStatus: db.ApprovalApproved,
		Status:         db.VisitScheduled,
		TokenExpiresAt: &expires,
	}
}

func TestCheckInGuard(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	if reason := CheckInGuard(approvedScheduledVisit(now), now); reason != "" {
		t.Fatalf("expected check-in to pass, got %s", reason)
	}

	v := approvedScheduledVisit(now)
	v.ApprovalStatus = db.ApprovalPending
	if reason := CheckInGuard(v, now); reason != GuardNotApproved {
		t.Fatalf("expected %s, got %s", GuardNotApproved, reason)
	}

	v = approvedScheduledVisit(now)
	v.Status = db.VisitInProgress
	if reason := CheckInGuard(v, now); reason != GuardNotScheduled {
		t.Fatalf("expected %s, got %s", GuardNotScheduled, reason)
	}

	v = approvedScheduledVisit(now)
	past := now.Add(-time.Minute)
	v.TokenExpiresAt = &past
	if reason := CheckInGuard(v, now); reason != GuardTokenExpired {
		t.Fatalf("expected %s, got %s", GuardTokenExpired, reason)
	}

	v = approvedScheduledVisit(now)
	v.TokenExpiresAt = nil
	if reason := CheckInGuard(v, now); reason != GuardTokenExpired {
		t.Fatalf("expected missing expiry to read as %s, got %s", GuardTokenExpired, reason)
	}

	// Exact expiry instant is already too late.
	v = approvedScheduledVisit(now)
	v.TokenExpiresAt = &now
	if reason := CheckInGuard(v, now); reason != GuardTokenExpired {
		t.Fatalf("expected boundary to read as %s, got %s", GuardTokenExpired, reason)
	}
}

func TestCheckOutGuard(t *testing.T) {
	checkIn := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	v := db.Visit{Status: db.VisitInProgress, CheckInAt: &checkIn}
	if reason := CheckOutGuard(v); reason != "" {
		t.Fatalf("expected check-out to pass, got %s", reason)
	}

	v = db.Visit{Status: db.VisitScheduled}
	if reason := CheckOutGuard(v); reason != GuardNotInside {
		t.Fatalf("expected %s, got %s", GuardNotInside, reason)
	}

	out := checkIn.Add(time.Hour)
	v = db.Visit{Status: db.VisitInProgress, CheckInAt: &checkIn, CheckOutAt: &out}
	if reason := CheckOutGuard(v); reason != GuardAlreadyOut {
		t.Fatalf("expected %s, got %s", GuardAlreadyOut, reason)
	}
}

func TestDurationMinutes(t *testing.T) {
	in := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	cases := []struct {
		out      time.Time
		expected int
	}{
		{in.Add(30 * time.Minute), 30},
		{in.Add(90*time.Second + 30*time.Second), 2},
		{in.Add(29 * time.Second), 0},
		{in.Add(2*time.Hour + 31*time.Minute), 151},
	}
	for _, tc := range cases {
		if got := DurationMinutes(in, tc.out); got != tc.expected {
			t.Fatalf("duration to %v: expected %d got %d", tc.out, tc.expected, got)
		}
	}
}
