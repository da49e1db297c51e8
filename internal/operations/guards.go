package operations

import (
	"math"
	"time"

	"gatepass/visits/internal/db"
)

// Guard reasons surfaced in precondition_failed details.
const (
	GuardNotApproved  = "not_approved"
	GuardNotScheduled = "not_scheduled"
	GuardTokenExpired = "token_expired"
	GuardNotInside    = "not_in_progress"
	GuardAlreadyOut   = "already_checked_out"
)

// CheckInGuard evaluates every admission condition and returns the first
// failing one, or "" when the visit may check in.
func CheckInGuard(v db.Visit, now time.Time) string {
	if v.ApprovalStatus != db.ApprovalApproved {
		return GuardNotApproved
	}
	if v.Status != db.VisitScheduled {
		return GuardNotScheduled
	}
	if v.TokenExpiresAt == nil || !now.UTC().Before(v.TokenExpiresAt.UTC()) {
		return GuardTokenExpired
	}
	return ""
}

func CheckOutGuard(v db.Visit) string {
	if v.Status != db.VisitInProgress {
		return GuardNotInside
	}
	if v.CheckOutAt != nil {
		return GuardAlreadyOut
	}
	return ""
}

// DurationMinutes is the completed-visit duration, rounded to the
// nearest minute.
func DurationMinutes(checkIn, checkOut time.Time) int {
	return int(math.Round(checkOut.Sub(checkIn).Minutes()))
}
