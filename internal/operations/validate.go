package operations

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"gatepass/visits/internal/db"
)

// Verdict is the gate's answer to a scanned pass.
type Verdict struct {
	Valid          bool              `json:"valid"`
	Reason         string            `json:"reason,omitempty"`
	VisitID        string            `json:"visit_id,omitempty"`
	PreApprovalID  string            `json:"pre_approval_id,omitempty"`
	ApprovalStatus db.ApprovalStatus `json:"approval_status,omitempty"`
}

const (
	ReasonMalformed      = "malformed"
	ReasonExpired        = "expired"
	ReasonUnknownVisit   = "unknown_visit"
	ReasonUnknownRequest = "unknown_pre_approval"
	ReasonStatusMismatch = "status_mismatch"
)

// ValidateToken verifies a scanned pass: signature, expiry, that the
// referenced records still exist, and that the live approval status
// matches the one embedded at issuance. A mismatch means the pass was
// rotated out and is rejected even before its clock expiry.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (Verdict, error) {
	payload, err := s.Issuer.Parse(tokenString)
	if err != nil {
		return Verdict{Valid: false, Reason: ReasonMalformed}, nil
	}
	verdict := Verdict{
		VisitID:        payload.VisitID,
		PreApprovalID:  payload.PreApprovalID,
		ApprovalStatus: payload.ApprovalStatus,
	}
	if payload.Expired(time.Now()) {
		verdict.Reason = ReasonExpired
		return verdict, nil
	}

	visit, err := s.Store.Queries.GetVisit(ctx, payload.VisitID)
	if errors.Is(err, pgx.ErrNoRows) {
		verdict.Reason = ReasonUnknownVisit
		return verdict, nil
	}
	if err != nil {
		return Verdict{}, err
	}
	if _, err := s.Store.Queries.GetPreApproval(ctx, payload.PreApprovalID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			verdict.Reason = ReasonUnknownRequest
			return verdict, nil
		}
		return Verdict{}, err
	}

	if visit.ApprovalStatus != payload.ApprovalStatus {
		verdict.Reason = ReasonStatusMismatch
		return verdict, nil
	}

	verdict.Valid = true
	return verdict, nil
}
