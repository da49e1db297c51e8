package operations

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"gatepass/visits/internal/db"
)

func (s *Service) GetVisit(ctx context.Context, id string) (*db.Visit, error) {
	visit, err := s.Store.Queries.GetVisit(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coded(ErrVisitNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

// GetVisitByToken resolves a scanned pass to its visit, consulting the
// redis index first and falling back to the table.
func (s *Service) GetVisitByToken(ctx context.Context, tokenString string) (*db.Visit, error) {
	if s.Index != nil {
		visitID, found, err := s.Index.Lookup(ctx, tokenString)
		if err != nil {
			log.Printf("operations: token index lookup failed: %v", err)
		} else if found {
			return s.GetVisit(ctx, visitID)
		}
	}
	visit, err := s.Store.Queries.GetVisitByToken(ctx, tokenString)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coded(ErrVisitNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

// CheckIn admits the visitor: only an approved, scheduled visit with an
// unexpired token may enter. The update re-checks the guards so a
// concurrent check-in loses cleanly.
func (s *Service) CheckIn(ctx context.Context, visitID, verifierID string, entryPhotoRef *string) (*db.Visit, error) {
	visit, err := s.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if _, ok, err := s.Directory.FindUser(ctx, verifierID); err != nil {
		return nil, err
	} else if !ok {
		return nil, coded(ErrHostNotFound)
	}

	now := time.Now()
	if reason := CheckInGuard(*visit, now); reason != "" {
		return nil, codedDetail(ErrPreconditionFailed, reason)
	}

	affected, err := s.Store.Queries.CheckInVisit(ctx, db.CheckInVisitParams{
		ID:            visit.ID,
		At:            now,
		VerifierID:    verifierID,
		EntryPhotoRef: entryPhotoRef,
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, codedDetail(ErrPreconditionFailed, "state_changed")
	}

	visitsCheckedIn.Inc()
	updated, err := s.GetVisit(ctx, visit.ID)
	if err != nil {
		return nil, err
	}
	s.notifyVisitEvent(ctx, updated, &verifierID, "visit_checked_in", "Visitor checked in")
	return updated, nil
}

// CheckOut completes an in-progress visit and records the rounded
// duration in minutes.
func (s *Service) CheckOut(ctx context.Context, visitID string, verifierID, exitPhotoRef *string) (*db.Visit, error) {
	visit, err := s.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if reason := CheckOutGuard(*visit); reason != "" {
		return nil, codedDetail(ErrPreconditionFailed, reason)
	}
	if visit.CheckInAt == nil {
		return nil, codedDetail(ErrPreconditionFailed, GuardNotInside)
	}

	now := time.Now()
	err = s.Store.WithTx(ctx, func(q *db.Queries) error {
		affected, err := q.CheckOutVisit(ctx, db.CheckOutVisitParams{
			ID:              visit.ID,
			At:              now,
			VerifierID:      verifierID,
			ExitPhotoRef:    exitPhotoRef,
			DurationMinutes: DurationMinutes(*visit.CheckInAt, now),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return codedDetail(ErrPreconditionFailed, "state_changed")
		}
		return q.RecordVisitorVisit(ctx, visit.VisitorID, now)
	})
	if err != nil {
		return nil, err
	}

	visitsCheckedOut.Inc()
	updated, err := s.GetVisit(ctx, visit.ID)
	if err != nil {
		return nil, err
	}
	s.notifyVisitEvent(ctx, updated, verifierID, "visit_checked_out", "Visitor checked out")
	return updated, nil
}

// Cancel ends a visit from scheduled or in-progress. Terminal states
// reject with invalid_state.
func (s *Service) Cancel(ctx context.Context, visitID, actorID string, reason *string) (*db.Visit, error) {
	visit, err := s.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !db.CanTransition(visit.Status, db.VisitCancelled) {
		return nil, coded(ErrInvalidState)
	}

	affected, err := s.Store.Queries.CancelVisit(ctx, db.CancelVisitParams{
		ID:     visit.ID,
		Reason: reason,
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, coded(ErrInvalidState)
	}

	updated, err := s.GetVisit(ctx, visit.ID)
	if err != nil {
		return nil, err
	}
	s.notifyVisitEvent(ctx, updated, &actorID, "visit_cancelled", "Visit cancelled")
	return updated, nil
}

// ExpireVisits moves scheduled visits whose token window elapsed into the
// terminal expired state. Called by the expiry job.
func (s *Service) ExpireVisits(ctx context.Context, now time.Time, limit int) (int, error) {
	expired, err := s.Store.Queries.ExpireScheduledVisits(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	for _, v := range expired {
		s.notifyExpired(ctx, v)
	}
	return len(expired), nil
}
