package db

import (
	"context"
	"time"
)

const visitColumns = `
	id, building_id, visitor_id, host_id, pre_approval_id, purpose, visit_type,
	approval_status, status, token_string, token_expires_at,
	check_in_at, check_out_at, checked_in_by, checked_out_by,
	entry_photo_ref, exit_photo_ref, cancel_reason, duration_minutes,
	active, created_at, updated_at
`

func scanVisit(row interface{ Scan(dest ...any) error }) (Visit, error) {
	var v Visit
	err := row.Scan(
		&v.ID,
		&v.BuildingID,
		&v.VisitorID,
		&v.HostID,
		&v.PreApprovalID,
		&v.Purpose,
		&v.VisitType,
		&v.ApprovalStatus,
		&v.Status,
		&v.TokenString,
		&v.TokenExpiresAt,
		&v.CheckInAt,
		&v.CheckOutAt,
		&v.CheckedInBy,
		&v.CheckedOutBy,
		&v.EntryPhotoRef,
		&v.ExitPhotoRef,
		&v.CancelReason,
		&v.DurationMinutes,
		&v.Active,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}

type CreateVisitParams struct {
	ID            string
	BuildingID    string
	VisitorID     string
	HostID        string
	PreApprovalID *string
	Purpose       string
	VisitType     VisitType
}

func (q *Queries) CreateVisit(ctx context.Context, arg CreateVisitParams) (Visit, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO visits (id, building_id, visitor_id, host_id, pre_approval_id, purpose,
			visit_type, approval_status, status, token_string, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', 'scheduled', '', true, now(), now())
		RETURNING `+visitColumns+`
	`, arg.ID, arg.BuildingID, arg.VisitorID, arg.HostID, arg.PreApprovalID, arg.Purpose, arg.VisitType)
	return scanVisit(row)
}

func (q *Queries) GetVisit(ctx context.Context, id string) (Visit, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE id = $1
	`, id)
	return scanVisit(row)
}

func (q *Queries) GetVisitByToken(ctx context.Context, tokenString string) (Visit, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE token_string = $1
	`, tokenString)
	return scanVisit(row)
}

type SetVisitDecisionParams struct {
	ID             string
	ApprovalStatus ApprovalStatus
	Status         VisitStatus
	TokenString    string
	TokenExpiresAt time.Time
	CancelReason   *string
}

// SetVisitDecision mirrors a pre-approval decision onto the visit together
// with the freshly rotated token.
func (q *Queries) SetVisitDecision(ctx context.Context, arg SetVisitDecisionParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE visits
		SET approval_status = $2, status = $3, token_string = $4, token_expires_at = $5,
			cancel_reason = COALESCE($6, cancel_reason), updated_at = now()
		WHERE id = $1
	`, arg.ID, arg.ApprovalStatus, arg.Status, arg.TokenString, arg.TokenExpiresAt.UTC(), arg.CancelReason)
	return err
}

type SetVisitTokenParams struct {
	ID             string
	TokenString    string
	TokenExpiresAt time.Time
}

func (q *Queries) SetVisitToken(ctx context.Context, arg SetVisitTokenParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE visits
		SET token_string = $2, token_expires_at = $3, updated_at = now()
		WHERE id = $1
	`, arg.ID, arg.TokenString, arg.TokenExpiresAt.UTC())
	return err
}

type CheckInVisitParams struct {
	ID            string
	At            time.Time
	VerifierID    string
	EntryPhotoRef *string
}

// CheckInVisit re-checks every gate condition inside the update so two
// concurrent check-ins cannot both succeed.
func (q *Queries) CheckInVisit(ctx context.Context, arg CheckInVisitParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE visits
		SET status = 'in_progress', check_in_at = $2, checked_in_by = $3,
			entry_photo_ref = $4, updated_at = now()
		WHERE id = $1 AND status = 'scheduled' AND approval_status = 'approved'
			AND token_expires_at > $2
	`, arg.ID, arg.At.UTC(), arg.VerifierID, arg.EntryPhotoRef)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type CheckOutVisitParams struct {
	ID              string
	At              time.Time
	VerifierID      *string
	ExitPhotoRef    *string
	DurationMinutes int
}

func (q *Queries) CheckOutVisit(ctx context.Context, arg CheckOutVisitParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE visits
		SET status = 'completed', check_out_at = $2, checked_out_by = $3,
			exit_photo_ref = $4, duration_minutes = $5, updated_at = now()
		WHERE id = $1 AND status = 'in_progress' AND check_out_at IS NULL
	`, arg.ID, arg.At.UTC(), arg.VerifierID, arg.ExitPhotoRef, arg.DurationMinutes)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type CancelVisitParams struct {
	ID     string
	Reason *string
}

func (q *Queries) CancelVisit(ctx context.Context, arg CancelVisitParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE visits
		SET status = 'cancelled', cancel_reason = $2, active = false, updated_at = now()
		WHERE id = $1 AND status IN ('scheduled', 'in_progress')
	`, arg.ID, arg.Reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type ExpiredVisit struct {
	ID         string
	HostID     string
	BuildingID string
	VisitorID  string
}

// ExpireScheduledVisits moves scheduled visits whose token window elapsed
// into the terminal expired state and returns them for notification.
func (q *Queries) ExpireScheduledVisits(ctx context.Context, now time.Time, limit int) ([]ExpiredVisit, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE visits
		SET status = 'expired', active = false, updated_at = now()
		WHERE id IN (
			SELECT id FROM visits
			WHERE status = 'scheduled' AND token_expires_at IS NOT NULL AND token_expires_at < $1
			LIMIT $2
		)
		RETURNING id, host_id, building_id, visitor_id
	`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []ExpiredVisit
	for rows.Next() {
		var v ExpiredVisit
		if err := rows.Scan(&v.ID, &v.HostID, &v.BuildingID, &v.VisitorID); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}
