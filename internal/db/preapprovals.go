package db

import (
	"context"
	"time"
)

const preApprovalColumns = `
	id, building_id, resident_id, visitor_name, visitor_phone, visitor_email,
	purpose, expected_date, expected_time, flat_number, status,
	decided_by, decided_at, decision_notes, visit_id,
	token_data, token_string, token_image, token_issued_at, token_expires_at,
	deleted_at, deleted_by, created_at, updated_at
`

func scanPreApproval(row interface{ Scan(dest ...any) error }) (PreApproval, error) {
	var p PreApproval
	err := row.Scan(
		&p.ID,
		&p.BuildingID,
		&p.ResidentID,
		&p.VisitorName,
		&p.VisitorPhone,
		&p.VisitorEmail,
		&p.Purpose,
		&p.ExpectedDate,
		&p.ExpectedTime,
		&p.FlatNumber,
		&p.Status,
		&p.DecidedBy,
		&p.DecidedAt,
		&p.DecisionNotes,
		&p.VisitID,
		&p.TokenData,
		&p.TokenString,
		&p.TokenImage,
		&p.TokenIssuedAt,
		&p.TokenExpiresAt,
		&p.DeletedAt,
		&p.DeletedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

type CreatePreApprovalParams struct {
	ID           string
	BuildingID   string
	ResidentID   string
	VisitorName  string
	VisitorPhone string
	VisitorEmail string
	Purpose      string
	ExpectedDate string
	ExpectedTime string
	FlatNumber   string
}

func (q *Queries) CreatePreApproval(ctx context.Context, arg CreatePreApprovalParams) (PreApproval, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO pre_approvals (id, building_id, resident_id, visitor_name, visitor_phone,
			visitor_email, purpose, expected_date, expected_time, flat_number, status,
			token_data, token_string, token_image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending', '{}', '', '', now(), now())
		RETURNING `+preApprovalColumns+`
	`, arg.ID, arg.BuildingID, arg.ResidentID, arg.VisitorName, arg.VisitorPhone,
		arg.VisitorEmail, arg.Purpose, arg.ExpectedDate, arg.ExpectedTime, arg.FlatNumber)
	return scanPreApproval(row)
}

func (q *Queries) GetPreApproval(ctx context.Context, id string) (PreApproval, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+preApprovalColumns+`
		FROM pre_approvals
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanPreApproval(row)
}

func (q *Queries) listPreApprovals(ctx context.Context, where string, arg any, limit, offset int) ([]PreApproval, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+preApprovalColumns+`
		FROM pre_approvals
		WHERE `+where+` AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, arg, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PreApproval
	for rows.Next() {
		p, err := scanPreApproval(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (q *Queries) ListPreApprovalsByResident(ctx context.Context, residentID string, limit, offset int) ([]PreApproval, error) {
	return q.listPreApprovals(ctx, `resident_id = $1`, residentID, limit, offset)
}

func (q *Queries) ListPreApprovalsByBuilding(ctx context.Context, buildingID string, limit, offset int) ([]PreApproval, error) {
	return q.listPreApprovals(ctx, `building_id = $1`, buildingID, limit, offset)
}

type DecidePreApprovalParams struct {
	ID        string
	Status    PreApprovalStatus
	DecidedBy string
	DecidedAt time.Time
	Notes     *string
}

// DecidePreApproval is the compare-and-swap on the pending status. A zero
// row count means the request was already decided or deleted.
func (q *Queries) DecidePreApproval(ctx context.Context, arg DecidePreApprovalParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE pre_approvals
		SET status = $2, decided_by = $3, decided_at = $4, decision_notes = $5, updated_at = now()
		WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL
	`, arg.ID, arg.Status, arg.DecidedBy, arg.DecidedAt.UTC(), arg.Notes)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type UpdatePreApprovalParams struct {
	ID           string
	VisitorName  string
	VisitorPhone string
	VisitorEmail string
	Purpose      string
	ExpectedDate string
	ExpectedTime string
	FlatNumber   string
}

func (q *Queries) UpdatePreApproval(ctx context.Context, arg UpdatePreApprovalParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE pre_approvals
		SET visitor_name = $2, visitor_phone = $3, visitor_email = $4, purpose = $5,
			expected_date = $6, expected_time = $7, flat_number = $8, updated_at = now()
		WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL
	`, arg.ID, arg.VisitorName, arg.VisitorPhone, arg.VisitorEmail, arg.Purpose,
		arg.ExpectedDate, arg.ExpectedTime, arg.FlatNumber)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) SoftDeletePreApproval(ctx context.Context, id, actorID string, at time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE pre_approvals
		SET deleted_at = $3, deleted_by = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL
	`, id, actorID, at.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) LinkPreApprovalVisit(ctx context.Context, id, visitID string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE pre_approvals SET visit_id = $2, updated_at = now() WHERE id = $1
	`, id, visitID)
	return err
}

type SetPreApprovalTokenParams struct {
	ID        string
	Data      []byte
	Token     string
	Image     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (q *Queries) SetPreApprovalToken(ctx context.Context, arg SetPreApprovalTokenParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE pre_approvals
		SET token_data = $2, token_string = $3, token_image = $4,
			token_issued_at = $5, token_expires_at = $6, updated_at = now()
		WHERE id = $1
	`, arg.ID, arg.Data, arg.Token, arg.Image, arg.IssuedAt.UTC(), arg.ExpiresAt.UTC())
	return err
}

type ArchivePassParams struct {
	ID                string
	PreApprovalID     string
	IssuedUnderStatus ApprovalStatus
	TokenData         []byte
	TokenString       string
	TokenImage        string
	IssuedAt          time.Time
}

// ArchivePass appends the superseded token to the append-only history.
func (q *Queries) ArchivePass(ctx context.Context, arg ArchivePassParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO pre_approval_tokens (id, pre_approval_id, issued_under_status,
			token_data, token_string, token_image, issued_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, arg.ID, arg.PreApprovalID, arg.IssuedUnderStatus, arg.TokenData,
		arg.TokenString, arg.TokenImage, arg.IssuedAt.UTC())
	return err
}

func (q *Queries) ListPassHistory(ctx context.Context, preApprovalID string) ([]PassArchive, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, pre_approval_id, issued_under_status, token_data, token_string,
			token_image, issued_at, archived_at
		FROM pre_approval_tokens
		WHERE pre_approval_id = $1
		ORDER BY issued_at ASC
	`, preApprovalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PassArchive
	for rows.Next() {
		var p PassArchive
		if err := rows.Scan(&p.ID, &p.PreApprovalID, &p.IssuedUnderStatus, &p.TokenData,
			&p.TokenString, &p.TokenImage, &p.IssuedAt, &p.ArchivedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
