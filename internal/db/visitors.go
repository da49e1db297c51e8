package db

import (
	"context"
	"time"
)

const visitorColumns = `
	id, building_id, name, phone, email, category, approval_status,
	blacklisted, total_visits, last_visit_at, active, created_at, updated_at
`

func scanVisitor(row interface{ Scan(dest ...any) error }) (Visitor, error) {
	var v Visitor
	err := row.Scan(
		&v.ID,
		&v.BuildingID,
		&v.Name,
		&v.Phone,
		&v.Email,
		&v.Category,
		&v.ApprovalStatus,
		&v.Blacklisted,
		&v.TotalVisits,
		&v.LastVisitAt,
		&v.Active,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}

func (q *Queries) GetVisitor(ctx context.Context, id string) (Visitor, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors
		WHERE id = $1
	`, id)
	return scanVisitor(row)
}

func (q *Queries) GetVisitorByPhone(ctx context.Context, buildingID, phone string) (Visitor, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors
		WHERE building_id = $1 AND phone = $2
	`, buildingID, phone)
	return scanVisitor(row)
}

type CreateVisitorParams struct {
	ID         string
	BuildingID string
	Name       string
	Phone      string
	Email      string
	Category   string
}

func (q *Queries) CreateVisitor(ctx context.Context, arg CreateVisitorParams) (Visitor, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO visitors (id, building_id, name, phone, email, category, approval_status,
			blacklisted, total_visits, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', false, 0, true, now(), now())
		RETURNING `+visitorColumns+`
	`, arg.ID, arg.BuildingID, arg.Name, arg.Phone, arg.Email, arg.Category)
	return scanVisitor(row)
}

func (q *Queries) SetVisitorApproval(ctx context.Context, id string, status VisitorApproval) error {
	_, err := q.db.Exec(ctx, `
		UPDATE visitors SET approval_status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	return err
}

// RecordVisitorVisit bumps the visit counters after a completed visit.
func (q *Queries) RecordVisitorVisit(ctx context.Context, id string, at time.Time) error {
	_, err := q.db.Exec(ctx, `
		UPDATE visitors
		SET total_visits = total_visits + 1, last_visit_at = $2, updated_at = now()
		WHERE id = $1
	`, id, at.UTC())
	return err
}

func (q *Queries) DeactivateVisitor(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE visitors SET active = false, updated_at = now() WHERE id = $1
	`, id)
	return err
}
