package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gatepass/visits/internal/db"
)

// Repository aggregates the notification persistence operations the
// engine and the HTTP surface need.
type Repository interface {
	Create(ctx context.Context, n *db.Notification) (*db.Notification, error)
	Get(ctx context.Context, id string) (*db.Notification, error)
	List(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*db.Notification, error)

	// Claim moves pending → in_flight so concurrent workers cannot pick
	// up the same row. False means another worker got there first.
	Claim(ctx context.Context, id string) (bool, error)
	ListPending(ctx context.Context, limit int) ([]string, error)
	MarkSent(ctx context.Context, id string, at time.Time, lastError *string) error
	MarkFailed(ctx context.Context, id, reason string) error

	ListRetryable(ctx context.Context, now time.Time, limit int) ([]string, error)
	Requeue(ctx context.Context, id string) (bool, error)

	MarkRead(ctx context.Context, id, readerID string, at time.Time) error
	MarkManyRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int64, error)
	Delete(ctx context.Context, id, recipientID string) (int64, error)
	DeleteForRecipient(ctx context.Context, recipientID string) (int64, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	CountUrgent(ctx context.Context, recipientID string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pgRepo struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepo{db: pool}
}

const notificationColumns = `
	id, recipient_id, recipient_role, building_id, title, message, type, category,
	priority, is_urgent, visit_id, visitor_id, actor_id,
	requires_action, action_type, action_deadline,
	delivery_status, channel_in_app, channel_email, channel_sms, channel_push,
	retry_count, max_retries, last_error, expires_at, is_persistent,
	read_at, read_by, sent_at, created_at, updated_at
`

func scanNotification(row interface{ Scan(dest ...any) error }) (*db.Notification, error) {
	var n db.Notification
	err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.RecipientRole,
		&n.BuildingID,
		&n.Title,
		&n.Message,
		&n.Type,
		&n.Category,
		&n.Priority,
		&n.IsUrgent,
		&n.VisitID,
		&n.VisitorID,
		&n.ActorID,
		&n.RequiresAction,
		&n.ActionType,
		&n.ActionDeadline,
		&n.DeliveryStatus,
		&n.ChannelInApp,
		&n.ChannelEmail,
		&n.ChannelSMS,
		&n.ChannelPush,
		&n.RetryCount,
		&n.MaxRetries,
		&n.LastError,
		&n.ExpiresAt,
		&n.IsPersistent,
		&n.ReadAt,
		&n.ReadBy,
		&n.SentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (p *pgRepo) Create(ctx context.Context, n *db.Notification) (*db.Notification, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO notifications (id, recipient_id, recipient_role, building_id, title, message,
			type, category, priority, is_urgent, visit_id, visitor_id, actor_id,
			requires_action, action_type, action_deadline, delivery_status,
			channel_in_app, channel_email, channel_sms, channel_push,
			retry_count, max_retries, expires_at, is_persistent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, 'pending', $17, $18, $19, $20, 0, $21, $22, $23, now(), now())
		RETURNING `+notificationColumns+`
	`, n.ID, n.RecipientID, n.RecipientRole, n.BuildingID, n.Title, n.Message,
		n.Type, n.Category, n.Priority, n.IsUrgent, n.VisitID, n.VisitorID, n.ActorID,
		n.RequiresAction, n.ActionType, n.ActionDeadline,
		n.ChannelInApp, n.ChannelEmail, n.ChannelSMS, n.ChannelPush,
		n.MaxRetries, n.ExpiresAt.UTC(), n.IsPersistent)
	return scanNotification(row)
}

func (p *pgRepo) Get(ctx context.Context, id string) (*db.Notification, error) {
	row := p.db.QueryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE id = $1
	`, id)
	return scanNotification(row)
}

func (p *pgRepo) List(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*db.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1
	`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += `
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := p.db.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*db.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (p *pgRepo) Claim(ctx context.Context, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		UPDATE notifications
		SET delivery_status = 'in_flight', updated_at = now()
		WHERE id = $1 AND delivery_status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *pgRepo) ListPending(ctx context.Context, limit int) ([]string, error) {
	return p.listIDs(ctx, `
		SELECT id FROM notifications
		WHERE delivery_status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
}

func (p *pgRepo) MarkSent(ctx context.Context, id string, at time.Time, lastError *string) error {
	_, err := p.db.Exec(ctx, `
		UPDATE notifications
		SET delivery_status = 'sent', sent_at = $2, last_error = $3, updated_at = now()
		WHERE id = $1 AND delivery_status = 'in_flight'
	`, id, at.UTC(), lastError)
	return err
}

func (p *pgRepo) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := p.db.Exec(ctx, `
		UPDATE notifications
		SET delivery_status = 'failed', last_error = $2, updated_at = now()
		WHERE id = $1 AND delivery_status IN ('pending', 'in_flight')
	`, id, reason)
	return err
}

func (p *pgRepo) ListRetryable(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return p.listIDs(ctx, `
		SELECT id FROM notifications
		WHERE delivery_status = 'failed'
			AND retry_count < max_retries
			AND expires_at > $2
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit, now.UTC())
}

// Requeue moves a failed notification back to pending while spending one
// retry. The retry-count guard repeats here so the budget holds even if
// two retry workers race.
func (p *pgRepo) Requeue(ctx context.Context, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		UPDATE notifications
		SET delivery_status = 'pending', retry_count = retry_count + 1, updated_at = now()
		WHERE id = $1 AND delivery_status = 'failed' AND retry_count < max_retries
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *pgRepo) MarkRead(ctx context.Context, id, readerID string, at time.Time) error {
	_, err := p.db.Exec(ctx, `
		UPDATE notifications
		SET delivery_status = 'read', read_at = $3, read_by = $2, updated_at = now()
		WHERE id = $1 AND read_at IS NULL
	`, id, readerID, at.UTC())
	return err
}

func (p *pgRepo) MarkManyRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, `
		UPDATE notifications
		SET delivery_status = 'read', read_at = $3, read_by = $1, updated_at = now()
		WHERE recipient_id = $1 AND id = ANY($2) AND read_at IS NULL
	`, recipientID, ids, at.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgRepo) Delete(ctx context.Context, id, recipientID string) (int64, error) {
	tag, err := p.db.Exec(ctx, `
		DELETE FROM notifications WHERE id = $1 AND recipient_id = $2
	`, id, recipientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgRepo) DeleteForRecipient(ctx context.Context, recipientID string) (int64, error) {
	tag, err := p.db.Exec(ctx, `
		DELETE FROM notifications WHERE recipient_id = $1
	`, recipientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := p.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND read_at IS NULL
	`, recipientID).Scan(&count)
	return count, err
}

func (p *pgRepo) CountUrgent(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := p.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND is_urgent = true AND read_at IS NULL
	`, recipientID).Scan(&count)
	return count, err
}

func (p *pgRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE expires_at < $1 AND is_persistent = false
	`, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgRepo) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
