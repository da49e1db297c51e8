// Package notify creates notification records for workflow transitions
// and pushes them through the configured delivery channels with bounded
// retries. Delivery is best effort and never blocks or rolls back the
// transition that produced the record.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"gatepass/visits/internal/db"
)

const (
	DefaultTTL        = 7 * 24 * time.Hour
	DefaultMaxRetries = 3
	DefaultSendTime   = 15 * time.Second
	DefaultBatchSize  = 50
)

var (
	ErrRecipientMissing = errors.New("recipient not found")
	ErrInvalidInput     = errors.New("invalid notification input")
)

// ExistsFunc reports whether a referenced user exists. Wired to the
// building directory in production, stubbed in tests.
type ExistsFunc func(ctx context.Context, userID string) (bool, error)

type Engine struct {
	repo        Repository
	registry    *Registry
	userExists  ExistsFunc
	ttl         time.Duration
	maxRetries  int
	sendTimeout time.Duration
	batchSize   int
	now         func() time.Time
}

type Options struct {
	TTL         time.Duration
	MaxRetries  int
	SendTimeout time.Duration
	BatchSize   int
	Now         func() time.Time
}

func NewEngine(repo Repository, registry *Registry, userExists ExistsFunc, opts Options) *Engine {
	e := &Engine{
		repo:        repo,
		registry:    registry,
		userExists:  userExists,
		ttl:         opts.TTL,
		maxRetries:  opts.MaxRetries,
		sendTimeout: opts.SendTimeout,
		batchSize:   opts.BatchSize,
		now:         opts.Now,
	}
	if e.ttl <= 0 {
		e.ttl = DefaultTTL
	}
	if e.maxRetries <= 0 {
		e.maxRetries = DefaultMaxRetries
	}
	if e.sendTimeout <= 0 {
		e.sendTimeout = DefaultSendTime
	}
	if e.batchSize <= 0 {
		e.batchSize = DefaultBatchSize
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

type CreateParams struct {
	RecipientID    string
	RecipientRole  string
	BuildingID     string
	Title          string
	Message        string
	Type           string
	Category       string
	Priority       db.Priority
	VisitID        *string
	VisitorID      *string
	ActorID        *string
	RequiresAction bool
	ActionType     *string
	ActionDeadline *time.Time
	Channels       []string
	IsPersistent   bool
}

// Create validates and persists a pending notification. It does not
// attempt delivery; the sweep picks the record up.
func (e *Engine) Create(ctx context.Context, arg CreateParams) (*db.Notification, error) {
	if arg.RecipientID == "" || arg.Title == "" || arg.Message == "" {
		return nil, ErrInvalidInput
	}
	if e.userExists != nil {
		ok, err := e.userExists(ctx, arg.RecipientID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRecipientMissing
		}
	}

	priority := arg.Priority
	if priority == "" {
		priority = db.PriorityNormal
	}
	now := e.now().UTC()

	n := &db.Notification{
		ID:             uuid.New().String(),
		RecipientID:    arg.RecipientID,
		RecipientRole:  arg.RecipientRole,
		BuildingID:     arg.BuildingID,
		Title:          arg.Title,
		Message:        arg.Message,
		Type:           arg.Type,
		Category:       arg.Category,
		Priority:       priority,
		IsUrgent:       priority == db.PriorityUrgent || priority == db.PriorityCritical,
		VisitID:        arg.VisitID,
		VisitorID:      arg.VisitorID,
		ActorID:        arg.ActorID,
		RequiresAction: arg.RequiresAction,
		ActionType:     arg.ActionType,
		ActionDeadline: arg.ActionDeadline,
		MaxRetries:     e.maxRetries,
		ExpiresAt:      now.Add(e.ttl),
		IsPersistent:   arg.IsPersistent,
	}

	channels := arg.Channels
	if len(channels) == 0 {
		channels = []string{ChannelInApp}
	}
	for _, ch := range channels {
		switch ch {
		case ChannelInApp:
			n.ChannelInApp = true
		case ChannelEmail:
			n.ChannelEmail = true
		case ChannelSMS:
			n.ChannelSMS = true
		case ChannelPush:
			n.ChannelPush = true
		default:
			return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, ch)
		}
	}

	return e.repo.Create(ctx, n)
}

// Deliver claims one notification and fans it out to its enabled
// channels. In-app always succeeds by existence; a failing external
// channel is recorded but only fails the notification when every enabled
// channel failed.
func (e *Engine) Deliver(ctx context.Context, id string) error {
	claimed, err := e.repo.Claim(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	n, err := e.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	var failures []string
	successes := 0
	for _, name := range EnabledChannels(n) {
		ch, ok := e.registry.Get(name)
		if !ok {
			failures = append(failures, name+": channel not configured")
			channelSends.WithLabelValues(name, "failure").Inc()
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
		err := ch.Send(sendCtx, n)
		cancel()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			channelSends.WithLabelValues(name, "failure").Inc()
			log.Printf("notify: channel %s failed for %s: %v", name, n.ID, err)
			continue
		}
		successes++
		channelSends.WithLabelValues(name, "success").Inc()
	}

	if successes == 0 {
		notificationsFailed.Inc()
		return e.repo.MarkFailed(ctx, id, joinFailures(failures))
	}

	var lastError *string
	if len(failures) > 0 {
		msg := joinFailures(failures)
		lastError = &msg
	}
	notificationsDelivered.Inc()
	return e.repo.MarkSent(ctx, id, e.now(), lastError)
}

// SweepPending processes one bounded batch of pending notifications. A
// failure on one record never stops the rest of the batch.
func (e *Engine) SweepPending(ctx context.Context) (int, error) {
	ids, err := e.repo.ListPending(ctx, e.batchSize)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, id := range ids {
		if err := e.Deliver(ctx, id); err != nil {
			log.Printf("notify: deliver %s failed: %v", id, err)
			if markErr := e.repo.MarkFailed(ctx, id, err.Error()); markErr != nil {
				log.Printf("notify: mark failed %s: %v", id, markErr)
			}
			continue
		}
		processed++
	}
	return processed, nil
}

// RetryFailed requeues failed notifications that still have retry budget
// and are unexpired, then attempts delivery again. A record at its budget
// stays failed for good.
func (e *Engine) RetryFailed(ctx context.Context) (int, error) {
	ids, err := e.repo.ListRetryable(ctx, e.now(), e.batchSize)
	if err != nil {
		return 0, err
	}
	retried := 0
	for _, id := range ids {
		requeued, err := e.repo.Requeue(ctx, id)
		if err != nil {
			log.Printf("notify: requeue %s failed: %v", id, err)
			continue
		}
		if !requeued {
			continue
		}
		if err := e.Deliver(ctx, id); err != nil {
			log.Printf("notify: retry deliver %s failed: %v", id, err)
			if markErr := e.repo.MarkFailed(ctx, id, err.Error()); markErr != nil {
				log.Printf("notify: mark failed %s: %v", id, markErr)
			}
			continue
		}
		retried++
	}
	return retried, nil
}

// MarkAsRead is idempotent: the first call stamps reader and timestamp,
// later calls return the record unchanged.
func (e *Engine) MarkAsRead(ctx context.Context, id, readerID string) (*db.Notification, error) {
	n, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.ReadAt != nil {
		return n, nil
	}
	if err := e.repo.MarkRead(ctx, id, readerID, e.now()); err != nil {
		return nil, err
	}
	return e.repo.Get(ctx, id)
}

// CleanupExpired removes non-persistent notifications past their expiry,
// regardless of read state.
func (e *Engine) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, err := e.repo.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		notificationsExpired.Add(float64(deleted))
	}
	return deleted, nil
}

// Exhausted reports whether a notification has used its whole retry
// budget and is permanently failed.
func Exhausted(n *db.Notification) bool {
	return n.DeliveryStatus == db.NotificationFailed && n.RetryCount >= n.MaxRetries
}

func joinFailures(failures []string) string {
	if len(failures) == 0 {
		return "all channels failed"
	}
	return strings.Join(failures, "; ")
}
