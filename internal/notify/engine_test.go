package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"gatepass/visits/internal/db"
)

// memRepo is an in-memory Repository mirroring the conditional-update
// semantics of the real one.
type memRepo struct {
	mu      sync.Mutex
	records map[string]*db.Notification
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]*db.Notification{}}
}

func (m *memRepo) Create(ctx context.Context, n *db.Notification) (*db.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *n
	copied.DeliveryStatus = db.NotificationPending
	copied.CreatedAt = time.Now()
	m.records[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (m *memRepo) Get(ctx context.Context, id string) (*db.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	out := *n
	return &out, nil
}

func (m *memRepo) List(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*db.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*db.Notification
	for _, n := range m.records {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		out := *n
		result = append(result, &out)
	}
	return result, nil
}

func (m *memRepo) Claim(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok || n.DeliveryStatus != db.NotificationPending {
		return false, nil
	}
	n.DeliveryStatus = db.NotificationInFlight
	return true, nil
}

func (m *memRepo) ListPending(ctx context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, n := range m.records {
		if n.DeliveryStatus == db.NotificationPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memRepo) MarkSent(ctx context.Context, id string, at time.Time, lastError *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok || n.DeliveryStatus != db.NotificationInFlight {
		return nil
	}
	n.DeliveryStatus = db.NotificationSent
	n.SentAt = &at
	n.LastError = lastError
	return nil
}

func (m *memRepo) MarkFailed(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok {
		return nil
	}
	if n.DeliveryStatus != db.NotificationPending && n.DeliveryStatus != db.NotificationInFlight {
		return nil
	}
	n.DeliveryStatus = db.NotificationFailed
	n.LastError = &reason
	return nil
}

func (m *memRepo) ListRetryable(ctx context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, n := range m.records {
		if n.DeliveryStatus == db.NotificationFailed && n.RetryCount < n.MaxRetries && n.ExpiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memRepo) Requeue(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok || n.DeliveryStatus != db.NotificationFailed || n.RetryCount >= n.MaxRetries {
		return false, nil
	}
	n.DeliveryStatus = db.NotificationPending
	n.RetryCount++
	return true, nil
}

func (m *memRepo) MarkRead(ctx context.Context, id, readerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok || n.ReadAt != nil {
		return nil
	}
	n.DeliveryStatus = db.NotificationRead
	n.ReadAt = &at
	n.ReadBy = &readerID
	return nil
}

func (m *memRepo) MarkManyRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, id := range ids {
		n, ok := m.records[id]
		if !ok || n.RecipientID != recipientID || n.ReadAt != nil {
			continue
		}
		n.DeliveryStatus = db.NotificationRead
		n.ReadAt = &at
		n.ReadBy = &recipientID
		updated++
	}
	return updated, nil
}

func (m *memRepo) Delete(ctx context.Context, id, recipientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok || n.RecipientID != recipientID {
		return 0, nil
	}
	delete(m.records, id)
	return 1, nil
}

func (m *memRepo) DeleteForRecipient(ctx context.Context, recipientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, n := range m.records {
		if n.RecipientID == recipientID {
			delete(m.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.records {
		if n.RecipientID == recipientID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) CountUrgent(ctx context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.records {
		if n.RecipientID == recipientID && n.IsUrgent && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, n := range m.records {
		if !n.IsPersistent && n.ExpiresAt.Before(now) {
			delete(m.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// fakeChannel succeeds or fails on demand and counts sends.
type fakeChannel struct {
	name  string
	fail  bool
	sends int
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, n *db.Notification) error {
	f.sends++
	if f.fail {
		return errors.New("provider unavailable")
	}
	return nil
}

func userAlwaysExists(ctx context.Context, userID string) (bool, error) {
	return true, nil
}

func newTestEngine(repo Repository, channels ...Channel) *Engine {
	return NewEngine(repo, NewRegistry(channels...), userAlwaysExists, Options{})
}

func createTestNotification(t *testing.T, engine *Engine, channels ...string) *db.Notification {
	t.Helper()
	n, err := engine.Create(context.Background(), CreateParams{
		RecipientID: "user-1",
		BuildingID:  "bldg-1",
		Title:       "Visitor approved",
		Message:     "Your visitor has been approved",
		Type:        "visit_approved",
		Channels:    channels,
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	return n
}

func TestCreateDefaults(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo, NewInAppChannel())

	n := createTestNotification(t, engine)
	if n.DeliveryStatus != db.NotificationPending {
		t.Fatalf("expected pending, got %s", n.DeliveryStatus)
	}
	if !n.ChannelInApp || n.ChannelEmail || n.ChannelSMS || n.ChannelPush {
		t.Fatalf("expected in-app only by default")
	}
	if n.Priority != db.PriorityNormal {
		t.Fatalf("expected normal priority, got %s", n.Priority)
	}
	if n.IsUrgent {
		t.Fatalf("normal priority is not urgent")
	}
	if n.MaxRetries != DefaultMaxRetries {
		t.Fatalf("expected max retries %d, got %d", DefaultMaxRetries, n.MaxRetries)
	}
}

func TestCreateUrgentPriority(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo, NewInAppChannel())

	n, err := engine.Create(context.Background(), CreateParams{
		RecipientID: "user-1",
		Title:       "Emergency",
		Message:     "Gate alarm triggered",
		Priority:    db.PriorityUrgent,
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if !n.IsUrgent {
		t.Fatalf("urgent priority should flag is_urgent")
	}
}

func TestCreateValidation(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo, NewInAppChannel())

	if _, err := engine.Create(context.Background(), CreateParams{Title: "x", Message: "y"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing recipient, got %v", err)
	}
	if _, err := engine.Create(context.Background(), CreateParams{
		RecipientID: "user-1", Title: "x", Message: "y", Channels: []string{"pigeon"},
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown channel, got %v", err)
	}

	missing := NewEngine(repo, NewRegistry(), func(ctx context.Context, userID string) (bool, error) {
		return false, nil
	}, Options{})
	if _, err := missing.Create(context.Background(), CreateParams{
		RecipientID: "ghost", Title: "x", Message: "y",
	}); !errors.Is(err, ErrRecipientMissing) {
		t.Fatalf("expected ErrRecipientMissing, got %v", err)
	}
}

func TestDeliverFanOut(t *testing.T) {
	repo := newMemRepo()
	email := &fakeChannel{name: ChannelEmail}
	engine := newTestEngine(repo, NewInAppChannel(), email)

	n := createTestNotification(t, engine, ChannelInApp, ChannelEmail)
	if err := engine.Deliver(context.Background(), n.ID); err != nil {
		t.Fatalf("deliver error: %v", err)
	}
	if email.sends != 1 {
		t.Fatalf("expected one email send, got %d", email.sends)
	}
	got, _ := repo.Get(context.Background(), n.ID)
	if got.DeliveryStatus != db.NotificationSent {
		t.Fatalf("expected sent, got %s", got.DeliveryStatus)
	}
	if got.SentAt == nil {
		t.Fatalf("expected sent_at stamp")
	}
}

func TestDeliverPartialFailureStillSends(t *testing.T) {
	repo := newMemRepo()
	email := &fakeChannel{name: ChannelEmail, fail: true}
	engine := newTestEngine(repo, NewInAppChannel(), email)

	n := createTestNotification(t, engine, ChannelInApp, ChannelEmail)
	if err := engine.Deliver(context.Background(), n.ID); err != nil {
		t.Fatalf("deliver error: %v", err)
	}
	got, _ := repo.Get(context.Background(), n.ID)
	if got.DeliveryStatus != db.NotificationSent {
		t.Fatalf("one succeeding channel should still mark sent, got %s", got.DeliveryStatus)
	}
	if got.LastError == nil {
		t.Fatalf("expected the email failure to be recorded")
	}
}

func TestDeliverAllChannelsFailed(t *testing.T) {
	repo := newMemRepo()
	email := &fakeChannel{name: ChannelEmail, fail: true}
	engine := newTestEngine(repo, email)

	n, err := engine.Create(context.Background(), CreateParams{
		RecipientID: "user-1",
		Title:       "t",
		Message:     "m",
		Channels:    []string{ChannelEmail},
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := engine.Deliver(context.Background(), n.ID); err != nil {
		t.Fatalf("deliver error: %v", err)
	}
	got, _ := repo.Get(context.Background(), n.ID)
	if got.DeliveryStatus != db.NotificationFailed {
		t.Fatalf("expected failed, got %s", got.DeliveryStatus)
	}
}

func TestDeliverOnlyOnce(t *testing.T) {
	repo := newMemRepo()
	email := &fakeChannel{name: ChannelEmail}
	engine := newTestEngine(repo, NewInAppChannel(), email)

	n := createTestNotification(t, engine, ChannelInApp, ChannelEmail)
	if err := engine.Deliver(context.Background(), n.ID); err != nil {
		t.Fatalf("deliver error: %v", err)
	}
	// A second worker loses the claim and sends nothing.
	if err := engine.Deliver(context.Background(), n.ID); err != nil {
		t.Fatalf("second deliver error: %v", err)
	}
	if email.sends != 1 {
		t.Fatalf("expected exactly one send, got %d", email.sends)
	}
}

func TestRetryBudgetIsBounded(t *testing.T) {
	repo := newMemRepo()
	email := &fakeChannel{name: ChannelEmail, fail: true}
	engine := newTestEngine(repo, email)

	n, err := engine.Create(context.Background(), CreateParams{
		RecipientID: "user-1",
		Title:       "t",
		Message:     "m",
		Channels:    []string{ChannelEmail},
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := engine.Deliver(context.Background(), n.ID); err != nil {
		t.Fatalf("deliver error: %v", err)
	}

	for i := 0; i < DefaultMaxRetries+3; i++ {
		if _, err := engine.RetryFailed(context.Background()); err != nil {
			t.Fatalf("retry error: %v", err)
		}
	}

	got, _ := repo.Get(context.Background(), n.ID)
	if got.RetryCount != DefaultMaxRetries {
		t.Fatalf("expected retry count capped at %d, got %d", DefaultMaxRetries, got.RetryCount)
	}
	if got.DeliveryStatus != db.NotificationFailed {
		t.Fatalf("expected permanently failed, got %s", got.DeliveryStatus)
	}
	if !Exhausted(got) {
		t.Fatalf("expected notification to be exhausted")
	}
	// Initial attempt plus one per retry.
	if email.sends != 1+DefaultMaxRetries {
		t.Fatalf("expected %d sends, got %d", 1+DefaultMaxRetries, email.sends)
	}
}

func TestRetryRecovers(t *testing.T) {
	repo := newMemRepo()
	email := &fakeChannel{name: ChannelEmail, fail: true}
	engine := newTestEngine(repo, email)

	n, err := engine.Create(context.Background(), CreateParams{
		RecipientID: "user-1",
		Title:       "t",
		Message:     "m",
		Channels:    []string{ChannelEmail},
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := engine.Deliver(context.Background(), n.ID); err != nil {
		t.Fatalf("deliver error: %v", err)
	}

	email.fail = false
	if _, err := engine.RetryFailed(context.Background()); err != nil {
		t.Fatalf("retry error: %v", err)
	}
	got, _ := repo.Get(context.Background(), n.ID)
	if got.DeliveryStatus != db.NotificationSent {
		t.Fatalf("expected sent after recovery, got %s", got.DeliveryStatus)
	}
	if got.RetryCount != 1 {
		t.Fatalf("expected one spent retry, got %d", got.RetryCount)
	}
}

func TestSweepPending(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo, NewInAppChannel())

	first := createTestNotification(t, engine)
	second := createTestNotification(t, engine)

	processed, err := engine.SweepPending(context.Background())
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected two processed, got %d", processed)
	}
	for _, id := range []string{first.ID, second.ID} {
		got, _ := repo.Get(context.Background(), id)
		if got.DeliveryStatus != db.NotificationSent {
			t.Fatalf("expected %s sent, got %s", id, got.DeliveryStatus)
		}
	}
}

func TestMarkAsReadIdempotent(t *testing.T) {
	repo := newMemRepo()
	engine := newTestEngine(repo, NewInAppChannel())

	n := createTestNotification(t, engine)
	read, err := engine.MarkAsRead(context.Background(), n.ID, "user-1")
	if err != nil {
		t.Fatalf("mark read error: %v", err)
	}
	if read.ReadAt == nil || read.ReadBy == nil || *read.ReadBy != "user-1" {
		t.Fatalf("expected read stamp, got %+v", read)
	}
	firstReadAt := *read.ReadAt

	again, err := engine.MarkAsRead(context.Background(), n.ID, "user-2")
	if err != nil {
		t.Fatalf("second mark read error: %v", err)
	}
	if again.ReadAt == nil || !again.ReadAt.Equal(firstReadAt) {
		t.Fatalf("expected read timestamp to be stable")
	}
	if *again.ReadBy != "user-1" {
		t.Fatalf("expected original reader to stick, got %s", *again.ReadBy)
	}
}

func TestCleanupExpired(t *testing.T) {
	repo := newMemRepo()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(repo, NewRegistry(NewInAppChannel()), userAlwaysExists, Options{
		TTL: time.Hour,
		Now: func() time.Time { return now },
	})

	expired := createTestNotification(t, engine)
	persistent, err := engine.Create(context.Background(), CreateParams{
		RecipientID:  "user-1",
		Title:        "keep",
		Message:      "stays",
		IsPersistent: true,
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	later := NewEngine(repo, NewRegistry(NewInAppChannel()), userAlwaysExists, Options{
		TTL: time.Hour,
		Now: func() time.Time { return now.Add(2 * time.Hour) },
	})
	deleted, err := later.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("cleanup error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected one deletion, got %d", deleted)
	}
	if _, err := repo.Get(context.Background(), expired.ID); err == nil {
		t.Fatalf("expected expired notification to be gone")
	}
	if _, err := repo.Get(context.Background(), persistent.ID); err != nil {
		t.Fatalf("expected persistent notification to survive: %v", err)
	}
}

func TestEnabledChannelsOrder(t *testing.T) {
	n := &db.Notification{ChannelInApp: true, ChannelEmail: true, ChannelPush: true}
	got := EnabledChannels(n)
	expected := []string{ChannelInApp, ChannelEmail, ChannelPush}
	if len(got) != len(expected) {
		t.Fatalf("expected %d channels, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("expected %s at %d, got %s", expected[i], i, got[i])
		}
	}
}
