package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
)

type memStore struct {
	mu     sync.Mutex
	events []Event
	sent   map[uuid.UUID]bool
}

func newMemStore(events ...Event) *memStore {
	return &memStore{events: events, sent: make(map[uuid.UUID]bool)}
}

func (s *memStore) FetchByID(_ context.Context, id uuid.UUID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.ID == id && !s.sent[id] {
			ev := ev
			return &ev, nil
		}
	}
	return nil, apperrors.NotFound("outbox event", id)
}

func (s *memStore) FetchUnsent(_ context.Context, limit int32) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if !s.sent[ev.ID] && int32(len(out)) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memStore) MarkSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id] = true
	return nil
}

func (s *memStore) isSent(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[id]
}

type memPublisher struct {
	mu        sync.Mutex
	failures  int
	published []Event
	notify    chan Event
}

func (p *memPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("nats: no responders available for request")
	}
	p.published = append(p.published, ev)
	if p.notify != nil {
		p.notify <- ev
	}
	return nil
}

func (p *memPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type fakeNotifications struct {
	ch     chan *pq.Notification
	closed chan struct{}
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{ch: make(chan *pq.Notification, 4), closed: make(chan struct{})}
}

func (f *fakeNotifications) NotificationChannel() <-chan *pq.Notification { return f.ch }
func (f *fakeNotifications) Ping() error                                  { return nil }
func (f *fakeNotifications) Close() error {
	close(f.closed)
	return nil
}

func testEvent(eventType string) Event {
	return Event{
		ID:          uuid.New(),
		AggregateID: uuid.New(),
		EventType:   eventType,
		Payload:     json.RawMessage(`{"fields":["ballPosition"]}`),
		CreatedAt:   time.Date(2025, 9, 14, 20, 25, 0, 0, time.UTC),
	}
}

func TestProcessUnsentPublishesOldestFirst(t *testing.T) {
	events := []Event{testEvent(EventGameUpdated), testEvent(EventChatMessagePosted), testEvent(EventGameCreated)}
	store := newMemStore(events...)
	pub := &memPublisher{}
	cfg := DefaultListenerConfig()
	cfg.BatchSize = 2
	l := NewListener(store, newFakeNotifications(), pub, cfg, clockwork.NewFakeClock())

	n, err := l.processUnsent(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("processUnsent = %d, %v; want 2", n, err)
	}
	n, err = l.processUnsent(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("second batch = %d, %v; want 1", n, err)
	}

	var got []uuid.UUID
	for _, ev := range pub.published {
		got = append(got, ev.ID)
	}
	want := []uuid.UUID{events[0].ID, events[1].ID, events[2].ID}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("publish order (-want +got):\n%s", diff)
	}
}

func TestFailedPublishLeavesRowUnsent(t *testing.T) {
	ev := testEvent(EventGameUpdated)
	store := newMemStore(ev)
	pub := &memPublisher{failures: 1}
	cfg := DefaultListenerConfig()
	cfg.MaxRetries = 0
	l := NewListener(store, newFakeNotifications(), pub, cfg, clockwork.NewFakeClock())

	if n, _ := l.processUnsent(context.Background()); n != 0 {
		t.Fatalf("delivered %d, want 0", n)
	}
	if store.isSent(ev.ID) {
		t.Fatalf("row marked sent without a publish")
	}

	if n, _ := l.processUnsent(context.Background()); n != 1 || !store.isSent(ev.ID) {
		t.Fatalf("next sweep should deliver the row")
	}
}

func TestPublishWithRetryBacksOff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pub := &memPublisher{failures: 2}
	cfg := DefaultListenerConfig()
	l := NewListener(newMemStore(), newFakeNotifications(), pub, cfg, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.publishWithRetry(ctx, testEvent(EventGameUpdated)) }()

	for attempt := 1; attempt <= 2; attempt++ {
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatalf("waiting for retry %d: %v", attempt, err)
		}
		clock.Advance(cfg.RetryDelay * time.Duration(attempt))
	}

	if err := <-done; err != nil {
		t.Fatalf("publishWithRetry: %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("published %d times, want 1", pub.count())
	}
}

func TestPublishWithRetryGivesUp(t *testing.T) {
	pub := &memPublisher{failures: 10}
	cfg := DefaultListenerConfig()
	cfg.MaxRetries = 0
	l := NewListener(newMemStore(), newFakeNotifications(), pub, cfg, clockwork.NewFakeClock())

	if err := l.publishWithRetry(context.Background(), testEvent(EventGameUpdated)); err == nil {
		t.Fatalf("expected failure after exhausting retries")
	}
}

func TestHandleNotification(t *testing.T) {
	ev := testEvent(EventChatMessagePosted)
	store := newMemStore(ev)
	pub := &memPublisher{}
	l := NewListener(store, newFakeNotifications(), pub, DefaultListenerConfig(), clockwork.NewFakeClock())
	ctx := context.Background()

	if err := l.handleNotification(ctx, "not-a-uuid"); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	if err := l.handleNotification(ctx, ev.ID.String()); err != nil {
		t.Fatalf("handleNotification: %v", err)
	}
	if !store.isSent(ev.ID) || pub.count() != 1 {
		t.Fatalf("event not delivered")
	}

	// the fallback sweep already delivered it
	if err := l.handleNotification(ctx, ev.ID.String()); err != nil {
		t.Fatalf("already-sent row should be skipped, got %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("already-sent row was published again")
	}
}

func TestStartDeliversNotifiedEvents(t *testing.T) {
	backlog := testEvent(EventGameCreated)
	fresh := testEvent(EventGameUpdated)
	store := newMemStore(backlog)
	pub := &memPublisher{notify: make(chan Event, 4)}
	notes := newFakeNotifications()
	l := NewListener(store, notes, pub, DefaultListenerConfig(), clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	expect := func(want uuid.UUID) {
		t.Helper()
		select {
		case ev := <-pub.notify:
			if ev.ID != want {
				t.Fatalf("published %s, want %s", ev.ID, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	expect(backlog.ID)

	store.mu.Lock()
	store.events = append(store.events, fresh)
	store.mu.Unlock()
	notes.ch <- &pq.Notification{Channel: "live_outbox_events", Extra: fresh.ID.String()}
	expect(fresh.ID)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v", err)
	}
	select {
	case <-notes.closed:
	default:
		t.Fatalf("notifications not closed on shutdown")
	}
}

func TestBuildMessage(t *testing.T) {
	ev := testEvent(EventGameUpdated)
	msg, err := buildMessage("games.events", ev)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	if msg.Subject != "games.events.game.updated" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if msg.Header.Get("Event-ID") != ev.ID.String() || msg.Header.Get("Aggregate-ID") != ev.AggregateID.String() {
		t.Fatalf("headers = %v", msg.Header)
	}

	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	want := Envelope{
		EventID:     ev.ID.String(),
		EventType:   EventGameUpdated,
		AggregateID: ev.AggregateID.String(),
		Timestamp:   ev.CreatedAt,
		Payload:     json.RawMessage(`{"fields":["ballPosition"]}`),
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Fatalf("envelope (-want +got):\n%s", diff)
	}
}

func TestStreamConfigCoversPrefix(t *testing.T) {
	sc := streamConfig(DefaultJetStreamConfig())
	if sc.Name != "GAME_EVENTS" || len(sc.Subjects) != 1 || sc.Subjects[0] != "games.events.>" {
		t.Fatalf("stream config = %+v", sc)
	}
}
