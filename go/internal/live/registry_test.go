package live

import (
	"testing"

	"github.com/google/uuid"

	"github.com/mcdev12/fanzone/go/internal/testkit"
)

func TestRegistrySubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry()
	key := uuid.New()
	sub := testkit.NewRecorder("a")

	r.Subscribe(key, sub)
	r.Subscribe(key, sub)
	if got := r.Count(key); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}

	if !r.Unsubscribe(key, sub) {
		t.Fatalf("expected first unsubscribe to remove")
	}
	if r.Unsubscribe(key, sub) {
		t.Fatalf("second unsubscribe should be a no-op")
	}
	if got := r.Count(key); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
	if stats := r.Stats(); stats.ActiveChannels != 0 {
		t.Fatalf("empty channel should be dropped: %+v", stats)
	}
}

func TestRegistryBroadcastExcludesSender(t *testing.T) {
	r := NewRegistry()
	key := uuid.New()
	sender, viewer := testkit.NewRecorder("sender"), testkit.NewRecorder("viewer")
	r.Subscribe(key, sender)
	r.Subscribe(key, viewer)

	if n := r.Broadcast(key, BallMoveFrame(key, 61), sender); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if len(sender.Frames()) != 0 {
		t.Fatalf("sender should not get its own drag")
	}
	if got := viewer.Last("ball_move"); got == nil || got["ballPosition"] != float64(61) {
		t.Fatalf("viewer frame = %v", got)
	}

	other := uuid.New()
	r.Broadcast(other, BallMoveFrame(other, 5), nil)
	if len(viewer.Frames()) != 1 {
		t.Fatalf("frames leaked across channels")
	}
}

func TestRegistryEvictsSlowSubscriber(t *testing.T) {
	r := NewRegistry()
	key := uuid.New()
	slow := testkit.NewBoundedRecorder("slow", 1)
	fast := testkit.NewRecorder("fast")
	r.Subscribe(key, slow)
	r.Subscribe(key, fast)

	r.Broadcast(key, BallMoveFrame(key, 10), nil)
	r.Broadcast(key, BallMoveFrame(key, 11), nil)

	if !slow.Closed() {
		t.Fatalf("slow subscriber should be closed")
	}
	if got := r.Count(key); got != 1 {
		t.Fatalf("Count = %d, want 1 after eviction", got)
	}
	if len(fast.Frames()) != 2 {
		t.Fatalf("fast subscriber must keep receiving, got %d frames", len(fast.Frames()))
	}
}

func TestRegistryStats(t *testing.T) {
	r := NewRegistry()
	g1, g2 := uuid.New(), uuid.New()
	r.Subscribe(g1, testkit.NewRecorder("a"))
	r.Subscribe(g1, testkit.NewRecorder("b"))
	r.Subscribe(g2, testkit.NewRecorder("c"))
	r.Subscribe(GlobalChannel, testkit.NewRecorder("d"))

	stats := r.Stats()
	if stats.TotalSubscribers != 4 || stats.ActiveChannels != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Channels[g1.String()] != 2 {
		t.Fatalf("unexpected per-channel count: %+v", stats.Channels)
	}
}
