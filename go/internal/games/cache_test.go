package games_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/mcdev12/fanzone/go/internal/games"
	"github.com/mcdev12/fanzone/go/internal/models"
	"github.com/mcdev12/fanzone/go/internal/testkit"
)

type fakeRedis struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return redis.NewStringResult("", errors.New("redis down"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.([]byte)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestCachedRepositoryReadThrough(t *testing.T) {
	ctx := context.Background()
	store := testkit.NewGameStore(clockwork.NewFakeClock())
	game := store.AddGame("Packers", "Bears")
	rdb := newFakeRedis()
	repo := games.NewCachedRepository(store, rdb)

	for i := 0; i < 3; i++ {
		got, err := repo.GetGame(ctx, game.ID)
		if err != nil {
			t.Fatalf("GetGame: %v", err)
		}
		if got.ID != game.ID {
			t.Fatalf("got game %s, want %s", got.ID, game.ID)
		}
	}
	if store.Gets() != 1 {
		t.Fatalf("expected a single store read, got %d", store.Gets())
	}
	if ttl := rdb.ttls["fanzone:game:"+game.ID.String()]; ttl != games.LiveGameTTL {
		t.Fatalf("live game cached for %s, want %s", ttl, games.LiveGameTTL)
	}
}

func TestCachedRepositoryPatchRefreshesEntry(t *testing.T) {
	ctx := context.Background()
	store := testkit.NewGameStore(clockwork.NewFakeClock())
	game := store.AddGame("Packers", "Bears")
	rdb := newFakeRedis()
	repo := games.NewCachedRepository(store, rdb)

	if _, err := repo.GetGame(ctx, game.ID); err != nil {
		t.Fatalf("GetGame: %v", err)
	}

	pos, final := 80, true
	if _, err := repo.PatchGame(ctx, game.ID, games.GamePatch{BallPosition: &pos, IsFinal: &final}); err != nil {
		t.Fatalf("PatchGame: %v", err)
	}

	var cached models.Game
	if err := json.Unmarshal(rdb.data["fanzone:game:"+game.ID.String()], &cached); err != nil {
		t.Fatalf("decode cached game: %v", err)
	}
	if cached.BallPosition != 80 || !cached.IsFinal || cached.IsLive {
		t.Fatalf("cache not refreshed: %+v", cached)
	}
	if ttl := rdb.ttls["fanzone:game:"+game.ID.String()]; ttl != games.FinalGameTTL {
		t.Fatalf("final game cached for %s, want %s", ttl, games.FinalGameTTL)
	}
}

func TestCachedRepositoryPatchFailureInvalidates(t *testing.T) {
	ctx := context.Background()
	store := testkit.NewGameStore(clockwork.NewFakeClock())
	game := store.AddGame("Packers", "Bears")
	rdb := newFakeRedis()
	repo := games.NewCachedRepository(store, rdb)

	if _, err := repo.GetGame(ctx, game.ID); err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	store.FailNextPatch(errors.New("write timeout"))
	pos := 10
	if _, err := repo.PatchGame(ctx, game.ID, games.GamePatch{BallPosition: &pos}); err == nil {
		t.Fatalf("expected patch failure")
	}
	if _, ok := rdb.data["fanzone:game:"+game.ID.String()]; ok {
		t.Fatalf("expected cache entry to be dropped after failed patch")
	}
}

func TestCachedRepositoryFallsBackWhenRedisFails(t *testing.T) {
	ctx := context.Background()
	store := testkit.NewGameStore(clockwork.NewFakeClock())
	game := store.AddGame("Lions", "Vikings")
	rdb := newFakeRedis()
	rdb.failGet = true
	repo := games.NewCachedRepository(store, rdb)

	got, err := repo.GetGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if got.Team1 != "Lions" {
		t.Fatalf("unexpected game: %+v", got)
	}
}
