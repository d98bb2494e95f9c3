package models

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/dormstack/dormops_client/config"
)

// failingDraftStore fails every write; reads succeed empty.
type failingDraftStore struct {
	putErr error
}

func (s *failingDraftStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}
func (s *failingDraftStore) Put(context.Context, string, []byte) error { return s.putErr }
func (s *failingDraftStore) Delete(context.Context, string) error      { return nil }
func (s *failingDraftStore) Keys(context.Context) ([]string, error)    { return nil, nil }

func TestDraftCacheSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewDraftCache(NewMemDraftStore(), nil, config.GetLogger())

	entries := []DraftEntry{
		{Id: "R-2", Time: 2000, ActionType: ActionTypeDisposeExpired, ActionRecordId: 8},
		{Id: "R-1", Time: 1000, ActionType: ActionTypePass, ActionRecordId: 7},
	}
	if err := cache.Save(ctx, "sess-1", entries); err != nil {
		t.Fatalf("save: %v", err)
	}
	if cache.LastSavedAt() == nil {
		t.Fatal("LastSavedAt not set after successful save")
	}

	loaded, err := cache.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Id != "R-2" || loaded[1].Id != "R-1" {
		t.Fatalf("order or content lost: %+v", loaded)
	}
}

func TestDraftCacheLoadMissingIsEmpty(t *testing.T) {
	cache := NewDraftCache(NewMemDraftStore(), nil, config.GetLogger())
	loaded, err := cache.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty list, got %+v", loaded)
	}
}

func TestDraftCachePromotesSecondaryHit(t *testing.T) {
	ctx := context.Background()
	primary := NewMemDraftStore()
	secondary := NewMemDraftStore()
	key := DraftKey("sess-1")
	_ = secondary.Put(ctx, key, []byte(`[{"id":"R-1","time":1,"action":"PASS"}]`))

	cache := NewDraftCache(primary, secondary, config.GetLogger())
	loaded, err := cache.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Id != "R-1" {
		t.Fatalf("secondary hit not returned: %+v", loaded)
	}

	// Promoted into primary, removed from secondary.
	if _, found, _ := primary.Get(ctx, key); !found {
		t.Fatal("collection not promoted into primary store")
	}
	if _, found, _ := secondary.Get(ctx, key); found {
		t.Fatal("transient copy not cleared after promotion")
	}
}

func TestDraftCacheCorruptPayloadLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	primary := NewMemDraftStore()
	_ = primary.Put(ctx, DraftKey("sess-1"), []byte(`{"broken":`))

	cache := NewDraftCache(primary, nil, config.GetLogger())
	loaded, err := cache.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("corrupt payload produced entries: %+v", loaded)
	}
}

func TestDraftCachePersistErrorReportedOncePerStreak(t *testing.T) {
	ctx := context.Background()
	broken := &failingDraftStore{putErr: errors.New("disk full")}
	cache := NewDraftCache(broken, nil, config.GetLogger())

	err := cache.Save(ctx, "sess-1", []DraftEntry{{Id: "R-1", Time: 1}})
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("first failure not surfaced: %v", err)
	}
	// Same streak: suppressed.
	if err := cache.Save(ctx, "sess-1", []DraftEntry{{Id: "R-1", Time: 1}}); err != nil {
		t.Fatalf("repeat failure not suppressed: %v", err)
	}

	// Recovery resets the streak.
	cache.Primary = NewMemDraftStore()
	if err := cache.Save(ctx, "sess-1", []DraftEntry{{Id: "R-1", Time: 1}}); err != nil {
		t.Fatalf("save after recovery: %v", err)
	}
	cache.Primary = broken
	err = cache.Save(ctx, "sess-1", []DraftEntry{{Id: "R-1", Time: 1}})
	if !errors.As(err, &perr) {
		t.Fatalf("new streak not surfaced: %v", err)
	}
}

func TestDraftCacheClearRemovesBothStores(t *testing.T) {
	ctx := context.Background()
	primary := NewMemDraftStore()
	secondary := NewMemDraftStore()
	key := DraftKey("sess-1")
	_ = primary.Put(ctx, key, []byte(`[]`))
	_ = secondary.Put(ctx, key, []byte(`[]`))

	cache := NewDraftCache(primary, secondary, config.GetLogger())
	if err := cache.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, found, _ := primary.Get(ctx, key); found {
		t.Fatal("primary copy survived clear")
	}
	if _, found, _ := secondary.Get(ctx, key); found {
		t.Fatal("secondary copy survived clear")
	}
}

func TestPurgeStaleRemovesOldAndCorruptCollections(t *testing.T) {
	t.Setenv("DRAFT_PURGE_LOCKING", "false")
	ctx := context.Background()
	primary := NewMemDraftStore()

	now := time.Now().UnixMilli()
	old := time.Now().Add(-3 * 24 * time.Hour).UnixMilli()
	fresh := []DraftEntry{{Id: "R-1", Time: now, ActionType: ActionTypePass}}
	stale := []DraftEntry{{Id: "R-2", Time: old, ActionType: ActionTypePass}}

	cache := NewDraftCache(primary, nil, config.GetLogger())
	if err := cache.Save(ctx, "fresh", fresh); err != nil {
		t.Fatalf("save fresh: %v", err)
	}
	if err := cache.Save(ctx, "stale", stale); err != nil {
		t.Fatalf("save stale: %v", err)
	}
	_ = primary.Put(ctx, DraftKey("corrupt"), []byte(`not json`))
	_ = primary.Put(ctx, DraftKey("empty"), []byte(`[]`))

	stats, err := cache.PurgeStale(ctx, DraftRetention)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if stats.Scanned != 4 {
		t.Fatalf("expected 4 scanned, got %d", stats.Scanned)
	}
	if stats.Purged != 3 || stats.Stale != 1 || stats.Corrupt != 2 {
		t.Fatalf("unexpected purge stats: %+v", stats)
	}

	if _, found, _ := primary.Get(ctx, DraftKey("fresh")); !found {
		t.Fatal("fresh collection was purged")
	}
	for _, name := range []string{"stale", "corrupt", "empty"} {
		if _, found, _ := primary.Get(ctx, DraftKey(name)); found {
			t.Fatalf("%s collection survived purge", name)
		}
	}
}

func TestPurgeStaleScansSecondaryToo(t *testing.T) {
	t.Setenv("DRAFT_PURGE_LOCKING", "false")
	ctx := context.Background()
	primary := NewMemDraftStore()
	secondary := NewMemDraftStore()
	old := time.Now().Add(-3 * 24 * time.Hour).UnixMilli()
	payload := []byte(`[{"id":"R-1","time":` + strconv.FormatInt(old, 10) + `,"action":"PASS"}]`)
	_ = secondary.Put(ctx, DraftKey("legacy"), payload)

	cache := NewDraftCache(primary, secondary, config.GetLogger())
	stats, err := cache.PurgeStale(ctx, DraftRetention)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if stats.Purged != 1 {
		t.Fatalf("legacy collection not purged: %+v", stats)
	}
	if _, found, _ := secondary.Get(ctx, DraftKey("legacy")); found {
		t.Fatal("legacy collection survived purge")
	}
}
