package models

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dormstack/dormops_client/config"
	"github.com/dormstack/dormops_client/utils"
)

// StorageKeyPrefix scopes draft collections; the version segment lets a
// future entry-shape change abandon old collections wholesale.
const StorageKeyPrefix = "inspection-results-v1-"

// DraftRetention is how long an untouched draft collection survives.
const DraftRetention = 2 * 24 * time.Hour

const purgeLockKey = "dormops:draft-purge-lock"

func DraftKey(sessionId string) string {
	return StorageKeyPrefix + sessionId
}

// DraftStore is one keyed blob store holding draft collections. Keys returns
// session-scoped keys only.
type DraftStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// DraftCollection is the sqlite row backing one session's draft list.
type DraftCollection struct {
	StorageKey string `gorm:"primaryKey;size:191"`
	Payload    string
	UpdatedAt  time.Time
}

// GormDraftStore is the primary durable store.
type GormDraftStore struct {
	DB *gorm.DB
}

func (s *GormDraftStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row DraftCollection
	err := s.DB.WithContext(ctx).Where("storage_key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(row.Payload), true, nil
}

func (s *GormDraftStore) Put(ctx context.Context, key string, payload []byte) error {
	row := DraftCollection{StorageKey: key, Payload: string(payload), UpdatedAt: time.Now().UTC()}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "storage_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *GormDraftStore) Delete(ctx context.Context, key string) error {
	return s.DB.WithContext(ctx).Where("storage_key = ?", key).Delete(&DraftCollection{}).Error
}

func (s *GormDraftStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.DB.WithContext(ctx).Model(&DraftCollection{}).
		Where("storage_key LIKE ?", StorageKeyPrefix+"%").
		Pluck("storage_key", &keys).Error
	return keys, err
}

// RedisDraftStore is the secondary transient store. It is read as a migration
// fallback for drafts written by older kiosk builds and cleared after the
// first successful promotion into the primary store.
type RedisDraftStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func (s *RedisDraftStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(val), true, nil
}

func (s *RedisDraftStore) Put(ctx context.Context, key string, payload []byte) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DraftRetention
	}
	return s.Client.Set(ctx, key, payload, ttl).Err()
}

func (s *RedisDraftStore) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

func (s *RedisDraftStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.Client.Scan(ctx, cursor, StorageKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// MemDraftStore backs tests and the degraded mode when neither sqlite nor
// redis is reachable.
type MemDraftStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemDraftStore() *MemDraftStore {
	return &MemDraftStore{data: map[string][]byte{}}
}

func (s *MemDraftStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return cp, true, nil
}

func (s *MemDraftStore) Put(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.data[key] = cp
	return nil
}

func (s *MemDraftStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemDraftStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if strings.HasPrefix(key, StorageKeyPrefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// DraftCache persists one ordered entry list per session, newest first.
// Writes go to the primary store; the secondary store exists only as a
// legacy migration source and is cleared as collections are promoted.
type DraftCache struct {
	Primary   DraftStore
	Secondary DraftStore
	Logger    *logrus.Logger

	mu                   sync.Mutex
	persistErrorNotified bool
	lastSavedAt          *time.Time
}

func NewDraftCache(primary, secondary DraftStore, logger *logrus.Logger) *DraftCache {
	return &DraftCache{Primary: primary, Secondary: secondary, Logger: logger}
}

// Save persists the full ordered entry list. A persistence failure is
// returned once per unbroken failure streak and suppressed afterwards until
// a save succeeds again; the in-memory session stays fully usable either way.
func (c *DraftCache) Save(ctx context.Context, sessionId string, entries []DraftEntry) error {
	if entries == nil {
		entries = []DraftEntry{}
	}
	payload, err := utils.MarshalToJSON(entries)
	if err != nil {
		return c.persistFailure("marshal", err)
	}
	if err := c.Primary.Put(ctx, DraftKey(sessionId), []byte(payload)); err != nil {
		return c.persistFailure("put", err)
	}

	c.mu.Lock()
	c.persistErrorNotified = false
	now := time.Now()
	c.lastSavedAt = &now
	c.mu.Unlock()
	return nil
}

func (c *DraftCache) persistFailure(op string, err error) error {
	c.mu.Lock()
	notified := c.persistErrorNotified
	c.persistErrorNotified = true
	c.mu.Unlock()

	if c.Logger != nil {
		config.LogError(c.Logger, "models/draftCache.go", "Save", op, nil, err)
	}
	if notified {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// LastSavedAt reports when a save last succeeded, for the status line.
func (c *DraftCache) LastSavedAt() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSavedAt
}

// Load reads the session's collection from the primary store, falling back
// to the secondary store; a secondary hit is promoted into the primary store
// and the transient copy removed. An unparseable collection loads as empty.
func (c *DraftCache) Load(ctx context.Context, sessionId string) ([]DraftEntry, error) {
	key := DraftKey(sessionId)

	raw, found, err := c.Primary.Get(ctx, key)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	if !found && c.Secondary != nil {
		raw, found, err = c.Secondary.Get(ctx, key)
		if err != nil {
			return nil, &PersistenceError{Op: "get-secondary", Err: err}
		}
		if found {
			if err := c.Primary.Put(ctx, key, raw); err == nil {
				_ = c.Secondary.Delete(ctx, key)
			}
		}
	}
	if !found {
		return []DraftEntry{}, nil
	}

	entries, err := DecodeDraftEntries(raw)
	if err != nil {
		if c.Logger != nil {
			config.LogError(c.Logger, "models/draftCache.go", "Load", "decode", sessionId, err)
		}
		return []DraftEntry{}, nil
	}
	return entries, nil
}

// Clear removes the session's collection from both stores.
func (c *DraftCache) Clear(ctx context.Context, sessionId string) error {
	return c.ClearKey(ctx, DraftKey(sessionId))
}

// ClearKey removes one storage key from both stores.
func (c *DraftCache) ClearKey(ctx context.Context, key string) error {
	var firstErr error
	if err := c.Primary.Delete(ctx, key); err != nil {
		firstErr = &PersistenceError{Op: "delete", Err: err}
	}
	if c.Secondary != nil {
		if err := c.Secondary.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = &PersistenceError{Op: "delete-secondary", Err: err}
		}
	}
	return firstErr
}

// PurgeStats reports one PurgeStale pass. Corrupt counts collections that
// failed to decode or held no timestamped rows.
type PurgeStats struct {
	Scanned int
	Purged  int
	Stale   int
	Corrupt int
}

// PurgeStale deletes every draft collection whose most recent entry predates
// now-retention, plus any collection that fails to parse or holds no
// timestamped rows. When a redis lock client is configured, concurrent kiosk
// processes serialize on it; losing the race skips the pass.
func (c *DraftCache) PurgeStale(ctx context.Context, retention time.Duration) (PurgeStats, error) {
	stats := PurgeStats{}

	if config.DraftPurgeLocking() {
		if locker := config.GetRedisLock(); locker != nil {
			lock, err := locker.Obtain(ctx, purgeLockKey, 30*time.Second, nil)
			if err != nil {
				if errors.Is(err, redislock.ErrNotObtained) {
					return stats, nil
				}
				return stats, err
			}
			defer lock.Release(ctx)
		}
	}

	cutoff := time.Now().Add(-retention).UnixMilli()
	stores := []DraftStore{c.Primary}
	if c.Secondary != nil {
		stores = append(stores, c.Secondary)
	}

	for _, store := range stores {
		keys, err := store.Keys(ctx)
		if err != nil {
			return stats, &PersistenceError{Op: "keys", Err: err}
		}
		for _, key := range keys {
			stats.Scanned++
			raw, found, err := store.Get(ctx, key)
			if err != nil || !found {
				continue
			}
			purgeable, corrupt := c.isPurgeable(raw, cutoff)
			if purgeable {
				if err := store.Delete(ctx, key); err == nil {
					stats.Purged++
					if corrupt {
						stats.Corrupt++
					} else {
						stats.Stale++
					}
				}
			}
		}
	}
	return stats, nil
}

func (c *DraftCache) isPurgeable(raw []byte, cutoff int64) (purgeable bool, corrupt bool) {
	entries, err := DecodeDraftEntries(raw)
	if err != nil {
		// Corrupt collections are purgeable.
		return true, true
	}
	latest, ok := LatestEntryTime(entries)
	if !ok {
		return true, true
	}
	return latest < cutoff, false
}
