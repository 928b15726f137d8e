package store

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/launchdarkly/ld-sync/internal/metrics"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

const (
	initCheckedKey       = "$initChecked"
	cacheCleanupInterval = 5 * time.Minute
)

// CacheConfig describes the caching behavior of a CachingStore.
//
// A TTL of zero disables caching: every operation goes straight to the durable store. A negative TTL
// means that cache entries never expire.
type CacheConfig struct {
	TTL               time.Duration
	StaleValuesPolicy StaleValuesPolicy
}

// CacheStats is a point-in-time copy of a CachingStore's counters.
type CacheStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	StaleServed   int64 `json:"staleServed"`
	Refreshes     int64 `json:"refreshes"`
	RefreshErrors int64 `json:"refreshErrors"`
}

// CachingStore is a Store that caches the results of a DurableStore.
//
// Writes always go to the durable store first; the cache is only updated after the durable store has
// accepted the write, so readers never observe data that was not persisted. When a read finds an
// expired entry, the StaleValuesPolicy decides whether the reader waits for a reload or gets the old
// value while a reload runs in the background. If a reload fails and there is an old value, the old
// value is returned instead of the error.
type CachingStore struct {
	core        st.DurableStore
	cache       *cache.Cache
	cacheConfig CacheConfig
	requests    singleflight.Group
	refreshing  sync.Map
	loggers     ldlog.Loggers
	metricsCtx  context.Context
	now         func() time.Time
	inited      bool
	initLock    sync.RWMutex

	// A load only stores its result if no write has touched the cache key since the load started.
	genLock   sync.Mutex
	writeSeq  uint64
	initSeq   uint64
	writeGens map[string]uint64

	hits, misses, staleServed, refreshes, refreshErrors int64
}

type cacheEntry struct {
	value    interface{}
	cachedAt time.Time
}

// NewCachingStore creates a CachingStore around a DurableStore. The metrics context may be nil.
func NewCachingStore(
	core st.DurableStore,
	cacheConfig CacheConfig,
	metricsCtx context.Context,
	loggers ldlog.Loggers,
) *CachingStore {
	if metricsCtx == nil {
		metricsCtx = context.Background()
	}
	w := &CachingStore{
		core:        core,
		cacheConfig: cacheConfig,
		loggers:     loggers,
		metricsCtx:  metricsCtx,
		now:         time.Now,
		writeGens:   make(map[string]uint64),
	}
	w.loggers.SetPrefix("CachingStore:")
	if cacheConfig.TTL != 0 {
		// Entries are stored without a go-cache expiration so that an expired value is still available as
		// a fallback; expiry is computed from cacheEntry.cachedAt instead.
		w.cache = cache.New(cache.NoExpiration, cacheCleanupInterval)
	}
	return w
}

// GetCacheStats returns the current cache counters.
func (w *CachingStore) GetCacheStats() CacheStats {
	return CacheStats{
		Hits:          atomic.LoadInt64(&w.hits),
		Misses:        atomic.LoadInt64(&w.misses),
		StaleServed:   atomic.LoadInt64(&w.staleServed),
		Refreshes:     atomic.LoadInt64(&w.refreshes),
		RefreshErrors: atomic.LoadInt64(&w.refreshErrors),
	}
}

// IsStoreAvailable reports whether the durable store is reachable.
func (w *CachingStore) IsStoreAvailable() bool {
	return w.core.IsStoreAvailable()
}

func (w *CachingStore) Init(allData []st.Collection) error {
	if err := w.core.Init(st.SerializeAll(allData)); err != nil {
		w.loggers.Errorf(logMsgInitFailed, err)
		return err
	}
	if w.cache != nil {
		w.genLock.Lock()
		w.writeSeq++
		w.initSeq = w.writeSeq
		w.writeGens = make(map[string]uint64)
		w.cache.Flush()
		now := w.now()
		for _, coll := range allData {
			items := make([]st.KeyedItemDescriptor, len(coll.Items))
			copy(items, coll.Items)
			w.cache.Set(allItemsCacheKey(coll.Kind), cacheEntry{value: items, cachedAt: now}, cache.NoExpiration)
			for _, item := range coll.Items {
				w.cache.Set(itemCacheKey(coll.Kind, item.Key), cacheEntry{value: item.Item, cachedAt: now}, cache.NoExpiration)
			}
		}
		w.genLock.Unlock()
	}
	w.initLock.Lock()
	w.inited = true
	w.initLock.Unlock()
	return nil
}

func (w *CachingStore) Get(kind st.DataKind, key string) (st.ItemDescriptor, error) {
	if w.cache == nil {
		return w.loadItem(kind, key)
	}
	cacheKey := itemCacheKey(kind, key)
	value, err := w.getThroughCache(cacheKey, func(gen uint64) (interface{}, error) {
		item, err := w.loadItem(kind, key)
		if err != nil {
			return nil, err
		}
		w.genLock.Lock()
		if w.generationLocked(cacheKey) == gen {
			w.cache.Set(cacheKey, cacheEntry{value: item, cachedAt: w.now()}, cache.NoExpiration)
		}
		w.genLock.Unlock()
		return item, nil
	})
	if err != nil {
		return st.ItemDescriptor{}.NotFound(), err
	}
	item, _ := value.(st.ItemDescriptor)
	return item, nil
}

func (w *CachingStore) GetAll(kind st.DataKind) ([]st.KeyedItemDescriptor, error) {
	if w.cache == nil {
		return w.loadAll(kind)
	}
	cacheKey := allItemsCacheKey(kind)
	value, err := w.getThroughCache(cacheKey, func(gen uint64) (interface{}, error) {
		items, err := w.loadAll(kind)
		if err != nil {
			return nil, err
		}
		// Every write to an item of this kind also bumps the kind's generation, so the per-item entries
		// are safe to store whenever the list is.
		w.genLock.Lock()
		defer w.genLock.Unlock()
		if w.generationLocked(cacheKey) != gen {
			return items, nil
		}
		now := w.now()
		w.cache.Set(cacheKey, cacheEntry{value: items, cachedAt: now}, cache.NoExpiration)
		for _, item := range items {
			w.cache.Set(itemCacheKey(kind, item.Key), cacheEntry{value: item.Item, cachedAt: now}, cache.NoExpiration)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	items, _ := value.([]st.KeyedItemDescriptor)
	return items, nil
}

func (w *CachingStore) Upsert(kind st.DataKind, key string, item st.ItemDescriptor) (bool, error) {
	updated, err := w.core.Upsert(kind, key, st.Serialize(kind, key, item))
	if err != nil {
		return false, err
	}
	if w.cache == nil {
		return updated, nil
	}
	cacheKey := itemCacheKey(kind, key)
	allCacheKey := allItemsCacheKey(kind)
	w.genLock.Lock()
	w.bumpLocked(cacheKey, allCacheKey)
	if updated {
		w.cache.Set(cacheKey, cacheEntry{value: item, cachedAt: w.now()}, cache.NoExpiration)
		if entry, ok := w.getEntry(allCacheKey); ok {
			if items, ok := entry.value.([]st.KeyedItemDescriptor); ok {
				entry.value = replaceItem(items, key, item)
				w.cache.Set(allCacheKey, entry, cache.NoExpiration)
			}
		}
		w.genLock.Unlock()
		return true, nil
	}
	// Another writer has a newer version; make sure our cache reflects what is actually stored.
	w.cache.Delete(cacheKey)
	w.cache.Delete(allCacheKey)
	w.genLock.Unlock()
	_, _ = w.Get(kind, key)
	return false, nil
}

func (w *CachingStore) IsInitialized() bool {
	w.initLock.RLock()
	inited := w.inited
	w.initLock.RUnlock()
	if inited {
		return true
	}

	if w.cache != nil {
		if _, found := w.cache.Get(initCheckedKey); found {
			return false
		}
	}

	if w.core.IsInitialized() {
		w.initLock.Lock()
		w.inited = true
		w.initLock.Unlock()
		if w.cache != nil {
			w.cache.Delete(initCheckedKey)
		}
		return true
	}
	if w.cache != nil {
		w.cache.Set(initCheckedKey, true, w.cacheConfig.TTL)
	}
	return false
}

func (w *CachingStore) Close() error {
	return w.core.Close()
}

func (w *CachingStore) getThroughCache(
	cacheKey string,
	load func(gen uint64) (interface{}, error),
) (interface{}, error) {
	gen := w.generation(cacheKey)
	// A read that starts after a write never joins a load that started before it.
	flightKey := cacheKey + "@" + strconv.FormatUint(gen, 10)
	loadOnce := func() (interface{}, error) {
		value, err, _ := w.requests.Do(flightKey, func() (interface{}, error) { return load(gen) })
		return value, err
	}

	entry, found := w.getEntry(cacheKey)
	if found && !w.isExpired(entry) {
		atomic.AddInt64(&w.hits, 1)
		metrics.RecordCacheLookup(w.metricsCtx, metrics.CacheResultHit)
		return entry.value, nil
	}

	if found && w.cacheConfig.StaleValuesPolicy == StaleValuesRefreshAsync {
		atomic.AddInt64(&w.staleServed, 1)
		metrics.RecordCacheLookup(w.metricsCtx, metrics.CacheResultStale)
		w.refreshInBackground(cacheKey, loadOnce)
		return entry.value, nil
	}

	if found {
		atomic.AddInt64(&w.refreshes, 1)
	} else {
		atomic.AddInt64(&w.misses, 1)
	}
	metrics.RecordCacheLookup(w.metricsCtx, metrics.CacheResultMiss)

	value, err := loadOnce()
	if err != nil {
		if found {
			w.loggers.Warnf(logMsgServingStaleValue, cacheKey, err)
			return entry.value, nil
		}
		return nil, err
	}
	return value, nil
}

// refreshInBackground starts a reload for the key unless one is already running. The claim on the key
// is released when the reload finishes, whether or not it succeeded.
func (w *CachingStore) refreshInBackground(cacheKey string, load func() (interface{}, error)) {
	if _, alreadyRefreshing := w.refreshing.LoadOrStore(cacheKey, struct{}{}); alreadyRefreshing {
		return
	}
	atomic.AddInt64(&w.refreshes, 1)
	go func() {
		defer w.refreshing.Delete(cacheKey)
		if _, err := load(); err != nil {
			// Keep serving the old value, and don't try again until another TTL has passed.
			if entry, ok := w.getEntry(cacheKey); ok {
				entry.cachedAt = w.now()
				w.cache.Set(cacheKey, entry, cache.NoExpiration)
			}
			atomic.AddInt64(&w.refreshErrors, 1)
			metrics.RecordCacheRefreshError(w.metricsCtx)
			w.loggers.Warnf(logMsgBackgroundRefreshFailed, cacheKey, err)
		}
	}()
}

func (w *CachingStore) getEntry(cacheKey string) (cacheEntry, bool) {
	if data, present := w.cache.Get(cacheKey); present {
		if entry, ok := data.(cacheEntry); ok {
			return entry, true
		}
	}
	return cacheEntry{}, false
}

// generation returns the sequence number of the last write that affected the cache key.
func (w *CachingStore) generation(cacheKey string) uint64 {
	w.genLock.Lock()
	defer w.genLock.Unlock()
	return w.generationLocked(cacheKey)
}

func (w *CachingStore) generationLocked(cacheKey string) uint64 {
	if gen, ok := w.writeGens[cacheKey]; ok {
		return gen
	}
	return w.initSeq
}

// bumpLocked records a write to each of the cache keys. The caller must hold genLock.
func (w *CachingStore) bumpLocked(cacheKeys ...string) {
	w.writeSeq++
	for _, k := range cacheKeys {
		w.writeGens[k] = w.writeSeq
	}
}

func (w *CachingStore) isExpired(entry cacheEntry) bool {
	if w.cacheConfig.TTL < 0 {
		return false
	}
	return w.now().Sub(entry.cachedAt) >= w.cacheConfig.TTL
}

func (w *CachingStore) loadItem(kind st.DataKind, key string) (st.ItemDescriptor, error) {
	serializedItem, err := w.core.Get(kind, key)
	if err != nil {
		return st.ItemDescriptor{}.NotFound(), err
	}
	if serializedItem.Version < 0 && serializedItem.SerializedItem == nil {
		return st.ItemDescriptor{}.NotFound(), nil
	}
	item, err := st.Deserialize(kind, serializedItem)
	if err != nil {
		w.loggers.Errorf(logMsgDeserializeFailed, kind, key, err)
		return st.ItemDescriptor{}.NotFound(), err
	}
	return item, nil
}

func (w *CachingStore) loadAll(kind st.DataKind) ([]st.KeyedItemDescriptor, error) {
	serializedItems, err := w.core.GetAll(kind)
	if err != nil {
		return nil, err
	}
	ret := make([]st.KeyedItemDescriptor, 0, len(serializedItems))
	for _, serializedItem := range serializedItems {
		item, err := st.Deserialize(kind, serializedItem.Item)
		if err != nil {
			w.loggers.Errorf(logMsgDeserializeFailed, kind, serializedItem.Key, err)
			return nil, err
		}
		ret = append(ret, st.KeyedItemDescriptor{Key: serializedItem.Key, Item: item})
	}
	return ret, nil
}

func replaceItem(items []st.KeyedItemDescriptor, key string, item st.ItemDescriptor) []st.KeyedItemDescriptor {
	ret := make([]st.KeyedItemDescriptor, 0, len(items)+1)
	found := false
	for _, existing := range items {
		if existing.Key == key {
			ret = append(ret, st.KeyedItemDescriptor{Key: key, Item: item})
			found = true
		} else {
			ret = append(ret, existing)
		}
	}
	if !found {
		ret = append(ret, st.KeyedItemDescriptor{Key: key, Item: item})
	}
	return ret
}

func itemCacheKey(kind st.DataKind, key string) string {
	return kind.Name + ":" + key
}

func allItemsCacheKey(kind st.DataKind) string {
	return "all:" + kind.Name
}
