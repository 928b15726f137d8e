package redis

import (
	"errors"

	r "github.com/gomodule/redigo/redis"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// RedigoStore is a DurableStore that uses a redigo connection pool.
type RedigoStore struct {
	prefix     string
	pool       *r.Pool
	loggers    ldlog.Loggers
	testTxHook func()
}

// NewRedigoStore creates a RedigoStore. It does not connect until the first operation.
func NewRedigoStore(options Options, loggers ldlog.Loggers) *RedigoStore {
	store := &RedigoStore{
		prefix:  options.prefix(),
		loggers: loggers,
	}
	store.loggers.SetPrefix("RedisDataStore:")
	store.pool = newPool(options)
	return store
}

func newPool(options Options) *r.Pool {
	url := options.url()
	var dialOptions []r.DialOption
	if options.Password != "" {
		dialOptions = append(dialOptions, r.DialPassword(options.Password))
	}
	if options.Database != 0 {
		dialOptions = append(dialOptions, r.DialDatabase(options.Database))
	}
	if options.ConnectTimeout > 0 {
		dialOptions = append(dialOptions, r.DialConnectTimeout(options.ConnectTimeout))
	}
	if options.SocketTimeout > 0 {
		dialOptions = append(dialOptions,
			r.DialReadTimeout(options.SocketTimeout),
			r.DialWriteTimeout(options.SocketTimeout),
		)
	}
	maxIdle, maxActive := options.MaxIdle, options.MaxActive
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdle
	}
	if maxActive <= 0 {
		maxActive = defaultMaxActive
	}
	return &r.Pool{
		MaxIdle:     maxIdle,
		MaxActive:   maxActive,
		Wait:        true,
		IdleTimeout: defaultIdleTimeout,
		Dial: func() (r.Conn, error) {
			return r.DialURL(url, dialOptions...)
		},
	}
}

func (s *RedigoStore) Init(allData []st.SerializedCollection) error {
	c := s.pool.Get()
	defer c.Close() //nolint:errcheck

	_ = c.Send("MULTI")
	for _, coll := range allData {
		baseKey := kindKey(s.prefix, coll.Kind.Name)
		_ = c.Send("DEL", baseKey)
		for _, keyedItem := range coll.Items {
			_ = c.Send("HSET", baseKey, keyedItem.Key, keyedItem.Item.SerializedItem)
		}
	}
	_ = c.Send("SET", initedMarkerKey(s.prefix), "")
	_, err := c.Do("EXEC")
	return err
}

func (s *RedigoStore) Get(kind st.DataKind, key string) (st.SerializedItemDescriptor, error) {
	c := s.pool.Get()
	defer c.Close() //nolint:errcheck
	return s.getWithConn(c, kind, key)
}

func (s *RedigoStore) getWithConn(c r.Conn, kind st.DataKind, key string) (st.SerializedItemDescriptor, error) {
	data, err := r.Bytes(c.Do("HGET", kindKey(s.prefix, kind.Name), key))
	if err != nil {
		if errors.Is(err, r.ErrNil) {
			if s.loggers.IsDebugEnabled() {
				s.loggers.Debugf("Key: %s not found in %q", key, kind.Name)
			}
			return st.SerializedItemDescriptor{}.NotFound(), nil
		}
		return st.SerializedItemDescriptor{}.NotFound(), err
	}
	return describeSerializedItem(data), nil
}

func (s *RedigoStore) GetAll(kind st.DataKind) ([]st.KeyedSerializedItemDescriptor, error) {
	c := s.pool.Get()
	defer c.Close() //nolint:errcheck

	values, err := r.StringMap(c.Do("HGETALL", kindKey(s.prefix, kind.Name)))
	if err != nil && !errors.Is(err, r.ErrNil) {
		return nil, err
	}
	results := make([]st.KeyedSerializedItemDescriptor, 0, len(values))
	for k, v := range values {
		results = append(results, st.KeyedSerializedItemDescriptor{Key: k, Item: describeSerializedItem([]byte(v))})
	}
	return results, nil
}

func (s *RedigoStore) Upsert(kind st.DataKind, key string, newItem st.SerializedItemDescriptor) (bool, error) {
	baseKey := kindKey(s.prefix, kind.Name)
	c := s.pool.Get()
	defer c.Close() //nolint:errcheck

	for {
		if _, err := c.Do("WATCH", baseKey); err != nil {
			return false, err
		}
		if s.testTxHook != nil {
			s.testTxHook()
		}

		oldItem, err := s.getWithConn(c, kind, key)
		if err != nil {
			_, _ = c.Do("UNWATCH")
			return false, err
		}
		if oldItem.Version >= newItem.Version {
			_, _ = c.Do("UNWATCH")
			logStaleUpsert(s.loggers, kind, key, oldItem.Version, newItem)
			return false, nil
		}

		_ = c.Send("MULTI")
		if err := c.Send("HSET", baseKey, key, newItem.SerializedItem); err != nil {
			return false, err
		}
		result, err := c.Do("EXEC")
		if err != nil {
			return false, err
		}
		if result == nil {
			// the watched key changed, so the transaction was not executed
			if s.loggers.IsDebugEnabled() {
				s.loggers.Debug("Concurrent modification detected, retrying")
			}
			continue
		}
		return true, nil
	}
}

func (s *RedigoStore) IsInitialized() bool {
	c := s.pool.Get()
	defer c.Close() //nolint:errcheck
	inited, _ := r.Bool(c.Do("EXISTS", initedMarkerKey(s.prefix)))
	return inited
}

func (s *RedigoStore) IsStoreAvailable() bool {
	c := s.pool.Get()
	defer c.Close() //nolint:errcheck
	_, err := r.Bool(c.Do("EXISTS", initedMarkerKey(s.prefix)))
	return err == nil
}

func (s *RedigoStore) Close() error {
	return s.pool.Close()
}

// describeSerializedItem fills in the version and deleted properties, which Redis does not store
// separately from the item.
func describeSerializedItem(data []byte) st.SerializedItemDescriptor {
	version, deleted, _ := st.ReadVersionInfo(data)
	return st.SerializedItemDescriptor{Version: version, Deleted: deleted, SerializedItem: data}
}

func logStaleUpsert(loggers ldlog.Loggers, kind st.DataKind, key string, oldVersion int, newItem st.SerializedItemDescriptor) {
	if !loggers.IsDebugEnabled() {
		return
	}
	updateOrDelete := "update"
	if newItem.Deleted {
		updateOrDelete = "delete"
	}
	loggers.Debugf(`Attempted to %s key: %s version: %d in %q with a version that is the same or older: %d`,
		updateOrDelete, key, oldVersion, kind.Name, newItem.Version)
}
