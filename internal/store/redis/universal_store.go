package redis

import (
	"context"
	"errors"

	goredis "github.com/go-redis/redis/v8"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// UniversalStore is a DurableStore that uses a go-redis UniversalClient. With more than one address it
// talks to a Redis cluster.
type UniversalStore struct {
	client        goredis.UniversalClient
	prefix        string
	context       context.Context
	cancelContext context.CancelFunc
	loggers       ldlog.Loggers
	testTxHook    func()
}

// NewUniversalStore creates a UniversalStore. If options.ClusterAddrs is empty, options.URL is parsed
// to get the single node address, database, and credentials.
func NewUniversalStore(options Options, loggers ldlog.Loggers) (*UniversalStore, error) {
	opts := goredis.UniversalOptions{
		Addrs:        options.ClusterAddrs,
		Password:     options.Password,
		DB:           options.Database,
		DialTimeout:  options.ConnectTimeout,
		ReadTimeout:  options.SocketTimeout,
		WriteTimeout: options.SocketTimeout,
		PoolSize:     options.MaxActive,
		MinIdleConns: options.MaxIdle,
	}
	if len(opts.Addrs) == 0 {
		parsed, err := goredis.ParseURL(options.url())
		if err != nil {
			return nil, err
		}
		opts.Addrs = []string{parsed.Addr}
		opts.Username = parsed.Username
		if parsed.Password != "" {
			opts.Password = parsed.Password
		}
		if parsed.DB != 0 {
			opts.DB = parsed.DB
		}
		opts.TLSConfig = parsed.TLSConfig
	}

	ctx, cancel := context.WithCancel(context.Background())
	store := &UniversalStore{
		client:        goredis.NewUniversalClient(&opts),
		prefix:        options.prefix(),
		context:       ctx,
		cancelContext: cancel,
		loggers:       loggers,
	}
	store.loggers.SetPrefix("RedisDataStore:")
	return store, nil
}

func (s *UniversalStore) Init(allData []st.SerializedCollection) error {
	pipelined := s.client.TxPipelined
	if _, isCluster := s.client.(*goredis.ClusterClient); isCluster {
		// keys for different kinds can hash to different slots, which MULTI does not allow
		pipelined = s.client.Pipelined
	}
	_, err := pipelined(s.context, func(pipe goredis.Pipeliner) error {
		for _, coll := range allData {
			baseKey := kindKey(s.prefix, coll.Kind.Name)
			pipe.Del(s.context, baseKey)
			for _, keyedItem := range coll.Items {
				pipe.HSet(s.context, baseKey, keyedItem.Key, keyedItem.Item.SerializedItem)
			}
		}
		pipe.Set(s.context, initedMarkerKey(s.prefix), "", 0)
		return nil
	})
	return err
}

func (s *UniversalStore) Get(kind st.DataKind, key string) (st.SerializedItemDescriptor, error) {
	return s.get(s.client, kind, key)
}

func (s *UniversalStore) get(cmd goredis.Cmdable, kind st.DataKind, key string) (st.SerializedItemDescriptor, error) {
	data, err := cmd.HGet(s.context, kindKey(s.prefix, kind.Name), key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return st.SerializedItemDescriptor{}.NotFound(), nil
		}
		return st.SerializedItemDescriptor{}.NotFound(), err
	}
	return describeSerializedItem(data), nil
}

func (s *UniversalStore) GetAll(kind st.DataKind) ([]st.KeyedSerializedItemDescriptor, error) {
	values, err := s.client.HGetAll(s.context, kindKey(s.prefix, kind.Name)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}
	results := make([]st.KeyedSerializedItemDescriptor, 0, len(values))
	for k, v := range values {
		results = append(results, st.KeyedSerializedItemDescriptor{Key: k, Item: describeSerializedItem([]byte(v))})
	}
	return results, nil
}

func (s *UniversalStore) Upsert(kind st.DataKind, key string, newItem st.SerializedItemDescriptor) (bool, error) {
	baseKey := kindKey(s.prefix, kind.Name)
	for {
		updated := false
		err := s.client.Watch(s.context, func(tx *goredis.Tx) error {
			if s.testTxHook != nil {
				s.testTxHook()
			}
			oldItem, err := s.get(tx, kind, key)
			if err != nil {
				return err
			}
			if oldItem.Version >= newItem.Version {
				logStaleUpsert(s.loggers, kind, key, oldItem.Version, newItem)
				return nil
			}
			_, err = tx.TxPipelined(s.context, func(pipe goredis.Pipeliner) error {
				pipe.HSet(s.context, baseKey, key, newItem.SerializedItem)
				return nil
			})
			if err == nil {
				updated = true
			}
			return err
		}, baseKey)
		if errors.Is(err, goredis.TxFailedErr) {
			if s.loggers.IsDebugEnabled() {
				s.loggers.Debug("Concurrent modification detected, retrying")
			}
			continue
		}
		if err != nil {
			return false, err
		}
		return updated, nil
	}
}

func (s *UniversalStore) IsInitialized() bool {
	n, err := s.client.Exists(s.context, initedMarkerKey(s.prefix)).Result()
	return err == nil && n > 0
}

func (s *UniversalStore) IsStoreAvailable() bool {
	return s.client.Ping(s.context).Err() == nil
}

func (s *UniversalStore) Close() error {
	s.cancelContext()
	return s.client.Close()
}
