// Package consul contains a durable store implementation for Consul.
//
// Each item is stored under the key "<prefix>/<kind>/<key>", and "<prefix>/$inited" exists once the
// store has been initialized. Consul transactions are limited to 64 operations, so Init is not atomic
// for larger data sets: it writes the new items first and then deletes keys that are no longer present,
// which keeps the window in which readers can see a partial data set as small as possible.
package consul

import (
	"fmt"
	"strings"

	c "github.com/hashicorp/consul/api"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

const (
	// DefaultPrefix is the key prefix used if none is specified.
	DefaultPrefix = "launchdarkly"

	initedKey       = "$inited"
	maxTxnOpsPerTxn = 64
)

func errConsulTxnFailed(reasons []string) error {
	return fmt.Errorf("Consul transaction failed: %s", strings.Join(reasons, ", ")) //nolint:stylecheck
}

// Options contains the connection parameters for a Store. Zero values mean the defaults of the Consul
// client.
type Options struct {
	Address string
	Token   string
	Prefix  string
}

// Store is a DurableStore that uses the Consul KV API.
type Store struct {
	client     *c.Client
	prefix     string
	loggers    ldlog.Loggers
	testTxHook func()
}

// NewStore creates a Store. It does not connect until the first operation.
func NewStore(options Options, loggers ldlog.Loggers) (*Store, error) {
	config := c.DefaultConfig()
	if options.Token != "" {
		config.Token = options.Token
	}
	if options.Address != "" {
		config.Address = options.Address
	}
	client, err := c.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("unable to configure Consul client: %w", err)
	}
	prefix := options.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	store := &Store{client: client, prefix: prefix, loggers: loggers}
	store.loggers.SetPrefix("ConsulDataStore:")
	return store, nil
}

func (s *Store) Init(allData []st.SerializedCollection) error {
	kv := s.client.KV()

	pairs, _, err := kv.List(s.prefix+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to get existing items prior to Init: %w", err)
	}
	staleKeys := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		staleKeys[p.Key] = struct{}{}
	}

	var ops c.KVTxnOps
	for _, coll := range allData {
		for _, item := range coll.Items {
			key := s.itemKey(coll.Kind, item.Key)
			ops = append(ops, &c.KVTxnOp{Verb: c.KVSet, Key: key, Value: item.Item.SerializedItem})
			delete(staleKeys, key)
		}
	}
	delete(staleKeys, s.initedKey())
	for key := range staleKeys {
		ops = append(ops, &c.KVTxnOp{Verb: c.KVDelete, Key: key})
	}
	ops = append(ops, &c.KVTxnOp{Verb: c.KVSet, Key: s.initedKey(), Value: []byte{}})

	return runInBatches(kv, ops)
}

func (s *Store) Get(kind st.DataKind, key string) (st.SerializedItemDescriptor, error) {
	item, _, err := s.getWithIndex(kind, key)
	return item, err
}

func (s *Store) GetAll(kind st.DataKind) ([]st.KeyedSerializedItemDescriptor, error) {
	pairs, _, err := s.client.KV().List(s.kindPrefix(kind), nil)
	if err != nil {
		return nil, fmt.Errorf("list failed for %s: %w", kind.Name, err)
	}
	results := make([]st.KeyedSerializedItemDescriptor, 0, len(pairs))
	for _, pair := range pairs {
		results = append(results, st.KeyedSerializedItemDescriptor{
			Key:  strings.TrimPrefix(pair.Key, s.kindPrefix(kind)),
			Item: describeSerializedItem(pair.Value),
		})
	}
	return results, nil
}

func (s *Store) Upsert(kind st.DataKind, key string, newItem st.SerializedItemDescriptor) (bool, error) {
	for {
		oldItem, modifyIndex, err := s.getWithIndex(kind, key)
		if err != nil {
			return false, err
		}
		if oldItem.Version >= newItem.Version {
			return false, nil
		}

		if s.testTxHook != nil {
			s.testTxHook()
		}

		// A ModifyIndex of zero means the write only succeeds if the key still does not exist.
		written, _, err := s.client.KV().CAS(&c.KVPair{
			Key:         s.itemKey(kind, key),
			ModifyIndex: modifyIndex,
			Value:       newItem.SerializedItem,
		}, nil)
		if err != nil {
			return false, err
		}
		if written {
			return true, nil
		}
		if s.loggers.IsDebugEnabled() {
			s.loggers.Debug("Concurrent modification detected, retrying")
		}
	}
}

func (s *Store) IsInitialized() bool {
	pair, _, err := s.client.KV().Get(s.initedKey(), nil)
	return pair != nil && err == nil
}

func (s *Store) IsStoreAvailable() bool {
	_, _, err := s.client.KV().Get(s.initedKey(), nil)
	return err == nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) getWithIndex(kind st.DataKind, key string) (st.SerializedItemDescriptor, uint64, error) {
	pair, _, err := s.client.KV().Get(s.itemKey(kind, key), nil)
	if err != nil || pair == nil {
		return st.SerializedItemDescriptor{}.NotFound(), 0, err
	}
	return describeSerializedItem(pair.Value), pair.ModifyIndex, nil
}

func (s *Store) kindPrefix(kind st.DataKind) string {
	return s.prefix + "/" + kind.Name + "/"
}

func (s *Store) itemKey(kind st.DataKind, key string) string {
	return s.kindPrefix(kind) + key
}

func (s *Store) initedKey() string {
	return s.prefix + "/" + initedKey
}

func runInBatches(kv *c.KV, ops c.KVTxnOps) error {
	for start := 0; start < len(ops); start += maxTxnOpsPerTxn {
		end := start + maxTxnOpsPerTxn
		if end > len(ops) {
			end = len(ops)
		}
		ok, resp, _, err := kv.Txn(ops[start:end], nil)
		if err != nil {
			return err
		}
		if !ok {
			reasons := make([]string, 0, len(resp.Errors))
			for _, e := range resp.Errors {
				reasons = append(reasons, e.What)
			}
			return errConsulTxnFailed(reasons)
		}
	}
	return nil
}

func describeSerializedItem(data []byte) st.SerializedItemDescriptor {
	version, deleted, _ := st.ReadVersionInfo(data)
	return st.SerializedItemDescriptor{Version: version, Deleted: deleted, SerializedItem: data}
}
