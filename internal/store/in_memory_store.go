package store

import (
	"sync"

	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// InMemoryStore is a Store that keeps decoded items in a map. It is the default when no database is
// configured.
type InMemoryStore struct {
	allData       map[string]map[string]st.ItemDescriptor
	isInitialized bool
	sync.RWMutex
}

// NewInMemoryStore creates an empty, uninitialized InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{allData: make(map[string]map[string]st.ItemDescriptor)}
}

func (s *InMemoryStore) Init(allData []st.Collection) error {
	newData := make(map[string]map[string]st.ItemDescriptor, len(allData))
	for _, coll := range allData {
		items := make(map[string]st.ItemDescriptor, len(coll.Items))
		for _, item := range coll.Items {
			items[item.Key] = item.Item
		}
		newData[coll.Kind.Name] = items
	}

	s.Lock()
	s.allData = newData
	s.isInitialized = true
	s.Unlock()
	return nil
}

func (s *InMemoryStore) Get(kind st.DataKind, key string) (st.ItemDescriptor, error) {
	s.RLock()
	defer s.RUnlock()
	if item, ok := s.allData[kind.Name][key]; ok {
		return item, nil
	}
	return st.ItemDescriptor{}.NotFound(), nil
}

func (s *InMemoryStore) GetAll(kind st.DataKind) ([]st.KeyedItemDescriptor, error) {
	s.RLock()
	defer s.RUnlock()
	items := s.allData[kind.Name]
	ret := make([]st.KeyedItemDescriptor, 0, len(items))
	for key, item := range items {
		ret = append(ret, st.KeyedItemDescriptor{Key: key, Item: item})
	}
	return ret, nil
}

func (s *InMemoryStore) Upsert(kind st.DataKind, key string, newItem st.ItemDescriptor) (bool, error) {
	s.Lock()
	defer s.Unlock()
	items, ok := s.allData[kind.Name]
	if !ok {
		items = make(map[string]st.ItemDescriptor)
		s.allData[kind.Name] = items
	}
	if oldItem, exists := items[key]; exists && oldItem.Version >= newItem.Version {
		return false, nil
	}
	items[key] = newItem
	return true, nil
}

func (s *InMemoryStore) IsInitialized() bool {
	s.RLock()
	defer s.RUnlock()
	return s.isInitialized
}

func (s *InMemoryStore) Close() error {
	return nil
}
