package sharedtest

import (
	"strings"
	"sync"

	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// MockDurableStore is an in-memory DurableStore for testing the cache wrapper. It can simulate errors,
// records every query it receives, and can hold reads until a test releases them.
type MockDurableStore struct {
	data      map[string]map[string]st.SerializedItemDescriptor
	inited    bool
	available bool
	fakeError error
	queries   []string
	readGate  chan struct{}
	afterRead chan struct{}
	readsDone chan struct{}
	closed    bool
	lock      sync.Mutex
}

// NewMockDurableStore creates an empty, uninitialized MockDurableStore.
func NewMockDurableStore() *MockDurableStore {
	return &MockDurableStore{
		data:      make(map[string]map[string]st.SerializedItemDescriptor),
		available: true,
	}
}

// SetFakeError causes every subsequent operation to fail with the given error, or clears the error if
// it is nil.
func (m *MockDurableStore) SetFakeError(err error) {
	m.lock.Lock()
	m.fakeError = err
	m.lock.Unlock()
}

// SetAvailable sets the result of IsStoreAvailable.
func (m *MockDurableStore) SetAvailable(available bool) {
	m.lock.Lock()
	m.available = available
	m.lock.Unlock()
}

// ForceSet stores an item regardless of version, as if another process had written it.
func (m *MockDurableStore) ForceSet(kind st.DataKind, key string, item st.SerializedItemDescriptor) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.itemsOf(kind)[key] = item
}

// ForceRemove removes an item, as if another process had removed it.
func (m *MockDurableStore) ForceRemove(kind st.DataKind, key string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.itemsOf(kind), key)
}

// ForceSetInited sets the initialized marker directly.
func (m *MockDurableStore) ForceSetInited(inited bool) {
	m.lock.Lock()
	m.inited = inited
	m.lock.Unlock()
}

// BlockReads makes Get and GetAll wait until the returned function is called. Each read is still
// recorded as a query as soon as it starts.
func (m *MockDurableStore) BlockReads() (release func()) {
	gate := make(chan struct{})
	m.lock.Lock()
	m.readGate = gate
	m.lock.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.lock.Lock()
			m.readGate = nil
			m.lock.Unlock()
			close(gate)
		})
	}
}

// BlockAfterReads makes Get and GetAll wait after they have read their data, until the returned release
// function is called. A value is sent on the returned channel each time a read has its data.
func (m *MockDurableStore) BlockAfterReads() (reads <-chan struct{}, release func()) {
	gate := make(chan struct{})
	done := make(chan struct{}, 100)
	m.lock.Lock()
	m.afterRead = gate
	m.readsDone = done
	m.lock.Unlock()
	var once sync.Once
	return done, func() {
		once.Do(func() {
			m.lock.Lock()
			m.afterRead = nil
			m.readsDone = nil
			m.lock.Unlock()
			close(gate)
		})
	}
}

// QueryCount returns the number of queries received so far whose description starts with the prefix.
// Descriptions are "get:<kind>:<key>", "all:<kind>", "init", "upsert:<kind>:<key>", and "inited".
func (m *MockDurableStore) QueryCount(prefix string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	n := 0
	for _, q := range m.queries {
		if strings.HasPrefix(q, prefix) {
			n++
		}
	}
	return n
}

// IsClosed returns true if Close has been called.
func (m *MockDurableStore) IsClosed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closed
}

func (m *MockDurableStore) itemsOf(kind st.DataKind) map[string]st.SerializedItemDescriptor {
	items := m.data[kind.Name]
	if items == nil {
		items = make(map[string]st.SerializedItemDescriptor)
		m.data[kind.Name] = items
	}
	return items
}

func (m *MockDurableStore) startRead(query string) (chan struct{}, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.queries = append(m.queries, query)
	return m.readGate, m.fakeError
}

func (m *MockDurableStore) Init(allData []st.SerializedCollection) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.queries = append(m.queries, "init")
	if m.fakeError != nil {
		return m.fakeError
	}
	m.data = make(map[string]map[string]st.SerializedItemDescriptor)
	for _, coll := range allData {
		items := m.itemsOf(coll.Kind)
		for _, item := range coll.Items {
			items[item.Key] = item.Item
		}
	}
	m.inited = true
	return nil
}

func (m *MockDurableStore) Get(kind st.DataKind, key string) (st.SerializedItemDescriptor, error) {
	gate, err := m.startRead("get:" + kind.Name + ":" + key)
	if gate != nil {
		<-gate
	}
	if err != nil {
		return st.SerializedItemDescriptor{}, err
	}
	m.lock.Lock()
	item, ok := m.itemsOf(kind)[key]
	if !ok {
		item = st.SerializedItemDescriptor{}.NotFound()
	}
	m.finishRead()
	return item, nil
}

func (m *MockDurableStore) GetAll(kind st.DataKind) ([]st.KeyedSerializedItemDescriptor, error) {
	gate, err := m.startRead("all:" + kind.Name)
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	m.lock.Lock()
	ret := make([]st.KeyedSerializedItemDescriptor, 0, len(m.itemsOf(kind)))
	for key, item := range m.itemsOf(kind) {
		ret = append(ret, st.KeyedSerializedItemDescriptor{Key: key, Item: item})
	}
	m.finishRead()
	return ret, nil
}

// finishRead is called with the lock held once a read has its data. It releases the lock, and then
// waits if BlockAfterReads is in effect.
func (m *MockDurableStore) finishRead() {
	gate, done := m.afterRead, m.readsDone
	m.lock.Unlock()
	if gate == nil {
		return
	}
	select {
	case done <- struct{}{}:
	default:
	}
	<-gate
}

func (m *MockDurableStore) Upsert(kind st.DataKind, key string, item st.SerializedItemDescriptor) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.queries = append(m.queries, "upsert:"+kind.Name+":"+key)
	if m.fakeError != nil {
		return false, m.fakeError
	}
	items := m.itemsOf(kind)
	if old, ok := items[key]; ok && old.Version >= item.Version {
		return false, nil
	}
	items[key] = item
	return true, nil
}

func (m *MockDurableStore) IsInitialized() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.queries = append(m.queries, "inited")
	return m.inited
}

func (m *MockDurableStore) IsStoreAvailable() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.available
}

func (m *MockDurableStore) Close() error {
	m.lock.Lock()
	m.closed = true
	m.lock.Unlock()
	return nil
}
