package streaming

import (
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	es "github.com/launchdarkly/eventsource"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/ld-sync/internal/store"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

const testTimeout = time.Second

type testEvent struct {
	name string
	data string
}

func (e testEvent) Id() string    { return "" } //nolint:revive,stylecheck
func (e testEvent) Event() string { return e.name }
func (e testEvent) Data() string  { return e.data }

// syncEvent is sent after an event to wait until the processor has finished handling it, since the
// processor reads the next event only after the previous one is done.
var syncEvent = testEvent{name: "test-sync"} //nolint:gochecknoglobals

type fakeEventSource struct {
	events    chan es.Event
	restarts  chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeEventSource() *fakeEventSource {
	return &fakeEventSource{
		events:   make(chan es.Event),
		restarts: make(chan struct{}, 10),
		closed:   make(chan struct{}),
	}
}

func (f *fakeEventSource) Events() <-chan es.Event { return f.events }

func (f *fakeEventSource) Restart() { f.restarts <- struct{}{} }

func (f *fakeEventSource) Close() {
	f.closeOnce.Do(func() { close(f.closed) })
}

type fakeFactory struct {
	source   *fakeEventSource
	err      error
	requests chan *http.Request
	params   chan EventSourceParams
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		source:   newFakeEventSource(),
		requests: make(chan *http.Request, 10),
		params:   make(chan EventSourceParams, 10),
	}
}

func (f *fakeFactory) NewEventSource(req *http.Request, params EventSourceParams) (EventSource, error) {
	f.requests <- req
	f.params <- params
	if f.err != nil {
		return nil, f.err
	}
	return f.source, nil
}

type fakeRequestor struct {
	allData []st.Collection
	items   map[string]st.ItemDescriptor
	err     error
	calls   chan string
}

func newFakeRequestor() *fakeRequestor {
	return &fakeRequestor{items: make(map[string]st.ItemDescriptor), calls: make(chan string, 10)}
}

func (r *fakeRequestor) GetAll() ([]st.Collection, error) {
	r.calls <- "all"
	return r.allData, r.err
}

func (r *fakeRequestor) GetOne(kind st.DataKind, key string) (st.ItemDescriptor, error) {
	r.calls <- kind.Name + ":" + key
	if r.err != nil {
		return st.ItemDescriptor{}.NotFound(), r.err
	}
	if item, ok := r.items[kind.Name+":"+key]; ok {
		return item, nil
	}
	return st.ItemDescriptor{}.NotFound(), nil
}

// failingStore wraps a store and makes its write operations fail while fail is set.
type failingStore struct {
	st.Store
	fail bool
	lock sync.Mutex
}

var errFakeStore = errors.New("sorry, store is broken") //nolint:gochecknoglobals

func (s *failingStore) setFail(fail bool) {
	s.lock.Lock()
	s.fail = fail
	s.lock.Unlock()
}

func (s *failingStore) failing() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.fail
}

func (s *failingStore) Init(allData []st.Collection) error {
	if s.failing() {
		return errFakeStore
	}
	return s.Store.Init(allData)
}

func (s *failingStore) Upsert(kind st.DataKind, key string, item st.ItemDescriptor) (bool, error) {
	if s.failing() {
		return false, errFakeStore
	}
	return s.Store.Upsert(kind, key, item)
}

type streamTestParams struct {
	t         *testing.T
	processor *StreamProcessor
	store     *failingStore
	factory   *fakeFactory
	requestor *fakeRequestor
	mockLog   *ldlogtest.MockLog
}

func withStreamProcessor(t *testing.T, action func(p streamTestParams)) {
	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)

	p := streamTestParams{
		t:         t,
		store:     &failingStore{Store: store.NewInMemoryStore()},
		factory:   newFakeFactory(),
		requestor: newFakeRequestor(),
		mockLog:   mockLog,
	}
	p.processor = NewStreamProcessor(p.store, p.requestor, StreamConfig{
		URI:                "http://fake-stream",
		EventSourceFactory: p.factory,
	}, mockLog.Loggers)
	defer p.processor.Close()

	action(p)
}

func (p streamTestParams) start() <-chan struct{} {
	ready := p.processor.Start()
	select {
	case <-p.factory.requests:
	case <-time.After(testTimeout):
		require.Fail(p.t, "timed out waiting for stream connection")
	}
	return ready
}

func (p streamTestParams) errorHandler() es.StreamErrorHandler {
	select {
	case params := <-p.factory.params:
		return params.ErrorHandler
	case <-time.After(testTimeout):
		require.Fail(p.t, "timed out waiting for stream parameters")
		return nil
	}
}

// send delivers an event and waits until the processor has finished handling it.
func (p streamTestParams) send(name, data string) {
	p.deliver(testEvent{name: name, data: data})
	p.deliver(syncEvent)
}

func (p streamTestParams) deliver(event es.Event) {
	select {
	case p.factory.source.events <- event:
	case <-time.After(testTimeout):
		require.Fail(p.t, "timed out delivering event")
	}
}

func (p streamTestParams) requireRestart() {
	select {
	case <-p.factory.source.restarts:
	case <-time.After(testTimeout):
		require.Fail(p.t, "timed out waiting for stream restart")
	}
}

func (p streamTestParams) requireNoRestart() {
	select {
	case <-p.factory.source.restarts:
		require.Fail(p.t, "stream was unexpectedly restarted")
	default:
	}
}

func requireClosed(t *testing.T, ch <-chan struct{}) {
	select {
	case <-ch:
	case <-time.After(testTimeout):
		require.Fail(t, "timed out waiting for channel to close")
	}
}

func requireNotClosed(t *testing.T, ch <-chan struct{}) {
	select {
	case <-ch:
		require.Fail(t, "channel was unexpectedly closed")
	case <-time.After(20 * time.Millisecond):
	}
}
