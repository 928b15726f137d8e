package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	es "github.com/launchdarkly/eventsource"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/ld-sync/internal/datakinds"
	"github.com/launchdarkly/ld-sync/internal/datasource"
	"github.com/launchdarkly/ld-sync/internal/metrics"
	"github.com/launchdarkly/ld-sync/internal/requestor"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// Stream event names.
const (
	PutEvent           = "put"
	PatchEvent         = "patch"
	DeleteEvent        = "delete"
	IndirectPutEvent   = "indirect/put"
	IndirectPatchEvent = "indirect/patch"

	// StreamPath is appended to the stream base URI.
	StreamPath = "/all"
)

// StreamConfig contains the settings for a StreamProcessor.
type StreamConfig struct {
	// URI is the base URI of the streaming service; StreamPath is appended to it.
	URI string
	// HTTPClient is used for the stream connection. Its Timeout is ignored.
	HTTPClient *http.Client
	// Headers are added to the stream request; they normally come from httpconfig.HTTPConfig.
	Headers http.Header
	// InitialRetryDelay is the first reconnection delay; later delays back off exponentially.
	InitialRetryDelay time.Duration
	// EventSourceFactory opens the connection. If nil, DefaultEventSourceFactory is used.
	EventSourceFactory EventSourceFactory
	// MetricsContext carries the opencensus tags for stream metrics. It may be nil.
	MetricsContext context.Context
}

// StreamProcessor maintains a connection to the LaunchDarkly stream and applies the events it receives to
// a store.
//
// Events are handled one at a time in the order they arrive. Version ordering is enforced by the store's
// Upsert, so redelivered or out-of-order patches are harmless. Malformed events are logged and dropped.
// A failed store write restarts the stream, since the next "put" event will resynchronize the store.
//
// "indirect/put" and "indirect/patch" events are handled by calling the requestor on the same goroutine,
// so later stream events wait until the fetch is done.
type StreamProcessor struct {
	store      st.Store
	requestor  requestor.Requestor
	uri        string
	client     *http.Client
	headers    http.Header
	retryDelay time.Duration
	factory    EventSourceFactory
	metricsCtx context.Context
	loggers    ldlog.Loggers
	status     *datasource.Status
	stream     EventSource
	streamLock sync.Mutex
	startOnce  sync.Once
	closeOnce  sync.Once
	halt       chan struct{}
}

type putData struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

type patchData struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

type deleteData struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

// NewStreamProcessor creates a StreamProcessor, but does not start the connection. The requestor is
// used only for "indirect" events and may be nil.
func NewStreamProcessor(
	store st.Store,
	req requestor.Requestor,
	config StreamConfig,
	loggers ldlog.Loggers,
) *StreamProcessor {
	loggers.SetPrefix("StreamProcessor:")

	client := http.DefaultClient
	if config.HTTPClient != nil {
		client = config.HTTPClient
	}
	// The client's Timeout covers the whole response, which for a stream never ends; the connect
	// timeout is a property of the client's dialer and is not affected.
	streamClient := *client
	streamClient.Timeout = 0

	factory := config.EventSourceFactory
	if factory == nil {
		factory = DefaultEventSourceFactory()
	}
	metricsCtx := config.MetricsContext
	if metricsCtx == nil {
		metricsCtx = context.Background()
	}

	return &StreamProcessor{
		store:      store,
		requestor:  req,
		uri:        strings.TrimSuffix(config.URI, "/") + StreamPath,
		client:     &streamClient,
		headers:    config.Headers,
		retryDelay: config.InitialRetryDelay,
		factory:    factory,
		metricsCtx: metricsCtx,
		loggers:    loggers,
		status:     datasource.NewStatus(),
		halt:       make(chan struct{}),
	}
}

// Start begins connecting in the background. The returned channel is closed when the first full data
// set has been stored, when the stream fails permanently, or when the processor is closed.
func (sp *StreamProcessor) Start() <-chan struct{} {
	sp.startOnce.Do(func() {
		sp.loggers.Info(logMsgStarting)
		go sp.subscribe()
	})
	return sp.status.Ready()
}

// IsInitialized returns true if a full data set has been stored.
func (sp *StreamProcessor) IsInitialized() bool {
	return sp.status.IsInitialized()
}

// State returns the current lifecycle state.
func (sp *StreamProcessor) State() datasource.State {
	return sp.status.State()
}

// LastError returns the most recent connection or store error.
func (sp *StreamProcessor) LastError() error {
	return sp.status.LastError()
}

// Close stops the stream permanently. If the processor was never initialized, it moves to
// datasource.StateFailed with ErrClosedBeforeReady.
func (sp *StreamProcessor) Close() error {
	sp.closeOnce.Do(func() {
		close(sp.halt)
		sp.streamLock.Lock()
		if sp.stream != nil {
			sp.stream.Close()
		}
		sp.streamLock.Unlock()
		if !sp.status.IsInitialized() {
			sp.status.SetFailed(ErrClosedBeforeReady)
		}
	})
	return nil
}

func (sp *StreamProcessor) isClosed() bool {
	select {
	case <-sp.halt:
		return true
	default:
		return false
	}
}

func (sp *StreamProcessor) subscribe() {
	req, err := http.NewRequest(http.MethodGet, sp.uri, nil)
	if err != nil {
		sp.loggers.Errorf(logMsgSubscribeFailed, err)
		sp.status.SetFailed(err)
		return
	}
	for k, vv := range sp.headers {
		req.Header[k] = vv
	}
	req.Header.Set("Accept", "text/event-stream")
	sp.loggers.Infof(logMsgConnecting, sp.uri)

	stream, err := sp.factory.NewEventSource(req, EventSourceParams{
		HTTPClient:        sp.client,
		InitialRetryDelay: sp.retryDelay,
		ErrorHandler:      sp.handleConnectionError,
		Loggers:           sp.loggers,
	})
	if err != nil {
		if !sp.isClosed() && sp.status.State() != datasource.StateFailed {
			sp.loggers.Errorf(logMsgSubscribeFailed, err)
		}
		sp.status.SetFailed(err)
		return
	}

	sp.streamLock.Lock()
	if sp.isClosed() {
		sp.streamLock.Unlock()
		stream.Close()
		return
	}
	sp.stream = stream
	sp.streamLock.Unlock()

	sp.consumeStream(stream)
}

func (sp *StreamProcessor) handleConnectionError(err error) es.StreamErrorHandlerResult {
	if sp.isClosed() {
		return es.StreamErrorHandlerResult{CloseNow: true}
	}

	status := statusCodeOf(err)
	metrics.RecordStreamError(sp.metricsCtx, status)
	desc := err.Error()
	if status > 0 {
		desc = requestor.HTTPErrorDescription(status)
	}

	if ClassifyConnectionError(err) == ActionShutdown {
		requestor.CheckIfErrorIsRecoverableAndLog(sp.loggers, desc, streamingErrorContext, status, streamingWillRetryMessage)
		sp.status.SetFailed(err)
		return es.StreamErrorHandlerResult{CloseNow: true}
	}
	requestor.CheckIfErrorIsRecoverableAndLog(sp.loggers, desc, streamingErrorContext, status, streamingWillRetryMessage)
	sp.status.SetError(err)
	return es.StreamErrorHandlerResult{CloseNow: false}
}

func (sp *StreamProcessor) consumeStream(stream EventSource) {
	events := stream.Events()
	// consume anything left over so the event source can shut down
	defer func() {
		go func() {
			for range events { //nolint:revive
			}
		}()
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				sp.loggers.Info(logMsgStreamClosed)
				return
			}
			metrics.RecordStreamEvent(sp.metricsCtx, event.Event())
			if sp.loggers.IsDebugEnabled() {
				sp.loggers.Debugf("Received %q event: %s", event.Event(), event.Data())
			}
			if restart := sp.handleEvent(event); restart {
				stream.Restart()
			}

		case <-sp.halt:
			stream.Close()
			return
		}
	}
}

// handleEvent applies one stream event to the store. It returns true if the stream should be restarted.
func (sp *StreamProcessor) handleEvent(event es.Event) bool {
	switch event.Event() {
	case PutEvent:
		var put putData
		if err := json.Unmarshal([]byte(event.Data()), &put); err != nil {
			sp.malformedEvent(event, err)
			return false
		}
		if len(put.Data) == 0 || string(put.Data) == "null" {
			sp.malformedEvent(event, errMissingData(PutEvent))
			return false
		}
		allData, err := datakinds.ParseAllData(put.Data)
		if err != nil {
			sp.malformedEvent(event, err)
			return false
		}
		return sp.initStore(allData)

	case PatchEvent:
		var patch patchData
		if err := json.Unmarshal([]byte(event.Data()), &patch); err != nil {
			sp.malformedEvent(event, err)
			return false
		}
		kind, key, ok := datakinds.FromStreamPath(patch.Path)
		if !ok {
			sp.loggers.Infof(logMsgUnknownPath, PatchEvent, patch.Path)
			return false
		}
		if len(patch.Data) == 0 {
			sp.malformedEvent(event, errMissingData(PatchEvent))
			return false
		}
		item, err := kind.Decode(patch.Data)
		if err != nil {
			sp.malformedEvent(event, err)
			return false
		}
		return sp.upsertItem(kind, key, item)

	case DeleteEvent:
		var del deleteData
		if err := json.Unmarshal([]byte(event.Data()), &del); err != nil {
			sp.malformedEvent(event, err)
			return false
		}
		kind, key, ok := datakinds.FromStreamPath(del.Path)
		if !ok {
			sp.loggers.Infof(logMsgUnknownPath, DeleteEvent, del.Path)
			return false
		}
		return sp.upsertItem(kind, key, st.ItemDescriptor{Version: del.Version, Item: nil})

	case IndirectPutEvent:
		if sp.requestor == nil {
			sp.loggers.Errorf(logMsgNoRequestor, IndirectPutEvent)
			return false
		}
		allData, err := sp.requestor.GetAll()
		if err != nil {
			sp.indirectFetchFailed(IndirectPutEvent, err)
			return false
		}
		return sp.initStore(allData)

	case IndirectPatchEvent:
		path := strings.TrimSpace(event.Data())
		kind, key, ok := datakinds.FromStreamPath(path)
		if !ok {
			sp.loggers.Infof(logMsgUnknownPath, IndirectPatchEvent, path)
			return false
		}
		if sp.requestor == nil {
			sp.loggers.Errorf(logMsgNoRequestor, IndirectPatchEvent)
			return false
		}
		item, err := sp.requestor.GetOne(kind, key)
		if err != nil {
			sp.indirectFetchFailed(IndirectPatchEvent, err)
			return false
		}
		return sp.upsertItem(kind, key, item)

	default:
		sp.loggers.Infof(logMsgUnknownEvent, event.Event())
		return false
	}
}

func (sp *StreamProcessor) initStore(allData []st.Collection) bool {
	if err := sp.store.Init(allData); err != nil {
		sp.storeFailed("initial streaming data", err)
		return true
	}
	if sp.status.SetInitialized() {
		sp.loggers.Info(logMsgInitialized)
	}
	return false
}

func (sp *StreamProcessor) upsertItem(kind st.DataKind, key string, item st.ItemDescriptor) bool {
	if _, err := sp.store.Upsert(kind, key, item); err != nil {
		sp.storeFailed("streaming update of "+kind.Name+" "+key, err)
		return true
	}
	return false
}

func (sp *StreamProcessor) malformedEvent(event es.Event, err error) {
	sp.loggers.Errorf(logMsgMalformedData, event.Event(), err)
}

func (sp *StreamProcessor) storeFailed(desc string, err error) {
	sp.loggers.Errorf(logMsgStoreFailed, desc, err)
	sp.status.SetError(err)
}

func (sp *StreamProcessor) indirectFetchFailed(eventName string, err error) {
	sp.loggers.Errorf(logMsgIndirectFetchFailed, eventName, err)
	sp.status.SetError(err)
}
