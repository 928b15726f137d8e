package replica

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"

	"github.com/launchdarkly/ld-sync/config"
	"github.com/launchdarkly/ld-sync/internal/datakinds"
	"github.com/launchdarkly/ld-sync/internal/datasource"
	"github.com/launchdarkly/ld-sync/internal/datastores"
	"github.com/launchdarkly/ld-sync/internal/events"
	"github.com/launchdarkly/ld-sync/internal/filedata"
	"github.com/launchdarkly/ld-sync/internal/httpconfig"
	"github.com/launchdarkly/ld-sync/internal/metrics"
	"github.com/launchdarkly/ld-sync/internal/polling"
	"github.com/launchdarkly/ld-sync/internal/requestor"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
	"github.com/launchdarkly/ld-sync/internal/streaming"
)

var errReplicaClosed = errors.New("replica has been closed")

// Options contains settings that are not part of the configuration file. The zero value is valid.
type Options struct {
	// EventSourceFactory replaces the stream connection, for testing.
	EventSourceFactory streaming.EventSourceFactory

	// PollInterval overrides Main.PollInterval without enforcing its minimum, for testing.
	PollInterval time.Duration
}

// Replica keeps a local copy of the flags and segments of one environment, using whichever data source
// and store the configuration specifies.
//
// Replica is an http.Handler that serves the routes described in makeRouter.
type Replica struct {
	http.Handler
	config         config.Config
	store          st.Store
	storeInfo      datastores.DataStoreInfo
	dataSource     datasource.DataSource
	dataSourceType string
	summarizer     *events.EventSummarizer
	metricsManager *metrics.Manager
	loggers        ldlog.Loggers
	closed         bool
	lock           sync.RWMutex
}

// NewReplica creates a Replica from a validated configuration. Call Start to begin receiving data.
func NewReplica(c config.Config, options Options, loggers ldlog.Loggers) (*Replica, error) {
	metricsManager, err := metrics.NewManager(c.MetricsConfig, loggers)
	if err != nil {
		return nil, errNewMetricsManagerFailed(err)
	}

	httpConfig, err := httpconfig.NewHTTPConfig(c.Proxy, c.Main.SDKKey, loggers)
	if err != nil {
		metricsManager.Close()
		return nil, err
	}

	store, storeInfo, err := datastores.NewStore(c, metricsManager.OpenCensusContext(), loggers)
	if err != nil {
		metricsManager.Close()
		return nil, errNewStoreFailed(err)
	}

	r := &Replica{
		config:         c,
		store:          store,
		storeInfo:      storeInfo,
		summarizer:     events.NewEventSummarizer(),
		metricsManager: metricsManager,
		loggers:        loggers,
	}
	r.dataSource, r.dataSourceType = makeDataSource(c, options, httpConfig, store, metricsManager, loggers)
	r.Handler = r.makeRouter()
	return r, nil
}

func makeDataSource(
	c config.Config,
	options Options,
	httpConfig httpconfig.HTTPConfig,
	store st.Store,
	metricsManager *metrics.Manager,
	loggers ldlog.Loggers,
) (datasource.DataSource, string) {
	if paths := c.Files.Paths.Values(); len(paths) != 0 {
		loggers.Infof(logMsgUsingFileData, strings.Join(paths, ", "))
		return filedata.NewFileDataSource(store, paths, c.Files.Reload, 0, loggers), dataSourceTypeFile
	}

	headers := httpConfig.DefaultHeaders()
	req := requestor.NewHTTPRequestor(httpConfig.Client(), trimTrailingSlash(c.Main.BaseURI.String()), headers, loggers)

	if c.Main.Stream {
		return streaming.NewStreamProcessor(store, req, streaming.StreamConfig{
			URI:                trimTrailingSlash(c.Main.StreamURI.String()),
			HTTPClient:         httpConfig.Client(),
			Headers:            headers,
			InitialRetryDelay:  c.Main.InitialReconnectDelay.GetOrElse(config.DefaultInitialReconnectDelay),
			EventSourceFactory: options.EventSourceFactory,
			MetricsContext:     metricsManager.OpenCensusContext(),
		}, loggers), dataSourceTypeStreaming
	}

	interval := options.PollInterval
	if interval <= 0 {
		interval = c.Main.PollInterval.GetOrElse(config.DefaultPollInterval)
	}
	loggers.Infof(logMsgUsingPolling, interval)
	return polling.NewPollingProcessor(store, req, interval, metricsManager.OpenCensusContext(), loggers),
		dataSourceTypePolling
}

// Start begins receiving data. The returned channel is closed when the replica has a full data set or
// when the data source has permanently failed.
func (r *Replica) Start() <-chan struct{} {
	return r.dataSource.Start()
}

// WaitForReady starts the replica if necessary and waits until it is initialized, it permanently fails,
// or the timeout elapses. It returns true if the replica is initialized.
func (r *Replica) WaitForReady(timeout time.Duration) bool {
	ready := r.Start()
	select {
	case <-ready:
	case <-time.After(timeout):
		r.loggers.Warnf(logMsgStartTimedOut, timeout)
	}
	return r.dataSource.IsInitialized()
}

// IsInitialized returns true if the data source has stored a full data set.
func (r *Replica) IsInitialized() bool {
	return r.dataSource.IsInitialized()
}

// GetFlag returns a flag from the store. The boolean is false if the flag does not exist or was
// deleted.
func (r *Replica) GetFlag(key string) (ldmodel.FeatureFlag, bool, error) {
	item, err := r.getItem(datakinds.Features, key)
	if err != nil || item.Item == nil {
		return ldmodel.FeatureFlag{}, false, err
	}
	flag, ok := item.Item.(*ldmodel.FeatureFlag)
	if !ok {
		return ldmodel.FeatureFlag{}, false, nil
	}
	return *flag, true, nil
}

// GetSegment returns a segment from the store. The boolean is false if the segment does not exist or
// was deleted.
func (r *Replica) GetSegment(key string) (ldmodel.Segment, bool, error) {
	item, err := r.getItem(datakinds.Segments, key)
	if err != nil || item.Item == nil {
		return ldmodel.Segment{}, false, err
	}
	segment, ok := item.Item.(*ldmodel.Segment)
	if !ok {
		return ldmodel.Segment{}, false, nil
	}
	return *segment, true, nil
}

// AllFlags returns every flag that exists in the store, not including deleted ones.
func (r *Replica) AllFlags() ([]ldmodel.FeatureFlag, error) {
	if r.isClosed() {
		return nil, errReplicaClosed
	}
	items, err := r.store.GetAll(datakinds.Features)
	if err != nil {
		return nil, err
	}
	ret := make([]ldmodel.FeatureFlag, 0, len(items))
	for _, keyedItem := range items {
		if flag, ok := keyedItem.Item.Item.(*ldmodel.FeatureFlag); ok && flag != nil {
			ret = append(ret, *flag)
		}
	}
	return ret, nil
}

// RecordEvaluation adds one flag evaluation to the summary. The flag version is looked up in the store;
// if the flag does not exist, the evaluation is counted as unknown.
func (r *Replica) RecordEvaluation(flagKey string, variation ldvalue.OptionalInt, value, defaultValue ldvalue.Value) {
	now := ldtime.UnixMillisNow()
	flag, found, err := r.GetFlag(flagKey)
	if err != nil {
		r.loggers.Warnf(logMsgEvalLookupFailed, flagKey, err)
	}
	if found {
		r.summarizer.SummarizeEvent(events.NewFeatureRequestEvent(&flag, variation, value, defaultValue, now))
	} else {
		r.summarizer.SummarizeEvent(events.NewUnknownFlagEvent(flagKey, defaultValue, now))
	}
}

// Summary returns the evaluations counted since the previous call, as a summary event, and resets the
// counters.
func (r *Replica) Summary() []byte {
	return events.MakeSummaryEventJSON(r.summarizer.Snapshot())
}

// Close shuts down the data source and the store, then the metrics exporters. It is safe to call more than
// once.
func (r *Replica) Close() error {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return nil
	}
	r.closed = true
	r.lock.Unlock()

	var firstErr error
	if err := r.dataSource.Close(); err != nil {
		firstErr = err
	}
	if err := r.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	r.metricsManager.Close()
	return firstErr
}

func (r *Replica) getItem(kind st.DataKind, key string) (st.ItemDescriptor, error) {
	if r.isClosed() {
		return st.ItemDescriptor{}.NotFound(), errReplicaClosed
	}
	return r.store.Get(kind, key)
}

func (r *Replica) isClosed() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.closed
}

func trimTrailingSlash(uri string) string {
	return strings.TrimRight(uri, "/")
}
