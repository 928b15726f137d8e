// Package polling contains the polling data source, which is used instead of the stream processor when
// streaming is turned off.
package polling

import (
	"context"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/ld-sync/internal/datasource"
	"github.com/launchdarkly/ld-sync/internal/metrics"
	"github.com/launchdarkly/ld-sync/internal/requestor"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

const (
	pollingErrorContext     = "on polling request"
	pollingWillRetryMessage = "will retry at next scheduled poll interval"

	// MinimumPollInterval is the shortest interval allowed by configuration.
	MinimumPollInterval = 30 * time.Second
)

// cacheAwareRequestor is implemented by requestor.HTTPRequestor. When the requestor can tell that the
// data has not changed since the last poll, the store is left alone.
type cacheAwareRequestor interface {
	GetAllIfModified(skipIfCached bool) ([]st.Collection, bool, error)
}

// PollingProcessor requests the full data set at a fixed interval and stores it.
type PollingProcessor struct {
	store        st.Store
	requestor    requestor.Requestor
	pollInterval time.Duration
	metricsCtx   context.Context
	loggers      ldlog.Loggers
	status       *datasource.Status
	startOnce    sync.Once
	closeOnce    sync.Once
	quit         chan struct{}
}

// NewPollingProcessor creates a PollingProcessor. The interval is not checked against
// MinimumPollInterval here, so that tests can use a short one; configuration validation enforces it.
func NewPollingProcessor(
	store st.Store,
	req requestor.Requestor,
	pollInterval time.Duration,
	metricsCtx context.Context,
	loggers ldlog.Loggers,
) *PollingProcessor {
	loggers.SetPrefix("PollingProcessor:")
	if metricsCtx == nil {
		metricsCtx = context.Background()
	}
	return &PollingProcessor{
		store:        store,
		requestor:    req,
		pollInterval: pollInterval,
		metricsCtx:   metricsCtx,
		loggers:      loggers,
		status:       datasource.NewStatus(),
		quit:         make(chan struct{}),
	}
}

// Start polls immediately, and then at every interval, in the background.
func (pp *PollingProcessor) Start() <-chan struct{} {
	pp.startOnce.Do(func() {
		pp.loggers.Infof("Starting LaunchDarkly polling with interval: %+v", pp.pollInterval)
		go pp.run()
	})
	return pp.status.Ready()
}

// IsInitialized returns true once a poll has succeeded.
func (pp *PollingProcessor) IsInitialized() bool {
	return pp.status.IsInitialized()
}

// State returns the current lifecycle state.
func (pp *PollingProcessor) State() datasource.State {
	return pp.status.State()
}

// LastError returns the error from the most recent failed poll.
func (pp *PollingProcessor) LastError() error {
	return pp.status.LastError()
}

// Close stops polling.
func (pp *PollingProcessor) Close() error {
	pp.closeOnce.Do(func() {
		close(pp.quit)
	})
	return nil
}

func (pp *PollingProcessor) run() {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-pp.quit:
			pp.loggers.Info("Polling has been shut down")
			if !pp.status.IsInitialized() {
				pp.status.SetFailed(datasource.ErrClosed)
			}
			return
		case <-timer.C:
			if !pp.pollAndHandleResult() {
				return
			}
			timer.Reset(pp.pollInterval)
		}
	}
}

// pollAndHandleResult returns false if polling should stop permanently.
func (pp *PollingProcessor) pollAndHandleResult() bool {
	err := pp.poll()
	if err == nil {
		metrics.RecordPoll(pp.metricsCtx, metrics.PollResultSuccess)
		if pp.status.SetInitialized() {
			pp.loggers.Info("First polling request successful")
		}
		return true
	}

	metrics.RecordPoll(pp.metricsCtx, metrics.PollResultError)
	status := requestor.StatusCodeOf(err)
	desc := err.Error()
	if status > 0 {
		desc = requestor.HTTPErrorDescription(status)
	}
	if requestor.CheckIfErrorIsRecoverableAndLog(pp.loggers, desc, pollingErrorContext, status, pollingWillRetryMessage) {
		pp.status.SetError(err)
		return true
	}
	pp.status.SetFailed(err)
	return false
}

func (pp *PollingProcessor) poll() error {
	var allData []st.Collection
	if car, ok := pp.requestor.(cacheAwareRequestor); ok {
		data, cached, err := car.GetAllIfModified(pp.status.IsInitialized())
		if err != nil {
			return err
		}
		if cached && data == nil {
			if pp.loggers.IsDebugEnabled() {
				pp.loggers.Debug("Data has not changed since the last poll")
			}
			return nil
		}
		allData = data
	} else {
		data, err := pp.requestor.GetAll()
		if err != nil {
			return err
		}
		allData = data
	}
	return pp.store.Init(allData)
}
