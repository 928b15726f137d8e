package metrics

import (
	"context"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/pborman/uuid"
	"go.opencensus.io/tag"

	"github.com/launchdarkly/ld-sync/config"
)

// Manager owns the metrics exporters for one ld-sync instance, and the OpenCensus context that
// components pass to the Record functions.
//
// Every measurement recorded with the Manager's context carries an instance ID tag, so that data from
// several instances can be told apart in an aggregating backend.
type Manager struct {
	openCensusCtx context.Context
	instanceID    string
	exporters     map[exporterType]exporter
	loggers       ldlog.Loggers
	closeOnce     sync.Once
}

// NewManager registers the metrics views and creates whichever exporters are enabled in the
// configuration. With no exporters enabled, measurements are still aggregated but go nowhere.
func NewManager(mc config.MetricsConfig, loggers ldlog.Loggers) (*Manager, error) {
	if err := registerViews(); err != nil {
		return nil, err
	}
	instanceID := uuid.New()
	ctx, err := tag.New(context.Background(), tag.Insert(instanceIDTagKey, instanceID))
	if err != nil {
		return nil, err
	}
	exporters, err := registerExporters(allExporterTypes(), mc, loggers)
	if err != nil {
		return nil, err
	}
	return &Manager{
		openCensusCtx: ctx,
		instanceID:    instanceID,
		exporters:     exporters,
		loggers:       loggers,
	}, nil
}

// OpenCensusContext returns the context to use when recording measurements.
func (m *Manager) OpenCensusContext() context.Context {
	return m.openCensusCtx
}

// InstanceID returns the randomly generated ID of this instance.
func (m *Manager) InstanceID() string {
	return m.instanceID
}

// Close shuts down all exporters. It is safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		closeExporters(m.exporters, m.loggers)
	})
}
