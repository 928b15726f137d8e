package replica

import (
	"encoding/json"
	"net/http"

	"github.com/launchdarkly/ld-sync/internal/datasource"
	"github.com/launchdarkly/ld-sync/internal/datastores"
	"github.com/launchdarkly/ld-sync/internal/store"
	"github.com/launchdarkly/ld-sync/internal/version"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// StatusRep is the JSON representation returned by the /status route.
type StatusRep struct {
	Status     string            `json:"status"`
	DataSource DataSourceRep     `json:"dataSource"`
	Store      StoreRep          `json:"store"`
	SDKKey     string            `json:"sdkKey,omitempty"`
	Version    string            `json:"version"`
	InstanceID string            `json:"instanceId"`
	CacheStats *store.CacheStats `json:"cacheStats,omitempty"`
}

// DataSourceRep describes the data source in StatusRep.
type DataSourceRep struct {
	Type      string           `json:"type"`
	State     datasource.State `json:"state"`
	LastError string           `json:"lastError,omitempty"`
}

// StoreRep describes the data store in StatusRep.
type StoreRep struct {
	datastores.DataStoreInfo
	Initialized bool `json:"initialized"`
	Available   bool `json:"available"`
}

type availabilityReporter interface {
	IsStoreAvailable() bool
}

type cacheStatsReporter interface {
	GetCacheStats() store.CacheStats
}

// GetStatus returns the current state of the replica.
func (r *Replica) GetStatus() StatusRep {
	rep := StatusRep{
		DataSource: DataSourceRep{
			Type:  r.dataSourceType,
			State: r.dataSource.State(),
		},
		Store: StoreRep{
			DataStoreInfo: r.storeInfo,
			Initialized:   r.store.IsInitialized(),
			Available:     true,
		},
		SDKKey:     ObscureKey(r.config.Main.SDKKey),
		Version:    version.Version,
		InstanceID: r.metricsManager.InstanceID(),
	}
	if err := r.dataSource.LastError(); err != nil {
		rep.DataSource.LastError = err.Error()
	}
	if ar, ok := r.store.(availabilityReporter); ok {
		rep.Store.Available = ar.IsStoreAvailable()
	}
	if cr, ok := r.store.(cacheStatsReporter); ok {
		stats := cr.GetCacheStats()
		rep.CacheStats = &stats
	}
	if rep.DataSource.State == datasource.StateInitialized && rep.Store.Available {
		rep.Status = statusHealthy
	} else {
		rep.Status = statusDegraded
	}
	return rep
}

func statusHandler(r *Replica) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		data, err := json.Marshal(r.GetStatus())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, data)
	})
}

// ObscureKey returns an obfuscated version of an SDK key, showing only the last few characters.
func ObscureKey(key string) string {
	if len(key) > 8 {
		return "********" + key[len(key)-5:]
	}
	return key
}
