package store

// StaleValuesPolicy determines what the caching wrapper does when a cache entry has outlived its TTL.
type StaleValuesPolicy int

const (
	// StaleValuesEvict drops expired entries; the next read queries the durable store and waits for it.
	StaleValuesEvict StaleValuesPolicy = iota
	// StaleValuesRefresh reloads an expired entry synchronously on the next read. Readers of the same key
	// share a single reload.
	StaleValuesRefresh
	// StaleValuesRefreshAsync serves the expired value immediately and reloads it in the background. At
	// most one reload per key is in flight at a time.
	StaleValuesRefreshAsync
)

func (p StaleValuesPolicy) String() string {
	switch p {
	case StaleValuesEvict:
		return "evict"
	case StaleValuesRefresh:
		return "refresh"
	case StaleValuesRefreshAsync:
		return "refreshAsync"
	default:
		return "unknown"
	}
}
