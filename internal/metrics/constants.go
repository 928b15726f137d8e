package metrics

import "go.opencensus.io/tag"

const (
	defaultMetricsPrefix = "launchdarkly_sync"

	// CacheResultHit, CacheResultMiss, and CacheResultStale are the values of the "result" tag for
	// cache lookups.
	CacheResultHit   = "hit"
	CacheResultMiss  = "miss"
	CacheResultStale = "stale"

	// PollResultSuccess and PollResultError are the values of the "result" tag for polls.
	PollResultSuccess = "success"
	PollResultError   = "error"

	networkErrorStatusTagValue = "network"
)

var (
	instanceIDTagKey, _ = tag.NewKey("instanceId") //nolint:gochecknoglobals
	eventTagKey, _      = tag.NewKey("event")      //nolint:gochecknoglobals
	statusTagKey, _     = tag.NewKey("status")     //nolint:gochecknoglobals
	resultTagKey, _     = tag.NewKey("result")     //nolint:gochecknoglobals
	routeTagKey, _      = tag.NewKey("route")      //nolint:gochecknoglobals
	methodTagKey, _     = tag.NewKey("method")     //nolint:gochecknoglobals
)
