package metrics

import (
	"context"
	"strconv"
	"strings"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

var (
	streamEventMeasure = stats.Int64("stream_events", "stream messages received", stats.UnitDimensionless)     //nolint:gochecknoglobals
	streamErrorMeasure = stats.Int64("stream_errors", "stream connection failures", stats.UnitDimensionless)   //nolint:gochecknoglobals
	cacheLookupMeasure = stats.Int64("store_cache_lookups", "database cache lookups", stats.UnitDimensionless) //nolint:gochecknoglobals
	//nolint:gochecknoglobals
	cacheRefreshErrorMeasure = stats.Int64("store_cache_refresh_errors", "failed background cache refreshes",
		stats.UnitDimensionless)
	pollMeasure    = stats.Int64("polls", "polling requests", stats.UnitDimensionless)          //nolint:gochecknoglobals
	requestMeasure = stats.Int64("requests", "HTTP requests received", stats.UnitDimensionless) //nolint:gochecknoglobals
)

// RecordStreamEvent counts a stream message by event name.
func RecordStreamEvent(ctx context.Context, eventName string) {
	record(ctx, streamEventMeasure, tag.Upsert(eventTagKey, sanitizeTagValue(eventName)))
}

// RecordStreamError counts a failed stream connection. A status of zero means the failure was not an
// HTTP error response.
func RecordStreamError(ctx context.Context, status int) {
	statusValue := networkErrorStatusTagValue
	if status != 0 {
		statusValue = strconv.Itoa(status)
	}
	record(ctx, streamErrorMeasure, tag.Upsert(statusTagKey, statusValue))
}

// RecordCacheLookup counts a cache lookup; result is CacheResultHit, CacheResultMiss, or CacheResultStale.
func RecordCacheLookup(ctx context.Context, result string) {
	record(ctx, cacheLookupMeasure, tag.Upsert(resultTagKey, result))
}

// RecordCacheRefreshError counts a background cache refresh that failed.
func RecordCacheRefreshError(ctx context.Context) {
	record(ctx, cacheRefreshErrorMeasure)
}

// RecordPoll counts a polling request; result is PollResultSuccess or PollResultError.
func RecordPoll(ctx context.Context, result string) {
	record(ctx, pollMeasure, tag.Upsert(resultTagKey, result))
}

// RecordRequest counts an HTTP request received by route template and method.
func RecordRequest(ctx context.Context, route, method string) {
	if route == "" {
		route = "_"
	}
	record(ctx, requestMeasure, tag.Upsert(routeTagKey, route), tag.Upsert(methodTagKey, method))
}

func record(ctx context.Context, measure *stats.Int64Measure, mutators ...tag.Mutator) {
	if ctx == nil {
		ctx = context.Background()
	}
	_ = stats.RecordWithTags(ctx, mutators, measure.M(1))
}

// Pad empty keys to match tag keyset cardinality since empty strings are dropped
func sanitizeTagValue(v string) string {
	if strings.TrimSpace(v) == "" {
		return "_"
	}
	return strings.Replace(v, "/", "_", -1)
}
