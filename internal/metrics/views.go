package metrics

import (
	"fmt"
	"sync"

	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	registerViewsOnce sync.Once //nolint:gochecknoglobals
	errRegisterViews  error     //nolint:gochecknoglobals

	streamEventView = &view.View{ //nolint:gochecknoglobals
		Name:        streamEventMeasure.Name(),
		Measure:     streamEventMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{instanceIDTagKey, eventTagKey},
	}
	streamErrorView = &view.View{ //nolint:gochecknoglobals
		Name:        streamErrorMeasure.Name(),
		Measure:     streamErrorMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{instanceIDTagKey, statusTagKey},
	}
	cacheLookupView = &view.View{ //nolint:gochecknoglobals
		Name:        cacheLookupMeasure.Name(),
		Measure:     cacheLookupMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{instanceIDTagKey, resultTagKey},
	}
	cacheRefreshErrorView = &view.View{ //nolint:gochecknoglobals
		Name:        cacheRefreshErrorMeasure.Name(),
		Measure:     cacheRefreshErrorMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{instanceIDTagKey},
	}
	pollView = &view.View{ //nolint:gochecknoglobals
		Name:        pollMeasure.Name(),
		Measure:     pollMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{instanceIDTagKey, resultTagKey},
	}
	requestView = &view.View{ //nolint:gochecknoglobals
		Name:        requestMeasure.Name(),
		Measure:     requestMeasure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{instanceIDTagKey, routeTagKey, methodTagKey},
	}
)

func getViews() []*view.View {
	return []*view.View{streamEventView, streamErrorView, cacheLookupView, cacheRefreshErrorView, pollView, requestView}
}

// OpenCensus views are process-global, so they are registered only once no matter how many Managers
// are created.
func registerViews() error {
	registerViewsOnce.Do(func() {
		if err := view.Register(getViews()...); err != nil {
			errRegisterViews = fmt.Errorf("error registering metrics views: %w", err)
		}
	})
	return errRegisterViews
}
