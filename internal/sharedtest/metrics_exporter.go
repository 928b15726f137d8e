package sharedtest

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
)

// TestMetricsExporter accumulates OpenCensus view data for tests, flattened into rows so that a test
// can look for one specific row.
type TestMetricsExporter struct {
	dataCh   chan TestMetricsData
	lastData TestMetricsData
	lock     sync.Mutex
}

// TestMetricsData maps OpenCensus view names to rows.
type TestMetricsData map[string][]TestMetricsRow

// TestMetricsRow is a simplified OpenCensus view row.
type TestMetricsRow struct {
	Tags  map[string]string
	Count int64
}

// HasRow returns true if the view has a row equal to expectedRow.
func (d TestMetricsData) HasRow(viewName string, expectedRow TestMetricsRow) bool {
	for _, r := range d[viewName] {
		if reflect.DeepEqual(r, expectedRow) {
			return true
		}
	}
	return false
}

func NewTestMetricsExporter() *TestMetricsExporter {
	return &TestMetricsExporter{
		dataCh:   make(chan TestMetricsData, 100),
		lastData: make(TestMetricsData),
	}
}

// WithExporter registers the exporter for the duration of the function, with a short reporting period.
func (e *TestMetricsExporter) WithExporter(fn func()) {
	view.SetReportingPeriod(time.Millisecond * 10)
	view.RegisterExporter(e)
	defer view.UnregisterExporter(e)
	fn()
}

// ExportView is called by OpenCensus.
func (e *TestMetricsExporter) ExportView(viewData *view.Data) {
	e.lock.Lock()
	defer e.lock.Unlock()

	viewName := viewData.View.Name
	rows := []TestMetricsRow{}
	for _, vr := range viewData.Rows {
		tr := TestMetricsRow{Tags: make(map[string]string, len(vr.Tags))}
		for _, t := range vr.Tags {
			tr.Tags[t.Key.Name()] = t.Value
		}
		if countData, ok := vr.Data.(*view.CountData); ok {
			tr.Count = countData.Value
		}
		rows = append(rows, tr)
	}

	if !reflect.DeepEqual(rows, e.lastData[viewName]) {
		e.lastData[viewName] = rows
		dataCopy := make(TestMetricsData)
		for k, v := range e.lastData {
			dataCopy[k] = v
		}
		select {
		case e.dataCh <- dataCopy:
		default: // a test that stopped reading doesn't need more
		}
	}
}

// AwaitData waits until the accumulated view data satisfies fn.
func (e *TestMetricsExporter) AwaitData(t *testing.T, timeout time.Duration, fn func(TestMetricsData) bool) {
	deadline := time.After(timeout)
	for {
		select {
		case d := <-e.dataCh:
			if fn(d) {
				return
			}
		case <-deadline:
			require.Fail(t, "timed out waiting for metrics data")
			return
		}
	}
}
