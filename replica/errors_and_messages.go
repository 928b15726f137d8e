package replica

import "fmt"

const (
	dataSourceTypeStreaming = "streaming"
	dataSourceTypePolling   = "polling"
	dataSourceTypeFile      = "file"

	logMsgUsingFileData    = "Reading flag data from file(s): %s"
	logMsgUsingPolling     = "Streaming is disabled; polling every %s"
	logMsgStartTimedOut    = "Data source did not initialize within %s; continuing to wait in the background"
	logMsgEvalLookupFailed = "Unable to look up flag %q for evaluation summary: %s"
)

func errNewMetricsManagerFailed(err error) error {
	return fmt.Errorf("unable to create metrics manager: %w", err)
}

func errNewStoreFailed(err error) error {
	return fmt.Errorf("unable to create data store: %w", err)
}
