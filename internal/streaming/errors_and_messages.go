package streaming

import (
	"fmt"

	"github.com/launchdarkly/ld-sync/internal/datasource"
)

const (
	logMsgStarting            = "Starting LaunchDarkly streaming connection"
	logMsgConnecting          = "Connecting to LaunchDarkly stream at %s"
	logMsgInitialized         = "LaunchDarkly streaming is active"
	logMsgStreamClosed        = "Event stream closed"
	logMsgSubscribeFailed     = "Unable to start stream connection: %s"
	logMsgMalformedData       = "Received streaming %q event with malformed data (%s); ignoring it"
	logMsgUnknownPath         = "Ignoring %q event for unrecognized path %q"
	logMsgUnknownEvent        = "Ignoring unrecognized stream event: %q"
	logMsgStoreFailed         = "Failed to store %s in data store (%s); will restart stream"
	logMsgIndirectFetchFailed = "Failed to fetch data for %q event: %s"
	logMsgNoRequestor         = "Received %q event but no requestor is configured"

	streamingErrorContext     = "in stream connection"
	streamingWillRetryMessage = "will retry"
)

// ErrClosedBeforeReady is the last error of a stream processor that was closed before it received a
// full data set.
var ErrClosedBeforeReady = datasource.ErrClosed

func errMissingData(eventName string) error {
	return fmt.Errorf("%q event has no data property", eventName)
}
