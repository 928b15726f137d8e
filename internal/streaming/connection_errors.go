package streaming

import (
	"errors"

	es "github.com/launchdarkly/eventsource"

	"github.com/launchdarkly/ld-sync/internal/requestor"
)

// ConnectionErrorAction is what the stream processor does after a connection failure.
type ConnectionErrorAction int

const (
	// ActionProceed means keep reconnecting with backoff.
	ActionProceed ConnectionErrorAction = iota
	// ActionShutdown means stop permanently.
	ActionShutdown
)

func (a ConnectionErrorAction) String() string {
	if a == ActionShutdown {
		return "SHUTDOWN"
	}
	return "PROCEED"
}

// ClassifyConnectionError decides whether a stream connection failure is worth retrying. HTTP 400, 408,
// 429, and 5xx errors are; other 4xx errors, including 401 and 403, are not. Errors that carry no HTTP
// status, such as network failures, are always retried.
func ClassifyConnectionError(err error) ConnectionErrorAction {
	status := statusCodeOf(err)
	if status > 0 && !requestor.IsHTTPErrorRecoverable(status) {
		return ActionShutdown
	}
	return ActionProceed
}

func statusCodeOf(err error) int {
	var se es.SubscriptionError
	if errors.As(err, &se) {
		return se.Code
	}
	return requestor.StatusCodeOf(err)
}
