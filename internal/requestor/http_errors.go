package requestor

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// HTTPStatusError is returned when a LaunchDarkly endpoint responds with a non-2xx status.
type HTTPStatusError struct {
	Code    int
	Message string
}

func (e HTTPStatusError) Error() string {
	return e.Message
}

// MalformedJSONError is returned when a response body could not be parsed.
type MalformedJSONError struct {
	Err error
}

func (e MalformedJSONError) Error() string {
	return "malformed JSON data: " + e.Err.Error()
}

func (e MalformedJSONError) Unwrap() error {
	return e.Err
}

// StatusCodeOf returns the HTTP status of an HTTPStatusError, or zero for any other error.
func StatusCodeOf(err error) int {
	var se HTTPStatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsHTTPErrorRecoverable returns true if a request that failed with this status should be retried
// later. Most 4xx errors mean the request can never succeed; 400, 408, and 429 are exceptions.
func IsHTTPErrorRecoverable(statusCode int) bool {
	if statusCode < 400 || statusCode >= 500 {
		return true
	}
	switch statusCode {
	case http.StatusBadRequest, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// HTTPErrorDescription describes a status for log output.
func HTTPErrorDescription(statusCode int) string {
	suffix := ""
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		suffix = " (invalid SDK key)"
	}
	return fmt.Sprintf("HTTP error %d%s", statusCode, suffix)
}

// CheckIfErrorIsRecoverableAndLog logs a failed request at Error level if it is permanent, or at Warn
// level otherwise, and returns true if it is recoverable. A zero status means a network error.
func CheckIfErrorIsRecoverableAndLog(
	loggers ldlog.Loggers,
	errorDesc, errorContext string,
	statusCode int,
	recoverableMessage string,
) bool {
	if statusCode > 0 && !IsHTTPErrorRecoverable(statusCode) {
		loggers.Errorf("Error %s (giving up permanently): %s", errorContext, errorDesc)
		return false
	}
	loggers.Warnf("Error %s (%s): %s", errorContext, recoverableMessage, errorDesc)
	return true
}

func checkResponseStatus(statusCode int, url string) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return HTTPStatusError{
			Code:    statusCode,
			Message: fmt.Sprintf("Invalid SDK key when accessing URL: %s. Verify that your SDK key is correct.", url),
		}
	case statusCode == http.StatusNotFound:
		return HTTPStatusError{
			Code:    statusCode,
			Message: fmt.Sprintf("Resource not found when accessing URL: %s. Verify that this resource exists.", url),
		}
	case statusCode/100 != 2:
		return HTTPStatusError{
			Code:    statusCode,
			Message: fmt.Sprintf("Unexpected response code: %d when accessing URL: %s", statusCode, url),
		}
	}
	return nil
}
