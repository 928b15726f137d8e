package streaming

import (
	"net/http"
	"sync"
	"time"

	es "github.com/launchdarkly/eventsource"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	streamReadTimeout        = 5 * time.Minute // the LaunchDarkly stream should send a heartbeat comment every 3 minutes
	streamMaxRetryDelay      = 30 * time.Second
	streamRetryResetInterval = 60 * time.Second
	streamJitterRatio        = 0.5
	defaultStreamRetryDelay  = 1 * time.Second
)

// EventSource is an open SSE connection, as seen by the stream processor.
type EventSource interface {
	// Events returns the channel of received events. It is closed when the connection is permanently
	// closed.
	Events() <-chan es.Event
	// Restart drops the current connection and reconnects.
	Restart()
	// Close permanently closes the connection. It is safe to call more than once.
	Close()
}

// EventSourceParams are the connection settings passed to an EventSourceFactory.
type EventSourceParams struct {
	HTTPClient        *http.Client
	InitialRetryDelay time.Duration
	// ErrorHandler is called for every connection failure, and decides whether to keep retrying.
	ErrorHandler es.StreamErrorHandler
	Loggers      ldlog.Loggers
}

// EventSourceFactory opens SSE connections. Tests substitute their own implementation to drive the stream
// processor without a network connection.
type EventSourceFactory interface {
	NewEventSource(req *http.Request, params EventSourceParams) (EventSource, error)
}

// EventSourceFactoryFunc adapts a function to the EventSourceFactory interface.
type EventSourceFactoryFunc func(req *http.Request, params EventSourceParams) (EventSource, error)

// NewEventSource calls the function.
func (f EventSourceFactoryFunc) NewEventSource(req *http.Request, params EventSourceParams) (EventSource, error) {
	return f(req, params)
}

// DefaultEventSourceFactory returns the factory that uses the eventsource library, with reconnection
// backoff and jitter. The first connection attempt is retried indefinitely unless the error handler
// says otherwise.
func DefaultEventSourceFactory() EventSourceFactory {
	return EventSourceFactoryFunc(subscribe)
}

func subscribe(req *http.Request, params EventSourceParams) (EventSource, error) {
	initialRetryDelay := params.InitialRetryDelay
	if initialRetryDelay <= 0 {
		initialRetryDelay = defaultStreamRetryDelay
	}
	stream, err := es.SubscribeWithRequestAndOptions(req,
		es.StreamOptionHTTPClient(params.HTTPClient),
		es.StreamOptionReadTimeout(streamReadTimeout),
		es.StreamOptionInitialRetry(initialRetryDelay),
		es.StreamOptionUseBackoff(streamMaxRetryDelay),
		es.StreamOptionUseJitter(streamJitterRatio),
		es.StreamOptionRetryResetInterval(streamRetryResetInterval),
		es.StreamOptionErrorHandler(params.ErrorHandler),
		es.StreamOptionCanRetryFirstConnection(-1),
		es.StreamOptionLogger(params.Loggers.ForLevel(ldlog.Info)),
	)
	if err != nil {
		return nil, err
	}
	return &esEventSource{stream: stream}, nil
}

type esEventSource struct {
	stream    *es.Stream
	closeOnce sync.Once
}

func (e *esEventSource) Events() <-chan es.Event {
	return e.stream.Events
}

func (e *esEventSource) Restart() {
	e.stream.Restart()
}

func (e *esEventSource) Close() {
	e.closeOnce.Do(func() {
		e.stream.Close()
		if e.stream.Errors != nil {
			// errors go to the error handler, but drain the channel in case anything was queued
			go func() {
				for range e.stream.Errors { //nolint:revive
				}
			}()
		}
	})
}
