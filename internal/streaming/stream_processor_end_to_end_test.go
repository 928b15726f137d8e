package streaming

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/ld-sync/internal/datakinds"
	"github.com/launchdarkly/ld-sync/internal/datasource"
	"github.com/launchdarkly/ld-sync/internal/sharedtest"
	"github.com/launchdarkly/ld-sync/internal/store"
)

func streamHandlerWithPut(flagVersion int) (http.Handler, httphelpers.SSEStreamControl) {
	put := httphelpers.SSEEvent{
		Event: PutEvent,
		Data:  putJSON(map[string]string{"flag1": sharedtest.FlagJSON("flag1", flagVersion)}, nil),
	}
	return httphelpers.SSEHandler(&put)
}

func TestEndToEndStreamReceivesPutAndPatch(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)

	streamHandler, stream := streamHandlerWithPut(1)
	defer stream.Close()
	handler, requestsCh := httphelpers.RecordingHandler(
		httphelpers.HandlerForPath(StreamPath, streamHandler, httphelpers.HandlerWithStatus(http.StatusNotFound)))

	httphelpers.WithServer(handler, func(server *httptest.Server) {
		s := store.NewInMemoryStore()
		sp := NewStreamProcessor(s, nil, StreamConfig{
			URI:               server.URL,
			Headers:           http.Header{"Authorization": []string{"my-key"}},
			InitialRetryDelay: time.Millisecond,
		}, mockLog.Loggers)
		defer sp.Close()

		ready := sp.Start()
		requireClosed(t, ready)
		assert.True(t, sp.IsInitialized())
		requireFlagVersion(t, s, "flag1", 1)

		req := <-requestsCh
		assert.Equal(t, "my-key", req.Request.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", req.Request.Header.Get("Accept"))

		stream.Send(httphelpers.SSEEvent{Event: PatchEvent, Data: patchJSON("/flags/flag1", sharedtest.FlagJSON("flag1", 2))})
		require.Eventually(t, func() bool {
			item, err := s.Get(datakinds.Features, "flag1")
			return err == nil && item.Version == 2
		}, time.Second, 10*time.Millisecond)
	})
}

func TestEndToEndReconnectAfterRecoverableError(t *testing.T) {
	for _, status := range []int{400, 500, 503} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			mockLog := ldlogtest.NewMockLog()
			defer mockLog.DumpIfTestFailed(t)

			streamHandler, stream := streamHandlerWithPut(1)
			defer stream.Close()
			handler, requestsCh := httphelpers.RecordingHandler(httphelpers.SequentialHandler(
				httphelpers.HandlerWithStatus(status), // first request gets this
				streamHandler,                         // request after reconnect gets this
			))

			httphelpers.WithServer(handler, func(server *httptest.Server) {
				sp := NewStreamProcessor(store.NewInMemoryStore(), nil, StreamConfig{
					URI:               server.URL,
					InitialRetryDelay: time.Millisecond,
				}, mockLog.Loggers)
				defer sp.Close()

				ready := sp.Start()
				requireClosed(t, ready)
				assert.True(t, sp.IsInitialized())
				assert.Len(t, requestsCh, 2)
				mockLog.AssertMessageMatch(t, true, ldlog.Warn, fmt.Sprintf("HTTP error %d", status))
			})
		})
	}
}

func TestEndToEndNoReconnectAfterUnrecoverableError(t *testing.T) {
	for _, status := range []int{401, 403} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			mockLog := ldlogtest.NewMockLog()
			defer mockLog.DumpIfTestFailed(t)

			streamHandler, stream := streamHandlerWithPut(1)
			defer stream.Close()
			handler, requestsCh := httphelpers.RecordingHandler(httphelpers.SequentialHandler(
				httphelpers.HandlerWithStatus(status),
				streamHandler,
			))

			httphelpers.WithServer(handler, func(server *httptest.Server) {
				sp := NewStreamProcessor(store.NewInMemoryStore(), nil, StreamConfig{
					URI:               server.URL,
					InitialRetryDelay: time.Millisecond,
				}, mockLog.Loggers)
				defer sp.Close()

				ready := sp.Start()
				requireClosed(t, ready)
				assert.False(t, sp.IsInitialized())
				assert.Equal(t, datasource.StateFailed, sp.State())

				<-requestsCh
				select {
				case <-requestsCh:
					require.Fail(t, "got unexpected stream restart")
				case <-time.After(100 * time.Millisecond):
				}
				mockLog.AssertMessageMatch(t, true, ldlog.Error, "invalid SDK key")
			})
		})
	}
}
