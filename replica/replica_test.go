package replica

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
	m "github.com/launchdarkly/go-test-helpers/v3/matchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/ld-sync/config"
	"github.com/launchdarkly/ld-sync/internal/datasource"
	"github.com/launchdarkly/ld-sync/internal/sharedtest"
	"github.com/launchdarkly/ld-sync/internal/streaming"
)

const testWaitTime = 2 * time.Second

func makeFileConfig(t *testing.T, flagsJSON map[string]string) config.Config {
	path := filepath.Join(t.TempDir(), "flags.json")
	require.NoError(t, os.WriteFile(path, []byte(sharedtest.AllDataJSON(flagsJSON, nil)), 0600))
	c := config.DefaultConfig
	c.Files.Paths = ct.NewOptStringList([]string{path})
	return c
}

func makeStreamConfig(t *testing.T, serverURL string) config.Config {
	c := config.DefaultConfig
	c.Main.SDKKey = "sdk-key-0000-abcde"
	u, err := ct.NewOptURLAbsoluteFromString(serverURL)
	require.NoError(t, err)
	c.Main.StreamURI = u
	c.Main.BaseURI = u
	c.Main.InitialReconnectDelay = ct.NewOptDuration(time.Millisecond)
	return c
}

func withReplica(t *testing.T, c config.Config, action func(*Replica)) {
	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)
	r, err := NewReplica(c, Options{}, mockLog.Loggers)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck
	action(r)
}

func doRequest(t *testing.T, r *Replica, method, path string) (int, []byte) {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	body, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)
	return w.Result().StatusCode, body
}

func TestReplicaWithFileData(t *testing.T) {
	c := makeFileConfig(t, map[string]string{"flag1": sharedtest.FlagJSON("flag1", 3)})
	withReplica(t, c, func(r *Replica) {
		require.True(t, r.WaitForReady(testWaitTime))
		assert.True(t, r.IsInitialized())

		flag, found, err := r.GetFlag("flag1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 3, flag.Version)

		_, found, err = r.GetFlag("unknown")
		require.NoError(t, err)
		assert.False(t, found)

		flags, err := r.AllFlags()
		require.NoError(t, err)
		assert.Len(t, flags, 1)
	})
}

func TestReplicaWithStream(t *testing.T) {
	put := httphelpers.SSEEvent{
		Event: streaming.PutEvent,
		Data: `{"path":"/","data":` + sharedtest.AllDataJSON(
			map[string]string{"flag1": sharedtest.FlagJSON("flag1", 1)}, nil) + `}`,
	}
	streamHandler, stream := httphelpers.SSEHandler(&put)
	defer stream.Close()
	handler := httphelpers.HandlerForPath(streaming.StreamPath, streamHandler,
		httphelpers.HandlerWithStatus(http.StatusNotFound))

	httphelpers.WithServer(handler, func(server *httptest.Server) {
		withReplica(t, makeStreamConfig(t, server.URL), func(r *Replica) {
			require.True(t, r.WaitForReady(testWaitTime))

			stream.Send(httphelpers.SSEEvent{
				Event: streaming.PatchEvent,
				Data:  `{"path":"/flags/flag1","data":` + sharedtest.FlagJSON("flag1", 2) + `}`,
			})
			require.Eventually(t, func() bool {
				flag, found, err := r.GetFlag("flag1")
				return err == nil && found && flag.Version == 2
			}, testWaitTime, 10*time.Millisecond)

			status := r.GetStatus()
			assert.Equal(t, statusHealthy, status.Status)
			assert.Equal(t, dataSourceTypeStreaming, status.DataSource.Type)
			assert.Equal(t, "********abcde", status.SDKKey)
		})
	})
}

func TestWaitForReadyTimesOut(t *testing.T) {
	streamHandler, stream := httphelpers.SSEHandler(nil)
	defer stream.Close()
	handler := httphelpers.HandlerForPath(streaming.StreamPath, streamHandler,
		httphelpers.HandlerWithStatus(http.StatusNotFound))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		withReplica(t, makeStreamConfig(t, server.URL), func(r *Replica) {
			assert.False(t, r.WaitForReady(50*time.Millisecond))
			assert.Equal(t, datasource.StateStarting, r.GetStatus().DataSource.State)
			assert.Equal(t, statusDegraded, r.GetStatus().Status)
		})
	})
}

func TestRecordEvaluationAndSummaryRoute(t *testing.T) {
	c := makeFileConfig(t, map[string]string{"flag1": sharedtest.FlagJSON("flag1", 7)})
	withReplica(t, c, func(r *Replica) {
		require.True(t, r.WaitForReady(testWaitTime))

		r.RecordEvaluation("flag1", ldvalue.NewOptionalInt(0), ldvalue.Bool(true), ldvalue.Bool(false))
		r.RecordEvaluation("flag1", ldvalue.NewOptionalInt(0), ldvalue.Bool(true), ldvalue.Bool(false))
		r.RecordEvaluation("missing", ldvalue.OptionalInt{}, ldvalue.String("x"), ldvalue.String("x"))

		status, body := doRequest(t, r, "POST", "/summary")
		require.Equal(t, http.StatusOK, status)
		var summary struct {
			Kind     string `json:"kind"`
			Features map[string]struct {
				Counters []struct {
					Version int  `json:"version"`
					Unknown bool `json:"unknown"`
					Count   int  `json:"count"`
				} `json:"counters"`
			} `json:"features"`
		}
		require.NoError(t, json.Unmarshal(body, &summary))
		assert.Equal(t, "summary", summary.Kind)
		require.Len(t, summary.Features["flag1"].Counters, 1)
		assert.Equal(t, 7, summary.Features["flag1"].Counters[0].Version)
		assert.Equal(t, 2, summary.Features["flag1"].Counters[0].Count)
		require.Len(t, summary.Features["missing"].Counters, 1)
		assert.True(t, summary.Features["missing"].Counters[0].Unknown)

		_, body = doRequest(t, r, "POST", "/summary")
		m.In(t).Assert(body, sharedtest.ExpectJSONBody(`{"kind":"summary","startDate":0,"endDate":0,"features":{}}`))
	})
}

func TestFlagRoutes(t *testing.T) {
	c := makeFileConfig(t, map[string]string{
		"flag1": sharedtest.FlagJSON("flag1", 1),
		"flag2": sharedtest.FlagJSON("flag2", 2),
	})
	withReplica(t, c, func(r *Replica) {
		require.True(t, r.WaitForReady(testWaitTime))

		status, body := doRequest(t, r, "GET", "/flags/flag2")
		assert.Equal(t, http.StatusOK, status)
		var flag struct {
			Key     string `json:"key"`
			Version int    `json:"version"`
		}
		require.NoError(t, json.Unmarshal(body, &flag))
		assert.Equal(t, "flag2", flag.Key)
		assert.Equal(t, 2, flag.Version)

		status, body = doRequest(t, r, "GET", "/flags/nope")
		assert.Equal(t, http.StatusNotFound, status)
		m.In(t).Assert(body, sharedtest.ExpectNoBody())

		status, body = doRequest(t, r, "GET", "/flags")
		assert.Equal(t, http.StatusOK, status)
		var all map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(body, &all))
		assert.Len(t, all, 2)
	})
}

func TestStatusRoute(t *testing.T) {
	c := makeFileConfig(t, map[string]string{"flag1": sharedtest.FlagJSON("flag1", 1)})
	withReplica(t, c, func(r *Replica) {
		require.True(t, r.WaitForReady(testWaitTime))

		status, body := doRequest(t, r, "GET", "/status")
		require.Equal(t, http.StatusOK, status)
		var rep StatusRep
		require.NoError(t, json.Unmarshal(body, &rep))
		assert.Equal(t, statusHealthy, rep.Status)
		assert.Equal(t, dataSourceTypeFile, rep.DataSource.Type)
		assert.Equal(t, datasource.StateInitialized, rep.DataSource.State)
		assert.True(t, rep.Store.Initialized)
		assert.True(t, rep.Store.Available)
		assert.NotEmpty(t, rep.InstanceID)
		assert.Nil(t, rep.CacheStats)
	})
}

func TestClosedReplicaReturnsErrors(t *testing.T) {
	c := makeFileConfig(t, map[string]string{"flag1": sharedtest.FlagJSON("flag1", 1)})
	mockLog := ldlogtest.NewMockLog()
	r, err := NewReplica(c, Options{}, mockLog.Loggers)
	require.NoError(t, err)
	require.True(t, r.WaitForReady(testWaitTime))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, _, err = r.GetFlag("flag1")
	assert.Equal(t, errReplicaClosed, err)
	_, err = r.AllFlags()
	assert.Equal(t, errReplicaClosed, err)

	status, body := doRequest(t, r, "GET", "/flags/flag1")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	m.In(t).Assert(body, sharedtest.ExpectJSONBody(`{"message":"replica has been closed"}`))
}

func TestObscureKey(t *testing.T) {
	assert.Equal(t, "********12345", ObscureKey("sdk-xxxx-12345"))
	assert.Equal(t, "short", ObscureKey("short"))
}
