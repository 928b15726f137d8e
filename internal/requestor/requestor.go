package requestor

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gregjones/httpcache"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/ld-sync/internal/datakinds"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// LatestAllPath is the polling endpoint for a full data set.
const LatestAllPath = "/sdk/latest-all"

// Requestor fetches data on demand.
type Requestor interface {
	// GetAll fetches the full data set.
	GetAll() ([]st.Collection, error)
	// GetOne fetches a single item. A deleted item is returned as a tombstone.
	GetOne(kind st.DataKind, key string) (st.ItemDescriptor, error)
}

// HTTPRequestor is the Requestor implementation that talks to the polling service. Responses are cached
// in memory according to their cache headers, so that an unchanged data set is not parsed again.
type HTTPRequestor struct {
	httpClient *http.Client
	baseURI    string
	headers    http.Header
	loggers    ldlog.Loggers
}

func errUnknownPollPath(kind st.DataKind) error {
	return fmt.Errorf("data kind %q has no polling endpoint", kind.Name)
}

// NewHTTPRequestor creates an HTTPRequestor. The headers are added to every request; they normally come
// from httpconfig.HTTPConfig.DefaultHeaders.
func NewHTTPRequestor(
	httpClient *http.Client,
	baseURI string,
	headers http.Header,
	loggers ldlog.Loggers,
) *HTTPRequestor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cachingClient := *httpClient
	cachingClient.Transport = &httpcache.Transport{
		Cache:               httpcache.NewMemoryCache(),
		MarkCachedResponses: true,
		Transport:           httpClient.Transport,
	}
	loggers.SetPrefix("Requestor:")
	return &HTTPRequestor{
		httpClient: &cachingClient,
		baseURI:    strings.TrimSuffix(baseURI, "/"),
		headers:    headers,
		loggers:    loggers,
	}
}

// GetAll fetches the full data set.
func (r *HTTPRequestor) GetAll() ([]st.Collection, error) {
	data, _, err := r.GetAllIfModified(false)
	return data, err
}

// GetAllIfModified fetches the full data set. If skipIfCached is true and the response came from the
// local HTTP cache, it returns nil data and cached=true without parsing anything.
func (r *HTTPRequestor) GetAllIfModified(skipIfCached bool) (data []st.Collection, cached bool, err error) {
	if r.loggers.IsDebugEnabled() {
		r.loggers.Debug("Requesting all flags and segments")
	}
	body, cached, err := r.makeRequest(LatestAllPath)
	if err != nil {
		return nil, false, err
	}
	if cached && skipIfCached {
		return nil, true, nil
	}
	data, err = datakinds.ParseAllData(body)
	if err != nil {
		return nil, cached, MalformedJSONError{err}
	}
	return data, cached, nil
}

// GetOne fetches a single flag or segment.
func (r *HTTPRequestor) GetOne(kind st.DataKind, key string) (st.ItemDescriptor, error) {
	if kind.PollPath == "" {
		return st.ItemDescriptor{}.NotFound(), errUnknownPollPath(kind)
	}
	body, _, err := r.makeRequest(kind.PollPath + url.PathEscape(key))
	if err != nil {
		return st.ItemDescriptor{}.NotFound(), err
	}
	item, err := kind.Decode(body)
	if err != nil {
		return st.ItemDescriptor{}.NotFound(), MalformedJSONError{err}
	}
	return item, nil
}

func (r *HTTPRequestor) makeRequest(path string) ([]byte, bool, error) {
	req, err := http.NewRequest(http.MethodGet, r.baseURI+path, nil)
	if err != nil {
		return nil, false, err
	}
	for k, vv := range r.headers {
		req.Header[k] = vv
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if err := checkResponseStatus(resp.StatusCode, req.URL.String()); err != nil {
		return nil, false, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	return body, resp.Header.Get(httpcache.XFromCache) != "", nil
}
