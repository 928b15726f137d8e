// Package httpconfig builds the HTTP clients used to talk to LaunchDarkly, applying the proxy and CA
// certificate settings from the configuration.
package httpconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/ld-sync/config"
	"github.com/launchdarkly/ld-sync/internal/version"
)

const (
	// DefaultConnectTimeout is the time allowed for establishing a TCP connection.
	DefaultConnectTimeout = 3 * time.Second

	// DefaultRequestTimeout is the overall timeout for non-streaming requests.
	DefaultRequestTimeout = 10 * time.Second
)

func errReadingCACertFile(path string, err error) error {
	return fmt.Errorf("unable to read CA certificate file %q: %w", path, err)
}

func errInvalidCACertData(path string) error {
	return fmt.Errorf("invalid CA certificate data in %q", path)
}

// HTTPConfig holds validated HTTP settings. It is immutable once created.
type HTTPConfig struct {
	ProxyURL  *url.URL
	SDKKey    string
	UserAgent string
	rootCAs   *x509.CertPool
}

// NewHTTPConfig validates all of the HTTP-related options and returns an HTTPConfig if successful.
func NewHTTPConfig(proxyConfig config.ProxyConfig, sdkKey string, loggers ldlog.Loggers) (HTTPConfig, error) {
	ret := HTTPConfig{
		SDKKey:    sdkKey,
		UserAgent: "LDSync/" + version.Version,
	}

	if proxyConfig.URL.IsDefined() {
		ret.ProxyURL = proxyConfig.URL.Get()
		loggers.Infof("Using proxy server at %s", ret.ProxyURL.Redacted())
	}

	for _, filePath := range proxyConfig.CACertFiles.Values() {
		if filePath == "" {
			continue
		}
		data, err := os.ReadFile(filePath) //nolint:gosec
		if err != nil {
			return ret, errReadingCACertFile(filePath, err)
		}
		if ret.rootCAs == nil {
			ret.rootCAs, err = x509.SystemCertPool()
			if err != nil || ret.rootCAs == nil {
				ret.rootCAs = x509.NewCertPool()
			}
		}
		if !ret.rootCAs.AppendCertsFromPEM(data) {
			return ret, errInvalidCACertData(filePath)
		}
	}

	return ret, nil
}

// DefaultHeaders returns the headers that every request to LaunchDarkly must have.
func (c HTTPConfig) DefaultHeaders() http.Header {
	h := make(http.Header)
	if c.SDKKey != "" {
		h.Set("Authorization", c.SDKKey)
	}
	h.Set("User-Agent", c.UserAgent)
	return h
}

// Client creates a new HTTP client. Its Timeout applies to the whole request, so streaming callers
// must reset it to zero; the connect timeout is a property of the dialer and still applies.
func (c HTTPConfig) Client() *http.Client {
	proxy := http.ProxyFromEnvironment
	if c.ProxyURL != nil {
		proxy = http.ProxyURL(c.ProxyURL)
	}
	transport := &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if c.rootCAs != nil {
		transport.TLSClientConfig = &tls.Config{RootCAs: c.rootCAs} //nolint:gosec
	}
	return &http.Client{Transport: transport, Timeout: DefaultRequestTimeout}
}
