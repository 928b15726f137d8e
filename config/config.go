// Package config contains the configuration model for ld-sync, and the logic for reading it from a
// file or from environment variables.
package config

import (
	"time"

	ct "github.com/launchdarkly/go-configtypes"
)

const (
	// DefaultBaseURI is the default base URI of the LaunchDarkly polling endpoints.
	DefaultBaseURI = "https://sdk.launchdarkly.com"

	// DefaultStreamURI is the default base URI of the LaunchDarkly streaming endpoint.
	DefaultStreamURI = "https://stream.launchdarkly.com"

	// DefaultPollInterval is the default value for MainConfig.PollInterval, which is also its minimum.
	DefaultPollInterval = 30 * time.Second

	// DefaultInitialReconnectDelay is the default value for MainConfig.InitialReconnectDelay.
	DefaultInitialReconnectDelay = time.Second

	// DefaultStartWaitTime is the default value for MainConfig.StartWaitTime.
	DefaultStartWaitTime = 5 * time.Second

	// DefaultCacheTTL is the default value for CacheConfig.TTL.
	DefaultCacheTTL = 30 * time.Second

	// DefaultPort is the default value for MainConfig.Port.
	DefaultPort = 8040

	// DefaultPrometheusPort is the default value for PrometheusConfig.Port.
	DefaultPrometheusPort = 8031

	// DefaultDatabasePrefix is the key prefix used by database stores if none is configured.
	DefaultDatabasePrefix = "launchdarkly"
)

const (
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultConsulHost = "localhost"
)

// Config describes the configuration for an ld-sync instance.
//
// Start from DefaultConfig when building one programmatically, then call ValidateConfig.
type Config struct {
	Main     MainConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Consul   ConsulConfig
	DynamoDB DynamoDBConfig
	Files    FilesConfig
	Proxy    ProxyConfig

	// MetricsConfig is not a section name itself; its fields are the [Datadog], [Stackdriver], and
	// [Prometheus] sections.
	MetricsConfig
}

// MainConfig corresponds to the [Main] section in the configuration file.
type MainConfig struct {
	SDKKey                string                   `conf:"SDK_KEY"`
	StreamURI             ct.OptURLAbsolute        `conf:"STREAM_URI"`
	BaseURI               ct.OptURLAbsolute        `conf:"BASE_URI"`
	Stream                bool                     `conf:"STREAM"`
	PollInterval          ct.OptDuration           `conf:"POLL_INTERVAL"`
	InitialReconnectDelay ct.OptDuration           `conf:"INITIAL_RECONNECT_DELAY"`
	StartWaitTime         ct.OptDuration           `conf:"START_WAIT_TIME"`
	Port                  ct.OptIntGreaterThanZero `conf:"PORT"`
	LogLevel              OptLogLevel              `conf:"LOG_LEVEL"`
}

// CacheConfig corresponds to the [Cache] section in the configuration file. It only has an effect
// when a database is configured.
//
// RefreshStaleValues and AsyncRefresh are older settings that ValidateConfig folds into
// StaleValuesPolicy; after validation they are always false.
type CacheConfig struct {
	TTL                ct.OptDuration    `conf:"CACHE_TTL"`
	StaleValuesPolicy  StaleValuesPolicy `conf:"CACHE_STALE_VALUES_POLICY"`
	RefreshStaleValues bool              `conf:"CACHE_REFRESH_STALE_VALUES"`
	AsyncRefresh       bool              `conf:"CACHE_ASYNC_REFRESH"`
}

// RedisConfig corresponds to the [Redis] section in the configuration file.
//
// Host and Port are an alternative to URL; ValidateConfig converts them into a URL. ClusterAddrs
// selects a Redis cluster client instead of a single-node connection.
type RedisConfig struct {
	URL            ct.OptURLAbsolute        `conf:"REDIS_URL"`
	Host           string                   `conf:"REDIS_HOST"`
	Port           ct.OptIntGreaterThanZero // REDIS_PORT is read separately
	Database       int                      `conf:"REDIS_DB"`
	Password       string                   `conf:"REDIS_PASSWORD"`
	TLS            bool                     `conf:"REDIS_TLS"`
	Prefix         string                   `conf:"REDIS_PREFIX"`
	ConnectTimeout ct.OptDuration           `conf:"REDIS_CONNECT_TIMEOUT"`
	SocketTimeout  ct.OptDuration           `conf:"REDIS_SOCKET_TIMEOUT"`
	ClusterAddrs   ct.OptStringList         `conf:"REDIS_CLUSTER_ADDRS"`
}

// ConsulConfig corresponds to the [Consul] section in the configuration file.
type ConsulConfig struct {
	Host   string `conf:"CONSUL_HOST"`
	Prefix string `conf:"CONSUL_PREFIX"`
	Token  string `conf:"CONSUL_TOKEN"`
}

// DynamoDBConfig corresponds to the [DynamoDB] section in the configuration file.
type DynamoDBConfig struct {
	Enabled   bool              `conf:"USE_DYNAMODB"`
	TableName string            `conf:"DYNAMODB_TABLE"`
	URL       ct.OptURLAbsolute `conf:"DYNAMODB_URL"`
	Prefix    string            `conf:"DYNAMODB_PREFIX"`
}

// FilesConfig corresponds to the [Files] section in the configuration file. If any paths are set,
// flag data comes from those files instead of from LaunchDarkly.
type FilesConfig struct {
	Paths  ct.OptStringList `conf:"FILE_DATA_PATHS"`
	Reload bool             `conf:"FILE_DATA_RELOAD"`
}

// ProxyConfig corresponds to the [Proxy] section in the configuration file.
type ProxyConfig struct {
	URL         ct.OptURLAbsolute `conf:"PROXY_URL"`
	CACertFiles ct.OptStringList  `conf:"PROXY_CA_CERTS"`
}

// MetricsConfig contains configurations for optional metrics integrations.
type MetricsConfig struct {
	Datadog     DatadogConfig
	Stackdriver StackdriverConfig
	Prometheus  PrometheusConfig
}

// DatadogConfig corresponds to the [Datadog] section in the configuration file.
type DatadogConfig struct {
	Enabled   bool     `conf:"USE_DATADOG"`
	Prefix    string   `conf:"DATADOG_PREFIX"`
	TraceAddr string   `conf:"DATADOG_TRACE_ADDR"`
	StatsAddr string   `conf:"DATADOG_STATS_ADDR"`
	Tag       []string // env vars use DATADOG_TAG_<name>=<value>
}

// StackdriverConfig corresponds to the [Stackdriver] section in the configuration file.
type StackdriverConfig struct {
	Enabled   bool   `conf:"USE_STACKDRIVER"`
	Prefix    string `conf:"STACKDRIVER_PREFIX"`
	ProjectID string `conf:"STACKDRIVER_PROJECT_ID"`
}

// PrometheusConfig corresponds to the [Prometheus] section in the configuration file.
type PrometheusConfig struct {
	Enabled bool                     `conf:"USE_PROMETHEUS"`
	Prefix  string                   `conf:"PROMETHEUS_PREFIX"`
	Port    ct.OptIntGreaterThanZero `conf:"PROMETHEUS_PORT"`
}

// DefaultConfig contains defaults for all configuration sections. Unset optional fields are given
// their defaults where they are used.
var DefaultConfig = Config{ //nolint:gochecknoglobals
	Main: MainConfig{
		StreamURI: newOptURLAbsoluteMustBeValid(DefaultStreamURI),
		BaseURI:   newOptURLAbsoluteMustBeValid(DefaultBaseURI),
		Stream:    true,
	},
	Cache: CacheConfig{
		TTL: ct.NewOptDuration(DefaultCacheTTL),
	},
}

func newOptURLAbsoluteMustBeValid(urlString string) ct.OptURLAbsolute {
	u, err := ct.NewOptURLAbsoluteFromString(urlString)
	if err != nil {
		panic(err)
	}
	return u
}
