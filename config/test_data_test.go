package config

import (
	"testing"
	"time"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/stretchr/testify/assert"
)

const testSDKKey = "sdk-key"

type testDataValidConfig struct {
	name        string
	makeConfig  func(c *Config)
	envVars     map[string]string
	fileContent string
	warning     string
}

type testDataInvalidConfig struct {
	name         string
	envVarsError string
	fileError    string
	envVars      map[string]string
	fileContent  string
}

// startingConfig is what each test loads into. Validation requires an SDK key, so it is set here
// rather than in every test case.
func startingConfig() Config {
	return Config{Main: MainConfig{SDKKey: testSDKKey}}
}

func (tdc testDataValidConfig) assertResult(t *testing.T, actualConfig Config, mockLog *ldlogtest.MockLog) {
	expectedConfig := startingConfig()
	tdc.makeConfig(&expectedConfig)
	assert.Equal(t, expectedConfig, actualConfig)
	if tdc.warning != "" {
		mockLog.AssertMessageMatch(t, true, ldlog.Warn, tdc.warning)
	}
}

func makeValidConfigs() []testDataValidConfig {
	return []testDataValidConfig{
		makeValidConfigAllBaseProperties(),
		makeValidConfigCachePolicy(),
		makeValidConfigCacheLegacyRefresh(),
		makeValidConfigCacheLegacyAsync(),
		makeValidConfigCacheLegacyAsyncOnly(),
		makeValidConfigRedisMinimal(),
		makeValidConfigRedisAll(),
		makeValidConfigRedisURL(),
		makeValidConfigRedisDockerPort(),
		makeValidConfigRedisCluster(),
		makeValidConfigConsulMinimal(),
		makeValidConfigConsulAll(),
		makeValidConfigDynamoDB(),
		makeValidConfigFiles(),
		makeValidConfigDatadog(),
		makeValidConfigStackdriver(),
		makeValidConfigPrometheus(),
		makeValidConfigProxy(),
	}
}

func makeInvalidConfigs() []testDataInvalidConfig {
	return []testDataInvalidConfig{
		makeInvalidConfigPollIntervalTooShort(),
		makeInvalidConfigBadStaleValuesPolicy(),
		makeInvalidConfigPolicyWithLegacyCache(),
		makeInvalidConfigRedisConflictingParams(),
		makeInvalidConfigRedisClusterWithURL(),
		makeInvalidConfigMultipleDatabases(),
		makeInvalidConfigDynamoDBWithoutTable(),
	}
}

func makeValidConfigAllBaseProperties() testDataValidConfig {
	c := testDataValidConfig{name: "all base properties"}
	c.makeConfig = func(c *Config) {
		c.Main = MainConfig{
			SDKKey:                "other-key",
			StreamURI:             newOptURLAbsoluteMustBeValid("http://stream"),
			BaseURI:               newOptURLAbsoluteMustBeValid("http://base"),
			Stream:                true,
			PollInterval:          ct.NewOptDuration(45 * time.Second),
			InitialReconnectDelay: ct.NewOptDuration(2 * time.Second),
			StartWaitTime:         ct.NewOptDuration(10 * time.Second),
			Port:                  mustOptIntGreaterThanZero(8333),
			LogLevel:              NewOptLogLevel(ldlog.Warn),
		}
		c.Cache.TTL = ct.NewOptDuration(time.Minute)
	}
	c.envVars = map[string]string{
		"SDK_KEY":                 "other-key",
		"STREAM_URI":              "http://stream",
		"BASE_URI":                "http://base",
		"STREAM":                  "1",
		"POLL_INTERVAL":           "45s",
		"INITIAL_RECONNECT_DELAY": "2s",
		"START_WAIT_TIME":         "10s",
		"PORT":                    "8333",
		"LOG_LEVEL":               "warn",
		"CACHE_TTL":               "1m",
	}
	c.fileContent = `
[Main]
SDKKey = "other-key"
StreamURI = "http://stream"
BaseURI = "http://base"
Stream = 1
PollInterval = 45s
InitialReconnectDelay = 2s
StartWaitTime = 10s
Port = 8333
LogLevel = "warn"

[Cache]
TTL = 1m
`
	return c
}

func makeValidConfigCachePolicy() testDataValidConfig {
	c := testDataValidConfig{name: "cache stale values policy"}
	c.makeConfig = func(c *Config) {
		c.Cache.StaleValuesPolicy = StaleValuesRefreshAsync
	}
	c.envVars = map[string]string{
		"CACHE_STALE_VALUES_POLICY": "refreshasync",
	}
	c.fileContent = `
[Cache]
StaleValuesPolicy = refreshAsync
`
	return c
}

func makeValidConfigCacheLegacyRefresh() testDataValidConfig {
	c := testDataValidConfig{name: "legacy refresh setting becomes refresh policy"}
	c.makeConfig = func(c *Config) {
		c.Cache.StaleValuesPolicy = StaleValuesRefresh
	}
	c.envVars = map[string]string{
		"CACHE_REFRESH_STALE_VALUES": "true",
	}
	c.fileContent = `
[Cache]
RefreshStaleValues = true
`
	return c
}

func makeValidConfigCacheLegacyAsync() testDataValidConfig {
	c := testDataValidConfig{name: "legacy refresh and async settings become async policy"}
	c.makeConfig = func(c *Config) {
		c.Cache.StaleValuesPolicy = StaleValuesRefreshAsync
	}
	c.envVars = map[string]string{
		"CACHE_REFRESH_STALE_VALUES": "true",
		"CACHE_ASYNC_REFRESH":        "true",
	}
	c.fileContent = `
[Cache]
RefreshStaleValues = true
AsyncRefresh = true
`
	return c
}

func makeValidConfigCacheLegacyAsyncOnly() testDataValidConfig {
	c := testDataValidConfig{name: "legacy async setting alone becomes evict policy"}
	c.makeConfig = func(c *Config) {
		c.Cache.StaleValuesPolicy = StaleValuesEvict
	}
	c.envVars = map[string]string{
		"CACHE_ASYNC_REFRESH": "true",
	}
	c.fileContent = `
[Cache]
AsyncRefresh = true
`
	c.warning = "AsyncRefresh has no effect"
	return c
}

func makeValidConfigRedisMinimal() testDataValidConfig {
	c := testDataValidConfig{name: "Redis - minimal parameters"}
	c.makeConfig = func(c *Config) {
		c.Redis.URL = newOptURLAbsoluteMustBeValid("redis://localhost:6379")
	}
	c.envVars = map[string]string{
		"USE_REDIS": "1",
	}
	c.fileContent = `
[Redis]
Host = "localhost"
`
	return c
}

func makeValidConfigRedisAll() testDataValidConfig {
	c := testDataValidConfig{name: "Redis - all parameters"}
	c.makeConfig = func(c *Config) {
		c.Redis = RedisConfig{
			URL:            newOptURLAbsoluteMustBeValid("redis://redishost:6400"),
			Database:       2,
			Password:       "pass",
			TLS:            true,
			Prefix:         "pre",
			ConnectTimeout: ct.NewOptDuration(3 * time.Second),
			SocketTimeout:  ct.NewOptDuration(4 * time.Second),
		}
		c.Cache.TTL = ct.NewOptDuration(3 * time.Second)
	}
	c.envVars = map[string]string{
		"USE_REDIS":             "1",
		"REDIS_HOST":            "redishost",
		"REDIS_PORT":            "6400",
		"REDIS_DB":              "2",
		"REDIS_PASSWORD":        "pass",
		"REDIS_TLS":             "1",
		"REDIS_PREFIX":          "pre",
		"REDIS_CONNECT_TIMEOUT": "3s",
		"REDIS_SOCKET_TIMEOUT":  "4s",
		"CACHE_TTL":             "3s",
	}
	c.fileContent = `
[Redis]
Host = "redishost"
Port = 6400
Database = 2
Password = "pass"
TLS = 1
Prefix = "pre"
ConnectTimeout = 3s
SocketTimeout = 4s

[Cache]
TTL = 3s
`
	return c
}

func makeValidConfigRedisURL() testDataValidConfig {
	c := testDataValidConfig{name: "Redis - URL instead of host/port"}
	c.makeConfig = func(c *Config) {
		c.Redis.URL = newOptURLAbsoluteMustBeValid("rediss://redishost:3333")
	}
	c.envVars = map[string]string{
		"USE_REDIS": "1",
		"REDIS_URL": "rediss://redishost:3333",
	}
	c.fileContent = `
[Redis]
URL = "rediss://redishost:3333"
`
	return c
}

func makeValidConfigRedisDockerPort() testDataValidConfig {
	c := testDataValidConfig{name: "Redis - special Docker port syntax"}
	c.makeConfig = func(c *Config) {
		c.Redis.URL = newOptURLAbsoluteMustBeValid("redis://redishost:6400")
	}
	c.envVars = map[string]string{
		"USE_REDIS":  "1",
		"REDIS_PORT": "tcp://redishost:6400",
	}
	return c
}

func makeValidConfigRedisCluster() testDataValidConfig {
	c := testDataValidConfig{name: "Redis - cluster addresses"}
	c.makeConfig = func(c *Config) {
		c.Redis.ClusterAddrs = ct.NewOptStringList([]string{"host1:6379", "host2:6379"})
	}
	c.envVars = map[string]string{
		"USE_REDIS":           "1",
		"REDIS_CLUSTER_ADDRS": "host1:6379,host2:6379",
	}
	c.fileContent = `
[Redis]
ClusterAddrs = "host1:6379,host2:6379"
`
	return c
}

func makeValidConfigConsulMinimal() testDataValidConfig {
	c := testDataValidConfig{name: "Consul - minimal parameters"}
	c.makeConfig = func(c *Config) {
		c.Consul.Host = "localhost"
	}
	c.envVars = map[string]string{
		"USE_CONSUL": "1",
	}
	c.fileContent = `
[Consul]
Host = "localhost"
`
	return c
}

func makeValidConfigConsulAll() testDataValidConfig {
	c := testDataValidConfig{name: "Consul - all parameters"}
	c.makeConfig = func(c *Config) {
		c.Consul = ConsulConfig{Host: "consulhost", Prefix: "pre", Token: "abc"}
	}
	c.envVars = map[string]string{
		"USE_CONSUL":    "1",
		"CONSUL_HOST":   "consulhost",
		"CONSUL_PREFIX": "pre",
		"CONSUL_TOKEN":  "abc",
	}
	c.fileContent = `
[Consul]
Host = "consulhost"
Prefix = "pre"
Token = "abc"
`
	return c
}

func makeValidConfigDynamoDB() testDataValidConfig {
	c := testDataValidConfig{name: "DynamoDB"}
	c.makeConfig = func(c *Config) {
		c.DynamoDB = DynamoDBConfig{
			Enabled:   true,
			TableName: "table",
			URL:       newOptURLAbsoluteMustBeValid("http://localhost:8000"),
			Prefix:    "pre",
		}
	}
	c.envVars = map[string]string{
		"USE_DYNAMODB":    "1",
		"DYNAMODB_TABLE":  "table",
		"DYNAMODB_URL":    "http://localhost:8000",
		"DYNAMODB_PREFIX": "pre",
	}
	c.fileContent = `
[DynamoDB]
Enabled = true
TableName = "table"
URL = "http://localhost:8000"
Prefix = "pre"
`
	return c
}

func makeValidConfigFiles() testDataValidConfig {
	c := testDataValidConfig{name: "file data"}
	c.makeConfig = func(c *Config) {
		c.Files = FilesConfig{
			Paths:  ct.NewOptStringList([]string{"a.json", "b.json"}),
			Reload: true,
		}
	}
	c.envVars = map[string]string{
		"FILE_DATA_PATHS":  "a.json,b.json",
		"FILE_DATA_RELOAD": "true",
	}
	c.fileContent = `
[Files]
Paths = "a.json,b.json"
Reload = true
`
	return c
}

func makeValidConfigDatadog() testDataValidConfig {
	c := testDataValidConfig{name: "Datadog"}
	c.makeConfig = func(c *Config) {
		c.MetricsConfig.Datadog = DatadogConfig{
			Enabled:   true,
			Prefix:    "pre",
			TraceAddr: "trace",
			StatsAddr: "stats",
			Tag:       []string{"tag1:value1", "tag2:value2"},
		}
	}
	c.envVars = map[string]string{
		"USE_DATADOG":        "1",
		"DATADOG_PREFIX":     "pre",
		"DATADOG_TRACE_ADDR": "trace",
		"DATADOG_STATS_ADDR": "stats",
		"DATADOG_TAG_tag1":   "value1",
		"DATADOG_TAG_tag2":   "value2",
	}
	c.fileContent = `
[Datadog]
Enabled = true
Prefix = "pre"
TraceAddr = "trace"
StatsAddr = "stats"
Tag = tag1:value1
Tag = tag2:value2
`
	return c
}

func makeValidConfigStackdriver() testDataValidConfig {
	c := testDataValidConfig{name: "Stackdriver"}
	c.makeConfig = func(c *Config) {
		c.MetricsConfig.Stackdriver = StackdriverConfig{Enabled: true, Prefix: "pre", ProjectID: "proj"}
	}
	c.envVars = map[string]string{
		"USE_STACKDRIVER":        "1",
		"STACKDRIVER_PREFIX":     "pre",
		"STACKDRIVER_PROJECT_ID": "proj",
	}
	c.fileContent = `
[Stackdriver]
Enabled = true
Prefix = "pre"
ProjectID = "proj"
`
	return c
}

func makeValidConfigPrometheus() testDataValidConfig {
	c := testDataValidConfig{name: "Prometheus"}
	c.makeConfig = func(c *Config) {
		c.MetricsConfig.Prometheus = PrometheusConfig{Enabled: true, Prefix: "pre", Port: mustOptIntGreaterThanZero(8333)}
	}
	c.envVars = map[string]string{
		"USE_PROMETHEUS":    "1",
		"PROMETHEUS_PREFIX": "pre",
		"PROMETHEUS_PORT":   "8333",
	}
	c.fileContent = `
[Prometheus]
Enabled = true
Prefix = "pre"
Port = 8333
`
	return c
}

func makeValidConfigProxy() testDataValidConfig {
	c := testDataValidConfig{name: "proxy"}
	c.makeConfig = func(c *Config) {
		c.Proxy = ProxyConfig{
			URL:         newOptURLAbsoluteMustBeValid("http://proxy"),
			CACertFiles: ct.NewOptStringList([]string{"cert1", "cert2"}),
		}
	}
	c.envVars = map[string]string{
		"PROXY_URL":      "http://proxy",
		"PROXY_CA_CERTS": "cert1,cert2",
	}
	c.fileContent = `
[Proxy]
URL = "http://proxy"
CACertFiles = "cert1,cert2"
`
	return c
}

func makeInvalidConfigPollIntervalTooShort() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "poll interval too short"}
	c.envVarsError = errPollIntervalTooShort().Error()
	c.envVars = map[string]string{"POLL_INTERVAL": "5s"}
	c.fileContent = `
[Main]
PollInterval = 5s
`
	return c
}

func makeInvalidConfigBadStaleValuesPolicy() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "unknown stale values policy"}
	c.envVarsError = `CACHE_STALE_VALUES_POLICY: "sometimes" is not a valid stale values policy`
	c.fileError = `"sometimes" is not a valid stale values policy`
	c.envVars = map[string]string{"CACHE_STALE_VALUES_POLICY": "sometimes"}
	c.fileContent = `
[Cache]
StaleValuesPolicy = sometimes
`
	return c
}

func makeInvalidConfigPolicyWithLegacyCache() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "stale values policy with legacy setting"}
	c.envVarsError = errLegacyCacheWithPolicy.Error()
	c.envVars = map[string]string{
		"CACHE_STALE_VALUES_POLICY":  "evict",
		"CACHE_REFRESH_STALE_VALUES": "true",
	}
	c.fileContent = `
[Cache]
StaleValuesPolicy = evict
RefreshStaleValues = true
`
	return c
}

func makeInvalidConfigRedisConflictingParams() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "Redis - conflicting parameters"}
	c.envVarsError = errRedisURLWithHostAndPort.Error()
	c.envVars = map[string]string{
		"USE_REDIS":  "1",
		"REDIS_URL":  "redis://redishost:3000",
		"REDIS_HOST": "redishost",
	}
	c.fileContent = `
[Redis]
URL = "redis://redishost:3000"
Host = "redishost"
`
	return c
}

func makeInvalidConfigRedisClusterWithURL() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "Redis - cluster with URL"}
	c.envVarsError = errRedisClusterWithURL.Error()
	c.envVars = map[string]string{
		"USE_REDIS":           "1",
		"REDIS_URL":           "redis://redishost:3000",
		"REDIS_CLUSTER_ADDRS": "host1:6379",
	}
	c.fileContent = `
[Redis]
URL = "redis://redishost:3000"
ClusterAddrs = "host1:6379"
`
	return c
}

func makeInvalidConfigMultipleDatabases() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "multiple databases"}
	c.envVarsError = "multiple databases are enabled (Redis, Consul); only one is allowed"
	c.envVars = map[string]string{
		"USE_REDIS":  "1",
		"USE_CONSUL": "1",
	}
	c.fileContent = `
[Redis]
Host = "localhost"

[Consul]
Host = "localhost"
`
	return c
}

func makeInvalidConfigDynamoDBWithoutTable() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "DynamoDB without table name"}
	c.envVarsError = errDynamoDBWithoutTableName.Error()
	c.envVars = map[string]string{"USE_DYNAMODB": "1"}
	c.fileContent = `
[DynamoDB]
Enabled = true
`
	return c
}

func mustOptIntGreaterThanZero(n int) ct.OptIntGreaterThanZero {
	o, err := ct.NewOptIntGreaterThanZero(n)
	if err != nil {
		panic(err)
	}
	return o
}
