package config

import (
	"errors"
	"fmt"
	"strings"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

var (
	errNoSDKKey                 = errors.New("SDK key is required unless file data is configured")
	errRedisURLWithHostAndPort  = errors.New("please specify Redis URL or host/port, but not both")
	errRedisClusterWithURL      = errors.New("Redis cluster addresses cannot be combined with a Redis URL or host/port") //nolint:stylecheck
	errRedisBadHostname         = errors.New("invalid Redis hostname")
	errLegacyCacheWithPolicy    = errors.New("cache stale values policy cannot be combined with the older RefreshStaleValues or AsyncRefresh settings")
	errDynamoDBWithoutTableName = errors.New("DynamoDB table name is required")
)

func errMultipleDatabases(databases []string) error {
	return fmt.Errorf("multiple databases are enabled (%s); only one is allowed", strings.Join(databases, ", "))
}

func errPollIntervalTooShort() error {
	return fmt.Errorf("poll interval must be at least %s", DefaultPollInterval)
}

// ValidateConfig ensures that the configuration does not contain contradictory properties.
//
// It also canonicalizes some settings: Redis host/port become a Redis URL, and the older cache
// booleans become a StaleValuesPolicy. LoadConfigFile and LoadConfigFromEnvironment both call it as a
// last step; code that builds a Config programmatically should call it too.
func ValidateConfig(c *Config, loggers ldlog.Loggers) error {
	var result ct.ValidationResult

	validateConfigMain(&result, c)
	validateConfigCache(&result, c, loggers)
	validateConfigDatabases(&result, c)

	return result.GetError()
}

func validateConfigMain(result *ct.ValidationResult, c *Config) {
	if c.Main.SDKKey == "" && len(c.Files.Paths.Values()) == 0 {
		result.AddError(nil, errNoSDKKey)
	}
	if c.Main.PollInterval.IsDefined() && c.Main.PollInterval.GetOrElse(0) < DefaultPollInterval {
		result.AddError(nil, errPollIntervalTooShort())
	}
}

func validateConfigCache(result *ct.ValidationResult, c *Config, loggers ldlog.Loggers) {
	legacy := c.Cache.RefreshStaleValues || c.Cache.AsyncRefresh
	if legacy && c.Cache.StaleValuesPolicy.IsDefined() {
		result.AddError(nil, errLegacyCacheWithPolicy)
		return
	}
	if legacy {
		switch {
		case c.Cache.RefreshStaleValues && c.Cache.AsyncRefresh:
			c.Cache.StaleValuesPolicy = StaleValuesRefreshAsync
		case c.Cache.RefreshStaleValues:
			c.Cache.StaleValuesPolicy = StaleValuesRefresh
		default:
			loggers.Warn("AsyncRefresh has no effect unless RefreshStaleValues is also set")
			c.Cache.StaleValuesPolicy = StaleValuesEvict
		}
		c.Cache.RefreshStaleValues = false
		c.Cache.AsyncRefresh = false
	}
}

func validateConfigDatabases(result *ct.ValidationResult, c *Config) {
	normalizeRedisConfig(result, c)

	databases := []string{}
	if c.Redis.URL.IsDefined() || len(c.Redis.ClusterAddrs.Values()) != 0 {
		databases = append(databases, "Redis")
	}
	if c.Consul.Host != "" {
		databases = append(databases, "Consul")
	}
	if c.DynamoDB.Enabled {
		databases = append(databases, "DynamoDB")
		if c.DynamoDB.TableName == "" {
			result.AddError(nil, errDynamoDBWithoutTableName)
		}
	}
	if len(databases) > 1 {
		result.AddError(nil, errMultipleDatabases(databases))
	}
}

func normalizeRedisConfig(result *ct.ValidationResult, c *Config) {
	hostOrPort := c.Redis.Host != "" || c.Redis.Port.IsDefined()
	if len(c.Redis.ClusterAddrs.Values()) != 0 {
		if c.Redis.URL.IsDefined() || hostOrPort {
			result.AddError(nil, errRedisClusterWithURL)
		}
		return
	}
	if c.Redis.URL.IsDefined() {
		if hostOrPort {
			result.AddError(nil, errRedisURLWithHostAndPort)
		}
		return
	}
	if hostOrPort {
		host := c.Redis.Host
		if host == "" {
			host = defaultRedisHost
		}
		port := c.Redis.Port.GetOrElse(defaultRedisPort)
		url, err := ct.NewOptURLAbsoluteFromString(fmt.Sprintf("redis://%s:%d", host, port))
		if err != nil {
			result.AddError(nil, errRedisBadHostname)
			return
		}
		c.Redis.URL = url
		c.Redis.Host = ""
		c.Redis.Port = ct.OptIntGreaterThanZero{}
	}
}
