package config

import (
	"fmt"
	"sort"
	"strings"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// LoadConfigFromEnvironment sets parameters in a Config struct from environment variables.
//
// The Config parameter should be initialized with default values first. Variables that are not set
// leave the existing values alone.
func LoadConfigFromEnvironment(c *Config, loggers ldlog.Loggers) error {
	reader := ct.NewVarReaderFromEnvironment()

	reader.ReadStruct(&c.Main, false)
	reader.ReadStruct(&c.Cache, false)

	useRedis := false
	reader.Read("USE_REDIS", &useRedis)
	if useRedis || c.Redis.Host != "" || c.Redis.URL.IsDefined() {
		portStr := ""
		reader.ReadStruct(&c.Redis, false)
		reader.Read("REDIS_PORT", &portStr) // could be a number or a Docker link URL
		if strings.HasPrefix(portStr, "tcp://") {
			// REDIS_PORT gets set to tcp://$docker_ip:6379 when linking to a Redis container
			fields := strings.Split(strings.TrimPrefix(portStr, "tcp://"), ":")
			c.Redis.Host = fields[0]
			c.Redis.Port = ct.OptIntGreaterThanZero{}
			if len(fields) > 1 {
				portStr = fields[1]
			} else {
				portStr = ""
			}
		}
		if portStr != "" {
			if err := c.Redis.Port.UnmarshalText([]byte(portStr)); err != nil {
				reader.AddError(ct.ValidationPath{"REDIS_PORT"}, err)
			}
		}
		if !c.Redis.URL.IsDefined() && c.Redis.Host == "" && !c.Redis.Port.IsDefined() &&
			len(c.Redis.ClusterAddrs.Values()) == 0 {
			// all they specified was USE_REDIS
			c.Redis.Host = defaultRedisHost
		}
	}

	useConsul := false
	reader.Read("USE_CONSUL", &useConsul)
	if useConsul {
		if c.Consul.Host == "" {
			c.Consul.Host = defaultConsulHost
		}
		reader.ReadStruct(&c.Consul, false)
	}

	reader.Read("USE_DYNAMODB", &c.DynamoDB.Enabled)
	if c.DynamoDB.Enabled {
		reader.ReadStruct(&c.DynamoDB, false)
	}

	reader.ReadStruct(&c.Files, false)
	reader.ReadStruct(&c.Proxy, false)

	reader.ReadStruct(&c.MetricsConfig.Datadog, false)
	if c.MetricsConfig.Datadog.Enabled {
		for tagName, tagVal := range reader.FindPrefixedValues("DATADOG_TAG_") {
			c.MetricsConfig.Datadog.Tag = append(c.MetricsConfig.Datadog.Tag, fmt.Sprintf("%s:%s", tagName, tagVal))
		}
		sort.Strings(c.MetricsConfig.Datadog.Tag) // for test determinacy
	}
	reader.ReadStruct(&c.MetricsConfig.Stackdriver, false)
	reader.ReadStruct(&c.MetricsConfig.Prometheus, false)

	if !reader.Result().OK() {
		return reader.Result().GetError()
	}

	return ValidateConfig(c, loggers)
}
