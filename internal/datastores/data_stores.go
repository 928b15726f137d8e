// Package datastores builds the configured data store.
package datastores

import (
	"context"
	"net/url"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/launchdarkly/ld-sync/config"
	"github.com/launchdarkly/ld-sync/internal/store"
	"github.com/launchdarkly/ld-sync/internal/store/consul"
	"github.com/launchdarkly/ld-sync/internal/store/dynamodb"
	"github.com/launchdarkly/ld-sync/internal/store/redis"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// DataStoreInfo describes the database configuration, for the status resource.
type DataStoreInfo struct {
	// DBType is "redis", "consul", "dynamodb", or "" for the default in-memory store.
	DBType string `json:"dbType,omitempty"`

	// DBServer is the URL or host address of the database server. Passwords are redacted.
	DBServer string `json:"dbServer,omitempty"`

	// DBPrefix is the key prefix used in the database.
	DBPrefix string `json:"dbPrefix,omitempty"`

	// DBTable is the DynamoDB table name, or "" for other databases.
	DBTable string `json:"dbTable,omitempty"`
}

// NewStore creates the store described by the configuration: a durable store wrapped in a CachingStore
// if a database is configured, or an in-memory store otherwise. It assumes that the configuration has
// already been validated, so at most one database is enabled.
func NewStore(
	c config.Config,
	metricsCtx context.Context,
	loggers ldlog.Loggers,
) (st.Store, DataStoreInfo, error) {
	durableStore, info, err := newDurableStore(c, loggers)
	if err != nil {
		return nil, DataStoreInfo{}, err
	}
	if durableStore == nil {
		return store.NewInMemoryStore(), info, nil
	}
	return store.NewCachingStore(durableStore, MakeCacheConfig(c.Cache), metricsCtx, loggers), info, nil
}

// MakeCacheConfig converts the [Cache] configuration section into the parameters of a CachingStore.
func MakeCacheConfig(c config.CacheConfig) store.CacheConfig {
	ret := store.CacheConfig{TTL: c.TTL.GetOrElse(config.DefaultCacheTTL)}
	switch c.StaleValuesPolicy.GetOrElse(config.StaleValuesEvict) {
	case config.StaleValuesRefresh:
		ret.StaleValuesPolicy = store.StaleValuesRefresh
	case config.StaleValuesRefreshAsync:
		ret.StaleValuesPolicy = store.StaleValuesRefreshAsync
	default:
		ret.StaleValuesPolicy = store.StaleValuesEvict
	}
	return ret
}

func newDurableStore(c config.Config, loggers ldlog.Loggers) (st.DurableStore, DataStoreInfo, error) {
	switch {
	case c.Redis.URL.IsDefined() || len(c.Redis.ClusterAddrs.Values()) != 0:
		return newRedisStore(c.Redis, loggers)

	case c.Consul.Host != "":
		prefix := c.Consul.Prefix
		if prefix == "" {
			prefix = consul.DefaultPrefix
		}
		loggers.Infof("Using Consul data store: %s with prefix: %s", c.Consul.Host, prefix)
		s, err := consul.NewStore(consul.Options{Address: c.Consul.Host, Token: c.Consul.Token, Prefix: prefix}, loggers)
		if err != nil {
			return nil, DataStoreInfo{}, err
		}
		return s, DataStoreInfo{DBType: "consul", DBServer: c.Consul.Host, DBPrefix: prefix}, nil

	case c.DynamoDB.Enabled:
		loggers.Infof("Using DynamoDB data store: %s with prefix: %s", c.DynamoDB.TableName, c.DynamoDB.Prefix)
		options := dynamodb.Options{TableName: c.DynamoDB.TableName, Prefix: c.DynamoDB.Prefix}
		if c.DynamoDB.URL.IsDefined() {
			options.Endpoint = c.DynamoDB.URL.String()
		}
		s, err := dynamodb.NewStore(options, loggers)
		if err != nil {
			return nil, DataStoreInfo{}, err
		}
		return s, DataStoreInfo{
			DBType:   "dynamodb",
			DBServer: options.Endpoint,
			DBPrefix: c.DynamoDB.Prefix,
			DBTable:  c.DynamoDB.TableName,
		}, nil
	}
	return nil, DataStoreInfo{}, nil
}

func newRedisStore(c config.RedisConfig, loggers ldlog.Loggers) (st.DurableStore, DataStoreInfo, error) {
	options := makeRedisOptions(c)
	info := DataStoreInfo{DBType: "redis", DBPrefix: options.Prefix}
	if info.DBPrefix == "" {
		info.DBPrefix = redis.DefaultPrefix
	}

	if len(options.ClusterAddrs) != 0 {
		info.DBServer = strings.Join(options.ClusterAddrs, ",")
		loggers.Infof("Using Redis cluster data store: %s with prefix: %s", info.DBServer, info.DBPrefix)
		s, err := redis.NewUniversalStore(options, loggers)
		if err != nil {
			return nil, DataStoreInfo{}, err
		}
		return s, info, nil
	}

	info.DBServer = redactURL(options.URL)
	loggers.Infof("Using Redis data store: %s with prefix: %s", info.DBServer, info.DBPrefix)
	return redis.NewRedigoStore(options, loggers), info, nil
}

func makeRedisOptions(c config.RedisConfig) redis.Options {
	return redis.Options{
		URL:            c.URL.String(),
		ClusterAddrs:   c.ClusterAddrs.Values(),
		Prefix:         c.Prefix,
		Password:       c.Password,
		Database:       c.Database,
		TLS:            c.TLS,
		ConnectTimeout: c.ConnectTimeout.GetOrElse(0),
		SocketTimeout:  c.SocketTimeout.GetOrElse(0),
	}
}

func redactURL(rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		return parsed.Redacted()
	}
	return rawURL
}
