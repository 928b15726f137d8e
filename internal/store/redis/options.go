package redis

import (
	"strings"
	"time"
)

const (
	// DefaultURL is the Redis URL used if none is specified.
	DefaultURL = "redis://localhost:6379"

	// DefaultPrefix is the key prefix used if none is specified.
	DefaultPrefix = "launchdarkly"

	defaultMaxIdle     = 20
	defaultMaxActive   = 16
	defaultIdleTimeout = 300 * time.Second

	initedKey = "$inited"
)

// Options contains the connection parameters for both Redis store implementations. Zero values mean
// the defaults.
type Options struct {
	// URL is a "redis://" or "rediss://" URL. It is ignored if ClusterAddrs is set.
	URL string

	// ClusterAddrs is a list of "host:port" addresses for NewUniversalStore.
	ClusterAddrs []string

	Prefix         string
	Password       string
	Database       int
	TLS            bool
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
	MaxIdle        int
	MaxActive      int
}

func (o Options) url() string {
	url := o.URL
	if url == "" {
		url = DefaultURL
	}
	if o.TLS && strings.HasPrefix(url, "redis:") {
		// Redigo ignores DialUseTLS when the URL scheme says otherwise.
		url = "rediss:" + strings.TrimPrefix(url, "redis:")
	}
	return url
}

func (o Options) prefix() string {
	if o.Prefix == "" {
		return DefaultPrefix
	}
	return o.Prefix
}

func kindKey(prefix, kindName string) string {
	return prefix + ":" + kindName
}

func initedMarkerKey(prefix string) string {
	return prefix + ":" + initedKey
}
