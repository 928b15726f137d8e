// Package redis contains durable store implementations for Redis.
//
// Each data kind is stored as a hash whose name is "<prefix>:<kind>", mapping item keys to serialized
// items. The key "<prefix>:$inited" exists once the store has been initialized. NewRedigoStore connects
// to a single Redis node; NewUniversalStore uses a go-redis client, which can also talk to a Redis
// cluster or a Sentinel-managed deployment.
package redis
