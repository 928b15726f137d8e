// Package storetypes defines data kind descriptors, item descriptors and the store contracts that are
// shared by the data sources, the cache wrapper, and the durable store implementations.
package storetypes
