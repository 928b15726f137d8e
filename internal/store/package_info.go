// Package store contains the Store implementations: an in-memory store, and the caching wrapper that
// adapts any DurableStore to the Store interface.
package store
