// Package streaming contains the stream processor, which keeps a store in sync with the LaunchDarkly
// streaming service.
package streaming
