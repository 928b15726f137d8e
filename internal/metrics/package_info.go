// Package metrics records ld-sync's operational counters as OpenCensus measures, and configures the
// optional exporters that publish them.
package metrics
