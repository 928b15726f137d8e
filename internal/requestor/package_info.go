// Package requestor fetches flag and segment data from the LaunchDarkly polling endpoints. It is used
// by the polling data source, and by the stream processor for "indirect" events that tell it to fetch
// data instead of including it in the stream.
package requestor
