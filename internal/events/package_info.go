// Package events contains the event summarizer, which counts flag evaluations per flag, variation, and
// version without keeping the individual events, and the JSON encoding of the resulting summary.
package events
