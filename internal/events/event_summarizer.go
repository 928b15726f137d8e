package events

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// CounterKey identifies one counter in a summary. Variation and Version are both empty for evaluations of
// unknown flags.
type CounterKey struct {
	Key       string
	Variation ldvalue.OptionalInt
	Version   ldvalue.OptionalInt
}

// CounterValue is the number of evaluations for a CounterKey, with the value that was returned and the
// default value the caller passed in. Both values come from the first evaluation counted.
type CounterValue struct {
	Count     int
	FlagValue ldvalue.Value
	Default   ldvalue.Value
}

// EventSummary is the state of an EventSummarizer at the time of a snapshot. StartDate and EndDate are the
// earliest and latest evaluation timestamps, or zero if there were none.
type EventSummary struct {
	StartDate ldtime.UnixMillisecondTime
	EndDate   ldtime.UnixMillisecondTime
	Counters  map[CounterKey]CounterValue
}

// IsEmpty returns true if no evaluations were counted.
func (s EventSummary) IsEmpty() bool {
	return len(s.Counters) == 0
}

func newEventSummary() EventSummary {
	return EventSummary{Counters: make(map[CounterKey]CounterValue)}
}

// EventSummarizer accumulates evaluation counters. It is safe for concurrent use; Snapshot returns the
// counters and resets them in one step, so every event is counted in exactly one snapshot.
type EventSummarizer struct {
	summary EventSummary
	lock    sync.Mutex
}

// NewEventSummarizer creates an empty EventSummarizer.
func NewEventSummarizer() *EventSummarizer {
	return &EventSummarizer{summary: newEventSummary()}
}

// SummarizeEvent counts a FeatureRequestEvent. Other kinds of events are ignored.
func (s *EventSummarizer) SummarizeEvent(evt Event) {
	fe, ok := evt.(FeatureRequestEvent)
	if !ok {
		return
	}
	key := CounterKey{Key: fe.Key, Variation: fe.Variation, Version: fe.Version}

	s.lock.Lock()
	defer s.lock.Unlock()

	if value, ok := s.summary.Counters[key]; ok {
		value.Count++
		s.summary.Counters[key] = value
	} else {
		s.summary.Counters[key] = CounterValue{Count: 1, FlagValue: fe.Value, Default: fe.Default}
	}

	date := fe.CreationDate
	if s.summary.StartDate == 0 || date < s.summary.StartDate {
		s.summary.StartDate = date
	}
	if date > s.summary.EndDate {
		s.summary.EndDate = date
	}
}

// Snapshot returns the current summary and starts a new, empty one.
func (s *EventSummarizer) Snapshot() EventSummary {
	s.lock.Lock()
	defer s.lock.Unlock()
	ret := s.summary
	s.summary = newEventSummary()
	return ret
}
