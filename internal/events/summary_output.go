package events

import (
	"sort"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// SummaryEventKind is the "kind" property of a summary event.
const SummaryEventKind = "summary"

// MakeSummaryEventJSON encodes a summary in the format of a LaunchDarkly "summary" analytics event.
// Flags and counters are sorted so that the output is deterministic.
func MakeSummaryEventJSON(summary EventSummary) []byte {
	byFlag := make(map[string][]CounterKey)
	for key := range summary.Counters {
		byFlag[key.Key] = append(byFlag[key.Key], key)
	}
	flagKeys := make([]string, 0, len(byFlag))
	for flagKey := range byFlag {
		flagKeys = append(flagKeys, flagKey)
	}
	sort.Strings(flagKeys)

	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("kind").String(SummaryEventKind)
	obj.Name("startDate").Float64(float64(summary.StartDate))
	obj.Name("endDate").Float64(float64(summary.EndDate))

	featuresObj := obj.Name("features").Object()
	for _, flagKey := range flagKeys {
		keys := byFlag[flagKey]
		sort.Slice(keys, func(i, j int) bool { return counterKeyLess(keys[i], keys[j]) })

		flagObj := featuresObj.Name(flagKey).Object()
		summary.Counters[keys[0]].Default.WriteToJSONWriter(flagObj.Name("default"))
		countersArr := flagObj.Name("counters").Array()
		for _, key := range keys {
			value := summary.Counters[key]
			counterObj := countersArr.Object()
			value.FlagValue.WriteToJSONWriter(counterObj.Name("value"))
			if key.Variation.IsDefined() {
				counterObj.Name("variation").Int(key.Variation.IntValue())
			}
			if key.Version.IsDefined() {
				counterObj.Name("version").Int(key.Version.IntValue())
			} else {
				counterObj.Name("unknown").Bool(true)
			}
			counterObj.Name("count").Int(value.Count)
			counterObj.End()
		}
		countersArr.End()
		flagObj.End()
	}
	featuresObj.End()
	obj.End()
	return w.Bytes()
}

func counterKeyLess(a, b CounterKey) bool {
	if a.Version.IntValue() != b.Version.IntValue() {
		return a.Version.IntValue() < b.Version.IntValue()
	}
	if a.Variation.IsDefined() != b.Variation.IsDefined() {
		return !a.Variation.IsDefined()
	}
	return a.Variation.IntValue() < b.Variation.IntValue()
}
