package sharedtest

import (
	"fmt"

	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldbuilders"
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"
)

// MakeFlag creates a minimal flag that is on.
func MakeFlag(key string, version int) ldmodel.FeatureFlag {
	return ldbuilders.NewFlagBuilder(key).Version(version).On(true).Build()
}

// MakeSegment creates a minimal segment.
func MakeSegment(key string, version int) ldmodel.Segment {
	return ldbuilders.NewSegmentBuilder(key).Version(version).Build()
}

// FlagJSON returns the JSON shape the LaunchDarkly services use for a minimal flag.
func FlagJSON(key string, version int) string {
	return fmt.Sprintf(`{"key":%q,"version":%d,"on":true}`, key, version)
}

// SegmentJSON returns the JSON shape the LaunchDarkly services use for a minimal segment.
func SegmentJSON(key string, version int) string {
	return fmt.Sprintf(`{"key":%q,"version":%d,"included":[],"excluded":[],"rules":[]}`, key, version)
}

// AllDataJSON builds a full data set JSON object from already-serialized flags and segments.
func AllDataJSON(flagsJSON map[string]string, segmentsJSON map[string]string) string {
	return fmt.Sprintf(`{"flags":%s,"segments":%s}`, objectJSON(flagsJSON), objectJSON(segmentsJSON))
}

func objectJSON(items map[string]string) string {
	s := "{"
	first := true
	for k, v := range items {
		if !first {
			s += ","
		}
		first = false
		s += fmt.Sprintf("%q:%s", k, v)
	}
	return s + "}"
}

var (
	Flag1    = MakeFlag("flag1", 1)       //nolint:gochecknoglobals
	Flag2    = MakeFlag("flag2", 1)       //nolint:gochecknoglobals
	Segment1 = MakeSegment("segment1", 1) //nolint:gochecknoglobals
)
