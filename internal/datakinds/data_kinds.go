// Package datakinds provides the concrete data kinds (feature flags and segments) and the parsing of
// full data sets in the format used by the streaming and polling services.
package datakinds

import (
	"strings"

	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"

	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

var modelSerialization = ldmodel.NewJSONDataModelSerialization() //nolint:gochecknoglobals

// Features is the data kind for feature flags. Items are *ldmodel.FeatureFlag.
var Features = st.DataKind{ //nolint:gochecknoglobals
	Name:       "features",
	StreamPath: "/flags/",
	PollPath:   "/sdk/latest-flags/",
	PutName:    "flags",
	Priority:   1,
	Decode:     decodeFlag,
	Encode:     encodeFlag,
	Default:    func() interface{} { return &ldmodel.FeatureFlag{} },
}

// Segments is the data kind for user segments. Items are *ldmodel.Segment. Segments are written before
// flags in a bulk init, since flags can reference them.
var Segments = st.DataKind{ //nolint:gochecknoglobals
	Name:       "segments",
	StreamPath: "/segments/",
	PollPath:   "/sdk/latest-segments/",
	PutName:    "segments",
	Priority:   0,
	Decode:     decodeSegment,
	Encode:     encodeSegment,
	Default:    func() interface{} { return &ldmodel.Segment{} },
}

// AllDataKinds returns every supported data kind.
func AllDataKinds() []st.DataKind {
	return []st.DataKind{Features, Segments}
}

// FromStreamPath determines the data kind and key from a stream event path like "/flags/key". It
// returns false if the path does not match any known kind.
func FromStreamPath(path string) (st.DataKind, string, bool) {
	for _, kind := range AllDataKinds() {
		if strings.HasPrefix(path, kind.StreamPath) {
			return kind, strings.TrimPrefix(path, kind.StreamPath), true
		}
	}
	return st.DataKind{}, "", false
}

// FromName returns the data kind with the given store namespace.
func FromName(name string) (st.DataKind, bool) {
	for _, kind := range AllDataKinds() {
		if kind.Name == name {
			return kind, true
		}
	}
	return st.DataKind{}, false
}

func decodeFlag(data []byte) (st.ItemDescriptor, error) {
	flag, err := modelSerialization.UnmarshalFeatureFlag(data)
	if err != nil {
		return st.ItemDescriptor{}, err
	}
	if flag.Deleted {
		return st.ItemDescriptor{Version: flag.Version}, nil
	}
	return st.ItemDescriptor{Version: flag.Version, Item: &flag}, nil
}

func encodeFlag(key string, item st.ItemDescriptor) []byte {
	if flag, ok := item.Item.(*ldmodel.FeatureFlag); ok && flag != nil {
		if data, err := modelSerialization.MarshalFeatureFlag(*flag); err == nil {
			return data
		}
	}
	return st.MakeDeletedItemJSON(key, item.Version)
}

func decodeSegment(data []byte) (st.ItemDescriptor, error) {
	segment, err := modelSerialization.UnmarshalSegment(data)
	if err != nil {
		return st.ItemDescriptor{}, err
	}
	if segment.Deleted {
		return st.ItemDescriptor{Version: segment.Version}, nil
	}
	return st.ItemDescriptor{Version: segment.Version, Item: &segment}, nil
}

func encodeSegment(key string, item st.ItemDescriptor) []byte {
	if segment, ok := item.Item.(*ldmodel.Segment); ok && segment != nil {
		if data, err := modelSerialization.MarshalSegment(*segment); err == nil {
			return data
		}
	}
	return st.MakeDeletedItemJSON(key, item.Version)
}
