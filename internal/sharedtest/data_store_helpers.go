package sharedtest

import (
	"github.com/launchdarkly/go-server-sdk-evaluation/v3/ldmodel"

	"github.com/launchdarkly/ld-sync/internal/datakinds"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// ReceivedItemUpdate records one Upsert call received by a test store.
type ReceivedItemUpdate struct {
	Kind st.DataKind
	Key  string
	Item st.ItemDescriptor
}

func FlagDesc(flag ldmodel.FeatureFlag) st.ItemDescriptor {
	return st.ItemDescriptor{Version: flag.Version, Item: &flag}
}

func SegmentDesc(segment ldmodel.Segment) st.ItemDescriptor {
	return st.ItemDescriptor{Version: segment.Version, Item: &segment}
}

func DeletedItem(version int) st.ItemDescriptor {
	return st.ItemDescriptor{Version: version, Item: nil}
}

func UpsertFlag(store st.Store, flag ldmodel.FeatureFlag) (bool, error) {
	return store.Upsert(datakinds.Features, flag.Key, FlagDesc(flag))
}

func UpsertSegment(store st.Store, segment ldmodel.Segment) (bool, error) {
	return store.Upsert(datakinds.Segments, segment.Key, SegmentDesc(segment))
}

// MakeAllData builds a full data set from flags and segments.
func MakeAllData(flags []ldmodel.FeatureFlag, segments []ldmodel.Segment) []st.Collection {
	flagItems := make([]st.KeyedItemDescriptor, 0, len(flags))
	for _, f := range flags {
		flagItems = append(flagItems, st.KeyedItemDescriptor{Key: f.Key, Item: FlagDesc(f)})
	}
	segmentItems := make([]st.KeyedItemDescriptor, 0, len(segments))
	for _, s := range segments {
		segmentItems = append(segmentItems, st.KeyedItemDescriptor{Key: s.Key, Item: SegmentDesc(s)})
	}
	return []st.Collection{
		{Kind: datakinds.Features, Items: flagItems},
		{Kind: datakinds.Segments, Items: segmentItems},
	}
}

// SerializedFlag returns the durable-store form of a flag.
func SerializedFlag(flag ldmodel.FeatureFlag) st.SerializedItemDescriptor {
	return st.Serialize(datakinds.Features, flag.Key, FlagDesc(flag))
}

// SerializedSegment returns the durable-store form of a segment.
func SerializedSegment(segment ldmodel.Segment) st.SerializedItemDescriptor {
	return st.Serialize(datakinds.Segments, segment.Key, SegmentDesc(segment))
}

// FlagFromDesc returns the flag in an ItemDescriptor, or nil if it is a tombstone.
func FlagFromDesc(item st.ItemDescriptor) *ldmodel.FeatureFlag {
	flag, _ := item.Item.(*ldmodel.FeatureFlag)
	return flag
}
