package storetypes

import (
	"sort"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// ReadVersionInfo extracts the "version" and "deleted" properties from a serialized item without
// decoding the rest of it. Durable stores that only persist the serialized form use this to implement
// the version comparison of Upsert.
func ReadVersionInfo(data []byte) (version int, deleted bool, err error) {
	r := jreader.NewReader(data)
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "version":
			version = r.Int()
		case "deleted":
			deleted = r.Bool()
		default:
			_ = r.SkipValue()
		}
	}
	return version, deleted, r.Error()
}

// MakeDeletedItemJSON returns the serialized form of a tombstone. Every kind uses the same shape for
// deleted placeholders, so that a store can recognize them without knowing the kind.
func MakeDeletedItemJSON(key string, version int) []byte {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("key").String(key)
	obj.Name("version").Int(version)
	obj.Name("deleted").Bool(true)
	obj.End()
	return w.Bytes()
}

// Serialize converts an ItemDescriptor into the form used by durable stores.
func Serialize(kind DataKind, key string, item ItemDescriptor) SerializedItemDescriptor {
	return SerializedItemDescriptor{
		Version:        item.Version,
		Deleted:        item.Item == nil,
		SerializedItem: kind.Encode(key, item),
	}
}

// Deserialize converts a durable store's item into an ItemDescriptor.
//
// Stores that could not persist the version separately may return a descriptor whose Version is zero;
// in that case the decoded item's own version is used.
func Deserialize(kind DataKind, item SerializedItemDescriptor) (ItemDescriptor, error) {
	if item.Deleted || item.SerializedItem == nil {
		return ItemDescriptor{Version: item.Version}, nil
	}
	decoded, err := kind.Decode(item.SerializedItem)
	if err != nil {
		return ItemDescriptor{}, err
	}
	if item.Version != 0 && decoded.Version != item.Version {
		decoded.Version = item.Version
	}
	return decoded, nil
}

// SerializeAll converts a full data set into the form used by durable stores, in init order.
func SerializeAll(allData []Collection) []SerializedCollection {
	ret := make([]SerializedCollection, 0, len(allData))
	for _, coll := range SortCollectionsForInit(allData) {
		items := make([]KeyedSerializedItemDescriptor, 0, len(coll.Items))
		for _, keyedItem := range coll.Items {
			items = append(items, KeyedSerializedItemDescriptor{
				Key:  keyedItem.Key,
				Item: Serialize(coll.Kind, keyedItem.Key, keyedItem.Item),
			})
		}
		ret = append(ret, SerializedCollection{Kind: coll.Kind, Items: items})
	}
	return ret
}

// SortCollectionsForInit returns a copy of the data set ordered by kind priority.
func SortCollectionsForInit(allData []Collection) []Collection {
	ret := make([]Collection, len(allData))
	copy(ret, allData)
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Kind.Priority < ret[j].Kind.Priority
	})
	return ret
}
