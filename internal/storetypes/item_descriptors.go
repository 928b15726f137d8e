package storetypes

// ItemDescriptor is a versioned item, or a deleted placeholder, as seen by components that work with
// decoded data.
//
// A nil Item with a non-negative Version is a tombstone: it records that the item was deleted at that
// version, so that an older update arriving later cannot resurrect it.
type ItemDescriptor struct {
	Version int
	Item    interface{}
}

// NotFound returns the descriptor used for an item that does not exist at all.
func (d ItemDescriptor) NotFound() ItemDescriptor {
	return ItemDescriptor{Version: -1}
}

// IsDeleted returns true if this is a tombstone or a not-found placeholder.
func (d ItemDescriptor) IsDeleted() bool {
	return d.Item == nil
}

// KeyedItemDescriptor pairs an ItemDescriptor with its key.
type KeyedItemDescriptor struct {
	Key  string
	Item ItemDescriptor
}

// Collection is all of the items of one kind, as part of a full data set.
type Collection struct {
	Kind  DataKind
	Items []KeyedItemDescriptor
}

// SerializedItemDescriptor is what a DurableStore reads and writes.
//
// Version and Deleted are provided separately so that a store can compare versions without parsing
// SerializedItem; stores that cannot persist them separately can recover them with ReadVersionInfo.
type SerializedItemDescriptor struct {
	Version        int
	Deleted        bool
	SerializedItem []byte
}

// NotFound returns the descriptor used for an item that does not exist at all.
func (d SerializedItemDescriptor) NotFound() SerializedItemDescriptor {
	return SerializedItemDescriptor{Version: -1}
}

// KeyedSerializedItemDescriptor pairs a SerializedItemDescriptor with its key.
type KeyedSerializedItemDescriptor struct {
	Key  string
	Item SerializedItemDescriptor
}

// SerializedCollection is all of the serialized items of one kind.
type SerializedCollection struct {
	Kind  DataKind
	Items []KeyedSerializedItemDescriptor
}
