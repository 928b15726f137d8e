package storetypes

// DataKind describes one collection of versioned items, such as feature flags or segments.
//
// A DataKind is a plain descriptor rather than an interface hierarchy: every capability that differs
// between kinds (how the items are named in the store, where they appear in stream paths and polling
// URLs, and how they are decoded and encoded) is a field. Components look up a kind at runtime by name
// or by stream path and then call through these fields.
type DataKind struct {
	// Name is the namespace used for this kind in durable stores, for instance "features".
	Name string
	// StreamPath is the path prefix used in stream patch/delete events, for instance "/flags/".
	StreamPath string
	// PollPath is the requestor sub-path for fetching one item, for instance "/sdk/latest-flags/".
	PollPath string
	// PutName is the property name of this collection in a full data set, for instance "flags".
	PutName string
	// Priority determines the order in which collections are written by a bulk init; lower values are
	// written first, so that items other items depend on are present before their dependents.
	Priority int
	// Decode parses a serialized item. If the serialized item is a deleted placeholder, the returned
	// descriptor has a nil Item.
	Decode func(data []byte) (ItemDescriptor, error)
	// Encode serializes an item. If the Item is nil, it produces a deleted placeholder.
	Encode func(key string, item ItemDescriptor) []byte
	// Default returns the zero value of this kind's item type.
	Default func() interface{}
}

// GetName returns the kind's store namespace.
func (k DataKind) GetName() string {
	return k.Name
}

// String is the same as GetName.
func (k DataKind) String() string {
	return k.Name
}

// IsDefined returns true if this is not the zero value.
func (k DataKind) IsDefined() bool {
	return k.Name != ""
}
