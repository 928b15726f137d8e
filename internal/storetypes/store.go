package storetypes

// Store is the interface that data sources write to and that readers query. Items are decoded.
//
// Implementations must make Upsert atomic per key: the version comparison and the write happen as one
// operation, so that a lower version can never overwrite an equal or higher one.
type Store interface {
	// Init replaces the entire contents of the store and marks it as initialized.
	Init(allData []Collection) error

	// Get returns an item, a tombstone, or a descriptor with Version -1 if there is no such key.
	Get(kind DataKind, key string) (ItemDescriptor, error)

	// GetAll returns every item of a kind, including tombstones.
	GetAll(kind DataKind) ([]KeyedItemDescriptor, error)

	// Upsert stores the item only if its version is greater than the stored version. It returns true if
	// the item was stored.
	Upsert(kind DataKind, key string, item ItemDescriptor) (bool, error)

	// IsInitialized returns true once Init has been called successfully, by this process or by another
	// process sharing the same durable store.
	IsInitialized() bool

	// Close releases any resources held by the store.
	Close() error
}

// DurableStore is the contract for a persistent backend, which stores serialized items.
//
// The cache wrapper in the store package adapts a DurableStore to the Store interface; a DurableStore
// implementation does not need to do any caching of its own.
type DurableStore interface {
	// Init replaces the entire contents of the store, including a marker that the store is initialized.
	Init(allData []SerializedCollection) error

	// Get returns a serialized item, or a descriptor with Version -1 if there is no such key.
	Get(kind DataKind, key string) (SerializedItemDescriptor, error)

	// GetAll returns every serialized item of a kind, including deleted placeholders.
	GetAll(kind DataKind) ([]KeyedSerializedItemDescriptor, error)

	// Upsert stores the item only if its version is greater than the stored version. It returns true if
	// the item was stored.
	Upsert(kind DataKind, key string, item SerializedItemDescriptor) (bool, error)

	// IsInitialized returns true if the initialized marker exists.
	IsInitialized() bool

	// IsStoreAvailable performs a trivial query to see if the backend is reachable.
	IsStoreAvailable() bool

	// Close releases any resources held by the store.
	Close() error
}
