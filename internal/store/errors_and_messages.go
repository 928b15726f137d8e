package store

const (
	logMsgInitFailed              = "Failed to initialize durable store: %s"
	logMsgServingStaleValue       = "Durable store query for %q failed, returning cached value: %s"
	logMsgBackgroundRefreshFailed = "Background refresh of %q failed, cached value will be kept: %s"
	logMsgDeserializeFailed       = "Could not decode stored %s item %q: %s"
)
