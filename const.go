package match

const (
	// EngineVersion is the current version of the matching engine
	EngineVersion = "v2.0.0"

	// StateSchemaVersion is the current version of the exported book state.
	// Increment this when the BookState format changes in a backward-incompatible way
	StateSchemaVersion = 1

	// DefaultArenaCapacity is the number of order slots pre-allocated by a new engine.
	DefaultArenaCapacity int32 = 4096

	// DefaultTickSize is used when no tick size is configured.
	DefaultTickSize = "0.01"

	// DefaultRecentTrades is the window kept by MemoryTradeSink.
	DefaultRecentTrades = 1024
)
