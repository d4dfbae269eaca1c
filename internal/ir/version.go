package ir

// Version constants for stored results and the engine.
const (
	// SchemaVersion is the match record schema version.
	SchemaVersion = "1"

	// EngineVersion is the markout engine version.
	EngineVersion = "0.1.0"
)
