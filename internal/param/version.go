package param

// Version constants for the table schema and engine.
const (
	// TablesVersion is the rule-table schema version.
	TablesVersion = "1"

	// EngineVersion is the vib3 engine version.
	EngineVersion = "0.1.0"
)
