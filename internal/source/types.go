package source

// Record types routed by the top-level "type" field. Lines without a type
// are invocations.
const (
	TypeInvocation = "invocation"
	TypeMetric     = "metric"
)

// RawRecord is a single line in a tool server's JSONL event log.
type RawRecord struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`

	// Invocation fields.
	Tool       string         `json:"tool,omitempty"`
	Timestamp  string         `json:"ts,omitempty"`
	DurationMs float64        `json:"duration_ms,omitempty"`
	Success    *bool          `json:"success,omitempty"`
	Error      string         `json:"error,omitempty"`
	Cost       float64        `json:"cost,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`

	// Metric fields.
	Name  string   `json:"name,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

// DiscoveredFile represents a JSONL file found during directory scanning.
type DiscoveredFile struct {
	Path   string
	Server string // file name without extension, e.g. "git_insights"
	Dir    string // directory relative to the scan root
}
