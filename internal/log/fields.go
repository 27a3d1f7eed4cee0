package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTickID    = "tick_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Container fields
	FieldContainerID   = "container_id"
	FieldContainerName = "container_name"
	FieldImage         = "image"
	FieldRole          = "role"
	FieldState         = "state"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
