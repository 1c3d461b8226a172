package types

// ChatRequest is the Ollama-format body of POST /api/chat.
type ChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   *bool          `json:"stream,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// GenerateRequest is the Ollama-format body of POST /api/generate.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  *bool          `json:"stream,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// ChatChunk is a single chat response object, used both for the final
// non-streaming response and for each streaming NDJSON frame.
type ChatChunk struct {
	Model         string  `json:"model"`
	CreatedAt     string  `json:"created_at"`
	Message       Message `json:"message"`
	Done          bool    `json:"done"`
	DoneReason    string  `json:"done_reason,omitempty"`
	TotalDuration int64   `json:"total_duration,omitempty"`
}

// GenerateChunk is the generate-endpoint counterpart of ChatChunk.
type GenerateChunk struct {
	Model         string `json:"model"`
	CreatedAt     string `json:"created_at"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	DoneReason    string `json:"done_reason,omitempty"`
	TotalDuration int64  `json:"total_duration,omitempty"`
}

// ModelEntry describes one model in the GET /api/tags list.
type ModelEntry struct {
	Name       string       `json:"name"`
	Model      string       `json:"model"`
	ModifiedAt string       `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// ModelDetails holds Ollama model metadata. The bridge has no real model
// files, so the values identify the entry as a bridge passthrough.
type ModelDetails struct {
	ParentModel       string   `json:"parent_model"`
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// ModelList is the response for GET /api/tags.
type ModelList struct {
	Models []ModelEntry `json:"models"`
}

// VersionResponse is the response for GET /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}

// ErrorResponse is the Ollama-format error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Time      string                 `json:"time"`
	Providers map[string]HealthProbe `json:"providers"`
}

// HealthProbe is the per-provider slice of the startup readiness report.
type HealthProbe struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason"`
}
