package types

// Mode distinguishes the two request shapes the bridge accepts.
type Mode int

const (
	// ModeChat is a multi-turn conversation request (POST /api/chat).
	ModeChat Mode = iota
	// ModeGenerate is a single-prompt completion request (POST /api/generate).
	ModeGenerate
)

// String returns the wire name of the mode, used in logs.
func (m Mode) String() string {
	if m == ModeGenerate {
		return "generate"
	}
	return "chat"
}

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CanonicalRequest is the unified internal representation of an inbound
// chat or generate call after decoding. It is protocol-agnostic and carries
// everything a backend needs to produce a completion.
//
// Exactly one of Messages (ModeChat) or Prompt (ModeGenerate) is populated.
type CanonicalRequest struct {
	// Model is the client-supplied model string, already defaulted when the
	// client sent none.
	Model string

	Mode Mode

	// Messages holds the ordered conversation for ModeChat.
	Messages []Message

	// Prompt and System hold the completion input for ModeGenerate.
	Prompt string
	System string

	Stream bool

	// Options carries the client's generation options verbatim. They are
	// accepted for protocol compatibility and not forwarded to backends.
	Options map[string]any
}
