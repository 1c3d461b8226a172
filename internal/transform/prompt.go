// Package transform builds the single textual prompt a backend consumes
// from the canonical request shape.
package transform

import (
	"fmt"
	"strings"

	"aibridge/internal/types"
)

// closingInstruction anchors multi-turn prompts so the backend answers as
// the assistant instead of continuing the transcript.
const closingInstruction = "Answer as the assistant only."

// DetailOptions controls the optional detail system instruction prepended
// to every prompt.
type DetailOptions struct {
	// Mode disables the instruction entirely when set to "off".
	Mode string
	// Instruction is the system text to prepend.
	Instruction string
}

func (o DetailOptions) enabled() bool {
	return !strings.EqualFold(strings.TrimSpace(o.Mode), "off") && strings.TrimSpace(o.Instruction) != ""
}

// Prompt renders a canonical request into the flat prompt text written to a
// backend. Chat mode concatenates role-tagged turns in order; generate mode
// uses the prompt verbatim behind optional [SYSTEM] lines.
func Prompt(req *types.CanonicalRequest, detail DetailOptions) string {
	if req.Mode == types.ModeGenerate {
		return generatePrompt(req, detail)
	}
	return chatPrompt(req, detail)
}

func chatPrompt(req *types.CanonicalRequest, detail DetailOptions) string {
	var lines []string
	if detail.enabled() {
		lines = append(lines, "[SYSTEM] "+detail.Instruction)
	}
	for _, msg := range req.Messages {
		role := strings.ToUpper(msg.Role)
		if role == "" {
			role = "USER"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", role, msg.Content))
	}
	lines = append(lines, "\n"+closingInstruction)
	return strings.Join(lines, "\n")
}

func generatePrompt(req *types.CanonicalRequest, detail DetailOptions) string {
	var parts []string
	if detail.enabled() {
		parts = append(parts, "[SYSTEM] "+detail.Instruction)
	}
	if system := strings.TrimSpace(req.System); system != "" {
		parts = append(parts, "[SYSTEM] "+system)
	}
	parts = append(parts, "[USER] "+req.Prompt)
	return strings.Join(parts, "\n")
}
