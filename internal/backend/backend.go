// Package backend executes a single provider call — subprocess or HTTP —
// for a fully-resolved canonical request and returns its final text output
// or a structured failure. It has no knowledge of the Ollama wire protocol.
package backend

import (
	"context"
	"fmt"
	"time"

	"aibridge/internal/config"
	"aibridge/internal/models"
	"aibridge/internal/transform"
	"aibridge/internal/types"
)

// ErrorKind classifies backend failures. None of them are retried; the
// router surfaces kind and message to the client in a single error response.
type ErrorKind string

const (
	KindTimeout             ErrorKind = "timeout"
	KindProcessLaunchFailed ErrorKind = "process_launch_failed"
	KindNonZeroExit         ErrorKind = "non_zero_exit"
	KindHTTPError           ErrorKind = "http_error"
	KindMalformedResponse   ErrorKind = "malformed_response"
	KindEmptyOutput         ErrorKind = "empty_output"
)

// Error is a structured backend failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Result is a successful backend completion.
type Result struct {
	Text       string
	FinishedAt time.Time
}

// Invoker executes one backend. Implementations apply their own hard
// timeout on top of the caller's context.
type Invoker interface {
	Provider() models.Provider
	Invoke(ctx context.Context, req *types.CanonicalRequest) (*Result, error)
}

// BuildInvokers constructs the per-provider invoker set from the resolved
// configuration. The Gemini auth mode picks between the CLI and HTTP
// implementations once, at startup.
func BuildInvokers(cfg *config.Config) map[models.Provider]Invoker {
	detail := transform.DetailOptions{Mode: cfg.DetailMode, Instruction: cfg.DetailInstruction}

	var gemini Invoker
	if cfg.Gemini.AuthMode == config.AuthModeAPI {
		gemini = NewGeminiAPI(cfg.Gemini, detail)
	} else {
		gemini = NewGeminiCLI(cfg.Gemini, detail)
	}

	return map[models.Provider]Invoker{
		models.ProviderCodex:  NewCodex(cfg.Codex, detail),
		models.ProviderGemini: gemini,
	}
}
