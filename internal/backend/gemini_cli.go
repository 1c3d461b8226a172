package backend

import (
	"context"
	"strings"
	"time"

	"aibridge/internal/config"
	"aibridge/internal/models"
	"aibridge/internal/transform"
	"aibridge/internal/types"
)

// GeminiCLI invokes the Gemini CLI as a subprocess using its Google Code
// Assist authentication, with API-key variables scrubbed from the child
// environment so the CLI cannot silently fall back to key auth.
type GeminiCLI struct {
	cfg    config.GeminiConfig
	detail transform.DetailOptions
}

// NewGeminiCLI creates the Gemini subprocess invoker.
func NewGeminiCLI(cfg config.GeminiConfig, detail transform.DetailOptions) *GeminiCLI {
	return &GeminiCLI{cfg: cfg, detail: detail}
}

func (g *GeminiCLI) Provider() models.Provider {
	return models.ProviderGemini
}

func (g *GeminiCLI) Invoke(ctx context.Context, req *types.CanonicalRequest) (*Result, error) {
	var args []string
	if model := g.cfg.ResolveGeminiModel(req.Model); model != "" {
		args = append(args, "--model", model)
	}

	prompt := transform.Prompt(req, g.detail)

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	stdout, stderr, invokeErr := runProcess(ctx, g.cfg.Bin, args, prompt, envSpec{
		set:        map[string]string{"GOOGLE_GENAI_USE_GCA": "true"},
		setDefault: map[string]string{"GIT_TERMINAL_PROMPT": "0"},
		unset:      []string{"CI", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	})
	if invokeErr != nil {
		if invokeErr.Kind == KindNonZeroExit && strings.TrimSpace(stderr) == "" {
			invokeErr.Message = "gemini cli call failed"
		}
		return nil, invokeErr
	}

	answer := strings.TrimSpace(stdout)
	if answer == "" {
		return nil, newError(KindEmptyOutput, "no assistant message found in gemini output")
	}
	return &Result{Text: answer, FinishedAt: time.Now()}, nil
}
