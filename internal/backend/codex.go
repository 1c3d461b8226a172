package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"aibridge/internal/config"
	"aibridge/internal/models"
	"aibridge/internal/transform"
	"aibridge/internal/types"
)

// Codex invokes the Codex CLI as a subprocess in non-interactive JSON mode.
type Codex struct {
	cfg    config.CodexConfig
	detail transform.DetailOptions
}

// NewCodex creates the Codex subprocess invoker.
func NewCodex(cfg config.CodexConfig, detail transform.DetailOptions) *Codex {
	return &Codex{cfg: cfg, detail: detail}
}

func (c *Codex) Provider() models.Provider {
	return models.ProviderCodex
}

// Invoke runs `codex exec --json` with the prompt on stdin and extracts the
// final agent message from the emitted NDJSON event stream.
func (c *Codex) Invoke(ctx context.Context, req *types.CanonicalRequest) (*Result, error) {
	args := []string{"exec", "--skip-git-repo-check", "--json"}
	if c.cfg.Model != "" {
		args = append(args, "--model", c.cfg.Model)
	}
	switch c.cfg.Verbosity {
	case "low", "medium", "high":
		args = append(args, "-c", fmt.Sprintf("model_verbosity=%q", c.cfg.Verbosity))
	}
	// The prompt travels on stdin; "-" tells codex to read it from there.
	args = append(args, "-")

	prompt := transform.Prompt(req, c.detail)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	stdout, stderr, invokeErr := runProcess(ctx, c.cfg.Bin, args, prompt, envSpec{
		setDefault: map[string]string{
			"CI":                  "true",
			"GIT_TERMINAL_PROMPT": "0",
		},
	})
	if invokeErr != nil {
		if invokeErr.Kind == KindNonZeroExit && strings.TrimSpace(stderr) == "" {
			invokeErr.Message = "codex exec failed"
		}
		return nil, invokeErr
	}

	answer := extractAgentMessage(stdout)
	if answer == "" {
		return nil, newError(KindEmptyOutput, "no assistant message found in codex output")
	}
	return &Result{Text: answer, FinishedAt: time.Now()}, nil
}

// extractAgentMessage scans the codex NDJSON event stream for the last
// completed agent message. Lines that are not valid JSON are skipped.
func extractAgentMessage(stdout string) string {
	var answer string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}
		if gjson.Get(line, "type").String() != "item.completed" {
			continue
		}
		item := gjson.Get(line, "item")
		switch item.Get("type").String() {
		case "agent_message", "agentMessage":
			answer = item.Get("text").String()
		}
	}
	return answer
}
