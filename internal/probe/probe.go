// Package probe validates each configured provider once at startup, before
// the HTTP listener binds. The resulting report is immutable for the
// process lifetime and served by the health endpoint as-is; providers that
// degrade later simply fail at invocation time.
package probe

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"aibridge/internal/backend"
	"aibridge/internal/models"
	"aibridge/internal/types"
)

// Prompt is the minimal no-op-equivalent request sent to every provider.
const Prompt = "Reply with one short word only: OK"

// previewLimit caps how much of a probe reply is kept as the ready reason.
const previewLimit = 80

// Result is the terminal probe state for one provider.
type Result struct {
	Ready  bool
	Reason string
}

// Report maps provider identifiers to their startup probe results.
type Report map[models.Provider]Result

// Ready reports whether every probed provider passed.
func (r Report) Ready() bool {
	for _, res := range r {
		if !res.Ready {
			return false
		}
	}
	return true
}

// Run probes each invoker sequentially with a shared per-probe timeout and
// logs every outcome. It is called exactly once, during startup.
func Run(ctx context.Context, invokers map[models.Provider]backend.Invoker, timeout time.Duration) Report {
	report := make(Report, len(invokers))
	for _, provider := range models.All {
		invoker, ok := invokers[provider]
		if !ok {
			continue
		}
		result := runOne(ctx, invoker, timeout)
		report[provider] = result
		if result.Ready {
			slog.Info("provider ready", "provider", provider, "reply", result.Reason)
		} else {
			slog.Error("provider readiness check failed", "provider", provider, "reason", result.Reason)
		}
	}
	return report
}

func runOne(ctx context.Context, invoker backend.Invoker, timeout time.Duration) Result {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := &types.CanonicalRequest{
		Model:  string(invoker.Provider()),
		Mode:   types.ModeGenerate,
		Prompt: Prompt,
	}

	res, err := invoker.Invoke(probeCtx, req)
	if err != nil {
		var backendErr *backend.Error
		if errors.As(err, &backendErr) && backendErr.Kind == backend.KindTimeout {
			return Result{Ready: false, Reason: "timeout"}
		}
		return Result{Ready: false, Reason: err.Error()}
	}

	preview := strings.Join(strings.Fields(res.Text), " ")
	if len(preview) > previewLimit {
		preview = preview[:previewLimit-3] + "..."
	}
	return Result{Ready: true, Reason: preview}
}
