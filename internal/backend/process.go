package backend

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long a killed child may hold its pipes open before
// Wait gives up on them.
const waitDelay = 5 * time.Second

// envSpec describes environment adjustments for a subprocess relative to
// the bridge's own environment.
type envSpec struct {
	set        map[string]string
	setDefault map[string]string
	unset      []string
}

func (s envSpec) build() []string {
	drop := make(map[string]bool, len(s.unset)+len(s.set))
	for _, key := range s.unset {
		drop[key] = true
	}
	for key := range s.set {
		drop[key] = true
	}

	present := make(map[string]bool)
	env := make([]string, 0, len(os.Environ())+len(s.set)+len(s.setDefault))
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if drop[key] {
			present[key] = true // recorded so setDefault does not resurrect unset keys
			continue
		}
		present[key] = true
		env = append(env, kv)
	}
	for key, value := range s.set {
		env = append(env, key+"="+value)
	}
	for key, value := range s.setDefault {
		if !present[key] {
			env = append(env, key+"="+value)
		}
	}
	return env
}

// runProcess executes a backend binary, writing the prompt to its stdin and
// capturing stdout and stderr separately. The caller's context carries the
// hard timeout; on expiry the child is killed and the failure is classified
// as a timeout.
func runProcess(ctx context.Context, bin string, args []string, stdin string, env envSpec) (string, string, *Error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = env.build()
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", "", newError(KindProcessLaunchFailed, "failed to launch %s: %v", bin, err)
	}

	err := cmd.Wait()
	if ctx.Err() == context.DeadlineExceeded {
		return stdout.String(), stderr.String(), newError(KindTimeout, "%s timed out", bin)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = exitErr.String()
			}
			return stdout.String(), stderr.String(), newError(KindNonZeroExit, "%s", msg)
		}
		return stdout.String(), stderr.String(), newError(KindProcessLaunchFailed, "%s: %v", bin, err)
	}

	return stdout.String(), stderr.String(), nil
}
