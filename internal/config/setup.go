package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrSecretRequired is returned when the resolved auth mode needs an API
// key and none can be obtained. It is fatal at startup.
var ErrSecretRequired = errors.New("gemini auth mode is 'api' but no API key is configured and no terminal is available to prompt for one")

// stdinIsTerminal and promptPassword are function variables so tests can
// drive the interactive paths without a real terminal.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

var promptPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(key)), nil
}

var promptLine = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ResolveGeminiAuth fills in the Gemini auth mode and, when the mode
// requires it, the API key. Resolution order per field: environment, then
// the persisted record, then (on a terminal) one interactive prompt. It is
// a startup-phase operation — it never runs on the request path.
func (c *Config) ResolveGeminiAuth() error {
	mode, err := c.resolveAuthMode()
	if err != nil {
		return err
	}
	c.Gemini.AuthMode = mode

	if mode != AuthModeAPI {
		return nil
	}
	key, err := c.resolveAPIKey()
	if err != nil {
		return err
	}
	c.Gemini.APIKey = key
	return nil
}

func (c *Config) resolveAuthMode() (string, error) {
	if env := strings.ToLower(strings.TrimSpace(os.Getenv("GEMINI_AUTH_MODE"))); env == AuthModeGoogle || env == AuthModeAPI {
		return env, nil
	}

	settings, err := LoadSettings(c.SettingsPath)
	if err != nil {
		return "", err
	}
	if saved := strings.ToLower(strings.TrimSpace(settings.GeminiAuthMode)); saved == AuthModeGoogle || saved == AuthModeAPI {
		return saved, nil
	}

	selected := AuthModeGoogle
	if stdinIsTerminal() {
		selected = chooseAuthModeInteractive(AuthModeGoogle)
	}

	settings.GeminiAuthMode = selected
	if err := SaveSettings(c.SettingsPath, settings); err != nil {
		return "", fmt.Errorf("persist settings: %w", err)
	}
	return selected, nil
}

func chooseAuthModeInteractive(defaultMode string) string {
	slog.Info("gemini auth mode is not configured")
	slog.Info("choose gemini auth mode: [1] google (default), [2] api")
	answer, err := promptLine("Select mode (Enter=1): ")
	if err != nil {
		return defaultMode
	}
	switch strings.ToLower(answer) {
	case "2", "api", "apikey", "api-key":
		return AuthModeAPI
	case "1", "google", "g", "":
		return AuthModeGoogle
	}
	slog.Warn("unknown auth mode choice, using default", "choice", answer, "default", defaultMode)
	return defaultMode
}

func (c *Config) resolveAPIKey() (string, error) {
	secrets, err := LoadSecrets(c.SecretsPath)
	if err != nil {
		return "", err
	}

	if envKey := firstNonEmptyEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"); envKey != "" {
		if secrets.GeminiAPIKey != envKey {
			secrets.GeminiAPIKey = envKey
			if err := SaveSecrets(c.SecretsPath, secrets); err != nil {
				return "", fmt.Errorf("persist secrets: %w", err)
			}
		}
		return envKey, nil
	}

	if saved := strings.TrimSpace(secrets.GeminiAPIKey); saved != "" {
		return saved, nil
	}

	if !stdinIsTerminal() {
		return "", ErrSecretRequired
	}

	slog.Info("gemini API mode selected but API key is missing")
	entered, err := promptPassword("Enter GEMINI_API_KEY (input hidden): ")
	if err != nil {
		return "", fmt.Errorf("read API key: %w", err)
	}
	if entered == "" {
		return "", ErrSecretRequired
	}

	secrets.GeminiAPIKey = entered
	if err := SaveSecrets(c.SecretsPath, secrets); err != nil {
		return "", fmt.Errorf("persist secrets: %w", err)
	}
	return entered, nil
}

func firstNonEmptyEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
