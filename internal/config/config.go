// Package config resolves bridge configuration from the environment, the
// persisted settings and secret records, and (once, at startup) interactive
// input. The resolved Config is frozen before the server starts serving and
// shared read-only across request handlers.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPort is the listen port, one above the Ollama default so the
	// bridge can run next to a real Ollama instance.
	DefaultPort = 11435

	GeminiAPIBaseURLDefault = "https://generativelanguage.googleapis.com/v1beta"
	GeminiModelFallback     = "gemini-2.5-flash"

	SettingsFileName = ".bridge_settings.yaml"
	SecretsFileName  = ".bridge_secrets.yaml"

	defaultDetailInstruction = "Always respond in the user's language environment and match the language used " +
		"in the user's request unless explicitly asked otherwise. Respond naturally and conversationally. " +
		"Prefer flowing prose and avoid forced numbered or bullet lists unless the user explicitly asks for " +
		"list format. Give enough detail to be useful while keeping the flow smooth and readable."
)

// AuthMode selects how the Gemini provider is reached.
const (
	AuthModeGoogle = "google" // Gemini CLI with Google Code Assist auth
	AuthModeAPI    = "api"    // direct generateContent HTTP API with an API key
)

// CodexConfig holds the resolved Codex provider settings.
type CodexConfig struct {
	Bin       string
	Model     string
	Verbosity string
	Timeout   time.Duration
}

// GeminiConfig holds the resolved Gemini provider settings.
type GeminiConfig struct {
	Bin        string
	Model      string
	APIBaseURL string
	AuthMode   string
	APIKey     string
	// InsecureSkipVerify disables TLS certificate validation for the
	// Gemini API client only. Off unless explicitly enabled.
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Config is the full bridge configuration. It is resolved once at startup
// and treated as immutable afterwards.
type Config struct {
	Host    string
	Port    int
	Verbose bool

	// BridgeModelName is the model reported when a client omits one.
	BridgeModelName string

	DetailMode        string
	DetailInstruction string

	StreamChunkSize int
	StreamDelay     time.Duration

	ProbeTimeout  time.Duration
	StrictStartup bool

	LogDir       string
	SettingsPath string
	SecretsPath  string

	Codex  CodexConfig
	Gemini GeminiConfig
}

// DefaultFromEnv creates a Config from environment variables, applying
// built-in defaults for anything unset. Secrets are not resolved here; see
// ResolveGeminiAuth.
func DefaultFromEnv() *Config {
	backendTimeout := envSeconds("CODEX_TIMEOUT_SECONDS", 120*time.Second)

	return &Config{
		Host:    "0.0.0.0",
		Port:    envInt("BRIDGE_PORT", DefaultPort),
		Verbose: envBool("BRIDGE_VERBOSE"),

		BridgeModelName: envOrDefault("BRIDGE_MODEL_NAME", "codex"),

		DetailMode:        envChoice("DETAIL_MODE", "high"),
		DetailInstruction: envOrDefault("DETAIL_SYSTEM_INSTRUCTION", defaultDetailInstruction),

		StreamChunkSize: envInt("BRIDGE_STREAM_CHUNK_SIZE", 40),
		StreamDelay:     time.Duration(envInt("BRIDGE_STREAM_DELAY_MS", 10)) * time.Millisecond,

		ProbeTimeout:  envSeconds("STARTUP_CHECK_TIMEOUT_SECONDS", 15*time.Second),
		StrictStartup: envBool("STARTUP_CHECK_STRICT"),

		LogDir:       envOrDefault("BRIDGE_LOG_DIR", "logs"),
		SettingsPath: envOrDefault("BRIDGE_SETTINGS_FILE", SettingsFileName),
		SecretsPath:  envOrDefault("BRIDGE_SECRETS_FILE", SecretsFileName),

		Codex: CodexConfig{
			Bin:       envOrDefault("CODEX_BIN", "codex"),
			Model:     strings.TrimSpace(os.Getenv("CODEX_MODEL")),
			Verbosity: envChoice("CODEX_MODEL_VERBOSITY", "high"),
			Timeout:   backendTimeout,
		},
		Gemini: GeminiConfig{
			Bin:                envOrDefault("GEMINI_BIN", "gemini"),
			Model:              strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
			APIBaseURL:         envOrDefault("GEMINI_API_BASE_URL", GeminiAPIBaseURLDefault),
			InsecureSkipVerify: envBool("GEMINI_API_INSECURE"),
			Timeout:            backendTimeout,
		},
	}
}

// ResolveGeminiModel maps a requested model name to the concrete Gemini
// model: anything other than the bare provider name passes through, then
// the configured default, then the built-in fallback.
func (g GeminiConfig) ResolveGeminiModel(requested string) string {
	trimmed := strings.TrimSpace(requested)
	if trimmed != "" && !strings.EqualFold(trimmed, "gemini") {
		return trimmed
	}
	if g.Model != "" {
		return g.Model
	}
	return GeminiModelFallback
}

func envOrDefault(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

// envChoice is envOrDefault for enumeration-style values, which the bridge
// compares case-insensitively.
func envChoice(key, defaultVal string) string {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv(key))); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func envInt(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func envSeconds(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return time.Duration(n) * time.Second
}
