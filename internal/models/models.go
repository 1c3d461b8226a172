// Package models holds the static provider catalog and the model-name to
// provider selection logic.
package models

import (
	"fmt"
	"strings"

	"aibridge/internal/types"
)

// Provider identifies a backend provider.
type Provider string

const (
	ProviderCodex  Provider = "codex"
	ProviderGemini Provider = "gemini"
)

// All lists every provider the bridge knows about, in selection order.
var All = []Provider{ProviderCodex, ProviderGemini}

// selector maps a case-insensitive model-name prefix to a provider. The
// table is fixed for the process lifetime; first match wins.
var selector = []struct {
	prefix   string
	provider Provider
}{
	{"codex", ProviderCodex},
	{"gemini", ProviderGemini},
}

// Resolve picks the provider for a requested model name. An empty name
// selects codex, the default provider. Unknown prefixes are a client error.
func Resolve(model string) (Provider, error) {
	normalized := strings.ToLower(strings.TrimSpace(model))
	if normalized == "" {
		return ProviderCodex, nil
	}
	for _, entry := range selector {
		if strings.HasPrefix(normalized, entry.prefix) {
			return entry.provider, nil
		}
	}
	return "", fmt.Errorf("model %q is not recognized: model must start with 'codex' or 'gemini'", model)
}

// Tags builds the GET /api/tags catalog. The entries are synthetic: the
// bridge serves no local model files, only provider passthroughs.
func Tags(now string) types.ModelList {
	list := types.ModelList{Models: make([]types.ModelEntry, 0, len(All))}
	for _, p := range All {
		name := string(p)
		list.Models = append(list.Models, types.ModelEntry{
			Name:       name,
			Model:      name,
			ModifiedAt: now,
			Size:       0,
			Digest:     name + "-bridge",
			Details: types.ModelDetails{
				Format:            "bridge",
				Family:            name,
				Families:          []string{name},
				ParameterSize:     "unknown",
				QuantizationLevel: "none",
			},
		})
	}
	return list
}
