package logging

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		maxChars int
		want     string
	}{
		{"short untouched", "hello", 10, "hello"},
		{"exact length untouched", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"tiny budget", "hello", 2, "he"},
		{"multibyte safe", strings.Repeat("가", 10), 7, "가가가가..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateText(tt.value, tt.maxChars))
		})
	}
}

func TestTruncateJSON(t *testing.T) {
	long := strings.Repeat("x", 300)
	raw := []byte(`{"model":"codex","nested":{"content":"` + long + `"},"list":["` + long + `", 42],"count":7}`)

	out := TruncateJSON(raw, 200)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))

	assert.Equal(t, "codex", doc["model"])
	assert.Equal(t, float64(7), doc["count"])

	nested := doc["nested"].(map[string]any)
	content := nested["content"].(string)
	assert.Len(t, content, 200)
	assert.True(t, strings.HasSuffix(content, "..."))

	list := doc["list"].([]any)
	assert.Len(t, list[0].(string), 200)
	assert.Equal(t, float64(42), list[1])
}

func TestTruncateJSONNonJSON(t *testing.T) {
	out := TruncateJSON([]byte(strings.Repeat("y", 50)), 10)
	assert.Equal(t, strings.Repeat("y", 7)+"...", string(out))
}

func TestNowISOFixedZone(t *testing.T) {
	stamp := NowISO()
	assert.True(t, strings.HasSuffix(stamp, "+09:00"), "timestamp %q not in fixed zone", stamp)
}
