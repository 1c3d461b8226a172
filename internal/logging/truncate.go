package logging

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MaxLogValueChars is the per-string cap applied to logged JSON payloads so
// long completions do not flood the log sinks.
const MaxLogValueChars = 200

// TruncateJSON returns a copy of a JSON document with every string value
// shortened to maxChars. Non-JSON input is truncated as a plain string.
// Structure and non-string values are preserved, so truncated request and
// response payloads stay queryable in the JSON log file.
func TruncateJSON(raw []byte, maxChars int) []byte {
	if maxChars <= 0 {
		maxChars = MaxLogValueChars
	}
	if !gjson.ValidBytes(raw) {
		return []byte(TruncateText(string(raw), maxChars))
	}

	out := raw
	walkStrings(gjson.ParseBytes(raw), "", func(path, value string) {
		if len(value) <= maxChars {
			return
		}
		if updated, err := sjson.SetBytes(out, path, TruncateText(value, maxChars)); err == nil {
			out = updated
		}
	})
	return out
}

// TruncateText shortens a string to maxChars characters, marking the cut
// with an ellipsis when there is room for one. Cutting is rune-aware so a
// truncated value stays valid UTF-8.
func TruncateText(value string, maxChars int) string {
	runes := []rune(value)
	if len(runes) <= maxChars {
		return value
	}
	if maxChars <= 3 {
		return string(runes[:maxChars])
	}
	return string(runes[:maxChars-3]) + "..."
}

func walkStrings(node gjson.Result, prefix string, visit func(path, value string)) {
	node.ForEach(func(key, value gjson.Result) bool {
		path := key.String()
		if prefix != "" {
			path = prefix + "." + path
		}
		switch {
		case value.IsObject() || value.IsArray():
			walkStrings(value, path, visit)
		case value.Type == gjson.String:
			visit(path, value.String())
		}
		return true
	})
}
