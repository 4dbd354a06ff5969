package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Instructions renders the schema as a prompt suffix instructing the model
// to reply with a single JSON object. Fields are listed in sorted order so
// the rendered prompt is stable across invocations.
func Instructions(s Schema) string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. Required fields:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "  %q: %s\n", k, s[k].Name())
	}
	return b.String()
}

// Parse extracts a JSON object from raw model output and validates it
// against the schema. Models frequently wrap JSON in code fences or prose;
// Parse tolerates that by scanning for the outermost object.
func Parse(s Schema, raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, &ValidationError{Key: "reply", Reason: "no JSON object found"}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return nil, &ValidationError{Key: "reply", Reason: "invalid JSON: " + err.Error()}
	}

	if err := Validate(s, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Decode maps validated reply fields onto a typed struct. Field matching is
// case-insensitive on `mapstructure` tags.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}
