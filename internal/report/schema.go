package report

import (
	"fmt"
	"strings"
)

// FieldSpec is one named slot of the final report.
type FieldSpec struct {
	ID     string
	Prompt string
}

// Schema is the fixed ordered list of fields a session collects.
// It is immutable after startup and shared across all sessions.
type Schema []FieldSpec

func (s Schema) Len() int { return len(s) }

func (s Schema) Field(i int) FieldSpec { return s[i] }

func (s Schema) Contains(id string) bool {
	for _, f := range s {
		if f.ID == id {
			return true
		}
	}
	return false
}

func DefaultSchema() Schema {
	return Schema{
		{ID: "officer_name", Prompt: "the name of the reporting officer"},
		{ID: "incident_date", Prompt: "the date the incident occurred"},
		{ID: "incident_location", Prompt: "where the incident took place"},
		{ID: "incident_description", Prompt: "a brief description of what happened"},
	}
}

// ParseSchema parses a "id|prompt;id|prompt" override string.
// An empty input returns the default schema.
func ParseSchema(raw string) (Schema, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultSchema(), nil
	}

	var out Schema
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, prompt, found := strings.Cut(entry, "|")
		id = strings.TrimSpace(id)
		prompt = strings.TrimSpace(prompt)
		if !found || id == "" || prompt == "" {
			return nil, fmt.Errorf("schema: bad field entry %q (want id|prompt)", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("schema: duplicate field id %q", id)
		}
		seen[id] = true
		out = append(out, FieldSpec{ID: id, Prompt: prompt})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("schema: no fields in %q", raw)
	}
	return out, nil
}

// Label turns a field id like "incident_date" into "Incident Date".
func Label(fieldID string) string {
	words := strings.Split(fieldID, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
