package report

import (
	"strings"
	"testing"
)

func TestAssembler_RendersAllFields(t *testing.T) {
	schema := Schema{
		{ID: "incident_date", Prompt: "the date"},
		{ID: "incident_briefing", Prompt: "what happened"},
	}
	a := NewAssembler(schema)

	doc, err := a.Render("01TESTREPORTID000000000000", "sess-1", map[string]string{
		"incident_date":     "2024-01-05",
		"incident_briefing": "broke a window",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	text := string(doc)
	for _, want := range []string{
		"01TESTREPORTID000000000000",
		"sess-1",
		"Incident Date:",
		"2024-01-05",
		"Incident Briefing:",
		"broke a window",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("document missing %q:\n%s", want, text)
		}
	}
}

func TestAssembler_MissingFieldRendersEmpty(t *testing.T) {
	schema := Schema{
		{ID: "incident_date", Prompt: "the date"},
		{ID: "incident_briefing", Prompt: "what happened"},
	}
	a := NewAssembler(schema)

	doc, err := a.Render("rid", "sess-2", map[string]string{
		"incident_date": "2024-01-05",
	})
	if err != nil {
		t.Fatalf("render with missing key: %v", err)
	}
	if !strings.Contains(string(doc), "(not provided)") {
		t.Fatalf("missing field not marked:\n%s", doc)
	}
}

func TestAssembler_IgnoresUnknownKeys(t *testing.T) {
	schema := Schema{{ID: "incident_date", Prompt: "the date"}}
	a := NewAssembler(schema)

	doc, err := a.Render("rid", "sess-3", map[string]string{
		"incident_date": "2024-01-05",
		"stray_field":   "should not appear",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(doc), "should not appear") {
		t.Fatalf("unknown key leaked into document:\n%s", doc)
	}
}
