package report

import "testing"

func TestParseSchema_EmptyReturnsDefault(t *testing.T) {
	s, err := ParseSchema("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Len() == 0 {
		t.Fatalf("default schema is empty")
	}
	if s.Field(0).ID == "" || s.Field(0).Prompt == "" {
		t.Fatalf("default schema field 0 incomplete: %+v", s.Field(0))
	}
}

func TestParseSchema_Override(t *testing.T) {
	s, err := ParseSchema("incident_date|the date the incident occurred; incident_briefing|a brief description")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("len=%d, want 2", s.Len())
	}
	if s.Field(0).ID != "incident_date" || s.Field(1).ID != "incident_briefing" {
		t.Fatalf("unexpected order: %+v", s)
	}
	if !s.Contains("incident_briefing") || s.Contains("missing") {
		t.Fatalf("Contains misbehaved")
	}
}

func TestParseSchema_Errors(t *testing.T) {
	cases := []string{
		"incident_date",                       // no prompt
		"|prompt only",                        // no id
		"a|one;a|two",                         // duplicate id
		";;;",                                 // nothing parseable
	}
	for _, raw := range cases {
		if _, err := ParseSchema(raw); err == nil {
			t.Errorf("ParseSchema(%q): expected error", raw)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := Label("incident_date"); got != "Incident Date" {
		t.Fatalf("Label = %q", got)
	}
	if got := Label("officer_name"); got != "Officer Name" {
		t.Fatalf("Label = %q", got)
	}
}
