package report

import (
	"bytes"
	"text/template"
	"time"
)

const documentTemplate = `INCIDENT REPORT
Report ID: {{.ReportID}}
Session:   {{.SessionID}}
Generated: {{.GeneratedAt}}

{{range .Sections}}{{.Label}}:
{{if .Value}}{{.Value}}{{else}}(not provided){{end}}

{{end}}Prepared automatically by the incident report voice assistant.
`

type section struct {
	Label string
	Value string
}

type documentData struct {
	ReportID    string
	SessionID   string
	GeneratedAt string
	Sections    []section
}

// Assembler renders a completed answers map into a plain-text document.
// Missing fields render as empty sections rather than failing.
type Assembler struct {
	schema Schema
	tmpl   *template.Template
}

func NewAssembler(schema Schema) *Assembler {
	return &Assembler{
		schema: schema,
		tmpl:   template.Must(template.New("report").Parse(documentTemplate)),
	}
}

func (a *Assembler) Render(reportID, sessionID string, answers map[string]string) ([]byte, error) {
	data := documentData{
		ReportID:    reportID,
		SessionID:   sessionID,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Sections:    make([]section, 0, a.schema.Len()),
	}
	for _, f := range a.schema {
		data.Sections = append(data.Sections, section{
			Label: Label(f.ID),
			Value: answers[f.ID],
		})
	}

	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
