package reports

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"
)

const textDocumentTemplate = `{{ .Title }}
Generated at {{ .GeneratedAt.Format "2006-01-02 15:04:05 MST" }}

{{ join .Table.Columns }}
{{- range .Table.Rows }}
{{ join . }}
{{- end }}
{{- if .Timeline }}

Timeline
{{- range .Timeline }}
{{ .CreatedAt.UTC.Format "2006-01-02T15:04:05Z07:00" }} [{{ .Type }}]{{ if .FromStatus }} {{ .FromStatus }} -> {{ .ToStatus }}{{ end }}{{ if .Message }} {{ .Message }}{{ end }}
{{- end }}
{{- end }}
`

// TextRenderer is the bundled plain-text document renderer. Richer formats
// plug in through the DocumentRenderer interface without touching the
// exporter.
type TextRenderer struct {
	tmpl *template.Template
}

// NewTextRenderer creates a new plain-text renderer.
func NewTextRenderer() *TextRenderer {
	tmpl := template.Must(template.New("document").
		Funcs(template.FuncMap{
			"join": func(cells []string) string { return strings.Join(cells, " | ") },
		}).
		Parse(textDocumentTemplate))
	return &TextRenderer{tmpl: tmpl}
}

// Render serializes the document as plain text.
func (r *TextRenderer) Render(ctx context.Context, doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType reports the MIME type of the rendered output.
func (r *TextRenderer) ContentType() string {
	return "text/plain; charset=utf-8"
}

var _ DocumentRenderer = (*TextRenderer)(nil)

// exportFileName builds the attachment name for a CSV download.
func exportFileName(now time.Time) string {
	return fmt.Sprintf("incidents-%s.csv", now.UTC().Format("2006-01-02"))
}
