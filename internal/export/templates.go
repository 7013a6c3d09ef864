package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var transcriptTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/transcript.html")
	if err != nil {
		// Fallback to built-in template if file not found
		transcriptTemplate = template.Must(template.New("transcript").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	transcriptTemplate = template.Must(template.New("transcript").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for transcript template rendering
type TemplateData struct {
	Title       string
	Description string
	Topics      []string
	ExportedAt  time.Time
	Roots       []TemplateRoot
}

// TemplateRoot holds one conversation root for the template
type TemplateRoot struct {
	Author   string
	Content  template.HTML
	PostedAt time.Time
	Deleted  bool
	Replies  []TemplateReply
}

// TemplateReply holds one reply for the template
type TemplateReply struct {
	Author   string
	Content  template.HTML
	PostedAt time.Time
	Orphaned bool
}

// RenderTranscriptHTML renders the transcript template with provided data
func RenderTranscriptHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .root { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    .reply { margin-left: 2rem; padding: 0.5rem 1rem; border-left: 2px solid #999; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  <div class="meta">Exported {{.ExportedAt.Format "Jan 2, 2006"}}</div>
  {{range .Roots}}
  <div class="root">
    <strong>{{.Author}}</strong>
    <div>{{.Content}}</div>
    {{range .Replies}}<div class="reply"><strong>{{.Author}}</strong><div>{{.Content}}</div></div>{{end}}
  </div>
  {{end}}
</body>
</html>`
