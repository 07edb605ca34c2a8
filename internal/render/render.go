// Package render turns a conversation view into a Markdown transcript, with
// an optional terminal pass through glamour.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/charmbracelet/glamour"

	"github.com/MikeSquared-Agency/arbor/internal/content"
	"github.com/MikeSquared-Agency/arbor/internal/conversation"
)

type Renderer struct {
	// WithMetadata adds node ids, status and attachments under each message.
	WithMetadata bool
	RenameRoles  map[string]string
}

type templateData struct {
	Title        string
	CreateTime   string
	UpdateTime   string
	WithMetadata bool
	Empty        bool
	Entries      []entryData
}

type entryData struct {
	NodeID      string
	Role        string
	Name        string
	Time        string
	Status      string
	Branch      string
	Attachments []string
	Body        string
}

const transcriptTemplate = `# {{ default "Untitled conversation" .Title }}
{{ if .CreateTime }}
Created: {{ .CreateTime }}{{ if .UpdateTime }} · Updated: {{ .UpdateTime }}{{ end }}
{{ end }}
{{- if .Empty }}
_No messages._
{{ end }}
{{- range .Entries }}
### {{ .Role | title }}{{ if .Name }} ({{ .Name }}){{ end }}{{ if .Branch }} · {{ .Branch }}{{ end }}
{{ if $.WithMetadata }}
- **Node**: {{ .NodeID }}
{{- if .Time }}
- **Time**: {{ .Time }}
{{- end }}
{{- if .Status }}
- **Status**: {{ .Status }}
{{- end }}
{{- range .Attachments }}
- **Attachment**: {{ . }}
{{- end }}
{{ end }}
{{ .Body | trim }}

---
{{- end }}
`

var transcript = template.Must(template.New("transcript").Funcs(sprig.TxtFuncMap()).Parse(transcriptTemplate))

// Markdown renders the view as a Markdown document.
func (r *Renderer) Markdown(v conversation.View) (string, error) {
	data := templateData{
		Title:        v.Title,
		CreateTime:   formatTime(v.CreateTime.Time()),
		UpdateTime:   formatTime(v.UpdateTime.Time()),
		WithMetadata: r.WithMetadata,
		Empty:        v.Empty,
	}
	for _, e := range v.Entries {
		role := e.Author.Role
		if renamed, ok := r.RenameRoles[role]; ok {
			role = renamed
		}
		ed := entryData{
			NodeID: e.NodeID,
			Role:   role,
			Name:   e.Author.Name,
			Time:   formatTime(e.Timestamp),
			Status: e.Status,
			Body:   Block(e.Content),
		}
		if e.Branch != nil {
			ed.Branch = branchLabel(*e.Branch)
		}
		for _, a := range e.Attachments {
			name := a.Name
			if name == "" {
				name = a.ID
			}
			ed.Attachments = append(ed.Attachments, name)
		}
		data.Entries = append(data.Entries, ed)
	}

	var buf bytes.Buffer
	if err := transcript.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	return buf.String(), nil
}

// Terminal styles Markdown for a terminal. An empty style picks one from the
// terminal background.
func Terminal(md, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("create terminal renderer: %w", err)
	}
	out, err := tr.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

// Block renders one content value as Markdown.
func Block(r content.Renderable) string {
	switch c := r.(type) {
	case content.PlainText:
		parts := []string{c.Text}
		for _, x := range c.Extras {
			parts = append(parts, Block(x))
		}
		return strings.Join(nonEmpty(parts), "\n\n")
	case content.Code:
		return fence(c.Language, c.Text)
	case content.ImageRef:
		return fmt.Sprintf("![image](%s)", c.Pointer)
	case content.Structured:
		return fmt.Sprintf("_%s_\n\n%s", c.Type, fence("json", indentJSON(c.Raw)))
	default:
		return ""
	}
}

func branchLabel(b conversation.BranchInfo) string {
	if b.ActiveIndex < 0 {
		return fmt.Sprintf("%d branches", b.SiblingCount)
	}
	return fmt.Sprintf("branch %d/%d", b.ActiveIndex+1, b.SiblingCount)
}

func fence(lang, body string) string {
	return "```" + lang + "\n" + strings.TrimRight(body, "\n") + "\n```"
}

func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func nonEmpty(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
