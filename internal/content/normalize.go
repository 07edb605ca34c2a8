package content

import (
	"encoding/json"
	"strings"

	"github.com/MikeSquared-Agency/arbor/internal/archive"
)

// Known content_type tags. The set is open; anything else normalizes to
// Structured.
const (
	TypeText                  = "text"
	TypeMultimodalText        = "multimodal_text"
	TypeReasoningRecap        = "reasoning_recap"
	TypeThoughts              = "thoughts"
	TypeCode                  = "code"
	TypeExecutionOutput       = "execution_output"
	TypeImageAssetPointer     = "image_asset_pointer"
	TypeTetherBrowsingDisplay = "tether_browsing_display"
	TypeTetherQuote           = "tether_quote"

	// partType tags Structured values built from untyped parts.
	partType = "part"
)

// Normalize maps c onto a Renderable. It never fails: missing or mistyped
// fields degrade to Structured.
func Normalize(c archive.MessageContent) Renderable {
	switch t := c.ContentType; {
	case t == TypeText, t == TypeMultimodalText, t == TypeReasoningRecap, t == TypeThoughts:
		if r, ok := normalizeText(c); ok {
			return r
		}
	case t == TypeCode, t == TypeExecutionOutput:
		if r, ok := normalizeCode(c); ok {
			return r
		}
	case t == TypeImageAssetPointer, strings.HasPrefix(t, "tether_"):
		if c.AssetPointer != nil && *c.AssetPointer != "" {
			return ImageRef{Type: t, Pointer: *c.AssetPointer, Dalle: c.Dalle}
		}
	}
	return Structured{Type: c.ContentType, Raw: c.Raw}
}

func normalizeText(c archive.MessageContent) (Renderable, bool) {
	if c.HasParts() {
		text, extras := joinParts(c.Parts)
		return PlainText{Type: c.ContentType, Text: text, Extras: extras}, true
	}

	switch c.ContentType {
	case TypeReasoningRecap:
		var s string
		if rawField(c.Raw, "content", &s) {
			return PlainText{Type: c.ContentType, Text: s}, true
		}
	case TypeThoughts:
		var thoughts []struct {
			Summary string `json:"summary"`
			Content string `json:"content"`
		}
		if rawField(c.Raw, "thoughts", &thoughts) {
			var lines []string
			for _, th := range thoughts {
				for _, s := range []string{th.Summary, th.Content} {
					if s != "" {
						lines = append(lines, s)
					}
				}
			}
			return PlainText{Type: c.ContentType, Text: strings.Join(lines, "\n")}, true
		}
	}
	return nil, false
}

func normalizeCode(c archive.MessageContent) (Renderable, bool) {
	lang := c.Language
	if lang == "unknown" {
		lang = ""
	}
	switch {
	case c.Result != nil:
		return Code{Type: c.ContentType, Language: lang, Text: *c.Result}, true
	case c.Text != nil:
		return Code{Type: c.ContentType, Language: lang, Text: *c.Text}, true
	case c.HasParts():
		text, _ := joinParts(c.Parts)
		return Code{Type: c.ContentType, Language: lang, Text: text}, true
	}
	return nil, false
}

// joinParts joins string parts with newlines and normalizes every other
// non-null part on its own.
func joinParts(parts []json.RawMessage) (string, []Renderable) {
	var (
		texts  []string
		extras []Renderable
	)
	for _, p := range parts {
		if len(p) == 0 || string(p) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(p, &s); err == nil {
			texts = append(texts, s)
			continue
		}
		extras = append(extras, normalizePart(p))
	}
	return strings.Join(texts, "\n"), extras
}

func normalizePart(raw json.RawMessage) Renderable {
	var probe struct {
		ContentType string `json:"content_type"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.ContentType != "" {
		var c archive.MessageContent
		if err := json.Unmarshal(raw, &c); err == nil {
			return Normalize(c)
		}
	}
	return Structured{Type: partType, Raw: raw}
}

func rawField(raw json.RawMessage, key string, dst any) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	v, ok := fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(v, dst) == nil
}
