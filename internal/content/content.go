// Package content maps the open-ended message content union onto a small
// closed set of renderable shapes.
package content

import "encoding/json"

// Kind discriminates the Renderable arms in JSON output.
type Kind string

const (
	KindPlainText  Kind = "plain_text"
	KindCode       Kind = "code"
	KindImageRef   Kind = "image_ref"
	KindStructured Kind = "structured"
)

// Renderable is one of PlainText, Code, ImageRef or Structured.
type Renderable interface {
	Kind() Kind
	// ContentType is the content_type tag the value was produced from.
	ContentType() string
	isRenderable()
}

// PlainText is prose. Extras holds parts that were not strings, such as
// images embedded in a multimodal message.
type PlainText struct {
	Type   string
	Text   string
	Extras []Renderable
}

type Code struct {
	Type     string
	Language string // empty when unknown
	Text     string
}

// ImageRef is an opaque asset reference; the core never resolves it.
type ImageRef struct {
	Type    string
	Pointer string
	Dalle   json.RawMessage
}

// Structured carries a payload the normalizer could not map, for degraded
// rendering.
type Structured struct {
	Type string
	Raw  json.RawMessage
}

func (PlainText) Kind() Kind  { return KindPlainText }
func (Code) Kind() Kind       { return KindCode }
func (ImageRef) Kind() Kind   { return KindImageRef }
func (Structured) Kind() Kind { return KindStructured }

func (p PlainText) ContentType() string  { return p.Type }
func (c Code) ContentType() string       { return c.Type }
func (i ImageRef) ContentType() string   { return i.Type }
func (s Structured) ContentType() string { return s.Type }

func (PlainText) isRenderable()  {}
func (Code) isRenderable()       {}
func (ImageRef) isRenderable()   {}
func (Structured) isRenderable() {}

func (p PlainText) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind        Kind         `json:"kind"`
		ContentType string       `json:"content_type"`
		Text        string       `json:"text"`
		Extras      []Renderable `json:"extras,omitempty"`
	}{KindPlainText, p.Type, p.Text, p.Extras})
}

func (c Code) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind        Kind   `json:"kind"`
		ContentType string `json:"content_type"`
		Language    string `json:"language,omitempty"`
		Text        string `json:"text"`
	}{KindCode, c.Type, c.Language, c.Text})
}

func (i ImageRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind        Kind            `json:"kind"`
		ContentType string          `json:"content_type"`
		Pointer     string          `json:"asset_pointer"`
		Dalle       json.RawMessage `json:"dalle,omitempty"`
	}{KindImageRef, i.Type, i.Pointer, i.Dalle})
}

func (s Structured) MarshalJSON() ([]byte, error) {
	raw := s.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return json.Marshal(struct {
		Kind        Kind            `json:"kind"`
		ContentType string          `json:"content_type"`
		Raw         json.RawMessage `json:"raw"`
	}{KindStructured, s.Type, raw})
}
