package archive

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Conversation is one entry of an exported archive.
type Conversation struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	CreateTime  Timestamp       `json:"create_time"`
	UpdateTime  Timestamp       `json:"update_time"`
	Mapping     map[string]Node `json:"mapping"`
	CurrentNode string          `json:"current_node"`
}

// Node is a mapping value. Message is nil for scaffolding nodes that carry no
// visible content; Parent is nil for a root.
type Node struct {
	ID       string   `json:"id"`
	Message  *Message `json:"message"`
	Parent   *string  `json:"parent"`
	Children []string `json:"children"`
}

// UnmarshalJSON degrades a mistyped id or message (the node becomes
// message-less scaffolding). A mistyped parent or children list is an error:
// the tree cannot be linked without them.
func (n *Node) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*n = Node{}
	decodeField(fields, "id", &n.ID)

	var msg Message
	if decodeField(fields, "message", &msg) {
		n.Message = &msg
	}

	if raw, ok := fields["parent"]; ok && !isNull(raw) {
		var parent string
		if err := json.Unmarshal(raw, &parent); err != nil {
			return fmt.Errorf("node parent: %w", err)
		}
		n.Parent = &parent
	}
	if raw, ok := fields["children"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &n.Children); err != nil {
			return fmt.Errorf("node children: %w", err)
		}
	}
	return nil
}

// ParentID returns the parent id, or "" for a root.
func (n Node) ParentID() string {
	if n.Parent == nil {
		return ""
	}
	return *n.Parent
}

type Author struct {
	Role     string         `json:"role"`
	Name     string         `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type MessageMetadata struct {
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Message struct {
	ID         string           `json:"id"`
	Author     Author           `json:"author"`
	CreateTime Timestamp        `json:"create_time"`
	Content    MessageContent   `json:"content"`
	Metadata   *MessageMetadata `json:"metadata,omitempty"`
	Status     string           `json:"status,omitempty"`
	Recipient  string           `json:"recipient,omitempty"`
}

// UnmarshalJSON decodes a message field by field so that one malformed field
// (a numeric name, an object where a string belongs) does not drop the whole
// message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*m = Message{}
	decodeField(fields, "id", &m.ID)
	decodeField(fields, "status", &m.Status)
	decodeField(fields, "recipient", &m.Recipient)
	decodeField(fields, "create_time", &m.CreateTime)
	decodeField(fields, "content", &m.Content)

	var author map[string]json.RawMessage
	if decodeField(fields, "author", &author) {
		decodeField(author, "role", &m.Author.Role)
		decodeField(author, "name", &m.Author.Name)
		decodeField(author, "metadata", &m.Author.Metadata)
	}

	var meta map[string]json.RawMessage
	if decodeField(fields, "metadata", &meta) {
		var atts []Attachment
		if decodeField(meta, "attachments", &atts) {
			m.Metadata = &MessageMetadata{Attachments: atts}
		}
	}
	return nil
}

// MessageContent is the open-ended content union. Only ContentType is
// expected; every other field is optional and type dependent. Raw holds the
// original object.
type MessageContent struct {
	ContentType  string            `json:"content_type"`
	Parts        []json.RawMessage `json:"parts,omitempty"`
	Result       *string           `json:"result,omitempty"`
	Text         *string           `json:"text,omitempty"`
	AssetPointer *string           `json:"asset_pointer,omitempty"`
	Language     string            `json:"language,omitempty"`
	Dalle        json.RawMessage   `json:"-"`
	Raw          json.RawMessage   `json:"-"`
}

// HasParts reports whether a parts array was present, even if empty.
func (c MessageContent) HasParts() bool {
	return c.Parts != nil
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*c = MessageContent{Raw: append(json.RawMessage(nil), data...)}
	decodeField(fields, "content_type", &c.ContentType)
	decodeField(fields, "language", &c.Language)

	var parts []json.RawMessage
	if decodeField(fields, "parts", &parts) {
		if parts == nil {
			parts = []json.RawMessage{}
		}
		c.Parts = parts
	}

	var s string
	if decodeField(fields, "result", &s) {
		c.Result = strPtr(s)
	}
	if decodeField(fields, "text", &s) {
		c.Text = strPtr(s)
	}
	if decodeField(fields, "asset_pointer", &s) {
		c.AssetPointer = strPtr(s)
	}

	var meta map[string]json.RawMessage
	if decodeField(fields, "metadata", &meta) {
		if d, ok := meta["dalle"]; ok && !isNull(d) {
			c.Dalle = d
		}
	}
	return nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	type plain MessageContent
	return json.Marshal(plain(c))
}

// Timestamp is seconds since the epoch, possibly fractional. Exports use a
// number, occasionally a numeric string, and null when unknown.
type Timestamp struct {
	Seconds float64
	Valid   bool
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	if isNull(data) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil
		}
	}
	if inTimeRange(f) {
		*t = Timestamp{Seconds: f, Valid: true}
	}
	return nil
}

// Seconds bounds of years 0 through 9999, the range time.Time can encode.
const (
	minSeconds = -62167219200
	maxSeconds = 253402300799
)

func inTimeRange(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= minSeconds && f <= maxSeconds
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Seconds)
}

// Time converts the timestamp to UTC. The zero time is returned when invalid.
func (t Timestamp) Time() time.Time {
	if !t.Valid {
		return time.Time{}
	}
	sec, frac := math.Modf(t.Seconds)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// Before orders timestamps with invalid values first.
func (t Timestamp) Before(o Timestamp) bool {
	switch {
	case !t.Valid:
		return o.Valid
	case !o.Valid:
		return false
	default:
		return t.Seconds < o.Seconds
	}
}

// TS builds a valid timestamp.
func TS(seconds float64) Timestamp {
	return Timestamp{Seconds: seconds, Valid: true}
}

// decodeField decodes fields[key] into dst, ignoring absent, null and
// mistyped values. It reports whether dst was populated.
func decodeField(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}

func strPtr(s string) *string { return &s }
