package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Archive is a decoded export. Conversations keep file order; entries that
// could not be decoded are listed in Skipped instead of failing the archive.
type Archive struct {
	Conversations []Conversation
	Skipped       []EntryError
}

// EntryError records an archive entry that failed to decode.
type EntryError struct {
	Index int
	ID    string // best effort, empty when the entry had no readable id
	Err   error
}

func (e EntryError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("entry %d (%s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
}

func (e EntryError) Unwrap() error { return e.Err }

// ErrNotArchive is returned when the top level of the input is not a JSON array.
var ErrNotArchive = errors.New("archive: top level is not a JSON array")

// Load reads and parses an export file (conversations.json).
func Load(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return Parse(data)
}

// Parse decodes an export. Each conversation is decoded on its own so a
// broken entry only costs that entry.
func Parse(data []byte) (*Archive, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotArchive
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}

	a := &Archive{Conversations: make([]Conversation, 0, len(entries))}
	for i, raw := range entries {
		var c Conversation
		if err := json.Unmarshal(raw, &c); err != nil {
			a.Skipped = append(a.Skipped, EntryError{Index: i, ID: peekID(raw), Err: err})
			continue
		}
		a.Conversations = append(a.Conversations, c)
	}
	return a, nil
}

// UnmarshalJSON requires a decodable mapping; the descriptive fields are
// optional and dropped when mistyped.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*c = Conversation{}
	decodeField(fields, "id", &c.ID)
	if c.ID == "" {
		decodeField(fields, "conversation_id", &c.ID)
	}
	decodeField(fields, "title", &c.Title)
	decodeField(fields, "create_time", &c.CreateTime)
	decodeField(fields, "update_time", &c.UpdateTime)
	decodeField(fields, "current_node", &c.CurrentNode)

	raw, ok := fields["mapping"]
	if !ok || isNull(raw) {
		c.Mapping = map[string]Node{}
		return nil
	}
	if err := json.Unmarshal(raw, &c.Mapping); err != nil {
		return fmt.Errorf("decode mapping: %w", err)
	}
	return nil
}

func peekID(raw json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	var id string
	decodeField(fields, "id", &id)
	return id
}
