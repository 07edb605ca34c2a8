package archive

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleArchive = `[
  {
    "id": "conv-1",
    "title": "Deploy plan",
    "create_time": 1707645600.25,
    "update_time": 1707645700,
    "current_node": "b",
    "mapping": {
      "root": {"id": "root", "message": null, "parent": null, "children": ["a"]},
      "a": {"id": "a", "parent": "root", "children": ["b"], "message": {
        "id": "a", "author": {"role": "user"}, "create_time": 1707645601,
        "content": {"content_type": "text", "parts": ["Deploy the service"]},
        "metadata": {"attachments": [{"id": "file-1", "name": "plan.md"}]}
      }},
      "b": {"id": "b", "parent": "a", "children": [], "message": {
        "id": "b", "author": {"role": "assistant", "name": "gpt"}, "create_time": "1707645602.5",
        "content": {"content_type": "code", "language": "python", "text": "print(1)"}
      }}
    }
  },
  {"id": "conv-2", "title": "broken", "mapping": {"x": {"id": "x", "children": "nope"}}},
  {"id": "conv-3", "title": 42, "mapping": null}
]`

func TestParse_DecodesConversations(t *testing.T) {
	a, err := Parse([]byte(sampleArchive))
	require.NoError(t, err)
	require.Len(t, a.Conversations, 2)

	c := a.Conversations[0]
	assert.Equal(t, "conv-1", c.ID)
	assert.Equal(t, "Deploy plan", c.Title)
	assert.Equal(t, "b", c.CurrentNode)
	assert.True(t, c.CreateTime.Valid)
	assert.InDelta(t, 1707645600.25, c.CreateTime.Seconds, 1e-6)
	require.Len(t, c.Mapping, 3)

	root := c.Mapping["root"]
	assert.Nil(t, root.Message)
	assert.Nil(t, root.Parent)
	assert.Equal(t, "", root.ParentID())
	assert.Equal(t, []string{"a"}, root.Children)

	a1 := c.Mapping["a"]
	require.NotNil(t, a1.Message)
	assert.Equal(t, "user", a1.Message.Author.Role)
	assert.Equal(t, "text", a1.Message.Content.ContentType)
	assert.Len(t, a1.Message.Content.Parts, 1)
	require.NotNil(t, a1.Message.Metadata)
	assert.Equal(t, []Attachment{{ID: "file-1", Name: "plan.md"}}, a1.Message.Metadata.Attachments)

	b := c.Mapping["b"].Message
	require.NotNil(t, b)
	assert.Equal(t, "gpt", b.Author.Name)
	assert.True(t, b.CreateTime.Valid, "numeric strings are accepted")
	assert.InDelta(t, 1707645602.5, b.CreateTime.Seconds, 1e-6)
	assert.Equal(t, "python", b.Content.Language)
	require.NotNil(t, b.Content.Text)
	assert.Equal(t, "print(1)", *b.Content.Text)
	assert.False(t, b.Content.HasParts())
}

func TestParse_IsolatesBrokenEntries(t *testing.T) {
	a, err := Parse([]byte(sampleArchive))
	require.NoError(t, err)

	require.Len(t, a.Skipped, 1)
	assert.Equal(t, 1, a.Skipped[0].Index)
	assert.Equal(t, "conv-2", a.Skipped[0].ID)
	assert.Contains(t, a.Skipped[0].Error(), "conv-2")

	// A mistyped title and a null mapping degrade instead of failing.
	c3 := a.Conversations[1]
	assert.Equal(t, "conv-3", c3.ID)
	assert.Equal(t, "", c3.Title)
	assert.Empty(t, c3.Mapping)
}

func TestParse_NotAnArray(t *testing.T) {
	for _, in := range []string{``, `{"id":"x"}`, `"text"`} {
		_, err := Parse([]byte(in))
		assert.True(t, errors.Is(err, ErrNotArchive), "input %q", in)
	}

	_, err := Parse([]byte(`[{"id":`))
	assert.Error(t, err)
}

func TestMessage_LenientFields(t *testing.T) {
	raw := `[{"id":"c","mapping":{"n":{"id":"n","parent":null,"children":[],"message":{
		"id": 7, "author": {"role": "user", "name": {"first": "x"}},
		"create_time": {"bad": true}, "content": "just a string",
		"metadata": {"attachments": "none"}
	}}}}]`

	a, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, a.Conversations, 1)

	m := a.Conversations[0].Mapping["n"].Message
	require.NotNil(t, m)
	assert.Equal(t, "", m.ID)
	assert.Equal(t, "user", m.Author.Role)
	assert.Equal(t, "", m.Author.Name)
	assert.False(t, m.CreateTime.Valid)
	assert.Equal(t, "", m.Content.ContentType)
	assert.Nil(t, m.Metadata)
}

func TestMessageContent_KeepsRawPayload(t *testing.T) {
	raw := `[{"id":"c","mapping":{"n":{"id":"n","children":[],"message":{"id":"n","content":
		{"content_type":"image_asset_pointer","asset_pointer":"file-service://abc","metadata":{"dalle":{"prompt":"a cat"}}}
	}}}}]`

	a, err := Parse([]byte(raw))
	require.NoError(t, err)

	content := a.Conversations[0].Mapping["n"].Message.Content
	require.NotNil(t, content.AssetPointer)
	assert.Equal(t, "file-service://abc", *content.AssetPointer)
	assert.JSONEq(t, `{"prompt":"a cat"}`, string(content.Dalle))
	assert.Contains(t, string(content.Raw), "image_asset_pointer")
	assert.Nil(t, content.Parts)

	out, err := content.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(content.Raw), string(out))
}

func TestTimestamp(t *testing.T) {
	ts := TS(1707645600.5)
	assert.Equal(t, time.Date(2024, 2, 11, 10, 0, 0, 500000000, time.UTC), ts.Time())
	assert.True(t, Timestamp{}.Time().IsZero())

	assert.True(t, Timestamp{}.Before(TS(0)))
	assert.False(t, TS(0).Before(Timestamp{}))
	assert.False(t, Timestamp{}.Before(Timestamp{}))
	assert.True(t, TS(1).Before(TS(2)))

	out, err := Timestamp{}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestTimestamp_RejectsUnencodableValues(t *testing.T) {
	for _, in := range []string{`"NaN"`, `"Inf"`, `"-Infinity"`, `1e20`, `-1e15`, `253402300800`, `"abc"`, `true`, `{}`} {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(in), &ts), "input %s", in)
		assert.False(t, ts.Valid, "input %s", in)
	}

	for _, in := range []string{`0`, `"1707645600"`, `253402300799`, `-62167219200`} {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(in), &ts))
		require.True(t, ts.Valid, "input %s", in)
		_, err := json.Marshal(struct {
			T    Timestamp `json:"t"`
			Time time.Time `json:"time"`
		}{ts, ts.Time()})
		assert.NoError(t, err, "input %s", in)
	}
}

func TestParse_MistypedNodeFieldsDegrade(t *testing.T) {
	a, err := Parse([]byte(`[
	  {"id": "bad-message", "mapping": {
	    "root": {"id": "root", "message": null, "parent": null, "children": ["a"]},
	    "a": {"id": "a", "message": "oops", "parent": "root", "children": []}
	  }},
	  {"id": "bad-id", "mapping": {"x": {"id": 7, "message": null, "parent": null, "children": []}}},
	  {"id": "bad-parent", "mapping": {"x": {"id": "x", "parent": 3, "children": []}}}
	]`))
	require.NoError(t, err)

	require.Len(t, a.Conversations, 2)
	n := a.Conversations[0].Mapping["a"]
	assert.Equal(t, "a", n.ID)
	assert.Nil(t, n.Message)
	assert.Equal(t, "root", n.ParentID())

	x := a.Conversations[1].Mapping["x"]
	assert.Equal(t, "", x.ID)
	assert.Equal(t, []string{}, x.Children)

	require.Len(t, a.Skipped, 1)
	assert.Equal(t, "bad-parent", a.Skipped[0].ID)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conversations.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleArchive), 0o644))

	a, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, a.Conversations, 2)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
