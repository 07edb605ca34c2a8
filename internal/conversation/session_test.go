package conversation

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/arbor/internal/archive"
	"github.com/MikeSquared-Agency/arbor/internal/branch"
	"github.com/MikeSquared-Agency/arbor/internal/content"
	"github.com/MikeSquared-Agency/arbor/internal/tree"
)

func textNode(id, parent, role string, ts float64, text string, children ...string) archive.Node {
	n := archive.Node{ID: id, Children: children}
	if parent != "" {
		p := parent
		n.Parent = &p
	}
	if role != "" {
		part, _ := json.Marshal(text)
		n.Message = &archive.Message{
			ID:         id,
			Author:     archive.Author{Role: role},
			CreateTime: archive.TS(ts),
			Content:    archive.MessageContent{ContentType: "text", Parts: []json.RawMessage{part}},
		}
	}
	return n
}

func conv(id, current string, nodes ...archive.Node) archive.Conversation {
	m := make(map[string]archive.Node, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return archive.Conversation{ID: id, Title: "t-" + id, Mapping: m, CurrentNode: current}
}

func entryIDs(v View) []string {
	var out []string
	for _, e := range v.Entries {
		out = append(out, e.NodeID)
	}
	return out
}

func linear() archive.Conversation {
	return conv("linear", "b",
		textNode("root", "", "", 0, "", "a"),
		textNode("a", "root", "user", 1, "Hello", "b"),
		textNode("b", "a", "assistant", 2, "Hi there"),
	)
}

// forked is root → a → {b, c}; c → c1.
func forked() archive.Conversation {
	return conv("forked", "b",
		textNode("root", "", "", 0, "", "a"),
		textNode("a", "root", "user", 1, "Question", "b", "c"),
		textNode("b", "a", "assistant", 2, "First answer"),
		textNode("c", "a", "assistant", 3, "Second answer", "c1"),
		textNode("c1", "c", "user", 4, "Follow-up"),
	)
}

func TestOpen_LinearConversation(t *testing.T) {
	s, err := Open(linear())
	require.NoError(t, err)
	require.NoError(t, s.Err())

	v := s.View()
	assert.Equal(t, "linear", v.ConversationID)
	assert.Equal(t, "t-linear", v.Title)
	assert.Equal(t, "b", v.CurrentNode)
	assert.False(t, v.Empty)
	assert.Equal(t, []string{"a", "b"}, entryIDs(v))
	assert.Empty(t, v.Forks)

	for _, e := range v.Entries {
		assert.Nil(t, e.Branch)
	}
	assert.Equal(t, "user", v.Entries[0].Author.Role)
	assert.Equal(t, content.PlainText{Type: "text", Text: "Hello"}, v.Entries[0].Content)
	assert.Equal(t, int64(2), v.Entries[1].Timestamp.Unix())
}

func TestMoveBranch_ForkScenario(t *testing.T) {
	s, err := Open(forked())
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, []string{"a", "b"}, entryIDs(v))
	require.NotNil(t, v.Entries[0].Branch)
	assert.Equal(t, BranchInfo{SiblingCount: 2, ActiveIndex: 0}, *v.Entries[0].Branch)
	assert.Nil(t, v.Entries[1].Branch)

	v, err = s.MoveBranch("a", branch.Next)
	require.NoError(t, err)
	assert.Equal(t, "c1", v.CurrentNode, "descends to the default tip of c")
	assert.Equal(t, []string{"a", "c", "c1"}, entryIDs(v))
	assert.Equal(t, BranchInfo{SiblingCount: 2, ActiveIndex: 1}, *v.Entries[0].Branch)

	again, err := s.MoveBranch("a", branch.Next)
	require.NoError(t, err)
	assert.Equal(t, v, again)
	assert.Equal(t, 1, again.Entries[0].Branch.ActiveIndex)

	v, err = s.MoveBranch("a", branch.Previous)
	require.NoError(t, err)
	assert.Equal(t, "b", v.CurrentNode)
	assert.Equal(t, 0, v.Entries[0].Branch.ActiveIndex)
}

func TestMoveBranch_Rejected(t *testing.T) {
	s, err := Open(forked())
	require.NoError(t, err)
	before := s.View()

	v, err := s.MoveBranch("c", branch.Next)
	assert.True(t, errors.Is(err, branch.ErrNotOnPath))
	assert.Equal(t, before, v)
	assert.Equal(t, "b", s.Current())
}

func TestView_HiddenForkIsListed(t *testing.T) {
	// The message-less root is itself a fork: two edits of the first prompt.
	c := conv("hidden", "y",
		textNode("root", "", "", 0, "", "x", "y"),
		textNode("x", "root", "user", 1, "v1"),
		textNode("y", "root", "user", 2, "v2"),
	)
	s, err := Open(c)
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, []string{"y"}, entryIDs(v))
	assert.Equal(t, []branch.Fork{{NodeID: "root", SiblingCount: 2, ActiveIndex: 1}}, v.Forks)

	v, err = s.MoveBranch("root", branch.Previous)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, entryIDs(v))
}

func TestOpen_MissingCurrentNodeFallsBack(t *testing.T) {
	c := forked()
	c.CurrentNode = "gone"

	s, err := Open(c)
	require.NoError(t, err)
	assert.Equal(t, "c1", s.Current(), "newest leaf wins")
}

func TestOpen_EmptyConversation(t *testing.T) {
	s, err := Open(conv("empty", "", textNode("root", "", "", 0, "")))
	require.NoError(t, err)

	v := s.View()
	assert.True(t, v.Empty)
	assert.NotNil(t, v.Entries)
	assert.Empty(t, v.Entries)

	var empty *EmptyConversationError
	require.True(t, errors.As(s.Err(), &empty))
	assert.Equal(t, "empty", empty.ConversationID)
}

func TestOpen_BrokenTrees(t *testing.T) {
	dangling := conv("dangling", "a",
		textNode("root", "", "", 0, "", "a", "ghost"),
		textNode("a", "root", "user", 1, "hi"),
	)
	_, err := Open(dangling)
	assert.True(t, errors.Is(err, tree.ErrMalformedTree))

	cyclic := conv("cyclic", "a",
		textNode("a", "b", "user", 1, "x", "b"),
		textNode("b", "a", "user", 2, "y", "a"),
	)
	_, err = Open(cyclic)
	assert.True(t, errors.Is(err, tree.ErrCycleDetected))
}

func TestSelect(t *testing.T) {
	s, err := Open(forked())
	require.NoError(t, err)

	changed, err := s.Select("c1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"a", "c", "c1"}, entryIDs(s.View()))

	changed, err = s.Select("nope")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "c1", s.Current())
}

func TestSelect_KeepsBranchMemory(t *testing.T) {
	s, err := Open(forked())
	require.NoError(t, err)
	start := s.Current()

	_, err = s.Select("c1")
	require.NoError(t, err)

	v, err := s.MoveBranch("a", branch.Previous)
	require.NoError(t, err)
	assert.Equal(t, start, v.CurrentNode)
}

func TestView_JSON(t *testing.T) {
	s, err := Open(forked())
	require.NoError(t, err)

	out, err := json.Marshal(s.View())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "forked", decoded["conversation_id"])
	entries := decoded["entries"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, map[string]any{"sibling_count": float64(2), "active_index": float64(0)}, first["branch"])
	assert.Equal(t, "plain_text", first["content"].(map[string]any)["kind"])
}

func TestOpenAll_IsolatesFailures(t *testing.T) {
	a := &archive.Archive{
		Conversations: []archive.Conversation{
			linear(),
			conv("dangling", "a", textNode("root", "", "", 0, "", "ghost")),
			conv("empty", ""),
			forked(),
		},
		Skipped: []archive.EntryError{{Index: 2, ID: "undecodable", Err: errors.New("bad json")}},
	}

	results := OpenAll(a, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Len(t, results, 5)

	wantIDs := []string{"linear", "dangling", "undecodable", "empty", "forked"}
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, wantIDs[i], r.ID)
	}

	assert.False(t, results[0].Failed())
	assert.NoError(t, results[0].Err)

	assert.True(t, results[1].Failed())
	assert.True(t, errors.Is(results[1].Err, tree.ErrMalformedTree))

	assert.True(t, results[2].Failed())

	assert.False(t, results[3].Failed())
	var empty *EmptyConversationError
	assert.True(t, errors.As(results[3].Err, &empty))

	require.False(t, results[4].Failed())
	assert.Equal(t, []string{"a", "b"}, entryIDs(results[4].Session.View()))
}
