// Package conversation composes the node store, branch index and content
// normalizer into a per-conversation view for the display layer.
package conversation

import (
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/arbor/internal/archive"
	"github.com/MikeSquared-Agency/arbor/internal/branch"
	"github.com/MikeSquared-Agency/arbor/internal/content"
	"github.com/MikeSquared-Agency/arbor/internal/tree"
)

// EmptyConversationError reports a conversation with no visible message to
// select. It is not fatal: the session still opens with an empty view.
type EmptyConversationError struct {
	ConversationID string
}

func (e *EmptyConversationError) Error() string {
	return fmt.Sprintf("conversation %q has no visible messages", e.ConversationID)
}

// BranchInfo is attached to entries whose node is a fork.
type BranchInfo struct {
	SiblingCount int `json:"sibling_count"`
	ActiveIndex  int `json:"active_index"`
}

// Entry is one displayed message.
type Entry struct {
	NodeID      string               `json:"node_id"`
	MessageID   string               `json:"message_id"`
	Author      archive.Author       `json:"author"`
	Timestamp   time.Time            `json:"timestamp"`
	Content     content.Renderable   `json:"content"`
	Attachments []archive.Attachment `json:"attachments,omitempty"`
	Status      string               `json:"status,omitempty"`
	Branch      *BranchInfo          `json:"branch,omitempty"`
}

// View is the linear sequence of the selected branch.
type View struct {
	ConversationID string            `json:"conversation_id"`
	Title          string            `json:"title"`
	CreateTime     archive.Timestamp `json:"create_time"`
	UpdateTime     archive.Timestamp `json:"update_time"`
	CurrentNode    string            `json:"current_node"`
	Entries        []Entry           `json:"entries"`
	// Forks lists every fork on the path, including message-less nodes that
	// have no entry of their own.
	Forks []branch.Fork `json:"forks,omitempty"`
	Empty bool          `json:"empty"`
}

// Session is one open conversation. Its only mutable state is the branch
// selection; it is not safe for concurrent use.
type Session struct {
	conv  archive.Conversation
	index *branch.Index
	view  View
}

// Open builds the node store and selects the branch ending at the
// conversation's current_node. It fails with *tree.MalformedTreeError or
// *tree.CycleDetectedError when the mapping is not a tree.
func Open(conv archive.Conversation, opts ...branch.Option) (*Session, error) {
	store, err := tree.Build(conv.Mapping)
	if err != nil {
		return nil, fmt.Errorf("conversation %q: %w", conv.ID, err)
	}
	ix, err := branch.New(store, conv.CurrentNode, opts...)
	if err != nil {
		return nil, fmt.Errorf("conversation %q: %w", conv.ID, err)
	}
	s := &Session{conv: conv, index: ix}
	s.render()
	return s, nil
}

func (s *Session) ID() string    { return s.conv.ID }
func (s *Session) Title() string { return s.conv.Title }

// Current returns the selected tip node id.
func (s *Session) Current() string { return s.index.Current() }

// View returns the current view.
func (s *Session) View() View { return s.view }

// Err returns *EmptyConversationError when nothing can be displayed.
func (s *Session) Err() error {
	if s.view.Empty {
		return &EmptyConversationError{ConversationID: s.conv.ID}
	}
	return nil
}

// MoveBranch switches the branch chosen at nodeID and returns the new view.
// Moves past the first or last sibling return the unchanged view. A rejected
// move (nodeID off the selected path, bad direction) returns the unchanged
// view and the error.
func (s *Session) MoveBranch(nodeID string, dir branch.Direction) (View, error) {
	before := s.index.Current()
	if _, err := s.index.SelectSibling(nodeID, dir); err != nil {
		return s.view, err
	}
	if s.index.Current() != before {
		s.render()
	}
	return s.view, nil
}

// Select makes nodeID the tip if it is in the tree, as when restoring a saved
// selection. Remembered branch tips survive. It reports whether the selection
// changed.
func (s *Session) Select(nodeID string) (bool, error) {
	changed, err := s.index.Select(nodeID)
	if err != nil || !changed {
		return false, err
	}
	s.render()
	return true, nil
}

func (s *Session) render() {
	v := View{
		ConversationID: s.conv.ID,
		Title:          s.conv.Title,
		CreateTime:     s.conv.CreateTime,
		UpdateTime:     s.conv.UpdateTime,
		CurrentNode:    s.index.Current(),
		Entries:        []Entry{},
		Forks:          s.index.Forks(),
	}

	for _, n := range s.index.Path() {
		if n.Message == nil {
			continue
		}
		m := n.Message
		e := Entry{
			NodeID:    n.ID,
			MessageID: m.ID,
			Author:    m.Author,
			Timestamp: m.CreateTime.Time(),
			Content:   content.Normalize(m.Content),
			Status:    m.Status,
		}
		if m.Metadata != nil {
			e.Attachments = m.Metadata.Attachments
		}
		if f, ok := s.index.Fork(n.ID); ok {
			e.Branch = &BranchInfo{SiblingCount: f.SiblingCount, ActiveIndex: f.ActiveIndex}
		}
		v.Entries = append(v.Entries, e)
	}
	v.Empty = len(v.Entries) == 0
	s.view = v
}
