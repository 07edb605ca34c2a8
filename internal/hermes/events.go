package hermes

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SubjectArchiveImported is consumed: the importer announces a new export file.
	SubjectArchiveImported = "swarm.arbor.archive.imported"
	// SubjectArchiveLoaded is published after an archive has been opened.
	SubjectArchiveLoaded = "swarm.arbor.archive.loaded"
	// SubjectBranchMoved is published after a successful branch switch.
	SubjectBranchMoved = "swarm.arbor.branch.moved"
)

// ArchiveImported asks arbor to (re)load the export at Path.
type ArchiveImported struct {
	Path string `json:"path"`
}

// ArchiveLoaded summarises a load. Failed lists conversation ids (or archive
// positions when no id was readable) that could not be opened.
type ArchiveLoaded struct {
	EventID       string    `json:"event_id"`
	Path          string    `json:"path"`
	Conversations int       `json:"conversations"`
	Empty         int       `json:"empty"`
	Failed        []string  `json:"failed,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// BranchMoved records a selection change.
type BranchMoved struct {
	EventID        string    `json:"event_id"`
	ConversationID string    `json:"conversation_id"`
	ForkNodeID     string    `json:"fork_node_id"`
	Direction      string    `json:"direction"`
	PreviousNode   string    `json:"previous_node"`
	CurrentNode    string    `json:"current_node"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewEventID returns a fresh event id.
func NewEventID() string {
	return uuid.NewString()
}
