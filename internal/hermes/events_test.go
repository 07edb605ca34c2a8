package hermes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestArchiveImportedParsing(t *testing.T) {
	var evt ArchiveImported
	if err := json.Unmarshal([]byte(`{"path": "/exports/conversations.json"}`), &evt); err != nil {
		t.Fatalf("failed to parse ArchiveImported: %v", err)
	}
	if evt.Path != "/exports/conversations.json" {
		t.Errorf("expected path, got '%s'", evt.Path)
	}
}

func TestBranchMovedEncoding(t *testing.T) {
	evt := BranchMoved{
		EventID:        "evt-1",
		ConversationID: "conv-1",
		ForkNodeID:     "a",
		Direction:      "next",
		PreviousNode:   "b",
		CurrentNode:    "c1",
		Timestamp:      time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	for key, want := range map[string]string{
		"conversation_id": "conv-1",
		"fork_node_id":    "a",
		"direction":       "next",
		"previous_node":   "b",
		"current_node":    "c1",
		"timestamp":       "2026-02-11T10:00:00Z",
	} {
		if fields[key] != want {
			t.Errorf("%s = %v, want %s", key, fields[key], want)
		}
	}
}

func TestArchiveLoadedOmitsEmptyFailures(t *testing.T) {
	data, err := json.Marshal(ArchiveLoaded{EventID: "e", Conversations: 3})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var fields map[string]any
	json.Unmarshal(data, &fields)
	if _, ok := fields["failed"]; ok {
		t.Errorf("expected failed to be omitted, got %v", fields["failed"])
	}
}

func TestNewEventID(t *testing.T) {
	a, b := NewEventID(), NewEventID()
	if a == b {
		t.Errorf("expected distinct ids, got %s twice", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("expected a uuid, got %q: %v", a, err)
	}
}

func TestSubjectConstants(t *testing.T) {
	if SubjectArchiveImported != "swarm.arbor.archive.imported" {
		t.Errorf("unexpected SubjectArchiveImported %q", SubjectArchiveImported)
	}
	if SubjectBranchMoved != "swarm.arbor.branch.moved" {
		t.Errorf("unexpected SubjectBranchMoved %q", SubjectBranchMoved)
	}
}
