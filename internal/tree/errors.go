package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTree matches every *MalformedTreeError.
	ErrMalformedTree = errors.New("malformed tree")

	// ErrCycleDetected matches every *CycleDetectedError.
	ErrCycleDetected = errors.New("cycle detected")
)

// MalformedTreeError reports a broken reference in a mapping.
type MalformedTreeError struct {
	NodeID string
	Ref    string
	Reason string
}

func (e *MalformedTreeError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("malformed tree: node %q: %s %q", e.NodeID, e.Reason, e.Ref)
	}
	return fmt.Sprintf("malformed tree: node %q: %s", e.NodeID, e.Reason)
}

func (e *MalformedTreeError) Is(target error) bool { return target == ErrMalformedTree }

// CycleDetectedError reports a parent walk that revisited a node or ran past
// the store size.
type CycleDetectedError struct {
	Start string
	At    string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("cycle detected: parent walk from %q revisits %q", e.Start, e.At)
}

func (e *CycleDetectedError) Is(target error) bool { return target == ErrCycleDetected }
