// Package tree holds one conversation's node mapping and reconstructs the
// root-to-tip path through it.
package tree

import (
	"slices"
	"sort"

	"github.com/MikeSquared-Agency/arbor/internal/archive"
)

// Node is a stored mapping entry. Children keep their archive order.
type Node struct {
	ID       string
	Parent   string // "" for a root
	Children []string
	Message  *archive.Message
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.Parent == "" }

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Store is a read-only id → node table for one conversation. Nodes refer to
// each other by id only.
type Store struct {
	nodes map[string]*Node
}

// Build validates a mapping and returns its store. Dangling references and
// non-reciprocal parent/child links fail with *MalformedTreeError; parent
// cycles fail with *CycleDetectedError.
func Build(mapping map[string]archive.Node) (*Store, error) {
	s := index(mapping)
	if err := s.validate(mapping); err != nil {
		return nil, err
	}
	return s, nil
}

// index copies the mapping without checking it.
func index(mapping map[string]archive.Node) *Store {
	s := &Store{nodes: make(map[string]*Node, len(mapping))}
	for key, n := range mapping {
		s.nodes[key] = &Node{
			ID:       key,
			Parent:   n.ParentID(),
			Children: slices.Clone(n.Children),
			Message:  n.Message,
		}
	}
	return s
}

func (s *Store) validate(mapping map[string]archive.Node) error {
	// Sorted so the reported error is stable across runs.
	for _, id := range s.sortedIDs() {
		n := s.nodes[id]
		if raw := mapping[id].ID; raw != "" && raw != id {
			return &MalformedTreeError{NodeID: id, Ref: raw, Reason: "id differs from mapping key"}
		}
		for _, c := range n.Children {
			child, ok := s.nodes[c]
			if !ok {
				return &MalformedTreeError{NodeID: id, Ref: c, Reason: "dangling child reference"}
			}
			if child.Parent != id {
				return &MalformedTreeError{NodeID: id, Ref: c, Reason: "child does not point back at parent"}
			}
		}
		if n.Parent != "" {
			parent, ok := s.nodes[n.Parent]
			if !ok {
				return &MalformedTreeError{NodeID: id, Ref: n.Parent, Reason: "dangling parent reference"}
			}
			if !slices.Contains(parent.Children, id) {
				return &MalformedTreeError{NodeID: id, Ref: n.Parent, Reason: "parent does not list node as child"}
			}
		}
	}
	return s.checkCycles()
}

// checkCycles walks parents from every node, skipping nodes already known to
// reach a root. Total work is linear in the store size.
func (s *Store) checkCycles() error {
	rooted := make(map[string]bool, len(s.nodes))
	for _, start := range s.sortedIDs() {
		seen := map[string]bool{}
		var trail []string
		for id := start; id != "" && !rooted[id]; id = s.nodes[id].Parent {
			if seen[id] {
				return &CycleDetectedError{Start: start, At: id}
			}
			seen[id] = true
			trail = append(trail, id)
		}
		for _, id := range trail {
			rooted[id] = true
		}
	}
	return nil
}

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.nodes) }

// Has reports whether id is in the store.
func (s *Store) Has(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Get returns the node for id, or nil.
func (s *Store) Get(id string) *Node { return s.nodes[id] }

// ChildrenOf returns the ordered children of id. The slice must not be modified.
func (s *Store) ChildrenOf(id string) []string {
	if n := s.nodes[id]; n != nil {
		return n.Children
	}
	return nil
}

// ParentOf returns the parent of id and whether it has one.
func (s *Store) ParentOf(id string) (string, bool) {
	n := s.nodes[id]
	if n == nil || n.Parent == "" {
		return "", false
	}
	return n.Parent, true
}

// Leaves returns the ids of childless nodes in id order.
func (s *Store) Leaves() []string {
	var out []string
	for _, id := range s.sortedIDs() {
		if s.nodes[id].IsLeaf() {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
