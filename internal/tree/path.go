package tree

// DescentFunc picks the node reached when descending from id into its
// subtree. It must return an id present in the store.
type DescentFunc func(s *Store, id string) string

// LastChildDescent follows each node's last child down to a leaf. The last
// child is the most recently created continuation in exports.
func LastChildDescent(s *Store, id string) string {
	// Bounded like the parent walk; a validated store cannot loop.
	for steps := 0; steps < s.Len(); steps++ {
		children := s.ChildrenOf(id)
		if len(children) == 0 {
			return id
		}
		id = children[len(children)-1]
	}
	return id
}

// Reconstruct returns the nodes from the root down to startID. The walk visits
// at most Len() nodes; a longer walk fails with *CycleDetectedError. An empty
// startID yields an empty path. The path keeps message-less scaffolding nodes.
func Reconstruct(s *Store, startID string) ([]*Node, error) {
	if startID == "" {
		return nil, nil
	}
	if !s.Has(startID) {
		return Reconstruct(s, ResolveTip(s, startID, LastChildDescent))
	}

	var rev []*Node
	seen := make(map[string]bool)
	for id := startID; id != ""; {
		n := s.Get(id)
		if n == nil {
			return nil, &MalformedTreeError{NodeID: rev[len(rev)-1].ID, Ref: id, Reason: "dangling parent reference"}
		}
		if seen[id] || len(rev) >= s.Len() {
			return nil, &CycleDetectedError{Start: startID, At: id}
		}
		seen[id] = true
		rev = append(rev, n)
		id = n.Parent
	}

	path := make([]*Node, len(rev))
	for i, n := range rev {
		path[len(rev)-1-i] = n
	}
	return path, nil
}

// ResolveTip turns a conversation's current_node into the node to display up
// to. A missing or unknown id falls back to the newest leaf carrying a
// message; a known id without a message descends into its subtree looking for
// one. An empty result means the conversation has nothing to show.
func ResolveTip(s *Store, currentNode string, descend DescentFunc) string {
	n := s.Get(currentNode)
	if n == nil {
		return NewestLeaf(s)
	}
	if n.Message == nil && !n.IsLeaf() {
		if d := s.Get(descend(s, currentNode)); d != nil && d.Message != nil {
			return d.ID
		}
	}
	return currentNode
}

// NewestLeaf returns the leaf with a message whose create_time is greatest.
// Leaves without a valid timestamp rank lowest; ties keep the smallest id.
func NewestLeaf(s *Store) string {
	var best *Node
	for _, id := range s.Leaves() {
		n := s.Get(id)
		if n.Message == nil {
			continue
		}
		if best == nil || best.Message.CreateTime.Before(n.Message.CreateTime) {
			best = n
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}
