// Package branch tracks the selected branch of a conversation tree and moves
// the selection between siblings at forks.
package branch

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MikeSquared-Agency/arbor/internal/tree"
)

// Direction is a sibling move at a fork.
type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Previous:
		return "previous"
	case Next:
		return "next"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

var (
	ErrNotOnPath        = errors.New("node is not on the selected path")
	ErrUnknownDirection = errors.New("unknown direction")
)

// ParseDirection accepts "previous", "prev" and "next", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "previous", "prev":
		return Previous, nil
	case "next":
		return Next, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Fork describes the choice made at a path node with more than one child.
type Fork struct {
	NodeID       string `json:"node_id"`
	SiblingCount int    `json:"sibling_count"`
	// ActiveIndex is the position of the next path node among the fork's
	// children, or -1 when the fork is the tip of the path.
	ActiveIndex int `json:"active_index"`
}

// Option configures an Index.
type Option func(*Index)

// WithDescent replaces the policy used to pick a tip when entering a branch
// whose previous tip is unknown.
func WithDescent(d tree.DescentFunc) Option {
	return func(ix *Index) { ix.descend = d }
}

// Index owns the selection pointer of one conversation. It is not safe for
// concurrent use.
type Index struct {
	store   *tree.Store
	descend tree.DescentFunc

	current string
	path    []*tree.Node
	pos     map[string]int // node id → position on path

	// tips remembers, per branch head, the tip last shown under it.
	tips map[string]string
}

// New resolves currentNode (see tree.ResolveTip) and builds the selected path.
// An empty conversation yields an Index with an empty path.
func New(store *tree.Store, currentNode string, opts ...Option) (*Index, error) {
	ix := &Index{
		store:   store,
		descend: tree.LastChildDescent,
		tips:    make(map[string]string),
	}
	for _, o := range opts {
		o(ix)
	}
	if err := ix.selectTip(tree.ResolveTip(store, currentNode, ix.descend)); err != nil {
		return nil, err
	}
	return ix, nil
}

// Current returns the tip of the selected path, "" when empty.
func (ix *Index) Current() string { return ix.current }

// Path returns the selected path from the root. The slice must not be modified.
func (ix *Index) Path() []*tree.Node { return ix.path }

// Store returns the underlying node store.
func (ix *Index) Store() *tree.Store { return ix.store }

// OnPath reports whether id is on the selected path.
func (ix *Index) OnPath(id string) bool {
	_, ok := ix.pos[id]
	return ok
}

// SiblingsOf returns the children of id's parent, id included. A root has no
// siblings.
func (ix *Index) SiblingsOf(id string) []string {
	parent, ok := ix.store.ParentOf(id)
	if !ok {
		return nil
	}
	return ix.store.ChildrenOf(parent)
}

// ActiveIndexOf returns the position of id among its siblings, -1 for a root
// or an unknown id.
func (ix *Index) ActiveIndexOf(id string) int {
	return slices.Index(ix.SiblingsOf(id), id)
}

// Fork reports the branch choice at a path node. ok is false for nodes off
// the path and for nodes with fewer than two children.
func (ix *Index) Fork(id string) (Fork, bool) {
	i, onPath := ix.pos[id]
	children := ix.store.ChildrenOf(id)
	if !onPath || len(children) < 2 {
		return Fork{}, false
	}
	return Fork{NodeID: id, SiblingCount: len(children), ActiveIndex: ix.activeChild(i)}, true
}

// Forks returns every fork on the selected path in path order.
func (ix *Index) Forks() []Fork {
	var out []Fork
	for _, n := range ix.path {
		if f, ok := ix.Fork(n.ID); ok {
			out = append(out, f)
		}
	}
	return out
}

// SelectSibling moves the branch chosen at forkID by one sibling and returns
// the new current node. Moving past either end is a no-op. The tree is never
// modified.
func (ix *Index) SelectSibling(forkID string, dir Direction) (string, error) {
	if dir != Previous && dir != Next {
		return ix.current, fmt.Errorf("%w: %d", ErrUnknownDirection, int(dir))
	}
	i, ok := ix.pos[forkID]
	if !ok {
		return ix.current, fmt.Errorf("%w: %q", ErrNotOnPath, forkID)
	}

	children := ix.store.ChildrenOf(forkID)
	if len(children) == 0 {
		return ix.current, nil
	}

	active := ix.activeChild(i)
	target := min(max(active+int(dir), 0), len(children)-1)
	if target == active {
		return ix.current, nil
	}

	if active >= 0 {
		ix.tips[children[active]] = ix.current
	}

	head := children[target]
	tip, known := ix.tips[head]
	if !known || !ix.within(tip, head) {
		tip = ix.descend(ix.store, head)
	}

	if err := ix.selectTip(tip); err != nil {
		return ix.current, err
	}
	return ix.current, nil
}

// Select makes nodeID the selected tip, as when restoring a saved selection.
// The tips of the branches being left are remembered, as with SelectSibling.
// It reports whether the selection changed; ids not in the tree are ignored.
func (ix *Index) Select(nodeID string) (bool, error) {
	if nodeID == "" || nodeID == ix.current || !ix.store.Has(nodeID) {
		return false, nil
	}
	ix.rememberTips()
	before := ix.current
	if err := ix.selectTip(tree.ResolveTip(ix.store, nodeID, ix.descend)); err != nil {
		return false, err
	}
	return ix.current != before, nil
}

// rememberTips records the current tip under every branch head on the path.
func (ix *Index) rememberTips() {
	for i := range ix.path {
		if len(ix.path[i].Children) > 1 && i+1 < len(ix.path) {
			ix.tips[ix.path[i+1].ID] = ix.current
		}
	}
}

// activeChild returns the index of path[i+1] among path[i]'s children.
func (ix *Index) activeChild(i int) int {
	if i+1 >= len(ix.path) {
		return -1
	}
	return slices.Index(ix.path[i].Children, ix.path[i+1].ID)
}

// within reports whether id is head or one of its descendants.
func (ix *Index) within(id, head string) bool {
	for steps := 0; id != "" && steps <= ix.store.Len(); steps++ {
		if id == head {
			return true
		}
		id, _ = ix.store.ParentOf(id)
	}
	return false
}

func (ix *Index) selectTip(tip string) error {
	path, err := tree.Reconstruct(ix.store, tip)
	if err != nil {
		return err
	}
	pos := make(map[string]int, len(path))
	for i, n := range path {
		pos[n.ID] = i
	}
	// Reconstruct may have fallen back to another tip.
	current := ""
	if len(path) > 0 {
		current = path[len(path)-1].ID
	}
	ix.current, ix.path, ix.pos = current, path, pos
	return nil
}
