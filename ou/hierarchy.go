// ou/hierarchy.go
package ou

import (
	"fmt"
	"sync"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	"github.com/arbiterhq/arbiter/model"
)

// Hierarchy is an in-memory arena of OU nodes indexed by id for one tenant.
// Paths and depths are fixed at insertion; Reparent recomputes the moved
// node and all of its descendants under one lock so no query ever observes
// a half-moved subtree.
type Hierarchy struct {
	mu    sync.RWMutex
	nodes map[string]*model.OUNode
}

func NewHierarchy() *Hierarchy {
	return &Hierarchy{nodes: make(map[string]*model.OUNode)}
}

// Add inserts a node under parentID ("" for a root), materializing its path
// and depth. Malformed results are rejected here, never at query time.
func (h *Hierarchy) Add(node *model.OUNode, parentID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.nodes[node.ID]; exists {
		return arbiter_errors.ErrOUConflict
	}

	if parentID == "" {
		node.Path = ChildPath("", node.ID)
		node.Depth = 1
	} else {
		parent, ok := h.nodes[parentID]
		if !ok {
			return arbiter_errors.ErrOUNotFound
		}
		node.Path = ChildPath(parent.Path, node.ID)
		node.Depth = parent.Depth + 1
	}
	node.ParentID = parentID

	if err := ValidatePath(node.Path, node.Depth); err != nil {
		return err
	}
	h.nodes[node.ID] = node
	return nil
}

// Get returns the node with the given id.
func (h *Hierarchy) Get(id string) (*model.OUNode, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	node, ok := h.nodes[id]
	if !ok {
		return nil, arbiter_errors.ErrOUNotFound
	}
	return node, nil
}

// Reparent moves a node under a new parent, recomputing the paths and depths
// of the node and every descendant in a single coordinated write.
func (h *Hierarchy) Reparent(id, newParentID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	node, ok := h.nodes[id]
	if !ok {
		return arbiter_errors.ErrOUNotFound
	}

	newPath := ChildPath("", node.ID)
	newDepth := 1
	if newParentID != "" {
		parent, ok := h.nodes[newParentID]
		if !ok {
			return arbiter_errors.ErrOUNotFound
		}
		if IsInSubtree(parent.Path, node.Path) {
			return fmt.Errorf("%w: cannot move %q under its own descendant %q",
				arbiter_errors.ErrMalformedOUPath, node.ID, newParentID)
		}
		newPath = ChildPath(parent.Path, node.ID)
		newDepth = parent.Depth + 1
	}

	oldPath := node.Path
	depthShift := newDepth - node.Depth
	node.ParentID = newParentID
	node.Path = newPath
	node.Depth = newDepth

	for _, n := range h.nodes {
		if n.ID == node.ID || !IsInSubtree(n.Path, oldPath) {
			continue
		}
		n.Path = newPath + n.Path[len(oldPath):]
		n.Depth += depthShift
	}
	return nil
}

// Subtree returns the nodes contained in the subtree rooted at id,
// including the root itself.
func (h *Hierarchy) Subtree(id string) ([]*model.OUNode, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	root, ok := h.nodes[id]
	if !ok {
		return nil, arbiter_errors.ErrOUNotFound
	}
	var members []*model.OUNode
	for _, n := range h.nodes {
		if IsInSubtree(n.Path, root.Path) {
			members = append(members, n)
		}
	}
	return members, nil
}
