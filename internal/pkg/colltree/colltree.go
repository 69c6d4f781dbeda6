// Package colltree assembles a user's flat collection records into a forest
// and walks parent references with a bounded ancestor walk.
package colltree

import (
	"errors"
	"sort"

	"pdfshelf/internal/model"
)

var ErrCycle = errors.New("collection parent chain contains a cycle")

// Mode selects how an ancestor walk reacts to a cycle.
type Mode int

const (
	// Strict fails the walk with ErrCycle.
	Strict Mode = iota
	// BestEffort stops at the repeated node and keeps what was walked.
	BestEffort
)

type Node struct {
	model.Collection
	DocumentCount int64   `json:"document_count"`
	Children      []*Node `json:"children"`
}

// Index is an arena of collections addressed by id.
type Index struct {
	items []model.Collection
	pos   map[uint]int
}

func NewIndex(items []model.Collection) *Index {
	ix := &Index{
		items: items,
		pos:   make(map[uint]int, len(items)),
	}
	for i, c := range items {
		ix.pos[c.ID] = i
	}
	return ix
}

func (ix *Index) Len() int {
	return len(ix.items)
}

func (ix *Index) Lookup(id uint) (model.Collection, bool) {
	i, ok := ix.pos[id]
	if !ok {
		return model.Collection{}, false
	}
	return ix.items[i], true
}

// walkUp visits start and then each ancestor until a root, a parent missing
// from the index, or visit returning false. Each node is visited at most once,
// so the walk takes at most Len() steps.
func (ix *Index) walkUp(start uint, visit func(model.Collection) bool) error {
	seen := make(map[uint]struct{}, len(ix.items))
	i, ok := ix.pos[start]
	for ok {
		c := ix.items[i]
		if _, dup := seen[c.ID]; dup {
			return ErrCycle
		}
		seen[c.ID] = struct{}{}
		if !visit(c) || c.ParentID == nil {
			return nil
		}
		i, ok = ix.pos[*c.ParentID]
	}
	return nil
}

// Path returns the chain from the root down to id, inclusive. An unknown id
// yields an empty path.
func (ix *Index) Path(id uint, mode Mode) ([]model.Collection, error) {
	var upward []model.Collection
	err := ix.walkUp(id, func(c model.Collection) bool {
		upward = append(upward, c)
		return true
	})
	if err != nil && mode == Strict {
		return nil, err
	}

	path := make([]model.Collection, len(upward))
	for i, c := range upward {
		path[len(upward)-1-i] = c
	}
	return path, nil
}

// WouldCycle reports whether giving id the parent parentID would make id its
// own ancestor. A cycle already present above parentID is returned as ErrCycle.
func (ix *Index) WouldCycle(id, parentID uint) (bool, error) {
	if id == parentID {
		return true, nil
	}
	found := false
	err := ix.walkUp(parentID, func(c model.Collection) bool {
		if c.ID == id {
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Build assembles the forest. Nodes whose parent is missing become roots, and
// nodes only reachable through a cycle are re-rooted so every record appears
// exactly once.
func (ix *Index) Build(counts map[uint]int64) []*Node {
	arena := make([]Node, len(ix.items))
	children := make(map[int][]int, len(ix.items))
	var roots []int

	for i, c := range ix.items {
		arena[i] = Node{Collection: c, DocumentCount: counts[c.ID], Children: []*Node{}}
		parent, ok := -1, false
		if c.ParentID != nil {
			parent, ok = ix.pos[*c.ParentID]
		}
		if !ok || parent == i {
			roots = append(roots, i)
			continue
		}
		children[parent] = append(children[parent], i)
	}

	placed := make([]bool, len(arena))
	var attach func(i int)
	attach = func(i int) {
		placed[i] = true
		kids := children[i]
		ix.sortPositions(kids)
		for _, k := range kids {
			if placed[k] {
				continue
			}
			attach(k)
			arena[i].Children = append(arena[i].Children, &arena[k])
		}
	}

	ix.sortPositions(roots)
	forest := make([]*Node, 0, len(roots))
	for _, r := range roots {
		attach(r)
		forest = append(forest, &arena[r])
	}

	rest := make([]int, 0)
	for i := range arena {
		if !placed[i] {
			rest = append(rest, i)
		}
	}
	ix.sortPositions(rest)
	for _, i := range rest {
		if placed[i] {
			continue
		}
		attach(i)
		forest = append(forest, &arena[i])
	}
	return forest
}

func (ix *Index) sortPositions(positions []int) {
	sort.SliceStable(positions, func(a, b int) bool {
		ca, cb := ix.items[positions[a]], ix.items[positions[b]]
		if ca.SortOrder != cb.SortOrder {
			return ca.SortOrder < cb.SortOrder
		}
		if !ca.CreatedAt.Equal(cb.CreatedAt) {
			return ca.CreatedAt.Before(cb.CreatedAt)
		}
		return ca.ID < cb.ID
	})
}
