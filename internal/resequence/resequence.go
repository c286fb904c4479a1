// Package resequence maintains the positions of an ordered collection.
//
// A collection is a set of items sharing one parent (a routine's steps),
// each holding a distinct position in the contiguous range [1, N]. Every
// operation here is pure: it validates the snapshot it is given, computes
// the complete new assignment and returns it as a fresh slice. The input
// is never mutated, so an error always leaves the caller's data untouched.
//
// Persisting the result, and serializing concurrent writers, is the
// caller's job (see internal/store).
package resequence

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNotFound is returned when the referenced item is not in the collection.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidInput is returned when the supplied collection does not hold
	// unique, contiguous positions starting at 1. Collections are rejected,
	// never silently repaired; use Normalize for an explicit repair.
	ErrInvalidInput = errors.New("invalid collection")
)

// Item is the resequencer's view of an ordered element: an opaque key
// and its rank within the parent collection.
type Item[ID comparable] struct {
	ID       ID
	Position int
}

// Validate checks that ids are unique and that positions are exactly {1..N}.
func Validate[ID comparable](items []Item[ID]) error {
	n := len(items)
	ids := make(map[ID]struct{}, n)
	taken := make([]bool, n+1)

	for _, it := range items {
		if _, dup := ids[it.ID]; dup {
			return fmt.Errorf("resequence: duplicate item %v: %w", it.ID, ErrInvalidInput)
		}
		ids[it.ID] = struct{}{}

		if it.Position < 1 || it.Position > n {
			return fmt.Errorf("resequence: item %v has position %d outside [1, %d]: %w",
				it.ID, it.Position, n, ErrInvalidInput)
		}
		if taken[it.Position] {
			return fmt.Errorf("resequence: position %d used more than once: %w", it.Position, ErrInvalidInput)
		}
		taken[it.Position] = true
	}
	return nil
}

// Reorder moves the item identified by id to newPosition.
//
// newPosition is clamped to [1, N]. Items between the old and the new
// position shift by one rank toward the gap; every other item keeps its
// position. Moving an item onto its current position returns an
// unchanged copy.
func Reorder[ID comparable](items []Item[ID], id ID, newPosition int) ([]Item[ID], error) {
	if err := Validate(items); err != nil {
		return nil, err
	}

	idx := indexOf(items, id)
	if idx < 0 {
		return nil, fmt.Errorf("resequence: item %v: %w", id, ErrNotFound)
	}

	out := slices.Clone(items)
	target := clamp(newPosition, 1, len(out))
	old := out[idx].Position

	switch {
	case target > old:
		// Moving later: the items it passes close the gap it leaves.
		for i := range out {
			if i != idx && out[i].Position > old && out[i].Position <= target {
				out[i].Position--
			}
		}
	case target < old:
		for i := range out {
			if i != idx && out[i].Position >= target && out[i].Position < old {
				out[i].Position++
			}
		}
	}

	out[idx].Position = target
	return out, nil
}

// Insert adds a new item at position, clamped to [1, N+1]. Items at or
// after that position move one rank later.
func Insert[ID comparable](items []Item[ID], id ID, position int) ([]Item[ID], error) {
	if err := Validate(items); err != nil {
		return nil, err
	}
	if indexOf(items, id) >= 0 {
		return nil, fmt.Errorf("resequence: item %v already present: %w", id, ErrInvalidInput)
	}

	target := clamp(position, 1, len(items)+1)
	out := make([]Item[ID], 0, len(items)+1)
	for _, it := range items {
		if it.Position >= target {
			it.Position++
		}
		out = append(out, it)
	}
	return append(out, Item[ID]{ID: id, Position: target}), nil
}

// Remove drops the item identified by id and closes the gap it leaves.
func Remove[ID comparable](items []Item[ID], id ID) ([]Item[ID], error) {
	if err := Validate(items); err != nil {
		return nil, err
	}

	idx := indexOf(items, id)
	if idx < 0 {
		return nil, fmt.Errorf("resequence: item %v: %w", id, ErrNotFound)
	}

	removed := items[idx].Position
	out := make([]Item[ID], 0, len(items)-1)
	for i, it := range items {
		if i == idx {
			continue
		}
		if it.Position > removed {
			it.Position--
		}
		out = append(out, it)
	}
	return out, nil
}

// NextPosition returns the position an appended item receives: the
// current maximum plus one, or 1 for an empty collection.
func NextPosition[ID comparable](items []Item[ID]) int {
	highest := 0
	for _, it := range items {
		highest = max(highest, it.Position)
	}
	return highest + 1
}

// Changes lists the items of after whose position differs from before.
// Items missing from before are reported as changed.
func Changes[ID comparable](before, after []Item[ID]) []Item[ID] {
	prev := make(map[ID]int, len(before))
	for _, it := range before {
		prev[it.ID] = it.Position
	}

	var changed []Item[ID]
	for _, it := range after {
		if p, ok := prev[it.ID]; !ok || p != it.Position {
			changed = append(changed, it)
		}
	}
	return changed
}

// Normalize renumbers a collection to 1..N keeping its current relative
// order; ties keep their input order. It is a repair tool for data written
// before positions were maintained, and is never applied implicitly.
func Normalize[ID comparable](items []Item[ID]) []Item[ID] {
	out := Sorted(items)
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// Sorted returns a copy of items ordered by position.
func Sorted[ID comparable](items []Item[ID]) []Item[ID] {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b Item[ID]) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return out
}

func indexOf[ID comparable](items []Item[ID], id ID) int {
	return slices.IndexFunc(items, func(it Item[ID]) bool { return it.ID == id })
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
