package resequence_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/HendryAvila/routine-quest/internal/resequence"
)

type item = resequence.Item[string]

// collection builds n items "a", "b", ... at positions 1..n.
func collection(n int) []item {
	out := make([]item, n)
	for i := range out {
		out[i] = item{ID: string(rune('a' + i)), Position: i + 1}
	}
	return out
}

func positionOf(t *testing.T, items []item, id string) int {
	t.Helper()
	for _, it := range items {
		if it.ID == id {
			return it.Position
		}
	}
	t.Fatalf("item %q missing from result", id)
	return 0
}

// assertContiguous checks P1 and P2: positions are exactly {1..N}.
func assertContiguous(t *testing.T, items []item) {
	t.Helper()
	if err := resequence.Validate(items); err != nil {
		t.Fatalf("result violates ordering invariants: %v (%v)", err, items)
	}
}

// ─── Reorder scenarios ──────────────────────────────────────────────────────

func TestReorder_MoveDown(t *testing.T) {
	items := collection(5)

	got, err := resequence.Reorder(items, "b", 4)
	if err != nil {
		t.Fatalf("Reorder() error: %v", err)
	}
	assertContiguous(t, got)

	want := map[string]int{"a": 1, "b": 4, "c": 2, "d": 3, "e": 5}
	for id, pos := range want {
		if p := positionOf(t, got, id); p != pos {
			t.Errorf("position of %q = %d, want %d", id, p, pos)
		}
	}
}

func TestReorder_MoveUp(t *testing.T) {
	items := collection(5)

	got, err := resequence.Reorder(items, "d", 1)
	if err != nil {
		t.Fatalf("Reorder() error: %v", err)
	}
	assertContiguous(t, got)

	want := map[string]int{"a": 2, "b": 3, "c": 4, "d": 1, "e": 5}
	for id, pos := range want {
		if p := positionOf(t, got, id); p != pos {
			t.Errorf("position of %q = %d, want %d", id, p, pos)
		}
	}
}

func TestReorder_SamePositionIsNoop(t *testing.T) {
	items := collection(5)

	got, err := resequence.Reorder(items, "c", 3)
	if err != nil {
		t.Fatalf("Reorder() error: %v", err)
	}
	if !slices.Equal(got, items) {
		t.Errorf("Reorder() = %v, want unchanged %v", got, items)
	}
}

func TestReorder_UnknownItem(t *testing.T) {
	_, err := resequence.Reorder(collection(3), "zzz", 1)
	if !errors.Is(err, resequence.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestReorder_EmptyCollection(t *testing.T) {
	_, err := resequence.Reorder([]item{}, "a", 1)
	if !errors.Is(err, resequence.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestReorder_ClampsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		target int
		want   int
	}{
		{"zero clamps to first", "c", 0, 1},
		{"negative clamps to first", "c", -7, 1},
		{"past end clamps to last", "b", 6, 5},
		{"far past end clamps to last", "a", 1000, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resequence.Reorder(collection(5), tt.id, tt.target)
			if err != nil {
				t.Fatalf("Reorder() error: %v", err)
			}
			assertContiguous(t, got)
			if p := positionOf(t, got, tt.id); p != tt.want {
				t.Errorf("position = %d, want %d", p, tt.want)
			}
		})
	}
}

func TestReorder_DoesNotMutateInput(t *testing.T) {
	items := collection(4)
	snapshot := slices.Clone(items)

	if _, err := resequence.Reorder(items, "a", 4); err != nil {
		t.Fatalf("Reorder() error: %v", err)
	}
	if !slices.Equal(items, snapshot) {
		t.Errorf("input mutated: %v, want %v", items, snapshot)
	}
}

func TestReorder_RejectsInvalidCollections(t *testing.T) {
	tests := []struct {
		name  string
		items []item
	}{
		{"duplicate position", []item{{"a", 1}, {"b", 1}}},
		{"gap", []item{{"a", 1}, {"b", 3}}},
		{"zero-based", []item{{"a", 0}, {"b", 1}}},
		{"duplicate id", []item{{"a", 1}, {"a", 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resequence.Reorder(tt.items, "a", 2)
			if !errors.Is(err, resequence.ErrInvalidInput) {
				t.Fatalf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestReorder_UnsortedInputIsAccepted(t *testing.T) {
	items := []item{{"c", 3}, {"a", 1}, {"b", 2}}

	got, err := resequence.Reorder(items, "c", 1)
	if err != nil {
		t.Fatalf("Reorder() error: %v", err)
	}
	assertContiguous(t, got)
	if positionOf(t, got, "c") != 1 || positionOf(t, got, "a") != 2 || positionOf(t, got, "b") != 3 {
		t.Errorf("unexpected result %v", got)
	}
}

// ─── Properties over every move in small collections ────────────────────────

// TestReorder_Properties checks uniqueness, contiguity, target placement,
// minimal disturbance, preserved relative order and round-trip for every
// (item, target) pair in collections of size 1 through 7.
func TestReorder_Properties(t *testing.T) {
	for n := 1; n <= 7; n++ {
		items := collection(n)
		for _, moved := range items {
			for target := 1; target <= n; target++ {
				got, err := resequence.Reorder(items, moved.ID, target)
				if err != nil {
					t.Fatalf("n=%d move %s->%d: %v", n, moved.ID, target, err)
				}
				assertContiguous(t, got)

				if p := positionOf(t, got, moved.ID); p != target {
					t.Fatalf("n=%d move %s->%d: landed at %d", n, moved.ID, target, p)
				}

				lo, hi := min(moved.Position, target), max(moved.Position, target)
				for _, before := range items {
					after := positionOf(t, got, before.ID)
					if before.ID == moved.ID {
						continue
					}
					if (before.Position < lo || before.Position > hi) && after != before.Position {
						t.Errorf("n=%d move %s->%d: untouched item %s moved %d->%d",
							n, moved.ID, target, before.ID, before.Position, after)
					}
					if d := after - before.Position; d < -1 || d > 1 {
						t.Errorf("n=%d move %s->%d: item %s shifted by %d", n, moved.ID, target, before.ID, d)
					}
				}

				// Relative order of the other items never changes.
				others := func(xs []item) []string {
					var ids []string
					for _, it := range resequence.Sorted(xs) {
						if it.ID != moved.ID {
							ids = append(ids, it.ID)
						}
					}
					return ids
				}
				if !slices.Equal(others(items), others(got)) {
					t.Errorf("n=%d move %s->%d: relative order changed", n, moved.ID, target)
				}

				back, err := resequence.Reorder(got, moved.ID, moved.Position)
				if err != nil {
					t.Fatalf("round trip: %v", err)
				}
				if !slices.Equal(back, items) {
					t.Errorf("n=%d move %s->%d->%d: got %v, want %v",
						n, moved.ID, target, moved.Position, back, items)
				}
			}
		}
	}
}

// ─── Changes ────────────────────────────────────────────────────────────────

func TestChanges_OnlyTouchedItems(t *testing.T) {
	items := collection(5)
	got, err := resequence.Reorder(items, "b", 4)
	if err != nil {
		t.Fatalf("Reorder() error: %v", err)
	}

	changed := resequence.Changes(items, got)
	ids := make([]string, 0, len(changed))
	for _, c := range changed {
		ids = append(ids, c.ID)
	}
	slices.Sort(ids)

	if want := []string{"b", "c", "d"}; !slices.Equal(ids, want) {
		t.Errorf("Changes() ids = %v, want %v", ids, want)
	}
}

func TestChanges_NoopHasNoChanges(t *testing.T) {
	items := collection(3)
	got, _ := resequence.Reorder(items, "a", 1)
	if changed := resequence.Changes(items, got); len(changed) != 0 {
		t.Errorf("Changes() = %v, want none", changed)
	}
}

// ─── Insert / Remove / NextPosition ─────────────────────────────────────────

func TestNextPosition(t *testing.T) {
	if got := resequence.NextPosition([]item{}); got != 1 {
		t.Errorf("NextPosition(empty) = %d, want 1", got)
	}
	if got := resequence.NextPosition(collection(4)); got != 5 {
		t.Errorf("NextPosition(4 items) = %d, want 5", got)
	}
}

func TestInsert(t *testing.T) {
	tests := []struct {
		name     string
		position int
		want     int
	}{
		{"front", 1, 1},
		{"middle", 2, 2},
		{"append", 4, 4},
		{"past end clamps to append", 99, 4},
		{"zero clamps to front", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resequence.Insert(collection(3), "new", tt.position)
			if err != nil {
				t.Fatalf("Insert() error: %v", err)
			}
			assertContiguous(t, got)
			if len(got) != 4 {
				t.Fatalf("len = %d, want 4", len(got))
			}
			if p := positionOf(t, got, "new"); p != tt.want {
				t.Errorf("position = %d, want %d", p, tt.want)
			}
		})
	}
}

func TestInsert_DuplicateID(t *testing.T) {
	_, err := resequence.Insert(collection(3), "b", 1)
	if !errors.Is(err, resequence.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestRemove_CompactsLaterItems(t *testing.T) {
	got, err := resequence.Remove(collection(5), "b")
	if err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	assertContiguous(t, got)

	want := map[string]int{"a": 1, "c": 2, "d": 3, "e": 4}
	for id, pos := range want {
		if p := positionOf(t, got, id); p != pos {
			t.Errorf("position of %q = %d, want %d", id, p, pos)
		}
	}
}

func TestRemove_Unknown(t *testing.T) {
	_, err := resequence.Remove(collection(2), "x")
	if !errors.Is(err, resequence.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestNormalize(t *testing.T) {
	items := []item{{"c", 9}, {"a", 2}, {"b", 5}, {"d", 5}}

	got := resequence.Normalize(items)
	assertContiguous(t, got)

	order := make([]string, len(got))
	for i, it := range got {
		order[i] = it.ID
	}
	if want := []string{"a", "b", "d", "c"}; !slices.Equal(order, want) {
		t.Errorf("Normalize() order = %v, want %v", order, want)
	}
}
