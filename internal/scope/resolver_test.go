package scope

import (
	"context"
	"errors"
	"testing"

	"orgdir.org/internal/directory"
)

// fakeTree serves strict descendants from a static adjacency table.
type fakeTree struct {
	descendants map[int64][]int64
	err         error
}

func (f *fakeTree) DescendantsOf(_ context.Context, structureID int64) ([]directory.Structure, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := f.descendants[structureID]
	out := make([]directory.Structure, 0, len(ids))
	for _, id := range ids {
		out = append(out, directory.Structure{ID: id})
	}
	return out, nil
}

// demoTree mirrors the seeded hierarchy: country 1 over cities 2 and 5, each
// city over two suburbs.
func demoTree() *fakeTree {
	return &fakeTree{descendants: map[int64][]int64{
		1: {2, 3, 4, 5, 6, 7},
		2: {3, 4},
		5: {6, 7},
	}}
}

func TestVisibleStructureIDsExcludesHome(t *testing.T) {
	r, err := NewResolver(demoTree())
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	visible, err := r.VisibleStructureIDs(context.Background(), []int64{2})
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if _, ok := visible[2]; ok {
		t.Fatalf("home structure must not be visible to itself")
	}
	for _, want := range []int64{3, 4} {
		if _, ok := visible[want]; !ok {
			t.Fatalf("expected %d in visible set", want)
		}
	}
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible structures, got %d", len(visible))
	}
}

func TestVisibleStructureIDsUnionsHomes(t *testing.T) {
	r, _ := NewResolver(demoTree())

	visible, err := r.VisibleStructureIDs(context.Background(), []int64{2, 5})
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	for _, want := range []int64{3, 4, 6, 7} {
		if _, ok := visible[want]; !ok {
			t.Fatalf("expected %d in visible set", want)
		}
	}
	if len(visible) != 4 {
		t.Fatalf("expected 4 visible structures, got %d", len(visible))
	}
}

func TestVisibleStructureIDsLeafIsEmpty(t *testing.T) {
	r, _ := NewResolver(demoTree())

	visible, err := r.VisibleStructureIDs(context.Background(), []int64{3})
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("leaf home must yield an empty visible set, got %v", visible)
	}
}

func TestVisibleStructureIDsUnknownHome(t *testing.T) {
	r, _ := NewResolver(demoTree())

	visible, err := r.VisibleStructureIDs(context.Background(), []int64{99})
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("unknown home must yield an empty visible set, got %v", visible)
	}
}

func TestAllWithinScope(t *testing.T) {
	r, _ := NewResolver(demoTree())
	ctx := context.Background()

	cases := []struct {
		name       string
		candidates []int64
		homes      []int64
		want       bool
	}{
		{"all inside", []int64{3, 4}, []int64{2}, true},
		{"one outside rejects all", []int64{3, 6}, []int64{2}, false},
		{"own home rejected", []int64{2}, []int64{2}, false},
		{"empty candidates rejected", nil, []int64{1}, false},
		{"country sees whole tree", []int64{2, 3, 4, 5, 6, 7}, []int64{1}, true},
	}
	for _, tc := range cases {
		got, err := r.AllWithinScope(ctx, tc.candidates, tc.homes)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAnyWithinScope(t *testing.T) {
	r, _ := NewResolver(demoTree())
	ctx := context.Background()

	cases := []struct {
		name       string
		candidates []int64
		homes      []int64
		want       bool
	}{
		{"partial overlap suffices", []int64{3, 99}, []int64{2}, true},
		{"no overlap", []int64{6, 7}, []int64{2}, false},
		{"own home is not overlap", []int64{2}, []int64{2}, false},
		{"empty candidates", nil, []int64{1}, false},
	}
	for _, tc := range cases {
		got, err := r.AnyWithinScope(ctx, tc.candidates, tc.homes)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestResolverPropagatesSourceError(t *testing.T) {
	r, _ := NewResolver(&fakeTree{err: errors.New("backend down")})

	if _, err := r.VisibleStructureIDs(context.Background(), []int64{1}); err == nil {
		t.Fatalf("expected error from source")
	}
}

func TestNewResolverRequiresSource(t *testing.T) {
	if _, err := NewResolver(nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
}
