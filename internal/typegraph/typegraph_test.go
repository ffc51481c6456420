package typegraph

import (
	"testing"

	"github.com/google/uuid"

	types "github.com/laureon/slm-backend/internal/domain"
)

func newType(name string) *types.LocationType {
	return &types.LocationType{ID: uuid.New(), Name: name}
}

func edge(child, parent *types.LocationType) *types.LocationTypeParent {
	return &types.LocationTypeParent{TypeID: child.ID, ParentTypeID: parent.ID}
}

func TestDescendantsChain(t *testing.T) {
	building := newType("Building")
	room := newType("Room")
	freezer := newType("Freezer")
	bench := newType("Bench")

	edges := []*types.LocationTypeParent{
		edge(room, building),
		edge(freezer, room),
		edge(bench, room),
	}

	got := Descendants(building.ID, edges)
	if len(got) != 3 {
		t.Fatalf("descendant count: want=3 got=%d", len(got))
	}
	for _, id := range []uuid.UUID{room.ID, freezer.ID, bench.ID} {
		if !got[id] {
			t.Fatalf("missing descendant %s", id)
		}
	}
	if got[building.ID] {
		t.Fatalf("root must not be its own descendant")
	}
}

func TestDescendantsDiamond(t *testing.T) {
	root := newType("Root")
	left := newType("Left")
	right := newType("Right")
	leaf := newType("Leaf")

	edges := []*types.LocationTypeParent{
		edge(left, root),
		edge(right, root),
		edge(leaf, left),
		edge(leaf, right),
	}

	got := Descendants(root.ID, edges)
	if len(got) != 3 {
		t.Fatalf("descendant count: want=3 got=%d", len(got))
	}
	if !got[leaf.ID] {
		t.Fatalf("leaf reachable through two paths must appear once")
	}
}

func TestDescendantsTerminatesOnCyclicData(t *testing.T) {
	a := newType("A")
	b := newType("B")

	edges := []*types.LocationTypeParent{
		edge(a, b),
		edge(b, a),
	}

	got := Descendants(a.ID, edges)
	if !got[b.ID] {
		t.Fatalf("expected B as descendant of A")
	}
	if got[a.ID] {
		t.Fatalf("root must not appear even when the data is cyclic")
	}
}

func TestTopoSortParentsFirst(t *testing.T) {
	building := newType("Building")
	room := newType("Room")
	freezer := newType("Freezer")

	all := []*types.LocationType{freezer, building, room}
	edges := []*types.LocationTypeParent{
		edge(room, building),
		edge(freezer, room),
	}

	sorted := TopoSort(all, edges)
	if len(sorted) != 3 {
		t.Fatalf("sorted count: want=3 got=%d", len(sorted))
	}
	index := map[string]int{}
	for i, lt := range sorted {
		index[lt.Name] = i
	}
	if index["Building"] > index["Room"] || index["Room"] > index["Freezer"] {
		t.Fatalf("parents must come before children, got order %v", index)
	}
}

func TestTopoSortTieBreaksByName(t *testing.T) {
	zebra := newType("Zebra")
	alpha := newType("Alpha")
	mid := newType("Mid")

	sorted := TopoSort([]*types.LocationType{zebra, alpha, mid}, nil)
	want := []string{"Alpha", "Mid", "Zebra"}
	for i, name := range want {
		if sorted[i].Name != name {
			t.Fatalf("position %d: want=%q got=%q", i, name, sorted[i].Name)
		}
	}
}

func TestTopoSortReturnsEveryTypeOnCyclicData(t *testing.T) {
	a := newType("A")
	b := newType("B")
	root := newType("Root")

	all := []*types.LocationType{a, b, root}
	edges := []*types.LocationTypeParent{
		edge(a, b),
		edge(b, a),
	}

	sorted := TopoSort(all, edges)
	if len(sorted) != 3 {
		t.Fatalf("sorted count: want=3 got=%d", len(sorted))
	}
	if sorted[0].Name != "Root" {
		t.Fatalf("acyclic portion first: want=Root got=%q", sorted[0].Name)
	}
}

func TestIsRootAndAllowsParent(t *testing.T) {
	building := newType("Building")
	room := newType("Room")

	edges := []*types.LocationTypeParent{edge(room, building)}

	if !IsRoot(building.ID, edges) {
		t.Fatalf("building should be a root type")
	}
	if IsRoot(room.ID, edges) {
		t.Fatalf("room should not be a root type")
	}
	if !AllowsParent(room.ID, building.ID, edges) {
		t.Fatalf("room should allow building as parent")
	}
	if AllowsParent(building.ID, room.ID, edges) {
		t.Fatalf("building should not allow room as parent")
	}
}

func TestParentIDs(t *testing.T) {
	plate := newType("Plate")
	freezer := newType("Freezer")
	bench := newType("Bench")

	edges := []*types.LocationTypeParent{
		edge(plate, freezer),
		edge(plate, bench),
	}

	got := ParentIDs(plate.ID, edges)
	if len(got) != 2 {
		t.Fatalf("parent count: want=2 got=%d", len(got))
	}
}
