// Package typegraph holds the pure adjacency algorithms for the location
// type nesting graph. Callers load the full edge set in one query and hand
// it over; nothing here touches storage.
package typegraph

import (
	"sort"

	"github.com/google/uuid"

	types "github.com/laureon/slm-backend/internal/domain"
)

// Descendants returns every type reachable from root by repeatedly following
// "allows root (or a descendant of root) as parent" edges. The result never
// contains root itself. Traversal is iterative breadth-first with a
// processed-id set, so cyclic edge data cannot loop it.
func Descendants(root uuid.UUID, edges []*types.LocationTypeParent) map[uuid.UUID]bool {
	children := childIndex(edges)

	descendants := make(map[uuid.UUID]bool)
	processed := map[uuid.UUID]bool{root: true}

	queue := make([]uuid.UUID, 0, len(children[root]))
	for _, child := range children[root] {
		if !processed[child] {
			queue = append(queue, child)
			processed[child] = true
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		descendants[current] = true

		for _, child := range children[current] {
			if !processed[child] {
				queue = append(queue, child)
				processed[child] = true
			}
		}
	}
	return descendants
}

// TopoSort orders types so that parents come before the types nesting under
// them (Kahn's algorithm, in-degree = number of allowed parents). Ties break
// by name ascending. If the edge data is cyclic, the unplaceable remainder
// is appended sorted by name so the caller still gets every type back.
func TopoSort(all []*types.LocationType, edges []*types.LocationTypeParent) []*types.LocationType {
	if len(all) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*types.LocationType, len(all))
	inDegree := make(map[uuid.UUID]int, len(all))
	for _, t := range all {
		byID[t.ID] = t
		inDegree[t.ID] = 0
	}
	children := childIndex(edges)
	for _, e := range edges {
		if _, ok := byID[e.TypeID]; ok {
			inDegree[e.TypeID]++
		}
	}

	var queue []uuid.UUID
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sortByName(queue, byID)

	sorted := make([]*types.LocationType, 0, len(all))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, byID[current])

		next := append([]uuid.UUID(nil), children[current]...)
		sortByName(next, byID)
		for _, child := range next {
			if _, ok := inDegree[child]; !ok {
				continue
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(sorted) != len(all) {
		placed := make(map[uuid.UUID]bool, len(sorted))
		for _, t := range sorted {
			placed[t.ID] = true
		}
		var remaining []*types.LocationType
		for _, t := range all {
			if !placed[t.ID] {
				remaining = append(remaining, t)
			}
		}
		sort.Slice(remaining, func(i, j int) bool { return remaining[i].Name < remaining[j].Name })
		sorted = append(sorted, remaining...)
	}
	return sorted
}

// ParentIDs extracts the allowed-parent set of one type from the edge list.
func ParentIDs(typeID uuid.UUID, edges []*types.LocationTypeParent) []uuid.UUID {
	var ids []uuid.UUID
	for _, e := range edges {
		if e.TypeID == typeID {
			ids = append(ids, e.ParentTypeID)
		}
	}
	return ids
}

// AllowsParent reports whether typeID lists parentTypeID as an allowed parent.
func AllowsParent(typeID, parentTypeID uuid.UUID, edges []*types.LocationTypeParent) bool {
	for _, e := range edges {
		if e.TypeID == typeID && e.ParentTypeID == parentTypeID {
			return true
		}
	}
	return false
}

// IsRoot reports whether the type has no allowed parents at all.
func IsRoot(typeID uuid.UUID, edges []*types.LocationTypeParent) bool {
	for _, e := range edges {
		if e.TypeID == typeID {
			return false
		}
	}
	return true
}

// childIndex inverts the edge list: parent type id -> types allowed to nest
// under it.
func childIndex(edges []*types.LocationTypeParent) map[uuid.UUID][]uuid.UUID {
	children := make(map[uuid.UUID][]uuid.UUID)
	for _, e := range edges {
		children[e.ParentTypeID] = append(children[e.ParentTypeID], e.TypeID)
	}
	return children
}

func sortByName(ids []uuid.UUID, byID map[uuid.UUID]*types.LocationType) {
	sort.Slice(ids, func(i, j int) bool {
		ti, oki := byID[ids[i]]
		tj, okj := byID[ids[j]]
		if !oki || !okj {
			return ids[i].String() < ids[j].String()
		}
		if ti.Name != tj.Name {
			return ti.Name < tj.Name
		}
		return ids[i].String() < ids[j].String()
	})
}
