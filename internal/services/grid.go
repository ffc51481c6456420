package services

import (
	"fmt"

	"github.com/google/uuid"

	types "github.com/laureon/slm-backend/internal/domain"
)

const (
	OccupantKindLocation = "location"
	OccupantKindSample   = "sample"
)

// GridCell is one slot of a materialized space grid. Empty cells carry only
// their coordinates.
type GridCell struct {
	Row          int       `json:"row"`
	Col          int       `json:"col"`
	OccupantKind string    `json:"occupant_kind,omitempty"`
	OccupantID   uuid.UUID `json:"occupant_id,omitempty"`
	OccupantName string    `json:"occupant_name,omitempty"`
}

// BuildGrid lays the sparse space rows out as a dense rows x cols matrix.
// Spaces are expected to be pre-fetched in one query; occupant names come
// from equally pre-fetched lookups. A sample occupant wins over a location
// occupant if a row invalidly carries both.
func BuildGrid(rows, cols int, spaces []*types.LocationSpace, locationNames, sampleNames map[uuid.UUID]string) [][]GridCell {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}

	type coord struct{ row, col int }
	byCoord := make(map[coord]*types.LocationSpace, len(spaces))
	for _, s := range spaces {
		byCoord[coord{s.Row, s.Col}] = s
	}

	grid := make([][]GridCell, rows)
	for r := 1; r <= rows; r++ {
		rowCells := make([]GridCell, cols)
		for c := 1; c <= cols; c++ {
			cell := GridCell{Row: r, Col: c}
			if s, ok := byCoord[coord{r, c}]; ok {
				switch {
				case s.OccupiedBySampleItemID != nil:
					cell.OccupantKind = OccupantKindSample
					cell.OccupantID = *s.OccupiedBySampleItemID
					cell.OccupantName = sampleNames[*s.OccupiedBySampleItemID]
				case s.OccupiedByLocationID != nil:
					cell.OccupantKind = OccupantKindLocation
					cell.OccupantID = *s.OccupiedByLocationID
					cell.OccupantName = locationNames[*s.OccupiedByLocationID]
				}
			}
			rowCells[c-1] = cell
		}
		grid[r-1] = rowCells
	}
	return grid
}

// RowLetter renders a 1-based row index as a spreadsheet-style letter:
// 1 -> A, 26 -> Z, 27 -> AA.
func RowLetter(row int) string {
	if row < 1 {
		return ""
	}
	var letters []byte
	for row > 0 {
		row--
		letters = append([]byte{byte('A' + row%26)}, letters...)
		row /= 26
	}
	return string(letters)
}

// SpaceLabel renders a coordinate for display, e.g. (1, 3) -> "A3".
func SpaceLabel(row, col int) string {
	return fmt.Sprintf("%s%d", RowLetter(row), col)
}
