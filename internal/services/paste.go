package services

import (
	"strings"

	"github.com/laureon/slm-backend/internal/pkg/apperr"
)

// PastedRow is one line of tab-separated bulk sample data. Missing trailing
// columns are left empty.
type PastedRow struct {
	Name          string
	CatalogNumber string
	LotNumber     string
	Description   string
}

const maxPasteColumns = 4

// ParsePastedRows splits spreadsheet-style paste data into sample rows.
// Blank lines are skipped; a line with more than four columns fails the
// whole paste.
func ParsePastedRows(raw string) ([]PastedRow, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var rows []PastedRow
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		// Split the raw line: trimming first would swallow a leading tab and
		// shift every column left, promoting the catalog number to the name.
		columns := strings.Split(line, "\t")
		if len(columns) > maxPasteColumns {
			return nil, apperr.Validationf("data",
				"line %d has too many columns: expected at most %d (name, catalog number, lot number, description), found %d",
				i+1, maxPasteColumns, len(columns))
		}

		var row PastedRow
		for j, col := range columns {
			col = strings.TrimSpace(col)
			switch j {
			case 0:
				row.Name = col
			case 1:
				row.CatalogNumber = col
			case 2:
				row.LotNumber = col
			case 3:
				row.Description = col
			}
		}
		if row.Name == "" {
			return nil, apperr.Validationf("data", "line %d is missing a sample name", i+1)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
