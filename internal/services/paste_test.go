package services

import (
	"strings"
	"testing"

	"github.com/laureon/slm-backend/internal/pkg/apperr"
)

func TestParsePastedRowsFullColumns(t *testing.T) {
	raw := "Aliquot 1\tCAT-1\tLOT-9\tfrozen stock\nAliquot 2\tCAT-2"
	rows, err := ParsePastedRows(raw)
	if err != nil {
		t.Fatalf("ParsePastedRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("row count: want=2 got=%d", len(rows))
	}
	if rows[0].Name != "Aliquot 1" || rows[0].CatalogNumber != "CAT-1" ||
		rows[0].LotNumber != "LOT-9" || rows[0].Description != "frozen stock" {
		t.Fatalf("row 0 mismatch: %+v", rows[0])
	}
	if rows[1].LotNumber != "" || rows[1].Description != "" {
		t.Fatalf("missing trailing columns should stay empty: %+v", rows[1])
	}
}

func TestParsePastedRowsSkipsBlankLinesAndCRLF(t *testing.T) {
	raw := "Aliquot 1\r\n\r\n  \r\nAliquot 2\r\n"
	rows, err := ParsePastedRows(raw)
	if err != nil {
		t.Fatalf("ParsePastedRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("row count: want=2 got=%d", len(rows))
	}
}

func TestParsePastedRowsTooManyColumns(t *testing.T) {
	raw := "Aliquot 1\nA\tB\tC\tD\tE"
	_, err := ParsePastedRows(raw)
	if !apperr.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error should name the offending line: %q", err.Error())
	}
}

func TestParsePastedRowsLeadingTabKeepsColumnAlignment(t *testing.T) {
	// A leading tab means an empty name column; the catalog number must not
	// shift left into the name slot.
	_, err := ParsePastedRows("\tCAT-1\tLOT-2")
	if !apperr.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}

	rows, err := ParsePastedRows("Aliquot 1\t\tLOT-2")
	if err != nil {
		t.Fatalf("ParsePastedRows: %v", err)
	}
	if rows[0].CatalogNumber != "" || rows[0].LotNumber != "LOT-2" {
		t.Fatalf("empty middle column must stay empty: %+v", rows[0])
	}
}

func TestParsePastedRowsMissingName(t *testing.T) {
	raw := "\tCAT-1"
	_, err := ParsePastedRows(raw)
	if !apperr.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing a sample name") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
