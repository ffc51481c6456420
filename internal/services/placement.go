package services

import (
	"github.com/laureon/slm-backend/internal/pkg/apperr"

	types "github.com/laureon/slm-backend/internal/domain"
	"github.com/laureon/slm-backend/internal/typegraph"
)

// Placement rules shared by the location and sample commands. All of these
// operate on already-loaded rows so they stay testable without a database.

// checkGridDims enforces that grid dimensions are present iff the type is a
// grid container, and positive when present.
func checkGridDims(canHaveSpaces bool, rows, cols *int) error {
	if canHaveSpaces {
		if rows == nil || cols == nil {
			return apperr.Validation("space_rows", "grid dimensions (rows, cols) are required when the type can have spaces")
		}
		if *rows < 1 || *cols < 1 {
			return apperr.Validation("space_rows", "grid dimensions must be positive")
		}
		return nil
	}
	if rows != nil || cols != nil {
		return apperr.Validation("space_rows", "grid dimensions must be empty when the type cannot have spaces")
	}
	return nil
}

// checkSpaceBounds validates a 1-based (row, col) against the parent type's
// declared grid.
func checkSpaceBounds(parentType *types.LocationType, row, col int) error {
	if !parentType.CanHaveSpaces || parentType.SpaceRows == nil || parentType.SpaceCols == nil {
		return apperr.Validationf("space", "location type %q has no spaces", parentType.Name)
	}
	if row < 1 || col < 1 {
		return apperr.Validation("space", "space coordinates are 1-based")
	}
	if row > *parentType.SpaceRows {
		return apperr.Validationf("space", "row %d exceeds the maximum of %d", row, *parentType.SpaceRows)
	}
	if col > *parentType.SpaceCols {
		return apperr.Validationf("space", "column %d exceeds the maximum of %d", col, *parentType.SpaceCols)
	}
	return nil
}

// checkLocationNesting enforces the nesting rules for a location being placed
// under parentType, either directly or through one of its spaces.
func checkLocationNesting(locType, parentType *types.LocationType, viaSpace bool, edges []*types.LocationTypeParent) error {
	if typegraph.IsRoot(locType.ID, edges) {
		return apperr.Validationf("parent", "location type %q cannot be nested inside another location", locType.Name)
	}
	if !typegraph.AllowsParent(locType.ID, parentType.ID, edges) {
		return apperr.Validationf("parent", "location type %q is not allowed inside %q", locType.Name, parentType.Name)
	}
	if !viaSpace && parentType.CanHaveSpaces {
		return apperr.Validation("parent", "the chosen parent is a grid container; assign the location to a specific space within it")
	}
	if viaSpace && !parentType.CanHaveSpaces {
		return apperr.Validationf("space", "location type %q has no spaces", parentType.Name)
	}
	return nil
}

// checkSampleTarget enforces where a sample may be stored: directly only in a
// storable non-grid location, via a space only under a storable grid location.
func checkSampleTarget(locType *types.LocationType, viaSpace bool) error {
	if !locType.CanStoreSamples {
		return apperr.Validationf("location", "location type %q is not designated for storing samples", locType.Name)
	}
	if !viaSpace && locType.CanHaveSpaces {
		return apperr.Validation("location", "the sample must be assigned to a specific space within the chosen location")
	}
	if viaSpace && !locType.CanHaveSpaces {
		return apperr.Validationf("space", "location type %q has no spaces", locType.Name)
	}
	return nil
}
