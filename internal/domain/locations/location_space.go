package locations

import (
	"github.com/google/uuid"
)

// LocationSpace is one addressable slot (row, col) inside a grid-typed
// Location. Rows exist only while occupied: a space is created on first
// assignment and removed by cascade cleanup once both occupant refs are null.
// The check constraint keeps the two occupant kinds mutually exclusive even
// under concurrent writers.
type LocationSpace struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	ParentLocationID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_location_space_coord,unique,priority:1" json:"parent_location_id"`
	ParentLocation   *Location `gorm:"constraint:OnDelete:CASCADE;foreignKey:ParentLocationID;references:ID" json:"parent_location,omitempty"`

	// 1-based, bounded by the parent type's SpaceRows/SpaceCols.
	Row int `gorm:"not null;index:idx_location_space_coord,unique,priority:2" json:"row"`
	Col int `gorm:"not null;index:idx_location_space_coord,unique,priority:3" json:"col"`

	OccupiedByLocationID   *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_location_space_occ_location;check:chk_location_space_one_occupant,NOT (occupied_by_location_id IS NOT NULL AND occupied_by_sample_item_id IS NOT NULL)" json:"occupied_by_location_id,omitempty"`
	OccupiedBySampleItemID *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_location_space_occ_sample" json:"occupied_by_sample_item_id,omitempty"`
}

func (LocationSpace) TableName() string { return "location_space" }

// Empty reports whether the space has no occupant of either kind.
func (s *LocationSpace) Empty() bool {
	return s.OccupiedByLocationID == nil && s.OccupiedBySampleItemID == nil
}
