package locations

import (
	"time"

	"github.com/google/uuid"
)

// LocationType is the blueprint for a class of physical locations (e.g.
// "Freezer Rack", "96-Well Plate"): whether instances store samples directly,
// whether they are grid containers, and which types they may nest inside.
type LocationType struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Name string `gorm:"type:text;not null;uniqueIndex:idx_location_type_name" json:"name"`

	CanStoreSamples bool `gorm:"not null;default:false" json:"can_store_samples"`
	CanHaveSpaces   bool `gorm:"not null;default:false" json:"can_have_spaces"`

	// Grid dimensions. Set iff CanHaveSpaces.
	SpaceRows *int `gorm:"column:space_rows" json:"space_rows,omitempty"`
	SpaceCols *int `gorm:"column:space_cols" json:"space_cols,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (LocationType) TableName() string { return "location_type" }

// LocationTypeParent is one allowed-parent edge in the type nesting graph:
// TypeID may be placed inside ParentTypeID. The edge set must stay acyclic.
type LocationTypeParent struct {
	TypeID       uuid.UUID `gorm:"type:uuid;not null;index;index:idx_location_type_parent_edge,unique,priority:1" json:"type_id"`
	ParentTypeID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_location_type_parent_edge,unique,priority:2" json:"parent_type_id"`
}

func (LocationTypeParent) TableName() string { return "location_type_parent" }
