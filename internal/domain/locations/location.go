package locations

import (
	"time"

	"github.com/google/uuid"
)

// Location is a concrete instance of a LocationType. Its placement is either
// a direct ParentID link or an occupancy link from a LocationSpace row, never
// both; a root-type location has neither.
type Location struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Name string `gorm:"type:text;not null;uniqueIndex:idx_location_name" json:"name"`

	SourceLocationTypeID uuid.UUID     `gorm:"type:uuid;not null;index" json:"source_location_type_id"`
	SourceLocationType   *LocationType `gorm:"foreignKey:SourceLocationTypeID;references:ID" json:"source_location_type,omitempty"`

	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Parent   *Location  `gorm:"foreignKey:ParentID;references:ID" json:"parent,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Location) TableName() string { return "location" }
