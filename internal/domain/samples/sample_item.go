package samples

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/laureon/slm-backend/internal/domain/locations"
)

// SampleItem is an individually tracked physical object. It is stored at
// exactly one point: either SourceLocationID (a non-grid location) or a
// LocationSpace row referencing it via occupied_by_sample_item_id.
type SampleItem struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Name          string `gorm:"type:text;not null;index" json:"name"`
	CatalogNumber string `gorm:"type:text;not null;default:''" json:"catalog_number"`
	LotNumber     string `gorm:"type:text;not null;default:''" json:"lot_number"`
	Description   string `gorm:"type:text;not null;default:''" json:"description"`

	SourceLocationID *uuid.UUID          `gorm:"type:uuid;index" json:"source_location_id,omitempty"`
	SourceLocation   *locations.Location `gorm:"foreignKey:SourceLocationID;references:ID" json:"source_location,omitempty"`

	Metadata datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (SampleItem) TableName() string { return "sample_item" }
