package locations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/laureon/slm-backend/internal/domain"
	"github.com/laureon/slm-backend/internal/pkg/logger"
)

type LocationSpaceRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.LocationSpace, error)
	GetByCoord(ctx context.Context, tx *gorm.DB, parentLocationID uuid.UUID, row, col int) (*types.LocationSpace, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, parentLocationID uuid.UUID, row, col int) (*types.LocationSpace, error)
	Save(ctx context.Context, tx *gorm.DB, space *types.LocationSpace) error
	ClaimWithLocation(ctx context.Context, tx *gorm.DB, spaceID, locationID uuid.UUID) (bool, error)
	ClaimWithSample(ctx context.Context, tx *gorm.DB, spaceID, sampleID uuid.UUID) (bool, error)

	GetByParentLocationIDs(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]*types.LocationSpace, error)
	GetByOccupantLocationID(ctx context.Context, tx *gorm.DB, locationID uuid.UUID) (*types.LocationSpace, error)
	GetByOccupantSampleIDs(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]*types.LocationSpace, error)
	OccupiedParentIDs(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]uuid.UUID, error)
	OccupiedExistsUnderTypeID(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error)

	DeleteIfEmpty(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DeleteEmptyByParentLocationID(ctx context.Context, tx *gorm.DB, parentLocationID uuid.UUID) error
}

type locationSpaceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLocationSpaceRepo(db *gorm.DB, baseLog *logger.Logger) LocationSpaceRepo {
	repoLog := baseLog.With("repo", "LocationSpaceRepo")
	return &locationSpaceRepo{db: db, log: repoLog}
}

func (r *locationSpaceRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.LocationSpace, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var space types.LocationSpace
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&space).Error; err != nil {
		return nil, err
	}
	return &space, nil
}

func (r *locationSpaceRepo) GetByCoord(ctx context.Context, tx *gorm.DB, parentLocationID uuid.UUID, row, col int) (*types.LocationSpace, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var space types.LocationSpace
	if err := transaction.WithContext(ctx).
		Where("parent_location_id = ? AND row = ? AND col = ?", parentLocationID, row, col).
		First(&space).Error; err != nil {
		return nil, err
	}
	return &space, nil
}

// GetOrCreate returns the space at (row, col), creating the row on first
// occupancy. The composite unique index on (parent, row, col) backs this up
// under concurrent writers; a lost creation race surfaces as a constraint
// error for the service layer to classify.
func (r *locationSpaceRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, parentLocationID uuid.UUID, row, col int) (*types.LocationSpace, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	space := types.LocationSpace{
		ID:               uuid.New(),
		ParentLocationID: parentLocationID,
		Row:              row,
		Col:              col,
	}
	if err := transaction.WithContext(ctx).
		Where("parent_location_id = ? AND row = ? AND col = ?", parentLocationID, row, col).
		FirstOrCreate(&space).Error; err != nil {
		return nil, err
	}
	return &space, nil
}

func (r *locationSpaceRepo) Save(ctx context.Context, tx *gorm.DB, space *types.LocationSpace) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(space).Error
}

// ClaimWithLocation takes the space for a location occupant only if both
// occupant refs are still null, so a concurrent claim of the same space loses
// cleanly instead of overwriting. Returns whether the claim landed.
func (r *locationSpaceRepo) ClaimWithLocation(ctx context.Context, tx *gorm.DB, spaceID, locationID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	result := transaction.WithContext(ctx).
		Model(&types.LocationSpace{}).
		Where("id = ?", spaceID).
		Where("occupied_by_location_id IS NULL AND occupied_by_sample_item_id IS NULL").
		Update("occupied_by_location_id", locationID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimWithSample is ClaimWithLocation for a sample occupant.
func (r *locationSpaceRepo) ClaimWithSample(ctx context.Context, tx *gorm.DB, spaceID, sampleID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	result := transaction.WithContext(ctx).
		Model(&types.LocationSpace{}).
		Where("id = ?", spaceID).
		Where("occupied_by_location_id IS NULL AND occupied_by_sample_item_id IS NULL").
		Update("occupied_by_sample_item_id", sampleID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *locationSpaceRepo) GetByParentLocationIDs(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]*types.LocationSpace, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LocationSpace
	if len(parentIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("parent_location_id IN ?", parentIDs).
		Order("row ASC, col ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *locationSpaceRepo) GetByOccupantLocationID(ctx context.Context, tx *gorm.DB, locationID uuid.UUID) (*types.LocationSpace, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var space types.LocationSpace
	if err := transaction.WithContext(ctx).
		Where("occupied_by_location_id = ?", locationID).
		First(&space).Error; err != nil {
		return nil, err
	}
	return &space, nil
}

func (r *locationSpaceRepo) GetByOccupantSampleIDs(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]*types.LocationSpace, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LocationSpace
	if len(sampleIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("occupied_by_sample_item_id IN ?", sampleIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// OccupiedParentIDs reports which of the given locations have at least one
// occupied space, in one round trip.
func (r *locationSpaceRepo) OccupiedParentIDs(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if len(parentIDs) == 0 {
		return ids, nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.LocationSpace{}).
		Distinct("parent_location_id").
		Where("parent_location_id IN ?", parentIDs).
		Where("occupied_by_location_id IS NOT NULL OR occupied_by_sample_item_id IS NOT NULL").
		Pluck("parent_location_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// OccupiedExistsUnderTypeID reports whether any location of the given type
// has an occupied space. Used to lock grid dimension fields on type edits.
func (r *locationSpaceRepo) OccupiedExistsUnderTypeID(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.LocationSpace{}).
		Joins("JOIN location ON location.id = location_space.parent_location_id").
		Where("location.source_location_type_id = ?", typeID).
		Where("location_space.occupied_by_location_id IS NOT NULL OR location_space.occupied_by_sample_item_id IS NOT NULL").
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteIfEmpty removes the space only when both occupant refs are null.
// Safe to call on an already-deleted or still-occupied space; cascade
// cleanup relies on that idempotence.
func (r *locationSpaceRepo) DeleteIfEmpty(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Where("occupied_by_location_id IS NULL AND occupied_by_sample_item_id IS NULL").
		Delete(&types.LocationSpace{}).Error
}

func (r *locationSpaceRepo) DeleteEmptyByParentLocationID(ctx context.Context, tx *gorm.DB, parentLocationID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("parent_location_id = ?", parentLocationID).
		Where("occupied_by_location_id IS NULL AND occupied_by_sample_item_id IS NULL").
		Delete(&types.LocationSpace{}).Error
}
