package locations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/laureon/slm-backend/internal/domain"
	"github.com/laureon/slm-backend/internal/pkg/logger"
)

type LocationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, loc *types.Location) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Location, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Location, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Location, error)
	NameTaken(ctx context.Context, tx *gorm.DB, name string, excludeID uuid.UUID) (bool, error)
	Save(ctx context.Context, tx *gorm.DB, loc *types.Location) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	GetByParentIDs(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]*types.Location, error)
	ExistsByTypeID(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error)
	TypeIDsWithLocations(ctx context.Context, tx *gorm.DB, typeIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	ParentIDsWithChildren(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]uuid.UUID, error)
	DirectParentTypeIDs(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) ([]uuid.UUID, error)
	SpaceParentTypeIDs(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) ([]uuid.UUID, error)
	ChildExistsUnderTypeID(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error)
}

type locationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLocationRepo(db *gorm.DB, baseLog *logger.Logger) LocationRepo {
	repoLog := baseLog.With("repo", "LocationRepo")
	return &locationRepo{db: db, log: repoLog}
}

func (r *locationRepo) Create(ctx context.Context, tx *gorm.DB, loc *types.Location) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(loc).Error
}

func (r *locationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Location, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var loc types.Location
	if err := transaction.WithContext(ctx).
		Preload("SourceLocationType").
		Where("id = ?", id).
		First(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *locationRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Location, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Location
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Preload("SourceLocationType").
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *locationRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.Location, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Location
	if err := transaction.WithContext(ctx).
		Preload("SourceLocationType").
		Order("name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *locationRepo) NameTaken(ctx context.Context, tx *gorm.DB, name string, excludeID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	q := transaction.WithContext(ctx).
		Model(&types.Location{}).
		Where("LOWER(name) = LOWER(?)", name)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *locationRepo) Save(ctx context.Context, tx *gorm.DB, loc *types.Location) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(loc).Error
}

func (r *locationRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Location{}).Error
}

func (r *locationRepo) GetByParentIDs(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]*types.Location, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Location
	if len(parentIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Preload("SourceLocationType").
		Where("parent_id IN ?", parentIDs).
		Order("name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *locationRepo) ExistsByTypeID(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Location{}).
		Where("source_location_type_id = ?", typeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// TypeIDsWithLocations answers the "does any location use this type" half of
// the type in-use annotation for a whole listing in one round trip.
func (r *locationRepo) TypeIDsWithLocations(ctx context.Context, tx *gorm.DB, typeIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	result := make(map[uuid.UUID]bool, len(typeIDs))
	if len(typeIDs) == 0 {
		return result, nil
	}

	var used []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.Location{}).
		Distinct("source_location_type_id").
		Where("source_location_type_id IN ?", typeIDs).
		Pluck("source_location_type_id", &used).Error; err != nil {
		return nil, err
	}
	for _, id := range used {
		result[id] = true
	}
	return result, nil
}

func (r *locationRepo) ParentIDsWithChildren(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if len(parentIDs) == 0 {
		return ids, nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.Location{}).
		Distinct("parent_id").
		Where("parent_id IN ?", parentIDs).
		Pluck("parent_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// DirectParentTypeIDs lists the distinct types currently acting as direct
// parents of locations of the given type. Used for edge locking on edit.
func (r *locationRepo) DirectParentTypeIDs(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.Location{}).
		Distinct("parents.source_location_type_id").
		Joins("JOIN location parents ON parents.id = location.parent_id").
		Where("location.source_location_type_id = ?", typeID).
		Pluck("parents.source_location_type_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ChildExistsUnderTypeID reports whether any location of the given type has
// a direct child location. Used to lock grid dimension fields on type edits.
func (r *locationRepo) ChildExistsUnderTypeID(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Location{}).
		Joins("JOIN location parents ON parents.id = location.parent_id").
		Where("parents.source_location_type_id = ?", typeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SpaceParentTypeIDs lists the distinct types of locations whose spaces are
// occupied by locations of the given type.
func (r *locationRepo) SpaceParentTypeIDs(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.Location{}).
		Distinct("parents.source_location_type_id").
		Joins("JOIN location_space ON location_space.occupied_by_location_id = location.id").
		Joins("JOIN location parents ON parents.id = location_space.parent_location_id").
		Where("location.source_location_type_id = ?", typeID).
		Pluck("parents.source_location_type_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
