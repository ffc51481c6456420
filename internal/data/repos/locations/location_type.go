package locations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/laureon/slm-backend/internal/domain"
	"github.com/laureon/slm-backend/internal/pkg/logger"
)

type LocationTypeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, lt *types.LocationType) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.LocationType, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.LocationType, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.LocationType, error)
	NameTaken(ctx context.Context, tx *gorm.DB, name string, excludeID uuid.UUID) (bool, error)
	Save(ctx context.Context, tx *gorm.DB, lt *types.LocationType) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	GetAllParentEdges(ctx context.Context, tx *gorm.DB) ([]*types.LocationTypeParent, error)
	GetParentEdgesByTypeIDs(ctx context.Context, tx *gorm.DB, typeIDs []uuid.UUID) ([]*types.LocationTypeParent, error)
	ReplaceParentEdges(ctx context.Context, tx *gorm.DB, typeID uuid.UUID, parentTypeIDs []uuid.UUID) error
	DeleteEdgesByTypeID(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) error
	UsedAsParent(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error)
	UsedAsParentByTypeIDs(ctx context.Context, tx *gorm.DB, typeIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type locationTypeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLocationTypeRepo(db *gorm.DB, baseLog *logger.Logger) LocationTypeRepo {
	repoLog := baseLog.With("repo", "LocationTypeRepo")
	return &locationTypeRepo{db: db, log: repoLog}
}

func (r *locationTypeRepo) Create(ctx context.Context, tx *gorm.DB, lt *types.LocationType) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(lt).Error
}

func (r *locationTypeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.LocationType, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var lt types.LocationType
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&lt).Error; err != nil {
		return nil, err
	}
	return &lt, nil
}

func (r *locationTypeRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.LocationType, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LocationType
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *locationTypeRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.LocationType, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LocationType
	if err := transaction.WithContext(ctx).
		Order("name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// NameTaken reports whether another type already uses the name,
// case-insensitively. excludeID skips the record being edited.
func (r *locationTypeRepo) NameTaken(ctx context.Context, tx *gorm.DB, name string, excludeID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	q := transaction.WithContext(ctx).
		Model(&types.LocationType{}).
		Where("LOWER(name) = LOWER(?)", name)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *locationTypeRepo) Save(ctx context.Context, tx *gorm.DB, lt *types.LocationType) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(lt).Error
}

func (r *locationTypeRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.LocationType{}).Error
}

func (r *locationTypeRepo) GetAllParentEdges(ctx context.Context, tx *gorm.DB) ([]*types.LocationTypeParent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var edges []*types.LocationTypeParent
	if err := transaction.WithContext(ctx).Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *locationTypeRepo) GetParentEdgesByTypeIDs(ctx context.Context, tx *gorm.DB, typeIDs []uuid.UUID) ([]*types.LocationTypeParent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var edges []*types.LocationTypeParent
	if len(typeIDs) == 0 {
		return edges, nil
	}

	if err := transaction.WithContext(ctx).
		Where("type_id IN ?", typeIDs).
		Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

// ReplaceParentEdges swaps the full allowed-parent edge set of one type.
// Callers are expected to run it inside a transaction together with the
// type row itself.
func (r *locationTypeRepo) ReplaceParentEdges(ctx context.Context, tx *gorm.DB, typeID uuid.UUID, parentTypeIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).
		Where("type_id = ?", typeID).
		Delete(&types.LocationTypeParent{}).Error; err != nil {
		return err
	}
	if len(parentTypeIDs) == 0 {
		return nil
	}

	edges := make([]*types.LocationTypeParent, 0, len(parentTypeIDs))
	for _, pid := range parentTypeIDs {
		edges = append(edges, &types.LocationTypeParent{TypeID: typeID, ParentTypeID: pid})
	}
	return transaction.WithContext(ctx).Create(&edges).Error
}

func (r *locationTypeRepo) DeleteEdgesByTypeID(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("type_id = ? OR parent_type_id = ?", typeID, typeID).
		Delete(&types.LocationTypeParent{}).Error
}

func (r *locationTypeRepo) UsedAsParent(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.LocationTypeParent{}).
		Where("parent_type_id = ?", typeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UsedAsParentByTypeIDs answers the "is any type nesting under me" half of
// the in-use annotation for a whole listing in one round trip.
func (r *locationTypeRepo) UsedAsParentByTypeIDs(ctx context.Context, tx *gorm.DB, typeIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	result := make(map[uuid.UUID]bool, len(typeIDs))
	if len(typeIDs) == 0 {
		return result, nil
	}

	var parentIDs []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.LocationTypeParent{}).
		Distinct("parent_type_id").
		Where("parent_type_id IN ?", typeIDs).
		Pluck("parent_type_id", &parentIDs).Error; err != nil {
		return nil, err
	}
	for _, id := range parentIDs {
		result[id] = true
	}
	return result, nil
}
