package samples

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/laureon/slm-backend/internal/domain"
	"github.com/laureon/slm-backend/internal/pkg/logger"
)

type SampleItemRepo interface {
	Create(ctx context.Context, tx *gorm.DB, items []*types.SampleItem) ([]*types.SampleItem, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SampleItem, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.SampleItem, error)
	Save(ctx context.Context, tx *gorm.DB, item *types.SampleItem) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error

	ListByLocationID(ctx context.Context, tx *gorm.DB, locationID uuid.UUID, limit, offset int) ([]*types.SampleItem, int64, error)
	LocationIDsWithSamples(ctx context.Context, tx *gorm.DB, locationIDs []uuid.UUID) ([]uuid.UUID, error)
	ExistsByLocationID(ctx context.Context, tx *gorm.DB, locationID uuid.UUID) (bool, error)
	ExistsUnderTypeID(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error)
	Search(ctx context.Context, tx *gorm.DB, query string, limit, offset int) ([]*types.SampleItem, int64, error)
}

type sampleItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSampleItemRepo(db *gorm.DB, baseLog *logger.Logger) SampleItemRepo {
	repoLog := baseLog.With("repo", "SampleItemRepo")
	return &sampleItemRepo{db: db, log: repoLog}
}

func (r *sampleItemRepo) Create(ctx context.Context, tx *gorm.DB, items []*types.SampleItem) ([]*types.SampleItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(items) == 0 {
		return []*types.SampleItem{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *sampleItemRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SampleItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var item types.SampleItem
	if err := transaction.WithContext(ctx).
		Preload("SourceLocation.SourceLocationType").
		Where("id = ?", id).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *sampleItemRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.SampleItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.SampleItem
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

func (r *sampleItemRepo) Save(ctx context.Context, tx *gorm.DB, item *types.SampleItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(item).Error
}

func (r *sampleItemRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.SampleItem{}).Error
}

func (r *sampleItemRepo) ListByLocationID(ctx context.Context, tx *gorm.DB, locationID uuid.UUID, limit, offset int) ([]*types.SampleItem, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var total int64
	if err := transaction.WithContext(ctx).
		Model(&types.SampleItem{}).
		Where("source_location_id = ?", locationID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.SampleItem
	q := transaction.WithContext(ctx).
		Where("source_location_id = ?", locationID).
		Order("name ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// LocationIDsWithSamples reports which of the given locations own samples
// directly, in one round trip.
func (r *sampleItemRepo) LocationIDsWithSamples(ctx context.Context, tx *gorm.DB, locationIDs []uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if len(locationIDs) == 0 {
		return ids, nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.SampleItem{}).
		Distinct("source_location_id").
		Where("source_location_id IN ?", locationIDs).
		Pluck("source_location_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *sampleItemRepo) ExistsByLocationID(ctx context.Context, tx *gorm.DB, locationID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.SampleItem{}).
		Where("source_location_id = ?", locationID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsUnderTypeID reports whether any sample lives in a location of the
// given type, directly or through an occupied space. Used to lock the
// can_store_samples flag on type edits.
func (r *sampleItemRepo) ExistsUnderTypeID(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var direct int64
	if err := transaction.WithContext(ctx).
		Model(&types.SampleItem{}).
		Joins("JOIN location ON location.id = sample_item.source_location_id").
		Where("location.source_location_type_id = ?", typeID).
		Count(&direct).Error; err != nil {
		return false, err
	}
	if direct > 0 {
		return true, nil
	}

	var viaSpace int64
	if err := transaction.WithContext(ctx).
		Model(&types.SampleItem{}).
		Joins("JOIN location_space ON location_space.occupied_by_sample_item_id = sample_item.id").
		Joins("JOIN location ON location.id = location_space.parent_location_id").
		Where("location.source_location_type_id = ?", typeID).
		Count(&viaSpace).Error; err != nil {
		return false, err
	}
	return viaSpace > 0, nil
}

func (r *sampleItemRepo) Search(ctx context.Context, tx *gorm.DB, query string, limit, offset int) ([]*types.SampleItem, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if query == "" {
		return []*types.SampleItem{}, 0, nil
	}
	pattern := "%" + query + "%"
	match := transaction.WithContext(ctx).
		Model(&types.SampleItem{}).
		Where(
			"name ILIKE ? OR catalog_number ILIKE ? OR lot_number ILIKE ? OR description ILIKE ?",
			pattern, pattern, pattern, pattern,
		)

	var total int64
	if err := match.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.SampleItem
	q := match.Session(&gorm.Session{}).
		Preload("SourceLocation.SourceLocationType").
		Order("name ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}
