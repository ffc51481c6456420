package services

import (
	"context"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laureon/slm-backend/internal/data/repos"
	types "github.com/laureon/slm-backend/internal/domain"
	"github.com/laureon/slm-backend/internal/pkg/apperr"
	"github.com/laureon/slm-backend/internal/pkg/logger"
	"github.com/laureon/slm-backend/internal/typegraph"
)

// LocationTypeListItem is one type in the catalog listing: the row itself,
// its allowed parents, and whether anything in the system depends on it.
type LocationTypeListItem struct {
	Type          *types.LocationType `json:"type"`
	ParentTypeIDs []uuid.UUID         `json:"parent_type_ids"`
	InUse         bool                `json:"in_use"`
}

type CreateLocationTypeInput struct {
	Name            string      `json:"name" validate:"required,max=255"`
	CanStoreSamples bool        `json:"can_store_samples"`
	CanHaveSpaces   bool        `json:"can_have_spaces"`
	SpaceRows       *int        `json:"space_rows"`
	SpaceCols       *int        `json:"space_cols"`
	ParentTypeIDs   []uuid.UUID `json:"parent_type_ids"`
}

type UpdateLocationTypeInput struct {
	ID              uuid.UUID   `json:"id" validate:"required"`
	Name            string      `json:"name" validate:"required,max=255"`
	CanStoreSamples bool        `json:"can_store_samples"`
	CanHaveSpaces   bool        `json:"can_have_spaces"`
	SpaceRows       *int        `json:"space_rows"`
	SpaceCols       *int        `json:"space_cols"`
	ParentTypeIDs   []uuid.UUID `json:"parent_type_ids"`
}

// UpdateLocationTypeResult carries the saved row plus the fields that were
// requested but silently kept at their stored values because live data
// depends on them.
type UpdateLocationTypeResult struct {
	Type          *types.LocationType `json:"type"`
	IgnoredFields []string            `json:"ignored_fields,omitempty"`
}

type LocationTypeService interface {
	List(ctx context.Context) ([]*LocationTypeListItem, error)
	Get(ctx context.Context, id uuid.UUID) (*types.LocationType, []uuid.UUID, error)
	Descendants(ctx context.Context, id uuid.UUID) ([]*types.LocationType, error)
	Create(ctx context.Context, input CreateLocationTypeInput) (*types.LocationType, error)
	Update(ctx context.Context, input UpdateLocationTypeInput) (*UpdateLocationTypeResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type locationTypeService struct {
	db        *gorm.DB
	log       *logger.Logger
	validate  *validator.Validate
	typeRepo  repos.LocationTypeRepo
	locRepo   repos.LocationRepo
	spaceRepo repos.LocationSpaceRepo
	smplRepo  repos.SampleItemRepo
}

func NewLocationTypeService(
	db *gorm.DB,
	baseLog *logger.Logger,
	typeRepo repos.LocationTypeRepo,
	locRepo repos.LocationRepo,
	spaceRepo repos.LocationSpaceRepo,
	smplRepo repos.SampleItemRepo,
) LocationTypeService {
	return &locationTypeService{
		db:        db,
		log:       baseLog.With("service", "LocationTypeService"),
		validate:  validator.New(),
		typeRepo:  typeRepo,
		locRepo:   locRepo,
		spaceRepo: spaceRepo,
		smplRepo:  smplRepo,
	}
}

// List returns every type in dependency order (parents before the types that
// nest under them) with in-use flags computed in two batched queries.
func (s *locationTypeService) List(ctx context.Context) ([]*LocationTypeListItem, error) {
	all, err := s.typeRepo.GetAll(ctx, nil)
	if err != nil {
		s.log.Warn("List: load types failed", "error", err)
		return nil, err
	}
	edges, err := s.typeRepo.GetAllParentEdges(ctx, nil)
	if err != nil {
		s.log.Warn("List: load parent edges failed", "error", err)
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(all))
	for _, t := range all {
		ids = append(ids, t.ID)
	}
	withLocations, err := s.locRepo.TypeIDsWithLocations(ctx, nil, ids)
	if err != nil {
		s.log.Warn("List: location usage lookup failed", "error", err)
		return nil, err
	}
	usedAsParent, err := s.typeRepo.UsedAsParentByTypeIDs(ctx, nil, ids)
	if err != nil {
		s.log.Warn("List: parent usage lookup failed", "error", err)
		return nil, err
	}

	sorted := typegraph.TopoSort(all, edges)
	items := make([]*LocationTypeListItem, 0, len(sorted))
	for _, t := range sorted {
		items = append(items, &LocationTypeListItem{
			Type:          t,
			ParentTypeIDs: typegraph.ParentIDs(t.ID, edges),
			InUse:         withLocations[t.ID] || usedAsParent[t.ID],
		})
	}
	return items, nil
}

func (s *locationTypeService) Get(ctx context.Context, id uuid.UUID) (*types.LocationType, []uuid.UUID, error) {
	lt, err := s.typeRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("location type", id.String())
		}
		s.log.Warn("Get: load type failed", "error", err, "type_id", id)
		return nil, nil, err
	}
	edges, err := s.typeRepo.GetParentEdgesByTypeIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		s.log.Warn("Get: load parent edges failed", "error", err, "type_id", id)
		return nil, nil, err
	}
	return lt, typegraph.ParentIDs(id, edges), nil
}

// Descendants returns every type that can nest under the given one, directly
// or transitively, sorted by name.
func (s *locationTypeService) Descendants(ctx context.Context, id uuid.UUID) ([]*types.LocationType, error) {
	if _, _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	edges, err := s.typeRepo.GetAllParentEdges(ctx, nil)
	if err != nil {
		s.log.Warn("Descendants: load parent edges failed", "error", err, "type_id", id)
		return nil, err
	}

	descendantIDs := typegraph.Descendants(id, edges)
	ids := make([]uuid.UUID, 0, len(descendantIDs))
	for did := range descendantIDs {
		ids = append(ids, did)
	}
	descendants, err := s.typeRepo.GetByIDs(ctx, nil, ids)
	if err != nil {
		s.log.Warn("Descendants: load types failed", "error", err, "type_id", id)
		return nil, err
	}
	sort.Slice(descendants, func(i, j int) bool { return descendants[i].Name < descendants[j].Name })
	return descendants, nil
}

func (s *locationTypeService) Create(ctx context.Context, input CreateLocationTypeInput) (*types.LocationType, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperr.Validation("", err.Error())
	}
	if err := checkGridDims(input.CanHaveSpaces, input.SpaceRows, input.SpaceCols); err != nil {
		return nil, err
	}
	if !input.CanHaveSpaces {
		input.SpaceRows = nil
		input.SpaceCols = nil
	}

	parentIDs := dedupUUIDs(input.ParentTypeIDs)

	lt := &types.LocationType{
		ID:              uuid.New(),
		Name:            input.Name,
		CanStoreSamples: input.CanStoreSamples,
		CanHaveSpaces:   input.CanHaveSpaces,
		SpaceRows:       input.SpaceRows,
		SpaceCols:       input.SpaceCols,
	}

	err := runWrite(s.db, func(tx *gorm.DB) error {
		taken, err := s.typeRepo.NameTaken(ctx, tx, input.Name, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Validationf("name", "a location type named %q already exists", input.Name)
		}

		parents, err := s.typeRepo.GetByIDs(ctx, tx, parentIDs)
		if err != nil {
			return err
		}
		if len(parents) != len(parentIDs) {
			return apperr.Validation("parents", "one or more parent types do not exist")
		}

		if err := s.typeRepo.Create(ctx, tx, lt); err != nil {
			return err
		}
		return s.typeRepo.ReplaceParentEdges(ctx, tx, lt.ID, parentIDs)
	})
	if err != nil {
		if !apperr.IsValidation(err) {
			s.log.Warn("Create: write failed", "error", err, "name", input.Name)
		}
		return nil, err
	}
	s.log.Info("location type created", "type_id", lt.ID, "name", lt.Name)
	return lt, nil
}

// Update edits a type while protecting live data. Fields that stored rows
// already depend on are kept at their current values and reported back in
// IgnoredFields instead of failing the whole edit:
//   - grid shape (can_have_spaces, space_rows, space_cols) while any location
//     of the type has children, occupied spaces, or samples
//   - can_store_samples while samples are stored under the type
//   - allowed-parent edges currently realized by placements
func (s *locationTypeService) Update(ctx context.Context, input UpdateLocationTypeInput) (*UpdateLocationTypeResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperr.Validation("", err.Error())
	}

	var result *UpdateLocationTypeResult
	err := runWrite(s.db, func(tx *gorm.DB) error {
		lt, err := s.typeRepo.GetByID(ctx, tx, input.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("location type", input.ID.String())
			}
			return err
		}

		taken, err := s.typeRepo.NameTaken(ctx, tx, input.Name, input.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Validationf("name", "a location type named %q already exists", input.Name)
		}

		var ignored []string

		locked, err := s.gridFieldsLocked(ctx, tx, input.ID)
		if err != nil {
			return err
		}
		canHaveSpaces, rows, cols := input.CanHaveSpaces, input.SpaceRows, input.SpaceCols
		if locked && gridChanged(lt, canHaveSpaces, rows, cols) {
			canHaveSpaces, rows, cols = lt.CanHaveSpaces, lt.SpaceRows, lt.SpaceCols
			ignored = append(ignored, "can_have_spaces", "space_rows", "space_cols")
		}
		if err := checkGridDims(canHaveSpaces, rows, cols); err != nil {
			return err
		}
		if !canHaveSpaces {
			rows, cols = nil, nil
		}

		canStore := input.CanStoreSamples
		if canStore != lt.CanStoreSamples {
			hasSamples, err := s.smplRepo.ExistsUnderTypeID(ctx, tx, input.ID)
			if err != nil {
				return err
			}
			if hasSamples {
				canStore = lt.CanStoreSamples
				ignored = append(ignored, "can_store_samples")
			}
		}

		parentIDs, parentsRestored, err := s.mergeLockedParents(ctx, tx, input.ID, input.ParentTypeIDs)
		if err != nil {
			return err
		}
		if parentsRestored {
			ignored = append(ignored, "parents")
		}

		edges, err := s.typeRepo.GetAllParentEdges(ctx, tx)
		if err != nil {
			return err
		}
		descendants := typegraph.Descendants(input.ID, edges)
		for _, pid := range parentIDs {
			if pid == input.ID {
				return apperr.Validation("parents", "a location type cannot be its own parent")
			}
			if descendants[pid] {
				return apperr.Validation("parents", "the chosen parents would create a cycle in the nesting graph")
			}
		}
		parents, err := s.typeRepo.GetByIDs(ctx, tx, parentIDs)
		if err != nil {
			return err
		}
		if len(parents) != len(parentIDs) {
			return apperr.Validation("parents", "one or more parent types do not exist")
		}

		lt.Name = input.Name
		lt.CanStoreSamples = canStore
		lt.CanHaveSpaces = canHaveSpaces
		lt.SpaceRows = rows
		lt.SpaceCols = cols

		if err := s.typeRepo.Save(ctx, tx, lt); err != nil {
			return err
		}
		if err := s.typeRepo.ReplaceParentEdges(ctx, tx, input.ID, parentIDs); err != nil {
			return err
		}

		result = &UpdateLocationTypeResult{Type: lt, IgnoredFields: ignored}
		return nil
	})
	if err != nil {
		if !apperr.IsValidation(err) && !apperr.IsNotFound(err) {
			s.log.Warn("Update: write failed", "error", err, "type_id", input.ID)
		}
		return nil, err
	}
	if len(result.IgnoredFields) > 0 {
		s.log.Info("location type updated with locked fields", "type_id", input.ID, "ignored", result.IgnoredFields)
	}
	return result, nil
}

func (s *locationTypeService) Delete(ctx context.Context, id uuid.UUID) error {
	err := runWrite(s.db, func(tx *gorm.DB) error {
		lt, err := s.typeRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("location type", id.String())
			}
			return err
		}

		hasLocations, err := s.locRepo.ExistsByTypeID(ctx, tx, id)
		if err != nil {
			return err
		}
		if hasLocations {
			return apperr.IntegrityBlocked("location type", lt.Name, "locations of this type still exist")
		}
		usedAsParent, err := s.typeRepo.UsedAsParent(ctx, tx, id)
		if err != nil {
			return err
		}
		if usedAsParent {
			return apperr.IntegrityBlocked("location type", lt.Name, "other types still list it as an allowed parent")
		}

		if err := s.typeRepo.DeleteEdgesByTypeID(ctx, tx, id); err != nil {
			return err
		}
		return s.typeRepo.DeleteByID(ctx, tx, id)
	})
	if err != nil {
		if !apperr.IsIntegrityBlocked(err) && !apperr.IsNotFound(err) {
			s.log.Warn("Delete: write failed", "error", err, "type_id", id)
		}
		return err
	}
	s.log.Info("location type deleted", "type_id", id)
	return nil
}

// gridFieldsLocked reports whether any location of the type carries content
// that pins its grid shape: child locations, occupied spaces, or samples.
func (s *locationTypeService) gridFieldsLocked(ctx context.Context, tx *gorm.DB, typeID uuid.UUID) (bool, error) {
	hasChildren, err := s.locRepo.ChildExistsUnderTypeID(ctx, tx, typeID)
	if err != nil {
		return false, err
	}
	if hasChildren {
		return true, nil
	}
	hasOccupied, err := s.spaceRepo.OccupiedExistsUnderTypeID(ctx, tx, typeID)
	if err != nil {
		return false, err
	}
	if hasOccupied {
		return true, nil
	}
	return s.smplRepo.ExistsUnderTypeID(ctx, tx, typeID)
}

// mergeLockedParents unions the requested parent set with the edges that
// existing placements realize; dropping those would orphan live locations, so
// they are restored instead of rejected.
func (s *locationTypeService) mergeLockedParents(ctx context.Context, tx *gorm.DB, typeID uuid.UUID, requested []uuid.UUID) ([]uuid.UUID, bool, error) {
	direct, err := s.locRepo.DirectParentTypeIDs(ctx, tx, typeID)
	if err != nil {
		return nil, false, err
	}
	viaSpace, err := s.locRepo.SpaceParentTypeIDs(ctx, tx, typeID)
	if err != nil {
		return nil, false, err
	}

	merged := dedupUUIDs(requested)
	present := make(map[uuid.UUID]bool, len(merged))
	for _, id := range merged {
		present[id] = true
	}

	restored := false
	for _, id := range append(direct, viaSpace...) {
		if !present[id] {
			merged = append(merged, id)
			present[id] = true
			restored = true
		}
	}
	return merged, restored, nil
}

func gridChanged(lt *types.LocationType, canHaveSpaces bool, rows, cols *int) bool {
	return canHaveSpaces != lt.CanHaveSpaces ||
		!intPtrEqual(rows, lt.SpaceRows) ||
		!intPtrEqual(cols, lt.SpaceCols)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func dedupUUIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	result := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
