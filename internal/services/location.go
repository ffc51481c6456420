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

// LocationNode is one location in the containment tree. Children covers both
// kinds of placement: directly parented locations and locations occupying one
// of this location's spaces.
type LocationNode struct {
	Location   *types.Location `json:"location"`
	SpaceLabel string          `json:"space_label,omitempty"`
	InUse      bool            `json:"in_use"`
	Children   []*LocationNode `json:"children,omitempty"`
}

// PathSegment is one hop of a location's ancestry, root first. SpaceLabel is
// set when the segment sits in a space of the previous one, e.g. "B7".
type PathSegment struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	SpaceLabel string    `json:"space_label,omitempty"`
}

// LocationDetail is the full view of one location: ancestry, contents, and
// the materialized grid for grid-typed locations.
type LocationDetail struct {
	Location    *types.Location     `json:"location"`
	Path        []PathSegment       `json:"path"`
	InUse       bool                `json:"in_use"`
	Grid        [][]GridCell        `json:"grid,omitempty"`
	Samples     []*types.SampleItem `json:"samples,omitempty"`
	SampleTotal int64               `json:"sample_total"`
}

// SpaceRef addresses one slot of a grid location by 1-based coordinates.
type SpaceRef struct {
	Row int `json:"row" validate:"required,min=1"`
	Col int `json:"col" validate:"required,min=1"`
}

type CreateLocationInput struct {
	Name   string    `json:"name" validate:"required,max=255"`
	TypeID uuid.UUID `json:"type_id" validate:"required"`

	// Exactly one placement for non-root types, neither for root types.
	ParentID        *uuid.UUID `json:"parent_id"`
	SpaceLocationID *uuid.UUID `json:"space_location_id"`
	Space           *SpaceRef  `json:"space"`
}

type UpdateLocationInput struct {
	ID   uuid.UUID `json:"id" validate:"required"`
	Name string    `json:"name" validate:"required,max=255"`
}

type LocationService interface {
	List(ctx context.Context) ([]*LocationNode, error)
	Get(ctx context.Context, id uuid.UUID, sampleLimit, sampleOffset int) (*LocationDetail, error)
	Path(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]PathSegment, error)
	Create(ctx context.Context, input CreateLocationInput) (*types.Location, error)
	Update(ctx context.Context, input UpdateLocationInput) (*types.Location, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

const defaultSamplePageSize = 50

type locationService struct {
	db             *gorm.DB
	log            *logger.Logger
	validate       *validator.Validate
	typeRepo       repos.LocationTypeRepo
	locRepo        repos.LocationRepo
	spaceRepo      repos.LocationSpaceRepo
	smplRepo       repos.SampleItemRepo
	samplePageSize int
}

func NewLocationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	typeRepo repos.LocationTypeRepo,
	locRepo repos.LocationRepo,
	spaceRepo repos.LocationSpaceRepo,
	smplRepo repos.SampleItemRepo,
	samplePageSize int,
) LocationService {
	if samplePageSize <= 0 {
		samplePageSize = defaultSamplePageSize
	}
	return &locationService{
		db:             db,
		log:            baseLog.With("service", "LocationService"),
		validate:       validator.New(),
		typeRepo:       typeRepo,
		locRepo:        locRepo,
		spaceRepo:      spaceRepo,
		smplRepo:       smplRepo,
		samplePageSize: samplePageSize,
	}
}

// List builds the whole containment forest in a fixed number of queries:
// all locations, all spaces, and the batched in-use lookups.
func (s *locationService) List(ctx context.Context) ([]*LocationNode, error) {
	all, err := s.locRepo.GetAll(ctx, nil)
	if err != nil {
		s.log.Warn("List: load locations failed", "error", err)
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(all))
	for _, loc := range all {
		ids = append(ids, loc.ID)
	}
	spaces, err := s.spaceRepo.GetByParentLocationIDs(ctx, nil, ids)
	if err != nil {
		s.log.Warn("List: load spaces failed", "error", err)
		return nil, err
	}
	withChildren, err := s.locRepo.ParentIDsWithChildren(ctx, nil, ids)
	if err != nil {
		s.log.Warn("List: children lookup failed", "error", err)
		return nil, err
	}
	withSamples, err := s.smplRepo.LocationIDsWithSamples(ctx, nil, ids)
	if err != nil {
		s.log.Warn("List: sample lookup failed", "error", err)
		return nil, err
	}

	inUse := make(map[uuid.UUID]bool, len(withChildren)+len(withSamples))
	for _, id := range withChildren {
		inUse[id] = true
	}
	for _, id := range withSamples {
		inUse[id] = true
	}

	nodes := make(map[uuid.UUID]*LocationNode, len(all))
	for _, loc := range all {
		nodes[loc.ID] = &LocationNode{Location: loc, InUse: inUse[loc.ID]}
	}

	// Space occupancy both attaches children and marks parents in use.
	attached := make(map[uuid.UUID]bool, len(all))
	for _, space := range spaces {
		parent, ok := nodes[space.ParentLocationID]
		if !ok {
			continue
		}
		if !space.Empty() {
			parent.InUse = true
		}
		if space.OccupiedByLocationID == nil {
			continue
		}
		if child, ok := nodes[*space.OccupiedByLocationID]; ok {
			child.SpaceLabel = SpaceLabel(space.Row, space.Col)
			parent.Children = append(parent.Children, child)
			attached[child.Location.ID] = true
		}
	}
	for _, loc := range all {
		if loc.ParentID == nil {
			continue
		}
		if parent, ok := nodes[*loc.ParentID]; ok {
			parent.Children = append(parent.Children, nodes[loc.ID])
			attached[loc.ID] = true
		}
	}

	var roots []*LocationNode
	for _, loc := range all {
		if !attached[loc.ID] {
			roots = append(roots, nodes[loc.ID])
		}
		sortNodesByName(nodes[loc.ID].Children)
	}
	return roots, nil
}

func sortNodesByName(nodes []*LocationNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Location.Name < nodes[j].Location.Name
	})
}

func (s *locationService) Get(ctx context.Context, id uuid.UUID, sampleLimit, sampleOffset int) (*LocationDetail, error) {
	loc, err := s.locRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("location", id.String())
		}
		s.log.Warn("Get: load location failed", "error", err, "location_id", id)
		return nil, err
	}

	path, err := s.Path(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	detail := &LocationDetail{Location: loc, Path: path}

	locType := loc.SourceLocationType
	if locType != nil && locType.CanHaveSpaces && locType.SpaceRows != nil && locType.SpaceCols != nil {
		grid, occupied, err := s.buildGridFor(ctx, loc, *locType.SpaceRows, *locType.SpaceCols)
		if err != nil {
			return nil, err
		}
		detail.Grid = grid
		detail.InUse = occupied
		return detail, nil
	}

	if sampleLimit <= 0 {
		sampleLimit = s.samplePageSize
	}
	samples, total, err := s.smplRepo.ListByLocationID(ctx, nil, id, sampleLimit, sampleOffset)
	if err != nil {
		s.log.Warn("Get: load samples failed", "error", err, "location_id", id)
		return nil, err
	}
	children, err := s.locRepo.ParentIDsWithChildren(ctx, nil, []uuid.UUID{id})
	if err != nil {
		s.log.Warn("Get: children lookup failed", "error", err, "location_id", id)
		return nil, err
	}
	detail.Samples = samples
	detail.SampleTotal = total
	detail.InUse = total > 0 || len(children) > 0
	return detail, nil
}

// Path resolves the ancestry of a location, root first, following whichever
// placement each hop has: a direct parent link or an occupied space. A seen
// set guards the walk against corrupt cyclic placement data.
func (s *locationService) Path(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]PathSegment, error) {
	var reversed []PathSegment
	seen := make(map[uuid.UUID]bool)

	current, err := s.locRepo.GetByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("location", id.String())
		}
		return nil, err
	}

	label := ""
	for current != nil && !seen[current.ID] {
		seen[current.ID] = true
		reversed = append(reversed, PathSegment{ID: current.ID, Name: current.Name, SpaceLabel: label})

		var parentID uuid.UUID
		label = ""
		if current.ParentID != nil {
			parentID = *current.ParentID
		} else {
			space, err := s.spaceRepo.GetByOccupantLocationID(ctx, tx, current.ID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					break
				}
				return nil, err
			}
			parentID = space.ParentLocationID
			label = SpaceLabel(space.Row, space.Col)
		}

		current, err = s.locRepo.GetByID(ctx, tx, parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, err
		}
	}

	path := make([]PathSegment, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path, nil
}

func (s *locationService) Create(ctx context.Context, input CreateLocationInput) (*types.Location, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperr.Validation("", err.Error())
	}
	if input.SpaceLocationID != nil && input.Space == nil {
		return nil, apperr.Validation("space", "space coordinates are required when placing into a space")
	}
	if input.SpaceLocationID == nil && input.Space != nil {
		return nil, apperr.Validation("space", "a space location is required when space coordinates are given")
	}
	if input.ParentID != nil && input.SpaceLocationID != nil {
		return nil, apperr.Validation("parent", "choose either a direct parent or a space, not both")
	}

	loc := &types.Location{
		ID:                   uuid.New(),
		Name:                 input.Name,
		SourceLocationTypeID: input.TypeID,
	}

	err := runWrite(s.db, func(tx *gorm.DB) error {
		taken, err := s.locRepo.NameTaken(ctx, tx, input.Name, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Validationf("name", "a location named %q already exists", input.Name)
		}

		locType, err := s.typeRepo.GetByID(ctx, tx, input.TypeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validation("type_id", "the chosen location type does not exist")
			}
			return err
		}
		edges, err := s.typeRepo.GetAllParentEdges(ctx, tx)
		if err != nil {
			return err
		}

		viaSpace := input.SpaceLocationID != nil
		if input.ParentID == nil && !viaSpace {
			if !typegraph.IsRoot(locType.ID, edges) {
				return apperr.Validationf("parent", "location type %q must be placed inside a parent location", locType.Name)
			}
			loc.ParentID = nil
			return s.locRepo.Create(ctx, tx, loc)
		}

		if viaSpace {
			parent, parentType, err := s.loadPlacementTarget(ctx, tx, *input.SpaceLocationID)
			if err != nil {
				return err
			}
			if err := checkLocationNesting(locType, parentType, true, edges); err != nil {
				return err
			}
			if err := checkSpaceBounds(parentType, input.Space.Row, input.Space.Col); err != nil {
				return err
			}

			space, err := s.spaceRepo.GetOrCreate(ctx, tx, parent.ID, input.Space.Row, input.Space.Col)
			if err != nil {
				return err
			}
			if !space.Empty() {
				return apperr.Validationf("space", "space %s of %q is already occupied",
					SpaceLabel(space.Row, space.Col), parent.Name)
			}

			if err := s.locRepo.Create(ctx, tx, loc); err != nil {
				return err
			}
			// Conditional claim so a concurrent writer that won the space
			// since the Empty check fails this transaction instead of being
			// silently overwritten.
			claimed, err := s.spaceRepo.ClaimWithLocation(ctx, tx, space.ID, loc.ID)
			if err != nil {
				return err
			}
			if !claimed {
				return apperr.Validationf("space", "space %s of %q is already occupied",
					SpaceLabel(space.Row, space.Col), parent.Name)
			}
			return nil
		}

		_, parentType, err := s.loadPlacementTarget(ctx, tx, *input.ParentID)
		if err != nil {
			return err
		}
		if err := checkLocationNesting(locType, parentType, false, edges); err != nil {
			return err
		}
		loc.ParentID = input.ParentID
		return s.locRepo.Create(ctx, tx, loc)
	})
	if err != nil {
		if !apperr.IsValidation(err) {
			s.log.Warn("Create: write failed", "error", err, "name", input.Name)
		}
		return nil, err
	}
	s.log.Info("location created", "location_id", loc.ID, "name", loc.Name)
	return loc, nil
}

// Update renames a location. Type and placement are fixed at creation; moving
// content is modeled as delete-and-recreate so the integrity rules always see
// a full placement.
func (s *locationService) Update(ctx context.Context, input UpdateLocationInput) (*types.Location, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperr.Validation("", err.Error())
	}

	var loc *types.Location
	err := runWrite(s.db, func(tx *gorm.DB) error {
		var err error
		loc, err = s.locRepo.GetByID(ctx, tx, input.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("location", input.ID.String())
			}
			return err
		}

		taken, err := s.locRepo.NameTaken(ctx, tx, input.Name, input.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Validationf("name", "a location named %q already exists", input.Name)
		}

		loc.Name = input.Name
		return s.locRepo.Save(ctx, tx, loc)
	})
	if err != nil {
		if !apperr.IsValidation(err) && !apperr.IsNotFound(err) {
			s.log.Warn("Update: write failed", "error", err, "location_id", input.ID)
		}
		return nil, err
	}
	return loc, nil
}

// Delete removes an empty location and cleans up the space rows it leaves
// behind: the space it occupied (if any) and its own now-empty spaces.
func (s *locationService) Delete(ctx context.Context, id uuid.UUID) error {
	err := runWrite(s.db, func(tx *gorm.DB) error {
		loc, err := s.locRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("location", id.String())
			}
			return err
		}

		withChildren, err := s.locRepo.ParentIDsWithChildren(ctx, tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(withChildren) > 0 {
			return apperr.IntegrityBlocked("location", loc.Name, "it still contains other locations")
		}
		occupied, err := s.spaceRepo.OccupiedParentIDs(ctx, tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(occupied) > 0 {
			return apperr.IntegrityBlocked("location", loc.Name, "its spaces are still occupied")
		}
		hasSamples, err := s.smplRepo.ExistsByLocationID(ctx, tx, id)
		if err != nil {
			return err
		}
		if hasSamples {
			return apperr.IntegrityBlocked("location", loc.Name, "it still contains samples")
		}

		space, err := s.spaceRepo.GetByOccupantLocationID(ctx, tx, id)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			space.OccupiedByLocationID = nil
			if err := s.spaceRepo.Save(ctx, tx, space); err != nil {
				return err
			}
			if err := s.spaceRepo.DeleteIfEmpty(ctx, tx, space.ID); err != nil {
				return err
			}
		}

		if err := s.spaceRepo.DeleteEmptyByParentLocationID(ctx, tx, id); err != nil {
			return err
		}
		return s.locRepo.DeleteByID(ctx, tx, id)
	})
	if err != nil {
		if !apperr.IsIntegrityBlocked(err) && !apperr.IsNotFound(err) {
			s.log.Warn("Delete: write failed", "error", err, "location_id", id)
		}
		return err
	}
	s.log.Info("location deleted", "location_id", id)
	return nil
}

// buildGridFor materializes the grid of one location and reports whether any
// cell is occupied.
func (s *locationService) buildGridFor(ctx context.Context, loc *types.Location, rows, cols int) ([][]GridCell, bool, error) {
	spaces, err := s.spaceRepo.GetByParentLocationIDs(ctx, nil, []uuid.UUID{loc.ID})
	if err != nil {
		s.log.Warn("buildGridFor: load spaces failed", "error", err, "location_id", loc.ID)
		return nil, false, err
	}

	var locIDs, sampleIDs []uuid.UUID
	occupied := false
	for _, space := range spaces {
		if space.OccupiedByLocationID != nil {
			locIDs = append(locIDs, *space.OccupiedByLocationID)
		}
		if space.OccupiedBySampleItemID != nil {
			sampleIDs = append(sampleIDs, *space.OccupiedBySampleItemID)
		}
		if !space.Empty() {
			occupied = true
		}
	}

	locOccupants, err := s.locRepo.GetByIDs(ctx, nil, locIDs)
	if err != nil {
		return nil, false, err
	}
	locationNames := make(map[uuid.UUID]string, len(locOccupants))
	for _, o := range locOccupants {
		locationNames[o.ID] = o.Name
	}

	sampleOccupants, err := s.smplRepo.GetByIDs(ctx, nil, sampleIDs)
	if err != nil {
		return nil, false, err
	}
	sampleNames := make(map[uuid.UUID]string, len(sampleOccupants))
	for _, o := range sampleOccupants {
		sampleNames[o.ID] = o.Name
	}

	return BuildGrid(rows, cols, spaces, locationNames, sampleNames), occupied, nil
}

// loadPlacementTarget loads a parent location together with its type.
func (s *locationService) loadPlacementTarget(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Location, *types.LocationType, error) {
	parent, err := s.locRepo.GetByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.Validation("parent", "the chosen parent location does not exist")
		}
		return nil, nil, err
	}
	parentType := parent.SourceLocationType
	if parentType == nil {
		parentType, err = s.typeRepo.GetByID(ctx, tx, parent.SourceLocationTypeID)
		if err != nil {
			return nil, nil, err
		}
	}
	return parent, parentType, nil
}
