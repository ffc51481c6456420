package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/laureon/slm-backend/internal/data/repos"
	types "github.com/laureon/slm-backend/internal/domain"
	"github.com/laureon/slm-backend/internal/pkg/apperr"
	"github.com/laureon/slm-backend/internal/pkg/logger"
)

// SampleDetail is the full view of one sample: the row plus where it lives.
// Path leads to the holding location; SpaceLabel is set when the sample sits
// in a grid space of that location.
type SampleDetail struct {
	Sample     *types.SampleItem `json:"sample"`
	Path       []PathSegment     `json:"path,omitempty"`
	SpaceLabel string            `json:"space_label,omitempty"`
}

type CreateSampleInput struct {
	Name          string         `json:"name" validate:"required,max=255"`
	CatalogNumber string         `json:"catalog_number" validate:"max=255"`
	LotNumber     string         `json:"lot_number" validate:"max=255"`
	Description   string         `json:"description"`
	Metadata      datatypes.JSON `json:"metadata"`

	// Exactly one placement: a non-grid storable location, or a space of a
	// grid storable location.
	LocationID      *uuid.UUID `json:"location_id"`
	SpaceLocationID *uuid.UUID `json:"space_location_id"`
	Space           *SpaceRef  `json:"space"`
}

type UpdateSampleInput struct {
	ID            uuid.UUID      `json:"id" validate:"required"`
	Name          string         `json:"name" validate:"required,max=255"`
	CatalogNumber string         `json:"catalog_number" validate:"max=255"`
	LotNumber     string         `json:"lot_number" validate:"max=255"`
	Description   string         `json:"description"`
	Metadata      datatypes.JSON `json:"metadata"`
}

// SampleTemplate is the shared field set applied to every sample of a bulk
// creation. Names are suffixed with a running number when Count > 1.
type SampleTemplate struct {
	Name          string         `json:"name" validate:"required,max=255"`
	CatalogNumber string         `json:"catalog_number" validate:"max=255"`
	LotNumber     string         `json:"lot_number" validate:"max=255"`
	Description   string         `json:"description"`
	Metadata      datatypes.JSON `json:"metadata"`
}

// BulkCreateSamplesInput creates many samples in one transaction. Rows come
// from either a template repeated Count times or spreadsheet paste data,
// never both. For grid locations Targets picks the space per row, in order,
// and must match the row count exactly; for non-grid locations Targets must
// be empty.
type BulkCreateSamplesInput struct {
	LocationID uuid.UUID `json:"location_id" validate:"required"`

	Template  *SampleTemplate `json:"template"`
	Count     int             `json:"count"`
	PasteData string          `json:"paste_data"`

	Targets []SpaceRef `json:"targets"`
}

type SampleSearchResult struct {
	Items []*types.SampleItem `json:"items"`
	Total int64               `json:"total"`
}

type SampleService interface {
	Get(ctx context.Context, id uuid.UUID) (*SampleDetail, error)
	Search(ctx context.Context, query string, limit, offset int) (*SampleSearchResult, error)
	Create(ctx context.Context, input CreateSampleInput) (*types.SampleItem, error)
	Update(ctx context.Context, input UpdateSampleInput) (*types.SampleItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	BulkCreate(ctx context.Context, input BulkCreateSamplesInput) ([]*types.SampleItem, error)
	BulkDelete(ctx context.Context, ids []uuid.UUID) error
}

const defaultSearchPageSize = 25

type sampleService struct {
	db             *gorm.DB
	log            *logger.Logger
	validate       *validator.Validate
	typeRepo       repos.LocationTypeRepo
	locRepo        repos.LocationRepo
	spaceRepo      repos.LocationSpaceRepo
	smplRepo       repos.SampleItemRepo
	locSvc         LocationService
	searchPageSize int
}

func NewSampleService(
	db *gorm.DB,
	baseLog *logger.Logger,
	typeRepo repos.LocationTypeRepo,
	locRepo repos.LocationRepo,
	spaceRepo repos.LocationSpaceRepo,
	smplRepo repos.SampleItemRepo,
	locSvc LocationService,
	searchPageSize int,
) SampleService {
	if searchPageSize <= 0 {
		searchPageSize = defaultSearchPageSize
	}
	return &sampleService{
		db:             db,
		log:            baseLog.With("service", "SampleService"),
		validate:       validator.New(),
		typeRepo:       typeRepo,
		locRepo:        locRepo,
		spaceRepo:      spaceRepo,
		smplRepo:       smplRepo,
		locSvc:         locSvc,
		searchPageSize: searchPageSize,
	}
}

func (s *sampleService) Get(ctx context.Context, id uuid.UUID) (*SampleDetail, error) {
	sample, err := s.smplRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("sample", id.String())
		}
		s.log.Warn("Get: load sample failed", "error", err, "sample_id", id)
		return nil, err
	}

	detail := &SampleDetail{Sample: sample}
	holdingID := sample.SourceLocationID
	if holdingID == nil {
		spaces, err := s.spaceRepo.GetByOccupantSampleIDs(ctx, nil, []uuid.UUID{id})
		if err != nil {
			s.log.Warn("Get: load holding space failed", "error", err, "sample_id", id)
			return nil, err
		}
		if len(spaces) > 0 {
			holdingID = &spaces[0].ParentLocationID
			detail.SpaceLabel = SpaceLabel(spaces[0].Row, spaces[0].Col)
		}
	}
	if holdingID != nil {
		path, err := s.locSvc.Path(ctx, nil, *holdingID)
		if err != nil {
			return nil, err
		}
		detail.Path = path
	}
	return detail, nil
}

func (s *sampleService) Search(ctx context.Context, query string, limit, offset int) (*SampleSearchResult, error) {
	if limit <= 0 {
		limit = s.searchPageSize
	}
	items, total, err := s.smplRepo.Search(ctx, nil, query, limit, offset)
	if err != nil {
		s.log.Warn("Search: query failed", "error", err, "query", query)
		return nil, err
	}
	return &SampleSearchResult{Items: items, Total: total}, nil
}

func (s *sampleService) Create(ctx context.Context, input CreateSampleInput) (*types.SampleItem, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperr.Validation("", err.Error())
	}

	bulk := BulkCreateSamplesInput{
		Template: &SampleTemplate{
			Name:          input.Name,
			CatalogNumber: input.CatalogNumber,
			LotNumber:     input.LotNumber,
			Description:   input.Description,
			Metadata:      input.Metadata,
		},
		Count: 1,
	}
	switch {
	case input.LocationID != nil && input.SpaceLocationID == nil && input.Space == nil:
		bulk.LocationID = *input.LocationID
	case input.LocationID == nil && input.SpaceLocationID != nil && input.Space != nil:
		bulk.LocationID = *input.SpaceLocationID
		bulk.Targets = []SpaceRef{*input.Space}
	default:
		return nil, apperr.Validation("location", "choose exactly one storage point: a location or a space within one")
	}

	created, err := s.BulkCreate(ctx, bulk)
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *sampleService) Update(ctx context.Context, input UpdateSampleInput) (*types.SampleItem, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperr.Validation("", err.Error())
	}

	var sample *types.SampleItem
	err := runWrite(s.db, func(tx *gorm.DB) error {
		var err error
		sample, err = s.smplRepo.GetByID(ctx, tx, input.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("sample", input.ID.String())
			}
			return err
		}

		sample.Name = input.Name
		sample.CatalogNumber = input.CatalogNumber
		sample.LotNumber = input.LotNumber
		sample.Description = input.Description
		sample.Metadata = input.Metadata
		return s.smplRepo.Save(ctx, tx, sample)
	})
	if err != nil {
		if !apperr.IsValidation(err) && !apperr.IsNotFound(err) {
			s.log.Warn("Update: write failed", "error", err, "sample_id", input.ID)
		}
		return nil, err
	}
	return sample, nil
}

func (s *sampleService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.BulkDelete(ctx, []uuid.UUID{id})
}

// BulkCreate writes every sample of the batch or none. The row/target count
// check runs before any write so a mismatched paste leaves no partial batch
// behind.
func (s *sampleService) BulkCreate(ctx context.Context, input BulkCreateSamplesInput) ([]*types.SampleItem, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperr.Validation("", err.Error())
	}

	rows, err := s.resolveRows(input)
	if err != nil {
		return nil, err
	}

	targets := input.Targets
	if err := checkTargetDuplicates(targets); err != nil {
		return nil, err
	}

	var created []*types.SampleItem
	err = runWrite(s.db, func(tx *gorm.DB) error {
		created = nil

		loc, err := s.locRepo.GetByID(ctx, tx, input.LocationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validation("location", "the chosen location does not exist")
			}
			return err
		}
		locType := loc.SourceLocationType
		if locType == nil {
			locType, err = s.typeRepo.GetByID(ctx, tx, loc.SourceLocationTypeID)
			if err != nil {
				return err
			}
		}

		viaSpace := len(targets) > 0
		if locType.CanHaveSpaces && !viaSpace {
			return apperr.Validation("targets", "the chosen location is a grid container; pick the target spaces")
		}
		if err := checkSampleTarget(locType, viaSpace); err != nil {
			return err
		}

		if viaSpace {
			if len(rows) != len(targets) {
				return apperr.Validationf("targets", "cannot place %d samples into %d spaces", len(rows), len(targets))
			}
			for _, target := range targets {
				if err := checkSpaceBounds(locType, target.Row, target.Col); err != nil {
					return err
				}
			}
		}

		items := make([]*types.SampleItem, 0, len(rows))
		for _, row := range rows {
			item := &types.SampleItem{
				ID:            uuid.New(),
				Name:          row.Name,
				CatalogNumber: row.CatalogNumber,
				LotNumber:     row.LotNumber,
				Description:   row.Description,
				Metadata:      row.Metadata,
			}
			if !viaSpace {
				item.SourceLocationID = &loc.ID
			}
			items = append(items, item)
		}
		if _, err := s.smplRepo.Create(ctx, tx, items); err != nil {
			return err
		}

		if viaSpace {
			for i, target := range targets {
				space, err := s.spaceRepo.GetOrCreate(ctx, tx, loc.ID, target.Row, target.Col)
				if err != nil {
					return err
				}
				claimed, err := s.spaceRepo.ClaimWithSample(ctx, tx, space.ID, items[i].ID)
				if err != nil {
					return err
				}
				if !claimed {
					return apperr.Validationf("targets", "space %s of %q is already occupied",
						SpaceLabel(space.Row, space.Col), loc.Name)
				}
			}
		}

		created = items
		return nil
	})
	if err != nil {
		if !apperr.IsValidation(err) {
			s.log.Warn("BulkCreate: write failed", "error", err, "location_id", input.LocationID)
		}
		return nil, err
	}
	s.log.Info("samples created", "count", len(created), "location_id", input.LocationID)
	return created, nil
}

// BulkDelete removes the samples and runs cascade cleanup on the spaces they
// occupied: the occupant ref is nulled and the space row dropped once empty.
func (s *sampleService) BulkDelete(ctx context.Context, ids []uuid.UUID) error {
	ids = dedupUUIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	err := runWrite(s.db, func(tx *gorm.DB) error {
		samples, err := s.smplRepo.GetByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		if len(samples) != len(ids) {
			return apperr.NotFound("sample", fmt.Sprintf("%d of %d requested", len(ids)-len(samples), len(ids)))
		}

		spaces, err := s.spaceRepo.GetByOccupantSampleIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, space := range spaces {
			space.OccupiedBySampleItemID = nil
			if err := s.spaceRepo.Save(ctx, tx, space); err != nil {
				return err
			}
			if err := s.spaceRepo.DeleteIfEmpty(ctx, tx, space.ID); err != nil {
				return err
			}
		}
		return s.smplRepo.DeleteByIDs(ctx, tx, ids)
	})
	if err != nil {
		if !apperr.IsNotFound(err) {
			s.log.Warn("BulkDelete: write failed", "error", err, "count", len(ids))
		}
		return err
	}
	s.log.Info("samples deleted", "count", len(ids))
	return nil
}

// sampleRow is one resolved row of a bulk creation, whichever source it came
// from.
type sampleRow struct {
	Name          string
	CatalogNumber string
	LotNumber     string
	Description   string
	Metadata      datatypes.JSON
}

func (s *sampleService) resolveRows(input BulkCreateSamplesInput) ([]sampleRow, error) {
	if input.PasteData != "" && input.Template != nil {
		return nil, apperr.Validation("template", "provide either a template or paste data, not both")
	}

	if input.PasteData != "" {
		pasted, err := ParsePastedRows(input.PasteData)
		if err != nil {
			return nil, err
		}
		if len(pasted) == 0 {
			return nil, apperr.Validation("data", "the paste data contains no rows")
		}
		if input.Count > 0 && input.Count != len(pasted) {
			return nil, apperr.Validationf("count", "the paste data has %d rows but %d samples were requested", len(pasted), input.Count)
		}
		rows := make([]sampleRow, 0, len(pasted))
		for _, p := range pasted {
			rows = append(rows, sampleRow{
				Name:          p.Name,
				CatalogNumber: p.CatalogNumber,
				LotNumber:     p.LotNumber,
				Description:   p.Description,
			})
		}
		return rows, nil
	}

	if input.Template == nil {
		return nil, apperr.Validation("template", "a template or paste data is required")
	}
	if err := s.validate.Struct(input.Template); err != nil {
		return nil, apperr.Validation("", err.Error())
	}
	if input.Count < 1 {
		return nil, apperr.Validation("count", "count must be at least 1")
	}

	rows := make([]sampleRow, 0, input.Count)
	for i := 0; i < input.Count; i++ {
		name := input.Template.Name
		if input.Count > 1 {
			name = fmt.Sprintf("%s %d", name, i+1)
		}
		rows = append(rows, sampleRow{
			Name:          name,
			CatalogNumber: input.Template.CatalogNumber,
			LotNumber:     input.Template.LotNumber,
			Description:   input.Template.Description,
			Metadata:      input.Template.Metadata,
		})
	}
	return rows, nil
}

func checkTargetDuplicates(targets []SpaceRef) error {
	seen := make(map[SpaceRef]bool, len(targets))
	for _, t := range targets {
		if seen[t] {
			return apperr.Validationf("targets", "space (%d, %d) is listed more than once", t.Row, t.Col)
		}
		seen[t] = true
	}
	return nil
}
