package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laureon/slm-backend/internal/data/repos"
	"github.com/laureon/slm-backend/internal/data/repos/testutil"
	types "github.com/laureon/slm-backend/internal/domain"
	"github.com/laureon/slm-backend/internal/pkg/apperr"
)

// Services run their own transactions, so these tests share one database and
// isolate by unique names; every created row registers a cleanup.

type testServices struct {
	db     *gorm.DB
	types  LocationTypeService
	locs   LocationService
	smpls  SampleService
	ctx    context.Context
	suffix string
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)

	typeRepo := repos.NewLocationTypeRepo(gdb, log)
	locRepo := repos.NewLocationRepo(gdb, log)
	spaceRepo := repos.NewLocationSpaceRepo(gdb, log)
	smplRepo := repos.NewSampleItemRepo(gdb, log)

	typeSvc := NewLocationTypeService(gdb, log, typeRepo, locRepo, spaceRepo, smplRepo)
	locSvc := NewLocationService(gdb, log, typeRepo, locRepo, spaceRepo, smplRepo, 50)
	smplSvc := NewSampleService(gdb, log, typeRepo, locRepo, spaceRepo, smplRepo, locSvc, 25)

	return &testServices{
		db:     gdb,
		types:  typeSvc,
		locs:   locSvc,
		smpls:  smplSvc,
		ctx:    context.Background(),
		suffix: uuid.NewString()[:8],
	}
}

func (ts *testServices) name(prefix string) string {
	return fmt.Sprintf("%s %s", prefix, ts.suffix)
}

func (ts *testServices) mustCreateType(t *testing.T, input CreateLocationTypeInput) *types.LocationType {
	t.Helper()
	lt, err := ts.types.Create(ts.ctx, input)
	if err != nil {
		t.Fatalf("create type %q: %v", input.Name, err)
	}
	t.Cleanup(func() { _ = ts.types.Delete(ts.ctx, lt.ID) })
	return lt
}

func (ts *testServices) mustCreateLocation(t *testing.T, input CreateLocationInput) *types.Location {
	t.Helper()
	loc, err := ts.locs.Create(ts.ctx, input)
	if err != nil {
		t.Fatalf("create location %q: %v", input.Name, err)
	}
	t.Cleanup(func() { _ = ts.locs.Delete(ts.ctx, loc.ID) })
	return loc
}

func (ts *testServices) mustCreateSample(t *testing.T, input CreateSampleInput) *types.SampleItem {
	t.Helper()
	sample, err := ts.smpls.Create(ts.ctx, input)
	if err != nil {
		t.Fatalf("create sample %q: %v", input.Name, err)
	}
	t.Cleanup(func() { _ = ts.smpls.Delete(ts.ctx, sample.ID) })
	return sample
}

func (ts *testServices) spaceCount(t *testing.T, parentLocationID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := ts.db.Model(&types.LocationSpace{}).
		Where("parent_location_id = ?", parentLocationID).
		Count(&count).Error; err != nil {
		t.Fatalf("count spaces: %v", err)
	}
	return count
}

func TestLocationTypeListOrderAndUsage(t *testing.T) {
	ts := newTestServices(t)

	building := ts.mustCreateType(t, CreateLocationTypeInput{Name: ts.name("Building")})
	room := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:          ts.name("Room"),
		ParentTypeIDs: []uuid.UUID{building.ID},
	})

	items, err := ts.types.List(ts.ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	pos := map[uuid.UUID]int{}
	var buildingItem, roomItem *LocationTypeListItem
	for i, item := range items {
		pos[item.Type.ID] = i
		switch item.Type.ID {
		case building.ID:
			buildingItem = item
		case room.ID:
			roomItem = item
		}
	}
	if buildingItem == nil || roomItem == nil {
		t.Fatalf("created types missing from listing")
	}
	if pos[building.ID] > pos[room.ID] {
		t.Fatalf("parent type must come before child in listing")
	}
	if !buildingItem.InUse {
		t.Fatalf("building is used as a parent and must be in use")
	}
	if len(roomItem.ParentTypeIDs) != 1 || roomItem.ParentTypeIDs[0] != building.ID {
		t.Fatalf("room parent ids: want=[%s] got=%v", building.ID, roomItem.ParentTypeIDs)
	}
}

func TestLocationTypeNameUniqueCaseInsensitive(t *testing.T) {
	ts := newTestServices(t)

	created := ts.mustCreateType(t, CreateLocationTypeInput{Name: ts.name("Lab Room")})

	_, err := ts.types.Create(ts.ctx, CreateLocationTypeInput{Name: strings.ToLower(created.Name)})
	if !apperr.IsValidation(err) {
		t.Fatalf("duplicate name with different casing: want validation error, got %v", err)
	}
}

func TestLocationTypeUpdateCycleRejected(t *testing.T) {
	ts := newTestServices(t)

	a := ts.mustCreateType(t, CreateLocationTypeInput{Name: ts.name("Type A")})
	b := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:          ts.name("Type B"),
		ParentTypeIDs: []uuid.UUID{a.ID},
	})

	_, err := ts.types.Update(ts.ctx, UpdateLocationTypeInput{
		ID:            a.ID,
		Name:          a.Name,
		ParentTypeIDs: []uuid.UUID{b.ID},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("A->B->A cycle: want validation error, got %v", err)
	}

	_, err = ts.types.Update(ts.ctx, UpdateLocationTypeInput{
		ID:            a.ID,
		Name:          a.Name,
		ParentTypeIDs: []uuid.UUID{a.ID},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("self-parent: want validation error, got %v", err)
	}
}

func TestLocationTypeUpdateLocksLiveFields(t *testing.T) {
	ts := newTestServices(t)

	rackType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:            ts.name("Rack"),
		CanStoreSamples: true,
		CanHaveSpaces:   true,
		SpaceRows:       intp(5),
		SpaceCols:       intp(5),
	})
	rack := ts.mustCreateLocation(t, CreateLocationInput{
		Name:   ts.name("Rack 1"),
		TypeID: rackType.ID,
	})
	ts.mustCreateSample(t, CreateSampleInput{
		Name:            ts.name("Aliquot"),
		SpaceLocationID: &rack.ID,
		Space:           &SpaceRef{Row: 2, Col: 3},
	})

	result, err := ts.types.Update(ts.ctx, UpdateLocationTypeInput{
		ID:              rackType.ID,
		Name:            rackType.Name,
		CanStoreSamples: false,
		CanHaveSpaces:   false,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	ignored := map[string]bool{}
	for _, f := range result.IgnoredFields {
		ignored[f] = true
	}
	if !ignored["can_have_spaces"] || !ignored["space_rows"] || !ignored["space_cols"] {
		t.Fatalf("grid fields should be locked, ignored=%v", result.IgnoredFields)
	}
	if !ignored["can_store_samples"] {
		t.Fatalf("can_store_samples should be locked, ignored=%v", result.IgnoredFields)
	}
	if !result.Type.CanHaveSpaces || result.Type.SpaceRows == nil || *result.Type.SpaceRows != 5 {
		t.Fatalf("stored grid shape must survive the edit: %+v", result.Type)
	}
	if !result.Type.CanStoreSamples {
		t.Fatalf("stored can_store_samples must survive the edit")
	}
}

func TestLocationTypeDeleteBlockedWhileInUse(t *testing.T) {
	ts := newTestServices(t)

	shelfType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:            ts.name("Shelf"),
		CanStoreSamples: true,
	})
	shelf, err := ts.locs.Create(ts.ctx, CreateLocationInput{
		Name:   ts.name("Shelf 1"),
		TypeID: shelfType.ID,
	})
	if err != nil {
		t.Fatalf("create location: %v", err)
	}

	if err := ts.types.Delete(ts.ctx, shelfType.ID); !apperr.IsIntegrityBlocked(err) {
		t.Fatalf("delete type with locations: want integrity error, got %v", err)
	}

	if err := ts.locs.Delete(ts.ctx, shelf.ID); err != nil {
		t.Fatalf("delete location: %v", err)
	}
	if err := ts.types.Delete(ts.ctx, shelfType.ID); err != nil {
		t.Fatalf("delete type after locations removed: %v", err)
	}
}

func TestSampleIntoSpaceOutOfBounds(t *testing.T) {
	ts := newTestServices(t)

	rackType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:            ts.name("Rack"),
		CanStoreSamples: true,
		CanHaveSpaces:   true,
		SpaceRows:       intp(5),
		SpaceCols:       intp(5),
	})
	rack := ts.mustCreateLocation(t, CreateLocationInput{
		Name:   ts.name("Rack 1"),
		TypeID: rackType.ID,
	})

	_, err := ts.smpls.Create(ts.ctx, CreateSampleInput{
		Name:            ts.name("Aliquot"),
		SpaceLocationID: &rack.ID,
		Space:           &SpaceRef{Row: 6, Col: 1},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("row 6 of a 5x5 rack: want validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 6 exceeds the maximum of 5") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if got := ts.spaceCount(t, rack.ID); got != 0 {
		t.Fatalf("no space rows may be left behind, got %d", got)
	}
}

func TestLocationInSpaceDeleteCleansSpaceRows(t *testing.T) {
	ts := newTestServices(t)

	freezerType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:          ts.name("Freezer"),
		CanHaveSpaces: true,
		SpaceRows:     intp(4),
		SpaceCols:     intp(4),
	})
	boxType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:          ts.name("Box"),
		ParentTypeIDs: []uuid.UUID{freezerType.ID},
	})

	freezer := ts.mustCreateLocation(t, CreateLocationInput{
		Name:   ts.name("Freezer 1"),
		TypeID: freezerType.ID,
	})
	box, err := ts.locs.Create(ts.ctx, CreateLocationInput{
		Name:            ts.name("Box 1"),
		TypeID:          boxType.ID,
		SpaceLocationID: &freezer.ID,
		Space:           &SpaceRef{Row: 2, Col: 2},
	})
	if err != nil {
		t.Fatalf("create box in space: %v", err)
	}

	if got := ts.spaceCount(t, freezer.ID); got != 1 {
		t.Fatalf("space rows after placement: want=1 got=%d", got)
	}

	// Same space cannot take a second occupant.
	_, err = ts.locs.Create(ts.ctx, CreateLocationInput{
		Name:            ts.name("Box 2"),
		TypeID:          boxType.ID,
		SpaceLocationID: &freezer.ID,
		Space:           &SpaceRef{Row: 2, Col: 2},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("occupied space: want validation error, got %v", err)
	}

	if err := ts.locs.Delete(ts.ctx, box.ID); err != nil {
		t.Fatalf("delete box: %v", err)
	}
	if got := ts.spaceCount(t, freezer.ID); got != 0 {
		t.Fatalf("space rows after delete: want=0 got=%d", got)
	}
}

func TestLocationDeleteBlockedWhileOccupied(t *testing.T) {
	ts := newTestServices(t)

	shelfType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:            ts.name("Shelf"),
		CanStoreSamples: true,
	})
	shelf := ts.mustCreateLocation(t, CreateLocationInput{
		Name:   ts.name("Shelf 1"),
		TypeID: shelfType.ID,
	})
	sample := ts.mustCreateSample(t, CreateSampleInput{
		Name:       ts.name("Aliquot"),
		LocationID: &shelf.ID,
	})

	if err := ts.locs.Delete(ts.ctx, shelf.ID); !apperr.IsIntegrityBlocked(err) {
		t.Fatalf("delete location with samples: want integrity error, got %v", err)
	}

	if err := ts.smpls.Delete(ts.ctx, sample.ID); err != nil {
		t.Fatalf("delete sample: %v", err)
	}
	if err := ts.locs.Delete(ts.ctx, shelf.ID); err != nil {
		t.Fatalf("delete location after samples removed: %v", err)
	}
}

func TestBulkCreatePasteTargetMismatchIsAtomic(t *testing.T) {
	ts := newTestServices(t)

	rackType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:            ts.name("Rack"),
		CanStoreSamples: true,
		CanHaveSpaces:   true,
		SpaceRows:       intp(5),
		SpaceCols:       intp(5),
	})
	rack := ts.mustCreateLocation(t, CreateLocationInput{
		Name:   ts.name("Rack 1"),
		TypeID: rackType.ID,
	})

	marker := ts.name("PasteMarker")
	paste := fmt.Sprintf("%s 1\n%s 2\n%s 3\n", marker, marker, marker)
	_, err := ts.smpls.BulkCreate(ts.ctx, BulkCreateSamplesInput{
		LocationID: rack.ID,
		PasteData:  paste,
		Targets:    []SpaceRef{{Row: 1, Col: 1}, {Row: 1, Col: 2}},
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("3 rows into 2 spaces: want validation error, got %v", err)
	}

	result, err := ts.smpls.Search(ts.ctx, marker, 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Total != 0 {
		t.Fatalf("mismatched paste must create nothing, found %d samples", result.Total)
	}
	if got := ts.spaceCount(t, rack.ID); got != 0 {
		t.Fatalf("mismatched paste must leave no space rows, got %d", got)
	}
}

func TestBulkCreateTemplateIntoGrid(t *testing.T) {
	ts := newTestServices(t)

	rackType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:            ts.name("Rack"),
		CanStoreSamples: true,
		CanHaveSpaces:   true,
		SpaceRows:       intp(5),
		SpaceCols:       intp(5),
	})
	rack := ts.mustCreateLocation(t, CreateLocationInput{
		Name:   ts.name("Rack 1"),
		TypeID: rackType.ID,
	})

	created, err := ts.smpls.BulkCreate(ts.ctx, BulkCreateSamplesInput{
		LocationID: rack.ID,
		Template:   &SampleTemplate{Name: ts.name("Aliquot"), CatalogNumber: "CAT-1"},
		Count:      3,
		Targets:    []SpaceRef{{Row: 1, Col: 1}, {Row: 1, Col: 2}, {Row: 2, Col: 1}},
	})
	if err != nil {
		t.Fatalf("BulkCreate: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created count: want=3 got=%d", len(created))
	}
	t.Cleanup(func() {
		ids := make([]uuid.UUID, 0, len(created))
		for _, s := range created {
			ids = append(ids, s.ID)
		}
		_ = ts.smpls.BulkDelete(ts.ctx, ids)
	})

	if created[0].Name == created[1].Name {
		t.Fatalf("templated names must be numbered, got %q twice", created[0].Name)
	}
	if got := ts.spaceCount(t, rack.ID); got != 3 {
		t.Fatalf("space rows: want=3 got=%d", got)
	}

	detail, err := ts.locs.Get(ts.ctx, rack.ID, 0, 0)
	if err != nil {
		t.Fatalf("Get rack: %v", err)
	}
	if len(detail.Grid) != 5 || len(detail.Grid[0]) != 5 {
		t.Fatalf("grid shape: want=5x5 got=%dx%d", len(detail.Grid), len(detail.Grid[0]))
	}
	if detail.Grid[0][0].OccupantKind != OccupantKindSample {
		t.Fatalf("cell (1,1) should hold a sample, got %+v", detail.Grid[0][0])
	}
	if !detail.InUse {
		t.Fatalf("rack with occupied spaces must be in use")
	}
}

func TestSamplePathThroughSpaces(t *testing.T) {
	ts := newTestServices(t)

	roomType := ts.mustCreateType(t, CreateLocationTypeInput{Name: ts.name("Room")})
	rackType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:            ts.name("Rack"),
		CanStoreSamples: true,
		CanHaveSpaces:   true,
		SpaceRows:       intp(5),
		SpaceCols:       intp(9),
		ParentTypeIDs:   []uuid.UUID{roomType.ID},
	})

	room := ts.mustCreateLocation(t, CreateLocationInput{
		Name:   ts.name("Room 101"),
		TypeID: roomType.ID,
	})
	rack := ts.mustCreateLocation(t, CreateLocationInput{
		Name:     ts.name("Rack 1"),
		TypeID:   rackType.ID,
		ParentID: &room.ID,
	})
	sample := ts.mustCreateSample(t, CreateSampleInput{
		Name:            ts.name("Aliquot"),
		SpaceLocationID: &rack.ID,
		Space:           &SpaceRef{Row: 2, Col: 7},
	})

	detail, err := ts.smpls.Get(ts.ctx, sample.ID)
	if err != nil {
		t.Fatalf("Get sample: %v", err)
	}
	if detail.SpaceLabel != "B7" {
		t.Fatalf("space label: want=B7 got=%q", detail.SpaceLabel)
	}
	if len(detail.Path) != 2 {
		t.Fatalf("path length: want=2 got=%d", len(detail.Path))
	}
	if detail.Path[0].ID != room.ID || detail.Path[1].ID != rack.ID {
		t.Fatalf("path order: want room then rack, got %+v", detail.Path)
	}
}

func TestConfiguredPageSizesCapUnboundedReads(t *testing.T) {
	ts := newTestServices(t)

	// Services built with small page sizes; a zero limit must fall back to
	// them rather than reading everything.
	log := testutil.Logger(t)
	typeRepo := repos.NewLocationTypeRepo(ts.db, log)
	locRepo := repos.NewLocationRepo(ts.db, log)
	spaceRepo := repos.NewLocationSpaceRepo(ts.db, log)
	smplRepo := repos.NewSampleItemRepo(ts.db, log)
	locSvc := NewLocationService(ts.db, log, typeRepo, locRepo, spaceRepo, smplRepo, 2)
	smplSvc := NewSampleService(ts.db, log, typeRepo, locRepo, spaceRepo, smplRepo, locSvc, 1)

	shelfType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:            ts.name("Shelf"),
		CanStoreSamples: true,
	})
	shelf := ts.mustCreateLocation(t, CreateLocationInput{
		Name:   ts.name("Shelf 1"),
		TypeID: shelfType.ID,
	})
	catalog := "PAGE-" + ts.suffix
	for i := 0; i < 3; i++ {
		ts.mustCreateSample(t, CreateSampleInput{
			Name:          ts.name(fmt.Sprintf("Aliquot %d", i+1)),
			CatalogNumber: catalog,
			LocationID:    &shelf.ID,
		})
	}

	detail, err := locSvc.Get(ts.ctx, shelf.ID, 0, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Samples) != 2 {
		t.Fatalf("page length: want=2 got=%d", len(detail.Samples))
	}
	if detail.SampleTotal != 3 {
		t.Fatalf("sample total: want=3 got=%d", detail.SampleTotal)
	}

	result, err := smplSvc.Search(ts.ctx, catalog, 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("search page length: want=1 got=%d", len(result.Items))
	}
	if result.Total != 3 {
		t.Fatalf("search total: want=3 got=%d", result.Total)
	}

	// An explicit limit still wins over the configured default.
	detail, err = locSvc.Get(ts.ctx, shelf.ID, 3, 0)
	if err != nil {
		t.Fatalf("Get explicit limit: %v", err)
	}
	if len(detail.Samples) != 3 {
		t.Fatalf("explicit page length: want=3 got=%d", len(detail.Samples))
	}
}

func TestSampleSearch(t *testing.T) {
	ts := newTestServices(t)

	shelfType := ts.mustCreateType(t, CreateLocationTypeInput{
		Name:            ts.name("Shelf"),
		CanStoreSamples: true,
	})
	shelf := ts.mustCreateLocation(t, CreateLocationInput{
		Name:   ts.name("Shelf 1"),
		TypeID: shelfType.ID,
	})

	catalog := "CAT-" + ts.suffix
	ts.mustCreateSample(t, CreateSampleInput{
		Name:          ts.name("Plasmid"),
		CatalogNumber: catalog,
		LocationID:    &shelf.ID,
	})
	ts.mustCreateSample(t, CreateSampleInput{
		Name:       ts.name("Unrelated"),
		LocationID: &shelf.ID,
	})

	result, err := ts.smpls.Search(ts.ctx, strings.ToLower(catalog), 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("search total: want=1 got=%d", result.Total)
	}
	if result.Items[0].CatalogNumber != catalog {
		t.Fatalf("search hit: want catalog %q got %q", catalog, result.Items[0].CatalogNumber)
	}
}
