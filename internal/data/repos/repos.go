package repos

import (
	"gorm.io/gorm"

	"github.com/laureon/slm-backend/internal/data/repos/locations"
	"github.com/laureon/slm-backend/internal/data/repos/samples"
	"github.com/laureon/slm-backend/internal/pkg/logger"
)

type LocationTypeRepo = locations.LocationTypeRepo
type LocationRepo = locations.LocationRepo
type LocationSpaceRepo = locations.LocationSpaceRepo

type SampleItemRepo = samples.SampleItemRepo

func NewLocationTypeRepo(db *gorm.DB, baseLog *logger.Logger) LocationTypeRepo {
	return locations.NewLocationTypeRepo(db, baseLog)
}
func NewLocationRepo(db *gorm.DB, baseLog *logger.Logger) LocationRepo {
	return locations.NewLocationRepo(db, baseLog)
}
func NewLocationSpaceRepo(db *gorm.DB, baseLog *logger.Logger) LocationSpaceRepo {
	return locations.NewLocationSpaceRepo(db, baseLog)
}
func NewSampleItemRepo(db *gorm.DB, baseLog *logger.Logger) SampleItemRepo {
	return samples.NewSampleItemRepo(db, baseLog)
}
