package app

import (
	"gorm.io/gorm"

	"github.com/laureon/slm-backend/internal/pkg/logger"
	"github.com/laureon/slm-backend/internal/services"
)

type Services struct {
	LocationType services.LocationTypeService
	Location     services.LocationService
	Sample       services.SampleService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos) Services {
	log.Info("Wiring services...")
	locationTypeService := services.NewLocationTypeService(db, log, r.LocationType, r.Location, r.LocationSpace, r.SampleItem)
	locationService := services.NewLocationService(db, log, r.LocationType, r.Location, r.LocationSpace, r.SampleItem, cfg.SamplePageSize)
	sampleService := services.NewSampleService(db, log, r.LocationType, r.Location, r.LocationSpace, r.SampleItem, locationService, cfg.SearchPageSize)
	return Services{
		LocationType: locationTypeService,
		Location:     locationService,
		Sample:       sampleService,
	}
}
