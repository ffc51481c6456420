package app

import (
	"gorm.io/gorm"

	"github.com/laureon/slm-backend/internal/data/repos"
	"github.com/laureon/slm-backend/internal/pkg/logger"
)

type Repos struct {
	LocationType  repos.LocationTypeRepo
	Location      repos.LocationRepo
	LocationSpace repos.LocationSpaceRepo
	SampleItem    repos.SampleItemRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		LocationType:  repos.NewLocationTypeRepo(db, log),
		Location:      repos.NewLocationRepo(db, log),
		LocationSpace: repos.NewLocationSpaceRepo(db, log),
		SampleItem:    repos.NewSampleItemRepo(db, log),
	}
}
