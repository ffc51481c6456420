package app

import (
	"github.com/laureon/slm-backend/internal/pkg/logger"
	"github.com/laureon/slm-backend/internal/utils"
)

type Config struct {
	SamplePageSize int
	SearchPageSize int
}

func LoadConfig(log *logger.Logger) Config {
	samplePageSize := utils.GetEnvAsInt("SAMPLE_PAGE_SIZE", 50, log)
	searchPageSize := utils.GetEnvAsInt("SEARCH_PAGE_SIZE", 25, log)
	return Config{
		SamplePageSize: samplePageSize,
		SearchPageSize: searchPageSize,
	}
}
