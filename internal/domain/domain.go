package domain

import (
	"github.com/laureon/slm-backend/internal/domain/locations"
	"github.com/laureon/slm-backend/internal/domain/samples"
)

type LocationType = locations.LocationType
type LocationTypeParent = locations.LocationTypeParent
type Location = locations.Location
type LocationSpace = locations.LocationSpace

type SampleItem = samples.SampleItem
