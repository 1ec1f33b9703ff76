package services

import (
	"context"

	"github.com/joshua-takyi/eventradar/internal/geo"
	"github.com/joshua-takyi/eventradar/internal/models"
)

// LocationInput is what a client reports about its position.
type LocationInput struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	City    string   `json:"city"`
	Refresh bool     `json:"refresh"`
}

type LocationService struct {
	resolver *geo.Resolver
}

func NewLocationService(resolver *geo.Resolver) *LocationService {
	return &LocationService{resolver: resolver}
}

// Resolve never fails for lack of data; the country fallback always
// answers. An unusable device coordinate is skipped, not rejected.
func (s *LocationService) Resolve(ctx context.Context, viewer models.Viewer, in LocationInput) (geo.Result, error) {
	if (in.Lat == nil) != (in.Lng == nil) {
		return geo.Result{}, models.NewValidationError("lat", "lat and lng must be sent together")
	}
	req := geo.Request{
		ViewerKey: viewer.Key(),
		City:      in.City,
		Refresh:   in.Refresh,
	}
	if req.City == "" {
		req.City = viewer.City
	}
	if c, ok := geo.FromPointers(in.Lat, in.Lng); ok {
		req.Device = &c
	}
	return s.resolver.Resolve(ctx, req)
}
