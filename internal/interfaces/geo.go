package interfaces

import (
	"context"

	"github.com/ternarybob/curtail/internal/models"
)

// GeoProvider resolves an IP address to location details.
// Implementations wrap a single external JSON API.
type GeoProvider interface {
	Name() string
	Resolve(ctx context.Context, ip string) (*models.GeoDetails, error)
}

// GeoProcessor consumes click events on a bounded worker pool. Emit never
// blocks the redirect path.
type GeoProcessor interface {
	Emit(event models.ClickEvent)
	Start()
	Stop()
}
