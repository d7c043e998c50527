// Package provider defines the data source contract consumed by the
// pipeline and its live, synthetic, and rate-limited implementations.
package provider

import (
	"context"
	"time"

	"github.com/landmark-labs/sitescan/internal/model"
	"github.com/landmark-labs/sitescan/internal/raster"
)

// FetchStatus tags the outcome of a band fetch. An empty result is a
// first-class outcome, not an error.
type FetchStatus string

const (
	FetchOk     FetchStatus = "ok"
	FetchEmpty  FetchStatus = "empty"
	FetchFailed FetchStatus = "failed"
)

// SceneDescriptor is one satellite acquisition matching a search.
type SceneDescriptor struct {
	ID          string    `json:"id"`
	Collection  string    `json:"collection"`
	AcquiredAt  time.Time `json:"acquired_at"`
	CloudCover  float64   `json:"cloud_cover"`
	ResolutionM float64   `json:"resolution_m"`
}

// FetchResult is the tagged outcome of FetchBands. Exactly one of the
// three cases holds: Ok carries band stacks, Empty carries nothing, and
// Failed carries Err.
type FetchResult struct {
	Status    FetchStatus
	Bands     map[string]*raster.Cube
	Scenes    []SceneDescriptor
	Synthetic bool
	Err       error
}

// Ok builds a successful result over the given band stacks.
func Ok(bands map[string]*raster.Cube, scenes []SceneDescriptor) *FetchResult {
	return &FetchResult{Status: FetchOk, Bands: bands, Scenes: scenes}
}

// Empty builds the no-scenes outcome.
func Empty() *FetchResult {
	return &FetchResult{Status: FetchEmpty}
}

// Failed builds the error outcome.
func Failed(err error) *FetchResult {
	return &FetchResult{Status: FetchFailed, Err: err}
}

// Provider is the data source capability consumed by the pipeline. Search
// must distinguish an empty successful search (empty slice, nil error)
// from a provider failure (non-nil error).
type Provider interface {
	Name() string
	Search(ctx context.Context, aoi model.AOI, tr model.TimeRange, maxCloudCover int) ([]SceneDescriptor, error)
	FetchBands(ctx context.Context, bandNames []string, aoi model.AOI, tr model.TimeRange, maxCloudCover int) *FetchResult
}

// DefaultBands are the Sentinel-2 bands needed by all four spectral
// indices: green, red, NIR, and SWIR2.
var DefaultBands = []string{"B03", "B04", "B08", "B12"}
