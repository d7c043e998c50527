// Package extractor turns a binary anomaly mask into discrete candidate
// sites via connected-component labeling.
package extractor

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/landmark-labs/sitescan/internal/model"
)

// metersPerDegree is the approximate ground distance of one degree of
// latitude at the equator.
const metersPerDegree = 111320.0

// GeoTransform maps pixel indices to geographic coordinates for a grid
// stretched over an AOI. Row 0 is the northern edge, matching the raster
// layout of the fetched scenes.
type GeoTransform struct {
	originLon float64
	originLat float64
	lonPerCol float64
	latPerRow float64
	rows      int
	cols      int
}

// FromBounds builds the affine mapping for a rows x cols grid covering the
// AOI.
func FromBounds(aoi model.AOI, rows, cols int) (*GeoTransform, error) {
	if rows <= 0 || cols <= 0 {
		return nil, eris.Errorf("extractor: invalid grid shape %dx%d", rows, cols)
	}
	if err := aoi.Validate(); err != nil {
		return nil, eris.Wrap(err, "extractor: bad bounds")
	}
	return &GeoTransform{
		originLon: aoi.MinLon,
		originLat: aoi.MaxLat,
		lonPerCol: (aoi.MaxLon - aoi.MinLon) / float64(cols),
		latPerRow: (aoi.MinLat - aoi.MaxLat) / float64(rows),
		rows:      rows,
		cols:      cols,
	}, nil
}

// PixelToLonLat returns the geographic coordinate of a pixel center.
// Fractional indices are accepted so component centroids map exactly.
func (t *GeoTransform) PixelToLonLat(row, col float64) (lon, lat float64) {
	lon = t.originLon + (col+0.5)*t.lonPerCol
	lat = t.originLat + (row+0.5)*t.latPerRow
	return lon, lat
}

// PixelAreaM2 returns the ground area of one pixel in square meters,
// corrected for longitude convergence at the grid's center latitude.
func (t *GeoTransform) PixelAreaM2() float64 {
	centerLat := t.originLat + t.latPerRow*float64(t.rows)/2
	wm := math.Abs(t.lonPerCol) * metersPerDegree * math.Cos(centerLat*math.Pi/180)
	hm := math.Abs(t.latPerRow) * metersPerDegree
	return wm * hm
}
