package extractor

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/landmark-labs/sitescan/internal/model"
	"github.com/landmark-labs/sitescan/internal/raster"
)

// Config controls region filtering.
type Config struct {
	MinPixels int // regions smaller than this are discarded as noise
}

// Extract labels the connected regions of the anomaly mask (4-connectivity,
// raster scan order) and produces one DetectionSite per region that meets
// the minimum pixel count. Intensity statistics come from the continuous
// anomaly surface. Confidence and priority are left for the scorer.
func Extract(mask, surface *raster.Grid, tr *GeoTransform, cfg Config) ([]model.DetectionSite, error) {
	if mask == nil || surface == nil {
		return nil, eris.New("extractor: mask and surface are required")
	}
	if !mask.SameShape(surface) {
		return nil, eris.Errorf("extractor: mask shape (%d,%d) does not match surface (%d,%d)",
			mask.Rows, mask.Cols, surface.Rows, surface.Cols)
	}
	if tr == nil || tr.rows != mask.Rows || tr.cols != mask.Cols {
		return nil, eris.New("extractor: transform shape does not match mask")
	}
	minPixels := cfg.MinPixels
	if minPixels < 1 {
		minPixels = 1
	}

	labels := make([]int, mask.Size())
	pixelArea := tr.PixelAreaM2()
	edgeM := math.Sqrt(pixelArea)

	var sites []model.DetectionSite
	next := 0
	dropped := 0
	for r := 0; r < mask.Rows; r++ {
		for c := 0; c < mask.Cols; c++ {
			if mask.At(r, c) == 0 || labels[r*mask.Cols+c] != 0 {
				continue
			}
			next++
			pixels := flood(mask, labels, r, c, next)
			if len(pixels) < minPixels {
				dropped++
				continue
			}

			site := regionToSite(mask, surface, tr, pixels, pixelArea, edgeM)
			site.ID = fmt.Sprintf("SITE_%04d", len(sites)+1)
			sites = append(sites, site)
		}
	}

	zap.L().Info("coordinate extraction complete",
		zap.Int("regions", next),
		zap.Int("sites", len(sites)),
		zap.Int("dropped_small", dropped),
	)
	return sites, nil
}

type pixel struct{ r, c int }

// flood collects the 4-connected region containing (r,c), writing label
// into the labels buffer as it goes.
func flood(mask *raster.Grid, labels []int, r, c, label int) []pixel {
	stack := []pixel{{r, c}}
	labels[r*mask.Cols+c] = label
	var region []pixel

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		region = append(region, p)

		for _, n := range [4]pixel{{p.r - 1, p.c}, {p.r + 1, p.c}, {p.r, p.c - 1}, {p.r, p.c + 1}} {
			if n.r < 0 || n.r >= mask.Rows || n.c < 0 || n.c >= mask.Cols {
				continue
			}
			i := n.r*mask.Cols + n.c
			if mask.Data[i] == 0 || labels[i] != 0 {
				continue
			}
			labels[i] = label
			stack = append(stack, n)
		}
	}
	return region
}

func regionToSite(mask, surface *raster.Grid, tr *GeoTransform, pixels []pixel, pixelArea, edgeM float64) model.DetectionSite {
	var sumR, sumC float64
	values := make([]float64, len(pixels))
	boundary := 0
	for i, p := range pixels {
		sumR += float64(p.r)
		sumC += float64(p.c)
		values[i] = surface.At(p.r, p.c)
		if isBoundary(mask, p) {
			boundary++
		}
	}

	n := float64(len(pixels))
	lon, lat := tr.PixelToLonLat(sumR/n, sumC/n)
	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}

	areaM2 := n * pixelArea
	perimeterM := float64(boundary) * edgeM
	compactness := 0.0
	if perimeterM > 0 {
		compactness = 4 * math.Pi * areaM2 / (perimeterM * perimeterM)
	}

	return model.DetectionSite{
		Lat:          lat,
		Lon:          lon,
		PixelCount:   len(pixels),
		AreaM2:       areaM2,
		PerimeterM:   perimeterM,
		Compactness:  compactness,
		Intensity:    mean,
		IntensityStd: std,
	}
}

// isBoundary reports whether a region pixel touches the grid edge or a
// non-anomalous neighbor.
func isBoundary(mask *raster.Grid, p pixel) bool {
	for _, n := range [4]pixel{{p.r - 1, p.c}, {p.r + 1, p.c}, {p.r, p.c - 1}, {p.r, p.c + 1}} {
		if n.r < 0 || n.r >= mask.Rows || n.c < 0 || n.c >= mask.Cols {
			return true
		}
		if mask.At(n.r, n.c) == 0 {
			return true
		}
	}
	return false
}
