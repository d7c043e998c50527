package detector

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/landmark-labs/sitescan/internal/raster"
)

// Config controls the anomaly detection stage.
type Config struct {
	Contamination float64 // expected anomaly fraction in (0,1)
	NumTrees      int
	SampleSize    int
	Seed          int64
}

// Result holds the detection output: a binary mask, a continuous anomaly
// surface normalized to [0,1], and the population statistics.
type Result struct {
	Mask          *raster.Grid
	Surface       *raster.Grid
	TotalPixels   int
	AnomalyPixels int
	AnomalyPct    float64
	MeanScore     float64
}

// Detect builds a per-pixel feature matrix from the index grids,
// standardizes it, fits a seeded isolation forest over the flattened pixel
// population, and reshapes the per-pixel scores back into raster space
// using the spatial shape captured on the feature matrix.
func Detect(indices map[string]*raster.Grid, cfg Config) (*Result, error) {
	if cfg.Contamination <= 0 || cfg.Contamination >= 1 {
		return nil, eris.Errorf("detector: contamination %f must be in (0,1)", cfg.Contamination)
	}

	m, err := BuildFeatureMatrix(indices)
	if err != nil {
		return nil, err
	}
	m.Standardize()

	forest := NewIsolationForest(cfg.NumTrees, cfg.SampleSize, cfg.Seed)
	if err := forest.Fit(m); err != nil {
		return nil, err
	}
	scores, err := forest.Scores(m)
	if err != nil {
		return nil, err
	}

	// The matrix is (pixels x features); the maps are (rows x cols). The
	// shape captured before flattening is the only valid way back.
	surface, err := raster.GridFromData(m.Rows, m.Cols, scores)
	if err != nil {
		return nil, eris.Wrap(err, "detector: reshape scores")
	}

	threshold := quantile(scores, 1-cfg.Contamination)
	mask := raster.NewGrid(m.Rows, m.Cols)
	anomalies := 0
	var sum float64
	for i, s := range scores {
		sum += s
		if s >= threshold {
			mask.Data[i] = 1
			anomalies++
		}
	}
	surface.Normalize()

	total := m.NumPixels()
	res := &Result{
		Mask:          mask,
		Surface:       surface,
		TotalPixels:   total,
		AnomalyPixels: anomalies,
		AnomalyPct:    float64(anomalies) / float64(total) * 100,
		MeanScore:     sum / float64(total),
	}

	zap.L().Info("anomaly detection complete",
		zap.Int("total_pixels", total),
		zap.Int("anomaly_pixels", anomalies),
		zap.Float64("anomaly_pct", res.AnomalyPct),
		zap.Strings("features", m.Names),
	)
	return res, nil
}

// quantile returns the q-th quantile of vals (nearest-rank, copies input).
func quantile(vals []float64, q float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
