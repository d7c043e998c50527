// Package detector scores per-pixel feature vectors with a seeded
// isolation forest and reshapes the results back into raster space.
package detector

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/landmark-labs/sitescan/internal/raster"
)

// FeatureMatrix is the flattened pixel population: one row per pixel, one
// column per feature. Rows and Cols carry the pre-flatten spatial shape so
// per-pixel scores can be reshaped into a raster without conflating the
// (pixels x features) matrix with the (rows x cols) map.
type FeatureMatrix struct {
	Rows  int
	Cols  int
	Names []string
	Data  []float64 // pixel-major, len == Rows*Cols*len(Names)
}

// NumPixels returns the flattened population size.
func (m *FeatureMatrix) NumPixels() int {
	return m.Rows * m.Cols
}

// NumFeatures returns the feature dimensionality.
func (m *FeatureMatrix) NumFeatures() int {
	return len(m.Names)
}

// Row returns the feature vector of pixel i as a subslice view.
func (m *FeatureMatrix) Row(i int) []float64 {
	n := m.NumFeatures()
	return m.Data[i*n : (i+1)*n]
}

// BuildFeatureMatrix stacks the given index grids into a per-pixel feature
// matrix. All grids must share one spatial shape; NaN cells are replaced by
// the feature's mean over finite cells (zero if none). Feature order is the
// sorted index name order so identical inputs always produce an identical
// matrix.
func BuildFeatureMatrix(indices map[string]*raster.Grid) (*FeatureMatrix, error) {
	if len(indices) == 0 {
		return nil, eris.New("detector: no features available")
	}

	names := make([]string, 0, len(indices))
	for name := range indices {
		names = append(names, name)
	}
	sort.Strings(names)

	ref := indices[names[0]]
	for _, name := range names {
		g := indices[name]
		if g == nil || !ref.SameShape(g) {
			return nil, eris.Errorf("detector: feature %s shape does not match (%d,%d)", name, ref.Rows, ref.Cols)
		}
	}

	m := &FeatureMatrix{
		Rows:  ref.Rows,
		Cols:  ref.Cols,
		Names: names,
		Data:  make([]float64, ref.Size()*len(names)),
	}

	for f, name := range names {
		g := indices[name]
		fill := finiteMean(g.Data)
		for i, v := range g.Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = fill
			}
			m.Data[i*len(names)+f] = v
		}
	}
	return m, nil
}

// Standardize transforms every feature column to zero mean and unit
// variance in place. Constant columns are zeroed.
func (m *FeatureMatrix) Standardize() {
	n := m.NumPixels()
	nf := m.NumFeatures()
	col := make([]float64, n)

	for f := 0; f < nf; f++ {
		for i := 0; i < n; i++ {
			col[i] = m.Data[i*nf+f]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			for i := 0; i < n; i++ {
				m.Data[i*nf+f] = 0
			}
			continue
		}
		for i := 0; i < n; i++ {
			m.Data[i*nf+f] = (col[i] - mean) / std
		}
	}
}

func finiteMean(vals []float64) float64 {
	var sum float64
	var n int
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
