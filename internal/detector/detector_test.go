package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landmark-labs/sitescan/internal/raster"
)

// uniformGridWithOutlier builds a rows x cols grid of a constant background
// with a strongly deviating block in the corner.
func uniformGridWithOutlier(rows, cols int, background, outlier float64) *raster.Grid {
	g := raster.NewGrid(rows, cols)
	for i := range g.Data {
		// Mild deterministic texture so the forest has spread to split on.
		g.Data[i] = background + 0.001*float64(i%7)
	}
	g.Set(0, 0, outlier)
	g.Set(0, 1, outlier)
	g.Set(1, 0, outlier)
	return g
}

func testIndices(rows, cols int) map[string]*raster.Grid {
	return map[string]*raster.Grid{
		"NDVI": uniformGridWithOutlier(rows, cols, 0.6, -0.8),
		"NDWI": uniformGridWithOutlier(rows, cols, -0.2, 0.9),
	}
}

func TestBuildFeatureMatrix_ShapeBookkeeping(t *testing.T) {
	m, err := BuildFeatureMatrix(testIndices(8, 10))
	require.NoError(t, err)

	assert.Equal(t, 8, m.Rows)
	assert.Equal(t, 10, m.Cols)
	assert.Equal(t, 80, m.NumPixels())
	assert.Equal(t, []string{"NDVI", "NDWI"}, m.Names)
	assert.Len(t, m.Data, 160)
}

func TestBuildFeatureMatrix_ShapeMismatch(t *testing.T) {
	indices := map[string]*raster.Grid{
		"NDVI": raster.NewGrid(4, 4),
		"NDWI": raster.NewGrid(4, 5),
	}
	_, err := BuildFeatureMatrix(indices)
	assert.Error(t, err)
}

func TestStandardize_ZeroMeanUnitVariance(t *testing.T) {
	m, err := BuildFeatureMatrix(map[string]*raster.Grid{
		"NDVI": {Rows: 1, Cols: 4, Data: []float64{1, 2, 3, 4}},
	})
	require.NoError(t, err)
	m.Standardize()

	var sum float64
	for i := 0; i < m.NumPixels(); i++ {
		sum += m.Row(i)[0]
	}
	assert.InDelta(t, 0, sum, 1e-9)
}

func TestDetect_MaskMatchesInputShape(t *testing.T) {
	res, err := Detect(testIndices(12, 9), Config{Contamination: 0.1, NumTrees: 25, SampleSize: 64, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, 12, res.Mask.Rows)
	assert.Equal(t, 9, res.Mask.Cols)
	assert.Equal(t, 12, res.Surface.Rows)
	assert.Equal(t, 9, res.Surface.Cols)
	assert.Equal(t, 108, res.TotalPixels)
	assert.Greater(t, res.AnomalyPixels, 0)
	assert.LessOrEqual(t, res.AnomalyPixels, res.TotalPixels)

	// Surface is normalized to [0,1].
	lo, hi := res.Surface.MinMax()
	assert.GreaterOrEqual(t, lo, 0.0)
	assert.LessOrEqual(t, hi, 1.0)
}

func TestDetect_FindsPlantedOutlier(t *testing.T) {
	res, err := Detect(testIndices(16, 16), Config{Contamination: 0.05, NumTrees: 50, SampleSize: 128, Seed: 7})
	require.NoError(t, err)

	// The planted corner block deviates in every feature and must rank
	// among the highest anomaly scores.
	assert.Equal(t, 1.0, res.Mask.At(0, 0), "planted outlier not flagged")
}

func TestDetect_DeterministicForFixedSeed(t *testing.T) {
	cfg := Config{Contamination: 0.1, NumTrees: 30, SampleSize: 64, Seed: 1234}

	a, err := Detect(testIndices(10, 10), cfg)
	require.NoError(t, err)
	b, err := Detect(testIndices(10, 10), cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Surface.Data, b.Surface.Data)
	assert.Equal(t, a.Mask.Data, b.Mask.Data)
}

func TestDetect_RejectsBadContamination(t *testing.T) {
	_, err := Detect(testIndices(4, 4), Config{Contamination: 0})
	assert.Error(t, err)
	_, err = Detect(testIndices(4, 4), Config{Contamination: 1})
	assert.Error(t, err)
}
