package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(rows, cols int, vals ...float64) *Grid {
	g, err := GridFromData(rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return g
}

func TestComputeIndices_NDVI(t *testing.T) {
	bands := map[string]*Grid{
		"B04": grid(1, 2, 0.2, 0.4),
		"B08": grid(1, 2, 0.6, 0.4),
	}

	indices, err := ComputeIndices(bands)
	require.NoError(t, err)

	ndvi := indices["NDVI"]
	require.NotNil(t, ndvi)
	assert.InDelta(t, 0.5, ndvi.At(0, 0), 1e-6)
	assert.InDelta(t, 0.0, ndvi.At(0, 1), 1e-6)

	// MSAVI shares the same bands and must also be present.
	assert.NotNil(t, indices["MSAVI"])
	// NDWI and NBR need B03/B12 which are absent.
	assert.Nil(t, indices["NDWI"])
	assert.Nil(t, indices["NBR"])
}

func TestComputeIndices_AllFour(t *testing.T) {
	mk := func() *Grid { return grid(2, 2, 0.1, 0.2, 0.3, 0.4) }
	bands := map[string]*Grid{"B03": mk(), "B04": mk(), "B08": mk(), "B12": mk()}

	indices, err := ComputeIndices(bands)
	require.NoError(t, err)
	assert.Len(t, indices, 4)
	for name, g := range indices {
		assert.Equal(t, 2, g.Rows, name)
		assert.Equal(t, 2, g.Cols, name)
	}
}

func TestComputeIndices_ShapeMismatch(t *testing.T) {
	bands := map[string]*Grid{
		"B04": grid(1, 2, 0.2, 0.4),
		"B08": grid(2, 2, 0.6, 0.4, 0.1, 0.2),
	}

	_, err := ComputeIndices(bands)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match band")
}

func TestComputeIndices_NoUsableBands(t *testing.T) {
	bands := map[string]*Grid{"B02": grid(1, 1, 0.5)}
	_, err := ComputeIndices(bands)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no spectral index")
}

func TestValidateBandShapes_BadLength(t *testing.T) {
	bands := map[string]*Grid{"B04": {Rows: 2, Cols: 2, Data: []float64{1}}}
	assert.Error(t, ValidateBandShapes(bands))
}
