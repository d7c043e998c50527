package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeMean_HandComputed(t *testing.T) {
	// (T,H,W) = (2,2,2); composite must be the elementwise mean across T.
	c := &Cube{
		Times: 2, Rows: 2, Cols: 2,
		Data: []float64{
			1, 2,
			3, 4,

			5, 6,
			7, 8,
		},
	}

	g, err := c.CompositeMean()
	require.NoError(t, err)

	assert.Equal(t, 2, g.Rows)
	assert.Equal(t, 2, g.Cols)
	assert.Equal(t, []float64{3, 4, 5, 6}, g.Data)
}

func TestCompositeMean_SingleTimestampPassthrough(t *testing.T) {
	c := &Cube{Times: 1, Rows: 2, Cols: 3, Data: []float64{1, 2, 3, 4, 5, 6}}

	g, err := c.CompositeMean()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, g.Data)
}

func TestCompositeMean_BadShape(t *testing.T) {
	c := &Cube{Times: 2, Rows: 2, Cols: 2, Data: []float64{1, 2, 3}}
	_, err := c.CompositeMean()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match shape")
}

func TestGridNormalize(t *testing.T) {
	g := &Grid{Rows: 1, Cols: 4, Data: []float64{2, 4, 6, 10}}
	g.Normalize()
	assert.Equal(t, []float64{0, 0.25, 0.5, 1}, g.Data)

	flat := &Grid{Rows: 1, Cols: 3, Data: []float64{5, 5, 5}}
	flat.Normalize()
	assert.Equal(t, []float64{0, 0, 0}, flat.Data)
}

func TestGridFromData_LengthMismatch(t *testing.T) {
	_, err := GridFromData(2, 2, []float64{1, 2, 3})
	assert.Error(t, err)
}
