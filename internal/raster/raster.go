// Package raster provides the dense grid types shared by the spectral,
// detection, and extraction stages, with explicit shape validation so that
// dimension defects fail fast instead of surfacing as indexing bugs
// downstream.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// Grid is a two-dimensional raster in row-major order.
type Grid struct {
	Rows int
	Cols int
	Data []float64
}

// NewGrid allocates a zeroed grid.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// GridFromData wraps an existing slice, validating its length.
func GridFromData(rows, cols int, data []float64) (*Grid, error) {
	if len(data) != rows*cols {
		return nil, eris.Errorf("raster: data length %d does not match %dx%d grid", len(data), rows, cols)
	}
	return &Grid{Rows: rows, Cols: cols, Data: data}, nil
}

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 {
	return g.Data[row*g.Cols+col]
}

// Set writes the value at (row, col).
func (g *Grid) Set(row, col int, v float64) {
	g.Data[row*g.Cols+col] = v
}

// Size returns the number of cells.
func (g *Grid) Size() int {
	return g.Rows * g.Cols
}

// SameShape reports whether two grids have identical dimensions.
func (g *Grid) SameShape(other *Grid) bool {
	return other != nil && g.Rows == other.Rows && g.Cols == other.Cols
}

// MinMax returns the minimum and maximum values, ignoring NaNs.
func (g *Grid) MinMax() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Mean returns the arithmetic mean of all cells.
func (g *Grid) Mean() float64 {
	return stat.Mean(g.Data, nil)
}

// Normalize rescales the grid to [0,1] in place. A constant grid becomes
// all zeros.
func (g *Grid) Normalize() {
	lo, hi := g.MinMax()
	span := hi - lo
	if span == 0 || math.IsInf(lo, 1) {
		for i := range g.Data {
			g.Data[i] = 0
		}
		return
	}
	for i, v := range g.Data {
		g.Data[i] = (v - lo) / span
	}
}

// Cube is a three-dimensional raster stack: Times two-dimensional grids of
// identical shape, time-major in memory.
type Cube struct {
	Times int
	Rows  int
	Cols  int
	Data  []float64
}

// NewCube allocates a zeroed cube.
func NewCube(times, rows, cols int) *Cube {
	return &Cube{Times: times, Rows: rows, Cols: cols, Data: make([]float64, times*rows*cols)}
}

// At returns the value at (t, row, col).
func (c *Cube) At(t, row, col int) float64 {
	return c.Data[(t*c.Rows+row)*c.Cols+col]
}

// Set writes the value at (t, row, col).
func (c *Cube) Set(t, row, col int, v float64) {
	c.Data[(t*c.Rows+row)*c.Cols+col] = v
}

// CompositeMean collapses the time dimension by elementwise mean, producing
// a single two-dimensional composite. A single-timestamp cube is returned
// as-is without averaging.
func (c *Cube) CompositeMean() (*Grid, error) {
	if c.Times < 1 || c.Rows < 1 || c.Cols < 1 {
		return nil, eris.Errorf("raster: cannot composite cube of shape (%d,%d,%d)", c.Times, c.Rows, c.Cols)
	}
	if len(c.Data) != c.Times*c.Rows*c.Cols {
		return nil, eris.Errorf("raster: cube data length %d does not match shape (%d,%d,%d)",
			len(c.Data), c.Times, c.Rows, c.Cols)
	}

	out := NewGrid(c.Rows, c.Cols)
	if c.Times == 1 {
		copy(out.Data, c.Data)
		return out, nil
	}

	plane := c.Rows * c.Cols
	for t := 0; t < c.Times; t++ {
		off := t * plane
		for i := 0; i < plane; i++ {
			out.Data[i] += c.Data[off+i]
		}
	}
	inv := 1.0 / float64(c.Times)
	for i := range out.Data {
		out.Data[i] *= inv
	}
	return out, nil
}
