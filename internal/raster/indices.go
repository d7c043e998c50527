package raster

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// eps guards normalized-difference denominators against division by zero.
const eps = 1e-10

// IndexSpec describes one spectral index: its formula and the bands it
// consumes. The formula strings are recorded verbatim on the manifest.
type IndexSpec struct {
	Name    string
	Formula string
	Bands   []string
}

// Supported spectral indices, Sentinel-2 band naming. An index is computed
// only when all of its bands are present.
var IndexSpecs = []IndexSpec{
	{Name: "NDVI", Formula: "(B08-B04)/(B08+B04)", Bands: []string{"B08", "B04"}},
	{Name: "NDWI", Formula: "(B03-B08)/(B03+B08)", Bands: []string{"B03", "B08"}},
	{Name: "MSAVI", Formula: "(2*B08+1-sqrt((2*B08+1)^2-8*(B08-B04)))/2", Bands: []string{"B08", "B04"}},
	{Name: "NBR", Formula: "(B08-B12)/(B08+B12)", Bands: []string{"B08", "B12"}},
}

// SpecFor returns the formula metadata for a named index.
func SpecFor(name string) (IndexSpec, bool) {
	for _, s := range IndexSpecs {
		if s.Name == name {
			return s, true
		}
	}
	return IndexSpec{}, false
}

// ValidateBandShapes checks that every band grid is two-dimensional with
// identical dimensions. Shape defects abort the stage with a descriptive
// error rather than surfacing later as indexing bugs in the detector.
func ValidateBandShapes(bands map[string]*Grid) error {
	var ref *Grid
	var refName string
	names := make([]string, 0, len(bands))
	for name := range bands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := bands[name]
		if g == nil || g.Rows < 1 || g.Cols < 1 {
			return eris.Errorf("raster: band %s has invalid shape", name)
		}
		if len(g.Data) != g.Rows*g.Cols {
			return eris.Errorf("raster: band %s data length %d does not match %dx%d",
				name, len(g.Data), g.Rows, g.Cols)
		}
		if ref == nil {
			ref, refName = g, name
			continue
		}
		if !ref.SameShape(g) {
			return eris.Errorf("raster: band %s shape (%d,%d) does not match band %s shape (%d,%d)",
				name, g.Rows, g.Cols, refName, ref.Rows, ref.Cols)
		}
	}
	return nil
}

// ComputeIndices derives every supported spectral index whose bands are
// available. The result maps index name to a grid of the same shape as the
// inputs.
func ComputeIndices(bands map[string]*Grid) (map[string]*Grid, error) {
	if err := ValidateBandShapes(bands); err != nil {
		return nil, err
	}

	out := make(map[string]*Grid)
	for _, spec := range IndexSpecs {
		inputs := make([]*Grid, 0, len(spec.Bands))
		ok := true
		for _, b := range spec.Bands {
			g, present := bands[b]
			if !present {
				ok = false
				break
			}
			inputs = append(inputs, g)
		}
		if !ok {
			continue
		}
		out[spec.Name] = computeIndex(spec.Name, inputs)
	}

	if len(out) == 0 {
		return nil, eris.New("raster: no spectral index is computable from the available bands")
	}
	return out, nil
}

func computeIndex(name string, in []*Grid) *Grid {
	g := NewGrid(in[0].Rows, in[0].Cols)
	switch name {
	case "NDVI":
		nir, red := in[0], in[1]
		for i := range g.Data {
			g.Data[i] = (nir.Data[i] - red.Data[i]) / (nir.Data[i] + red.Data[i] + eps)
		}
	case "NDWI":
		green, nir := in[0], in[1]
		for i := range g.Data {
			g.Data[i] = (green.Data[i] - nir.Data[i]) / (green.Data[i] + nir.Data[i] + eps)
		}
	case "MSAVI":
		nir, red := in[0], in[1]
		for i := range g.Data {
			n, r := nir.Data[i], red.Data[i]
			disc := (2*n+1)*(2*n+1) - 8*(n-r)
			if disc < 0 {
				disc = 0
			}
			g.Data[i] = (2*n + 1 - math.Sqrt(disc)) / 2
		}
	case "NBR":
		nir, swir2 := in[0], in[1]
		for i := range g.Data {
			g.Data[i] = (nir.Data[i] - swir2.Data[i]) / (nir.Data[i] + swir2.Data[i] + eps)
		}
	}
	return g
}
