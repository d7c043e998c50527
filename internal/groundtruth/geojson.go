package groundtruth

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/landmark-labs/sitescan/internal/model"
)

// LoadGeoJSON reads point features from a GeoJSON FeatureCollection.
// Non-point geometries are skipped.
func LoadGeoJSON(path string) ([]model.GroundTruthSite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: read geojson")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "groundtruth: parse geojson")
	}

	var sites []model.GroundTruthSite
	for i, f := range fc.Features {
		point, ok := f.Geometry.(*geom.Point)
		if !ok || point == nil {
			continue
		}
		coords := point.Coords()
		site := model.GroundTruthSite{
			ID:       propString(f.Properties, "id", "site_id"),
			Name:     propString(f.Properties, "name", "site_name"),
			SiteType: propString(f.Properties, "site_type", "type"),
			Period:   propString(f.Properties, "period"),
			Lon:      coords[0],
			Lat:      coords[1],
		}
		if site.ID == "" && f.ID != "" {
			site.ID = f.ID
		}
		if site.ID == "" {
			site.ID = fmt.Sprintf("GT_%04d", i+1)
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func propString(props map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := props[k]; ok {
			switch val := v.(type) {
			case string:
				return val
			case float64:
				return fmt.Sprintf("%g", val)
			}
		}
	}
	return ""
}
