package groundtruth

import (
	"fmt"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/landmark-labs/sitescan/internal/model"
)

// LoadShapefile reads point records from an ESRI shapefile. Polygon
// records contribute their first vertex; other shape types are skipped.
func LoadShapefile(path string) ([]model.GroundTruthSite, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	idIdx := shpFieldIndex(reader, idAliases)
	nameIdx := shpFieldIndex(reader, nameAliases)
	typeIdx := shpFieldIndex(reader, typeAliases)
	periodIdx := shpFieldIndex(reader, []string{"period"})

	var sites []model.GroundTruthSite
	n := 0
	for reader.Next() {
		_, shape := reader.Shape()
		lon, lat, ok := shapePoint(shape)
		if !ok {
			continue
		}
		n++

		site := model.GroundTruthSite{Lat: lat, Lon: lon}
		if idIdx >= 0 {
			site.ID = strings.TrimSpace(reader.Attribute(idIdx))
		}
		if nameIdx >= 0 {
			site.Name = strings.TrimSpace(reader.Attribute(nameIdx))
		}
		if typeIdx >= 0 {
			site.SiteType = strings.TrimSpace(reader.Attribute(typeIdx))
		}
		if periodIdx >= 0 {
			site.Period = strings.TrimSpace(reader.Attribute(periodIdx))
		}
		if site.ID == "" {
			site.ID = fmt.Sprintf("GT_%04d", n)
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func shapePoint(shape shp.Shape) (lon, lat float64, ok bool) {
	switch s := shape.(type) {
	case *shp.Point:
		return s.X, s.Y, true
	case *shp.PointZ:
		return s.X, s.Y, true
	case *shp.Polygon:
		if len(s.Points) > 0 {
			return s.Points[0].X, s.Points[0].Y, true
		}
	}
	return 0, 0, false
}

func shpFieldIndex(reader *shp.Reader, aliases []string) int {
	for i, field := range reader.Fields() {
		name := strings.ToLower(strings.TrimRight(string(field.Name[:]), "\x00"))
		for _, a := range aliases {
			if name == a {
				return i
			}
		}
	}
	return -1
}
