package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/landmark-labs/sitescan/internal/model"
)

// Field aliases accepted when normalizing raw detection records.
var siteFieldAliases = map[string][]string{
	"id":         {"id", "site_id", "cluster_id"},
	"lat":        {"lat", "latitude", "centroid_lat", "y"},
	"lon":        {"lon", "lng", "longitude", "centroid_lon", "x"},
	"confidence": {"confidence", "likelihood", "score"},
	"area":       {"area_m2", "area", "size_m2"},
	"site_type":  {"site_type", "type", "class"},
}

// NormalizeSites enforces the canonical site schema in place: coordinates
// snapped into valid ranges (longitude wrapped, latitude clamped),
// confidence clamped to [0,100], priority rederived from the final
// confidence, and missing ids filled in sequence.
func NormalizeSites(sites []model.DetectionSite) []model.DetectionSite {
	for i := range sites {
		s := &sites[i]
		s.Lon = wrapLongitude(s.Lon)
		s.Lat = clampLatitude(s.Lat)
		s.Confidence = model.ClampConfidence(s.Confidence)
		s.Priority = model.PriorityForConfidence(s.Confidence)
		if s.ID == "" {
			s.ID = fmt.Sprintf("SITE_%04d", i+1)
		}
	}
	return sites
}

// NormalizeRecords converts a raw detection table with inconsistent field
// names into canonical DetectionSites. Records without usable coordinates
// are dropped.
func NormalizeRecords(records []map[string]any) []model.DetectionSite {
	sites := make([]model.DetectionSite, 0, len(records))
	for _, rec := range records {
		lat, latOK := fieldFloat(rec, siteFieldAliases["lat"])
		lon, lonOK := fieldFloat(rec, siteFieldAliases["lon"])
		if !latOK || !lonOK {
			continue
		}

		site := model.DetectionSite{Lat: lat, Lon: lon}
		if id, ok := fieldString(rec, siteFieldAliases["id"]); ok {
			site.ID = id
		}
		if conf, ok := fieldFloat(rec, siteFieldAliases["confidence"]); ok {
			site.Confidence = conf
		}
		if area, ok := fieldFloat(rec, siteFieldAliases["area"]); ok {
			site.AreaM2 = area
		}
		if st, ok := fieldString(rec, siteFieldAliases["site_type"]); ok {
			site.SiteType = st
		}
		sites = append(sites, site)
	}
	return NormalizeSites(sites)
}

// wrapLongitude maps any longitude onto [-180,180).
func wrapLongitude(lon float64) float64 {
	wrapped := math.Mod(lon+180, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped - 180
}

func clampLatitude(lat float64) float64 {
	if lat < -90 {
		return -90
	}
	if lat > 90 {
		return 90
	}
	return lat
}

func fieldFloat(rec map[string]any, aliases []string) (float64, bool) {
	for _, key := range aliases {
		v, ok := lookupFold(rec, key)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float64:
			return val, true
		case int:
			return float64(val), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func fieldString(rec map[string]any, aliases []string) (string, bool) {
	for _, key := range aliases {
		if v, ok := lookupFold(rec, key); ok {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	return "", false
}

func lookupFold(rec map[string]any, key string) (any, bool) {
	if v, ok := rec[key]; ok {
		return v, true
	}
	for k, v := range rec {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
