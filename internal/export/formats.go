package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/landmark-labs/sitescan/internal/model"
)

// WriteGeoJSON writes sites as a point FeatureCollection.
func WriteGeoJSON(path string, sites []model.DetectionSite) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(sites))}
	for _, s := range sites {
		props := map[string]any{
			"id":                s.ID,
			"confidence":        s.Confidence,
			"priority":          string(s.Priority),
			"pixel_count":       s.PixelCount,
			"area_m2":           s.AreaM2,
			"anomaly_intensity": s.Intensity,
		}
		if s.SiteType != "" {
			props["site_type"] = s.SiteType
		}
		if s.Recommended != "" {
			props["recommended_action"] = s.Recommended
		}
		if s.Breakdown != nil && len(s.Breakdown.Factors) > 0 {
			factors := map[string]float64{}
			for _, f := range s.Breakdown.Factors {
				factors[f.Name] = f.Score
			}
			props["score_factors"] = factors
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         s.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{s.Lon, s.Lat}),
			Properties: props,
		})
	}

	data, err := json.MarshalIndent(&fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}

var csvHeader = []string{"id", "lat", "lon", "confidence", "priority", "pixel_count", "area_m2", "site_type", "recommended_action"}

// WriteCSV writes the canonical tabular site schema.
func WriteCSV(path string, sites []model.DetectionSite) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, s := range sites {
		row := []string{
			s.ID,
			strconv.FormatFloat(s.Lat, 'f', 6, 64),
			strconv.FormatFloat(s.Lon, 'f', 6, 64),
			confidenceCell(s.Confidence),
			string(s.Priority),
			strconv.Itoa(s.PixelCount),
			strconv.FormatFloat(s.AreaM2, 'f', 1, 64),
			s.SiteType,
			s.Recommended,
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteXLSX writes a workbook with a site sheet and a run summary sheet.
func WriteXLSX(path string, result *model.PipelineResult) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Sites")
	if err != nil {
		return eris.Wrap(err, "export: add sites sheet")
	}
	header := sheet.AddRow()
	for _, h := range csvHeader {
		header.AddCell().SetString(h)
	}
	for _, s := range result.Sites {
		row := sheet.AddRow()
		row.AddCell().SetString(s.ID)
		row.AddCell().SetFloat(s.Lat)
		row.AddCell().SetFloat(s.Lon)
		row.AddCell().SetFloat(s.Confidence)
		row.AddCell().SetString(string(s.Priority))
		row.AddCell().SetInt(s.PixelCount)
		row.AddCell().SetFloat(s.AreaM2)
		row.AddCell().SetString(s.SiteType)
		row.AddCell().SetString(s.Recommended)
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addKV := func(k, v string) {
		row := summary.AddRow()
		row.AddCell().SetString(k)
		row.AddCell().SetString(v)
	}
	addKV("run_id", result.RunID)
	addKV("status", string(result.Status))
	addKV("total_scenes", strconv.Itoa(result.Stats.TotalScenes))
	addKV("site_count", strconv.Itoa(result.Stats.SiteCount))
	addKV("high_priority", strconv.Itoa(result.Stats.HighPriority))
	addKV("mean_confidence", fmt.Sprintf("%.1f", result.Stats.MeanConfidence))
	if result.FailureReason != "" {
		addKV("failure_reason", result.FailureReason)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save xlsx")
	}
	return nil
}
