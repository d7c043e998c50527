package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// AOI is a geographic bounding box in WGS84 degrees.
type AOI struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Validate checks coordinate ranges and box orientation.
func (a AOI) Validate() error {
	if a.MinLat < -90 || a.MaxLat > 90 {
		return eris.Errorf("aoi: latitude bounds [%f,%f] out of range [-90,90]", a.MinLat, a.MaxLat)
	}
	if a.MinLon < -180 || a.MaxLon > 180 {
		return eris.Errorf("aoi: longitude bounds [%f,%f] out of range [-180,180]", a.MinLon, a.MaxLon)
	}
	if a.MinLat >= a.MaxLat || a.MinLon >= a.MaxLon {
		return eris.New("aoi: min bounds must be strictly less than max bounds")
	}
	return nil
}

// CenterLat returns the latitude of the box center, used for meters-per-degree
// approximations.
func (a AOI) CenterLat() float64 {
	return (a.MinLat + a.MaxLat) / 2
}

// TimeRange is the acquisition window for scene search.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PipelineRequest carries all inputs for one pipeline run.
type PipelineRequest struct {
	AOI             AOI       `json:"aoi"`
	TimeRange       TimeRange `json:"time_range"`
	Mode            RunMode   `json:"mode"`
	MaxCloudCover   int       `json:"max_cloud_cover"`
	Contamination   float64   `json:"contamination"`
	Seed            int64     `json:"seed"`
	Bands           []string  `json:"bands,omitempty"`
	GroundTruthPath string    `json:"ground_truth_path,omitempty"`
	ExportFormats   []string  `json:"export_formats,omitempty"`
	OutputDir       string    `json:"output_dir,omitempty"`
	Basename        string    `json:"basename,omitempty"`
}

var validExportFormats = map[string]bool{
	"geojson": true,
	"csv":     true,
	"xlsx":    true,
}

// Validate rejects malformed requests before the pipeline starts. A
// configuration error never reaches the stage sequence.
func (r *PipelineRequest) Validate() error {
	if r.Mode != ModeLive && r.Mode != ModeDemo {
		return eris.Errorf("request: invalid mode %q, must be %q or %q", r.Mode, ModeLive, ModeDemo)
	}
	if err := r.AOI.Validate(); err != nil {
		return err
	}
	if r.TimeRange.Start.IsZero() || r.TimeRange.End.IsZero() {
		return eris.New("request: time range start and end are required")
	}
	if r.TimeRange.Start.After(r.TimeRange.End) {
		return eris.New("request: time range start must not be after end")
	}
	if r.Contamination <= 0 || r.Contamination >= 1 {
		return eris.Errorf("request: contamination %f must be in (0,1)", r.Contamination)
	}
	if r.MaxCloudCover < 0 || r.MaxCloudCover > 100 {
		return eris.Errorf("request: max cloud cover %d must be in [0,100]", r.MaxCloudCover)
	}
	for _, f := range r.ExportFormats {
		if !validExportFormats[f] {
			return eris.Errorf("request: unsupported export format %q", f)
		}
	}
	return nil
}
