package model

// RunStats aggregates per-run statistics for reporting and audit logging.
type RunStats struct {
	TotalScenes     int     `json:"total_scenes"`
	TotalPixels     int     `json:"total_pixels"`
	AnomalyPixels   int     `json:"anomaly_pixels"`
	AnomalyPct      float64 `json:"anomaly_pct"`
	SiteCount       int     `json:"site_count"`
	HighPriority    int     `json:"high_priority_count"`
	MeanConfidence  float64 `json:"mean_confidence"`
	TotalSiteAreaM2 float64 `json:"total_site_area_m2"`
	ElapsedMS       int64   `json:"elapsed_ms"`
}

// PipelineResult is the terminal output of one pipeline run. It is owned
// exclusively by that run and never shared or merged across runs.
type PipelineResult struct {
	RunID         string            `json:"run_id"`
	Status        ManifestStatus    `json:"status"`
	Manifest      *Manifest         `json:"manifest"`
	Sites         []DetectionSite   `json:"sites"`
	Stats         RunStats          `json:"stats"`
	Evaluation    *Evaluation       `json:"evaluation,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	ExportPaths   map[string]string `json:"export_paths,omitempty"`
}

// Succeeded reports whether the run produced scorable output.
func (r *PipelineResult) Succeeded() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartial
}
