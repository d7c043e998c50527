package model

import (
	"time"
)

// ManifestStatus is the terminal outcome of a pipeline run.
type ManifestStatus string

const (
	// StatusInit is the initial state before any stage has run.
	StatusInit ManifestStatus = "INIT"
	// StatusSuccess means all stages completed using verified real data.
	StatusSuccess ManifestStatus = "SUCCESS"
	// StatusPartial means an optional stage was skipped due to a recoverable
	// condition; downstream stages may still append to the manifest.
	StatusPartial ManifestStatus = "PARTIAL"
	// StatusNoData means a fetch stage returned zero usable scenes.
	StatusNoData ManifestStatus = "NO_DATA"
	// StatusLiveFailed means authentication or an unrecoverable provider
	// failure aborted the run.
	StatusLiveFailed ManifestStatus = "LIVE_FAILED"
	// StatusDemoMode means at least one stage substituted synthetic data
	// for real input.
	StatusDemoMode ManifestStatus = "DEMO_MODE"
)

// Terminal reports whether the status can no longer change.
// PARTIAL is sticky for failure purposes but may still be upgraded by
// appending records; it is not terminal.
func (s ManifestStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusNoData, StatusLiveFailed, StatusDemoMode:
		return true
	default:
		return false
	}
}

// RunMode selects between live provider data and synthetic demo data.
type RunMode string

const (
	ModeLive RunMode = "live"
	ModeDemo RunMode = "demo"
)

// StepStatus records the outcome of a single processing step.
type StepStatus string

const (
	StepSuccess StepStatus = "SUCCESS"
	StepFailed  StepStatus = "FAILED"
	StepSkipped StepStatus = "SKIPPED"
)

// CompositeMethod records how a multi-temporal stack was reduced.
type CompositeMethod string

const (
	CompositeSingle       CompositeMethod = "single"
	CompositeMeanOverTime CompositeMethod = "mean-over-time"
)

// DataSourceRecord describes one data source consumed by a run. It is
// created when a fetch stage completes and never mutated afterwards.
type DataSourceRecord struct {
	Provider        string    `json:"provider"`
	Collection      string    `json:"collection"`
	SceneIDs        []string  `json:"scene_ids"`
	TimeStart       time.Time `json:"time_start"`
	TimeEnd         time.Time `json:"time_end"`
	ResolutionM     float64   `json:"resolution_m"`
	TotalScenes     int       `json:"total_scenes"`
	ProcessedScenes int       `json:"processed_scenes"`
	MeanCloudCover  float64   `json:"mean_cloud_cover"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProcessingStepRecord is the audit record for one pipeline stage.
type ProcessingStepRecord struct {
	Name        string         `json:"name"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Status      StepStatus     `json:"status"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// ComputedIndicator records one derived spectral index. ComputedFromRealData
// is the authenticity flag consulted by the likelihood gate.
type ComputedIndicator struct {
	Name                 string          `json:"name"`
	Formula              string          `json:"formula"`
	BandsUsed            []string        `json:"bands_used"`
	CompositeMethod      CompositeMethod `json:"composite_method"`
	ComputedFromRealData bool            `json:"computed_from_real_data"`
	CreatedAt            time.Time       `json:"created_at"`
}

// OutputArtifact records a file written by the export stage.
type OutputArtifact struct {
	Path           string    `json:"path"`
	Format         string    `json:"format"`
	SizeBytes      int64     `json:"size_bytes"`
	ChecksumSHA256 string    `json:"checksum_sha256,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Manifest is the append-only provenance record for one pipeline run.
// Records are immutable once appended; the status follows the state machine
// INIT -> {DEMO_MODE | SUCCESS | PARTIAL | NO_DATA | LIVE_FAILED}.
type Manifest struct {
	RunID         string                 `json:"run_id"`
	Mode          RunMode                `json:"mode"`
	StartedAt     time.Time              `json:"started_at"`
	CompletedAt   time.Time              `json:"completed_at,omitzero"`
	Status        ManifestStatus         `json:"status"`
	DataSources   []DataSourceRecord     `json:"data_sources"`
	Steps         []ProcessingStepRecord `json:"processing_steps"`
	Indicators    []ComputedIndicator    `json:"indicators"`
	Outputs       []OutputArtifact       `json:"outputs"`
	Warnings      []string               `json:"warnings,omitempty"`
	FailureReason string                 `json:"failure_reason,omitempty"`
	RequestParams map[string]any         `json:"request_params,omitempty"`
}

// NewManifest creates a manifest in the INIT state.
func NewManifest(runID string, mode RunMode, params map[string]any) *Manifest {
	return &Manifest{
		RunID:         runID,
		Mode:          mode,
		StartedAt:     time.Now().UTC(),
		Status:        StatusInit,
		RequestParams: params,
	}
}

// AddDataSource appends a data source record with its creation timestamp.
func (m *Manifest) AddDataSource(src DataSourceRecord) {
	src.CreatedAt = time.Now().UTC()
	m.DataSources = append(m.DataSources, src)
}

// AddStep appends a processing step record.
func (m *Manifest) AddStep(step ProcessingStepRecord) {
	m.Steps = append(m.Steps, step)
}

// AddIndicator appends a computed indicator record.
func (m *Manifest) AddIndicator(ind ComputedIndicator) {
	ind.CreatedAt = time.Now().UTC()
	m.Indicators = append(m.Indicators, ind)
}

// AddOutput appends an output artifact record.
func (m *Manifest) AddOutput(out OutputArtifact) {
	out.CreatedAt = time.Now().UTC()
	m.Outputs = append(m.Outputs, out)
}

// AddWarning appends a warning message.
func (m *Manifest) AddWarning(msg string) {
	m.Warnings = append(m.Warnings, msg)
}

// MarkDemoMode forces DEMO_MODE. Synthetic data taints the run regardless
// of later success, so this transition wins over any subsequent Complete.
func (m *Manifest) MarkDemoMode() {
	if m.Status.Terminal() {
		return
	}
	m.Status = StatusDemoMode
}

// Fail records a terminal failure with a human-readable reason. Status must
// be NO_DATA or LIVE_FAILED; a terminal status is set at most once.
func (m *Manifest) Fail(reason string, status ManifestStatus) {
	if m.Status.Terminal() {
		return
	}
	m.Status = status
	m.FailureReason = reason
	m.CompletedAt = time.Now().UTC()
}

// Degrade moves the run to PARTIAL when an optional stage is skipped for a
// recoverable reason. It never downgrades a terminal status.
func (m *Manifest) Degrade(reason string) {
	m.AddWarning(reason)
	if m.Status.Terminal() {
		return
	}
	m.Status = StatusPartial
}

// Complete marks the run finished. A PARTIAL run stays PARTIAL; a run
// already forced to DEMO_MODE or a failure status is left untouched.
func (m *Manifest) Complete() {
	if !m.Status.Terminal() && m.Status != StatusPartial {
		m.Status = StatusSuccess
	}
	m.CompletedAt = time.Now().UTC()
}

// CanComputeLikelihood is the single gate consulted before scoring. It
// returns true if and only if the status is SUCCESS or PARTIAL and every
// recorded indicator was computed from real data. A run with no indicators
// has nothing for the scorer to consume and is not scorable.
func (m *Manifest) CanComputeLikelihood() bool {
	if m.Status != StatusSuccess && m.Status != StatusPartial {
		return false
	}
	if len(m.Indicators) == 0 {
		return false
	}
	for _, ind := range m.Indicators {
		if !ind.ComputedFromRealData {
			return false
		}
	}
	return true
}
