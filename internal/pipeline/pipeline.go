// Package pipeline sequences the detection stages for one run: fetch,
// composite, detect, extract, score, evaluate, export. Each run owns its
// manifest and result; nothing is shared across runs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/landmark-labs/sitescan/internal/detector"
	"github.com/landmark-labs/sitescan/internal/evaluator"
	"github.com/landmark-labs/sitescan/internal/extractor"
	"github.com/landmark-labs/sitescan/internal/model"
	"github.com/landmark-labs/sitescan/internal/provider"
	"github.com/landmark-labs/sitescan/internal/raster"
	"github.com/landmark-labs/sitescan/internal/resilience"
	"github.com/landmark-labs/sitescan/internal/scorer"
)

// TruthLoader resolves a path or URL to reference sites.
type TruthLoader interface {
	Load(ctx context.Context, source string) ([]model.GroundTruthSite, error)
}

// RunStore persists completed runs.
type RunStore interface {
	SaveRun(ctx context.Context, result *model.PipelineResult) error
}

// Exporter serializes a result to interchange formats, returning one
// artifact record per written file.
type Exporter interface {
	Export(ctx context.Context, result *model.PipelineResult, formats []string, outputDir, basename string) ([]model.OutputArtifact, error)
}

// Options tunes stage behavior. Zero values fall back to defaults.
type Options struct {
	Retry          resilience.RetryConfig
	NumTrees       int
	SampleSize     int
	MinSitePixels  int
	MatchDistanceM float64
}

// Pipeline wires the stages together. Store and Exporter are optional;
// a nil TruthLoader disables the evaluation stage.
type Pipeline struct {
	provider provider.Provider
	truth    TruthLoader
	scorer   *scorer.Scorer
	store    RunStore
	exporter Exporter
	opts     Options
}

func New(p provider.Provider, truth TruthLoader, sc *scorer.Scorer, store RunStore, exporter Exporter, opts Options) *Pipeline {
	if opts.MinSitePixels <= 0 {
		opts.MinSitePixels = 3
	}
	if opts.MatchDistanceM <= 0 {
		opts.MatchDistanceM = evaluator.DefaultMatchDistanceM
	}
	return &Pipeline{provider: p, truth: truth, scorer: sc, store: store, exporter: exporter, opts: opts}
}

// Run executes one pipeline run. A malformed request is the only condition
// reported through the error return; every runtime failure is recorded on
// the manifest and surfaced as a structured result instead.
func (p *Pipeline) Run(ctx context.Context, req model.PipelineRequest) (*model.PipelineResult, error) {
	if err := req.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: invalid request")
	}

	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID), zap.String("mode", string(req.Mode)))
	log.Info("pipeline: starting run")
	started := time.Now()

	manifest := model.NewManifest(runID, req.Mode, map[string]any{
		"aoi":             req.AOI,
		"time_range":      req.TimeRange,
		"max_cloud_cover": req.MaxCloudCover,
		"contamination":   req.Contamination,
		"seed":            req.Seed,
	})
	result := &model.PipelineResult{RunID: runID, Manifest: manifest}

	// recordStep appends the audit record for one stage before control
	// passes onward, so partial runs stay fully traceable.
	recordStep := func(name string, fn func() (map[string]any, error)) error {
		step := model.ProcessingStepRecord{Name: name, StartedAt: time.Now().UTC()}
		outputs, err := fn()
		step.CompletedAt = time.Now().UTC()
		step.Outputs = outputs
		if err != nil {
			step.Status = model.StepFailed
			step.Error = err.Error()
			log.Error("pipeline: stage failed", zap.String("stage", name), zap.Error(err))
		} else {
			step.Status = model.StepSuccess
			log.Info("pipeline: stage complete", zap.String("stage", name))
		}
		manifest.AddStep(step)
		return err
	}

	finish := func() *model.PipelineResult {
		manifest.Complete()
		result.Status = manifest.Status
		result.FailureReason = manifest.FailureReason
		result.Stats.ElapsedMS = time.Since(started).Milliseconds()
		log.Info("pipeline: run finished",
			zap.String("status", string(result.Status)),
			zap.Int("sites", len(result.Sites)),
			zap.Int64("elapsed_ms", result.Stats.ElapsedMS),
		)
		return result
	}

	// Stage 1: fetch band stacks, retrying transient provider errors.
	fetch, err := p.fetchStage(ctx, recordStep, manifest, req)
	if err != nil || fetch == nil {
		return finish(), nil
	}

	// Stage 2: composite over time and derive spectral indices.
	indices, err := p.spectralStage(recordStep, manifest, fetch)
	if err != nil {
		manifest.Fail(fmt.Sprintf("spectral stage failed: %v", err), model.StatusLiveFailed)
		return finish(), nil
	}
	// Release the raw band stacks; the detector works on indices only.
	fetch.Bands = nil

	// Stage 3: anomaly detection.
	var det *detector.Result
	err = recordStep("anomaly_detection", func() (map[string]any, error) {
		var derr error
		det, derr = detector.Detect(indices, detector.Config{
			Contamination: req.Contamination,
			NumTrees:      p.opts.NumTrees,
			SampleSize:    p.opts.SampleSize,
			Seed:          req.Seed,
		})
		if derr != nil {
			return nil, derr
		}
		return map[string]any{
			"total_pixels":   det.TotalPixels,
			"anomaly_pixels": det.AnomalyPixels,
			"anomaly_pct":    det.AnomalyPct,
		}, nil
	})
	if err != nil {
		manifest.Fail(fmt.Sprintf("anomaly detection failed: %v", err), model.StatusLiveFailed)
		return finish(), nil
	}

	// Stage 4: connected components to candidate sites.
	var sites []model.DetectionSite
	err = recordStep("coordinate_extraction", func() (map[string]any, error) {
		tr, terr := extractor.FromBounds(req.AOI, det.Mask.Rows, det.Mask.Cols)
		if terr != nil {
			return nil, terr
		}
		sites, terr = extractor.Extract(det.Mask, det.Surface, tr, extractor.Config{MinPixels: p.opts.MinSitePixels})
		if terr != nil {
			return nil, terr
		}
		return map[string]any{"sites": len(sites)}, nil
	})
	if err != nil {
		manifest.Fail(fmt.Sprintf("coordinate extraction failed: %v", err), model.StatusLiveFailed)
		return finish(), nil
	}

	// Stage 5: optional reference sites, for the historical factor and the
	// evaluation stage. A load failure degrades the run instead of killing it.
	var refs []model.GroundTruthSite
	if req.GroundTruthPath != "" && p.truth != nil {
		_ = recordStep("ground_truth_load", func() (map[string]any, error) {
			loaded, lerr := p.truth.Load(ctx, req.GroundTruthPath)
			if lerr != nil {
				manifest.Degrade(fmt.Sprintf("ground truth unavailable: %v", lerr))
				return nil, lerr
			}
			refs = loaded
			return map[string]any{"references": len(refs)}, nil
		})
		scorer.AttachNearestReference(sites, refs)
	}

	// The manifest must reach its resting status before the gate is
	// consulted; scoring is the first stage allowed to see it.
	manifest.Complete()

	// Stage 6: likelihood scoring behind the provenance gate.
	_ = recordStep("likelihood_scoring", func() (map[string]any, error) {
		sites = p.scorer.Score(manifest, sites)
		sites = NormalizeSites(sites)
		return map[string]any{"sites": len(sites), "gate_open": manifest.CanComputeLikelihood()}, nil
	})
	result.Sites = sites

	// Stage 7: accuracy assessment against the references.
	if len(refs) > 0 {
		_ = recordStep("ground_truth_evaluation", func() (map[string]any, error) {
			result.Evaluation = evaluator.Evaluate(sites, refs, p.opts.MatchDistanceM)
			return map[string]any{
				"true_positives": result.Evaluation.TruePositives,
				"precision":      result.Evaluation.Precision,
				"recall":         result.Evaluation.Recall,
				"f1":             result.Evaluation.F1,
			}, nil
		})
	}

	result.Stats = computeStats(fetch, det, sites)
	result.Stats.ElapsedMS = time.Since(started).Milliseconds()

	// Stage 8: exports, recorded as checksummed artifacts.
	if p.exporter != nil && len(req.ExportFormats) > 0 {
		_ = recordStep("export", func() (map[string]any, error) {
			result.Status = manifest.Status
			artifacts, xerr := p.exporter.Export(ctx, result, req.ExportFormats, req.OutputDir, req.Basename)
			if xerr != nil {
				manifest.Degrade(fmt.Sprintf("export failed: %v", xerr))
				return nil, xerr
			}
			result.ExportPaths = make(map[string]string, len(artifacts))
			for _, a := range artifacts {
				manifest.AddOutput(a)
				result.ExportPaths[a.Format] = a.Path
			}
			return map[string]any{"artifacts": len(artifacts)}, nil
		})
	}

	res := finish()

	if p.store != nil {
		if serr := p.store.SaveRun(ctx, res); serr != nil {
			log.Warn("pipeline: failed to persist run", zap.Error(serr))
		}
	}
	return res, nil
}

// fetchStage retrieves band stacks with bounded retries. It returns a nil
// result (with the manifest already failed) for the NO_DATA and
// LIVE_FAILED outcomes.
func (p *Pipeline) fetchStage(ctx context.Context, recordStep func(string, func() (map[string]any, error)) error, manifest *model.Manifest, req model.PipelineRequest) (*provider.FetchResult, error) {
	var fetch *provider.FetchResult
	err := recordStep("fetch_scenes", func() (map[string]any, error) {
		res, ferr := resilience.DoVal(ctx, p.opts.Retry, func(ctx context.Context) (*provider.FetchResult, error) {
			r := p.provider.FetchBands(ctx, req.Bands, req.AOI, req.TimeRange, req.MaxCloudCover)
			if r.Status == provider.FetchFailed {
				return nil, r.Err
			}
			return r, nil
		})
		if ferr != nil {
			return nil, ferr
		}
		fetch = res
		return map[string]any{"status": string(res.Status), "scenes": len(res.Scenes)}, nil
	})

	if err != nil {
		if resilience.IsAuth(err) {
			manifest.Fail(fmt.Sprintf("provider authentication failed: %v; check the configured credentials", err), model.StatusLiveFailed)
		} else {
			manifest.Fail(fmt.Sprintf("provider unavailable after retries: %v", err), model.StatusLiveFailed)
		}
		return nil, err
	}

	if fetch.Status == provider.FetchEmpty {
		manifest.Fail(
			"no scenes matched the search; widen the time range or raise the cloud-cover tolerance",
			model.StatusNoData,
		)
		return nil, nil
	}

	if fetch.Synthetic {
		manifest.MarkDemoMode()
	}

	scenes := fetch.Scenes
	src := model.DataSourceRecord{
		Provider:        p.provider.Name(),
		TimeStart:       req.TimeRange.Start,
		TimeEnd:         req.TimeRange.End,
		TotalScenes:     len(scenes),
		ProcessedScenes: len(scenes),
	}
	for _, s := range scenes {
		src.SceneIDs = append(src.SceneIDs, s.ID)
		src.MeanCloudCover += s.CloudCover
		src.Collection = s.Collection
		src.ResolutionM = s.ResolutionM
	}
	if len(scenes) > 0 {
		src.MeanCloudCover /= float64(len(scenes))
	}
	manifest.AddDataSource(src)
	return fetch, nil
}

// spectralStage composites each band over time and derives the index set,
// recording one indicator per index with its authenticity flag.
func (p *Pipeline) spectralStage(recordStep func(string, func() (map[string]any, error)) error, manifest *model.Manifest, fetch *provider.FetchResult) (map[string]*raster.Grid, error) {
	var indices map[string]*raster.Grid
	err := recordStep("spectral_composite", func() (map[string]any, error) {
		composites := make(map[string]*raster.Grid, len(fetch.Bands))
		method := model.CompositeSingle
		for name, cube := range fetch.Bands {
			grid, cerr := cube.CompositeMean()
			if cerr != nil {
				return nil, cerr
			}
			if cube.Times > 1 {
				method = model.CompositeMeanOverTime
			}
			composites[name] = grid
		}

		var ierr error
		indices, ierr = raster.ComputeIndices(composites)
		if ierr != nil {
			return nil, ierr
		}

		for name := range indices {
			spec, _ := raster.SpecFor(name)
			manifest.AddIndicator(model.ComputedIndicator{
				Name:                 name,
				Formula:              spec.Formula,
				BandsUsed:            spec.Bands,
				CompositeMethod:      method,
				ComputedFromRealData: !fetch.Synthetic,
			})
		}
		return map[string]any{"indices": len(indices), "composite_method": string(method)}, nil
	})
	return indices, err
}

func computeStats(fetch *provider.FetchResult, det *detector.Result, sites []model.DetectionSite) model.RunStats {
	stats := model.RunStats{
		TotalScenes:   len(fetch.Scenes),
		TotalPixels:   det.TotalPixels,
		AnomalyPixels: det.AnomalyPixels,
		AnomalyPct:    det.AnomalyPct,
		SiteCount:     len(sites),
	}
	for _, s := range sites {
		stats.MeanConfidence += s.Confidence
		stats.TotalSiteAreaM2 += s.AreaM2
		if s.Priority == model.PriorityHigh {
			stats.HighPriority++
		}
	}
	if len(sites) > 0 {
		stats.MeanConfidence /= float64(len(sites))
	}
	return stats
}
