package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landmark-labs/sitescan/internal/model"
	"github.com/landmark-labs/sitescan/internal/provider"
	"github.com/landmark-labs/sitescan/internal/raster"
	"github.com/landmark-labs/sitescan/internal/resilience"
	"github.com/landmark-labs/sitescan/internal/scorer"
)

// fakeProvider scripts fetch outcomes for orchestrator tests.
type fakeProvider struct {
	results []*provider.FetchResult
	calls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(context.Context, model.AOI, model.TimeRange, int) ([]provider.SceneDescriptor, error) {
	return nil, nil
}

func (f *fakeProvider) FetchBands(context.Context, []string, model.AOI, model.TimeRange, int) *provider.FetchResult {
	res := f.results[f.calls]
	if f.calls < len(f.results)-1 {
		f.calls++
	}
	return res
}

type truthFunc func(ctx context.Context, source string) ([]model.GroundTruthSite, error)

func (f truthFunc) Load(ctx context.Context, source string) ([]model.GroundTruthSite, error) {
	return f(ctx, source)
}

func testRequest() model.PipelineRequest {
	return model.PipelineRequest{
		AOI:  model.AOI{MinLon: 44.0, MinLat: 35.0, MaxLon: 44.1, MaxLat: 35.1},
		Mode: model.ModeLive,
		TimeRange: model.TimeRange{
			Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		MaxCloudCover: 20,
		Contamination: 0.05,
		Seed:          42,
	}
}

// liveBands builds real-looking 16x16 band stacks with a block of stressed
// vegetation so the detector has something to isolate.
func liveBands(scenes int) *provider.FetchResult {
	size := 16
	mk := func(base float64, patchDelta float64) *raster.Cube {
		cube := raster.NewCube(1, size, size)
		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				v := base + 0.002*float64((r*size+c)%11)
				if r >= 4 && r < 7 && c >= 4 && c < 7 {
					v += patchDelta
				}
				cube.Set(0, r, c, v)
			}
		}
		return cube
	}
	descriptors := make([]provider.SceneDescriptor, scenes)
	for i := range descriptors {
		descriptors[i] = provider.SceneDescriptor{
			ID:         "S2_" + time.Date(2024, 3, 1+i%28, 0, 0, 0, 0, time.UTC).Format("20060102"),
			Collection: "sentinel-2-l2a",
			CloudCover: 10,
		}
	}
	return provider.Ok(map[string]*raster.Cube{
		"B03": mk(0.30, 0.05),
		"B04": mk(0.25, 0.20),
		"B08": mk(0.60, -0.25),
		"B12": mk(0.20, 0.15),
	}, descriptors)
}

func newPipeline(p provider.Provider, truth TruthLoader) *Pipeline {
	return New(p, truth, scorer.New(scorer.DefaultConfig()), nil, nil, Options{
		Retry:         resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, JitterFraction: 0},
		MinSitePixels: 1,
	})
}

func TestRun_NoScenes(t *testing.T) {
	p := newPipeline(&fakeProvider{results: []*provider.FetchResult{provider.Empty()}}, nil)

	res, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusNoData, res.Status)
	assert.Empty(t, res.Sites)
	assert.False(t, res.Manifest.CanComputeLikelihood())
	assert.NotEmpty(t, res.FailureReason)
	assert.Contains(t, res.FailureReason, "time range")
}

func TestRun_AuthFailureIsTerminal(t *testing.T) {
	fp := &fakeProvider{results: []*provider.FetchResult{
		provider.Failed(resilience.NewAuthError(errors.New("401 unauthorized"))),
	}}
	p := newPipeline(fp, nil)

	res, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusLiveFailed, res.Status)
	assert.Contains(t, res.FailureReason, "authentication")
	assert.Equal(t, 0, fp.calls, "auth errors must not be retried")
}

func TestRun_TransientFailureRetried(t *testing.T) {
	fp := &fakeProvider{results: []*provider.FetchResult{
		provider.Failed(resilience.NewTransientError(errors.New("503"), 503)),
		liveBands(3),
	}}
	p := newPipeline(fp, nil)

	res, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, res.Status)
	assert.Equal(t, 1, fp.calls)
}

func TestRun_DemoModeClosesGate(t *testing.T) {
	p := newPipeline(provider.NewSyntheticProvider(42), nil)

	res, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusDemoMode, res.Status)
	assert.False(t, res.Manifest.CanComputeLikelihood())
	require.NotEmpty(t, res.Sites)
	for _, site := range res.Sites {
		assert.Zero(t, site.Confidence, site.ID)
		require.NotNil(t, site.Breakdown)
		assert.True(t, site.Breakdown.Unavailable)
	}
	for _, ind := range res.Manifest.Indicators {
		assert.False(t, ind.ComputedFromRealData)
	}
}

func TestRun_LiveSuccessScoresSites(t *testing.T) {
	p := newPipeline(&fakeProvider{results: []*provider.FetchResult{liveBands(86)}}, nil)

	res, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, res.Status)
	assert.Equal(t, 86, res.Stats.TotalScenes)
	assert.True(t, res.Manifest.CanComputeLikelihood())
	require.NotEmpty(t, res.Sites)

	for _, site := range res.Sites {
		assert.GreaterOrEqual(t, site.Confidence, 0.0)
		assert.LessOrEqual(t, site.Confidence, 100.0)
		require.NotNil(t, site.Breakdown)
		assert.False(t, site.Breakdown.Unavailable)

		var weightSum float64
		for _, f := range site.Breakdown.Factors {
			weightSum += f.Weight
		}
		assert.InDelta(t, 1.0, weightSum, 1e-9, site.ID)
	}

	for _, ind := range res.Manifest.Indicators {
		assert.True(t, ind.ComputedFromRealData)
	}

	// Every stage left its audit record.
	names := make([]string, 0, len(res.Manifest.Steps))
	for _, step := range res.Manifest.Steps {
		names = append(names, step.Name)
		assert.Equal(t, model.StepSuccess, step.Status, step.Name)
	}
	assert.Contains(t, names, "fetch_scenes")
	assert.Contains(t, names, "spectral_composite")
	assert.Contains(t, names, "anomaly_detection")
	assert.Contains(t, names, "coordinate_extraction")
	assert.Contains(t, names, "likelihood_scoring")
}

func TestRun_GroundTruthFailureDegradesToPartial(t *testing.T) {
	truth := truthFunc(func(context.Context, string) ([]model.GroundTruthSite, error) {
		return nil, errors.New("file not found")
	})
	p := newPipeline(&fakeProvider{results: []*provider.FetchResult{liveBands(5)}}, truth)

	req := testRequest()
	req.GroundTruthPath = "/missing/refs.geojson"
	res, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	// PARTIAL still passes the gate, so sites keep their scores.
	assert.Equal(t, model.StatusPartial, res.Status)
	assert.True(t, res.Manifest.CanComputeLikelihood())
	assert.NotEmpty(t, res.Manifest.Warnings)
	assert.Nil(t, res.Evaluation)
}

func TestRun_GroundTruthEvaluation(t *testing.T) {
	refs := []model.GroundTruthSite{{ID: "GT_1", Lat: 35.065, Lon: 44.035}}
	truth := truthFunc(func(context.Context, string) ([]model.GroundTruthSite, error) {
		return refs, nil
	})
	p := newPipeline(&fakeProvider{results: []*provider.FetchResult{liveBands(5)}}, truth)

	req := testRequest()
	req.GroundTruthPath = "refs.geojson"
	res, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, res.Evaluation)
	e := res.Evaluation
	assert.Equal(t, len(res.Sites), e.TruePositives+e.FalsePositives)
	assert.Equal(t, len(refs), e.TruePositives+e.FalseNegatives)
}

func TestRun_InvalidRequest(t *testing.T) {
	p := newPipeline(&fakeProvider{results: []*provider.FetchResult{liveBands(1)}}, nil)

	req := testRequest()
	req.Contamination = 0
	_, err := p.Run(context.Background(), req)
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	res := &model.PipelineResult{
		RunID:  "run-1",
		Status: model.StatusSuccess,
		Stats:  model.RunStats{TotalScenes: 3, TotalPixels: 10000, SiteCount: 2, MeanConfidence: 55.5},
	}
	out := Summary(res)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "10,000")
}
