package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realIndicator(name string) ComputedIndicator {
	return ComputedIndicator{
		Name:                 name,
		Formula:              "(B08-B04)/(B08+B04)",
		BandsUsed:            []string{"B08", "B04"},
		CompositeMethod:      CompositeMeanOverTime,
		ComputedFromRealData: true,
	}
}

func TestManifest_InitialState(t *testing.T) {
	m := NewManifest("run-1", ModeLive, nil)
	assert.Equal(t, StatusInit, m.Status)
	assert.False(t, m.Status.Terminal())
	assert.False(t, m.CanComputeLikelihood())
}

func TestManifest_CompleteSetsSuccess(t *testing.T) {
	m := NewManifest("run-1", ModeLive, nil)
	m.AddIndicator(realIndicator("NDVI"))
	m.Complete()

	assert.Equal(t, StatusSuccess, m.Status)
	assert.True(t, m.CanComputeLikelihood())
	assert.False(t, m.CompletedAt.IsZero())
}

func TestManifest_DemoModeWinsOverLaterComplete(t *testing.T) {
	m := NewManifest("run-1", ModeDemo, nil)
	m.MarkDemoMode()
	m.AddIndicator(ComputedIndicator{Name: "NDVI", ComputedFromRealData: false})
	m.Complete()

	assert.Equal(t, StatusDemoMode, m.Status)
	assert.False(t, m.CanComputeLikelihood())
}

func TestManifest_TerminalStatusSetOnce(t *testing.T) {
	m := NewManifest("run-1", ModeLive, nil)
	m.Fail("no scenes found", StatusNoData)
	require.Equal(t, StatusNoData, m.Status)

	// Later transitions must not overwrite the terminal outcome.
	m.Fail("auth failed", StatusLiveFailed)
	m.MarkDemoMode()
	m.Complete()

	assert.Equal(t, StatusNoData, m.Status)
	assert.Equal(t, "no scenes found", m.FailureReason)
}

func TestManifest_DegradeYieldsPartial(t *testing.T) {
	m := NewManifest("run-1", ModeLive, nil)
	m.AddIndicator(realIndicator("NDVI"))
	m.Degrade("ground truth file unreadable, skipping evaluation")
	m.Complete()

	assert.Equal(t, StatusPartial, m.Status)
	assert.True(t, m.CanComputeLikelihood())
	assert.Len(t, m.Warnings, 1)
}

func TestManifest_CanComputeLikelihood(t *testing.T) {
	mixed := []ComputedIndicator{
		realIndicator("NDVI"),
		{Name: "NDWI", ComputedFromRealData: false},
	}

	tests := []struct {
		name       string
		status     ManifestStatus
		indicators []ComputedIndicator
		want       bool
	}{
		{"success with real indicators", StatusSuccess, []ComputedIndicator{realIndicator("NDVI")}, true},
		{"partial with real indicators", StatusPartial, []ComputedIndicator{realIndicator("NDVI")}, true},
		{"success with no indicators", StatusSuccess, nil, false},
		{"success with one synthetic indicator", StatusSuccess, mixed, false},
		{"demo mode", StatusDemoMode, []ComputedIndicator{realIndicator("NDVI")}, false},
		{"no data", StatusNoData, []ComputedIndicator{realIndicator("NDVI")}, false},
		{"live failed", StatusLiveFailed, []ComputedIndicator{realIndicator("NDVI")}, false},
		{"init", StatusInit, []ComputedIndicator{realIndicator("NDVI")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{Status: tt.status, Indicators: tt.indicators}
			assert.Equal(t, tt.want, m.CanComputeLikelihood())
		})
	}
}

func TestManifest_AppendOnlyRecords(t *testing.T) {
	m := NewManifest("run-1", ModeLive, nil)

	m.AddDataSource(DataSourceRecord{Provider: "stac", TotalScenes: 3})
	m.AddStep(ProcessingStepRecord{Name: "fetch", Status: StepSuccess})
	m.AddStep(ProcessingStepRecord{Name: "indices", Status: StepSuccess})
	m.AddOutput(OutputArtifact{Path: "out.geojson", Format: "geojson"})
	m.AddWarning("cloudy scene skipped")

	assert.Len(t, m.DataSources, 1)
	assert.Len(t, m.Steps, 2)
	assert.Len(t, m.Outputs, 1)
	assert.Len(t, m.Warnings, 1)
	assert.False(t, m.DataSources[0].CreatedAt.IsZero())
}
