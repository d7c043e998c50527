package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityForConfidence(t *testing.T) {
	tests := []struct {
		confidence float64
		want       Priority
	}{
		{95, PriorityHigh},
		{80, PriorityHigh},
		{79.9, PriorityMedium},
		{60, PriorityMedium},
		{59.9, PriorityLow},
		{0, PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityForConfidence(tt.confidence), "confidence %f", tt.confidence)
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-5))
	assert.Equal(t, 100.0, ClampConfidence(120))
	assert.Equal(t, 42.5, ClampConfidence(42.5))
}

func TestDetectionSite_Validate(t *testing.T) {
	valid := DetectionSite{ID: "SITE_0001", Lat: 25.1, Lon: 30.2, Confidence: 80}
	assert.NoError(t, valid.Validate())

	badLat := DetectionSite{ID: "SITE_0002", Lat: 91, Lon: 0}
	assert.Error(t, badLat.Validate())

	badLon := DetectionSite{ID: "SITE_0003", Lat: 0, Lon: -181}
	assert.Error(t, badLon.Validate())

	badConf := DetectionSite{ID: "SITE_0004", Lat: 0, Lon: 0, Confidence: 101}
	assert.Error(t, badConf.Validate())
}

func TestRequestValidate(t *testing.T) {
	base := func() PipelineRequest {
		return PipelineRequest{
			AOI:           AOI{MinLon: 30, MinLat: 25, MaxLon: 31, MaxLat: 26},
			TimeRange:     TimeRange{Start: mustTime(t, "2024-01-01"), End: mustTime(t, "2024-03-01")},
			Mode:          ModeLive,
			MaxCloudCover: 30,
			Contamination: 0.1,
		}
	}

	ok := base()
	assert.NoError(t, ok.Validate())

	badMode := base()
	badMode.Mode = "replay"
	assert.Error(t, badMode.Validate())

	badDates := base()
	badDates.TimeRange.Start, badDates.TimeRange.End = badDates.TimeRange.End, badDates.TimeRange.Start
	assert.Error(t, badDates.Validate())

	badContamination := base()
	badContamination.Contamination = 1.5
	assert.Error(t, badContamination.Validate())

	badCloud := base()
	badCloud.MaxCloudCover = 130
	assert.Error(t, badCloud.Validate())

	badFormat := base()
	badFormat.ExportFormats = []string{"kmz"}
	assert.Error(t, badFormat.Validate())
}
