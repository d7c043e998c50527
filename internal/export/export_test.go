package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landmark-labs/sitescan/internal/model"
)

func sampleResult() *model.PipelineResult {
	m := model.NewManifest("run-42", model.ModeLive, nil)
	m.Complete()
	return &model.PipelineResult{
		RunID:    "run-42",
		Status:   m.Status,
		Manifest: m,
		Sites: []model.DetectionSite{
			{
				ID: "SITE_0001", Lat: 35.0625, Lon: 44.0344,
				PixelCount: 9, AreaM2: 8100, Intensity: 0.91,
				Confidence: 83.2, Priority: model.PriorityHigh,
				SiteType:    "settlement",
				Recommended: "Field verification recommended - high probability",
				Breakdown: &model.ScoreBreakdown{
					Confidence: 83.2,
					Factors:    []model.FactorScore{{Name: "spectral_anomaly", Score: 0.9, Weight: 0.58, Contribution: 0.525}},
				},
			},
			{ID: "SITE_0002", Lat: 35.07, Lon: 44.04, PixelCount: 4, AreaM2: 3600, Confidence: 41.0, Priority: model.PriorityLow},
		},
		Stats: model.RunStats{TotalScenes: 5, SiteCount: 2, HighPriority: 1, MeanConfidence: 62.1},
	}
}

func TestExport_AllFormats(t *testing.T) {
	dir := t.TempDir()
	artifacts, err := New().Export(context.Background(), sampleResult(), []string{"geojson", "csv", "xlsx"}, dir, "scan")
	require.NoError(t, err)

	// Three formats plus the manifest.
	require.Len(t, artifacts, 4)
	byFormat := map[string]model.OutputArtifact{}
	for _, a := range artifacts {
		byFormat[a.Format] = a

		data, rerr := os.ReadFile(a.Path)
		require.NoError(t, rerr)
		assert.Equal(t, int64(len(data)), a.SizeBytes)

		sum := sha256.Sum256(data)
		assert.Equal(t, hex.EncodeToString(sum[:]), a.ChecksumSHA256)
	}
	assert.Contains(t, byFormat, "geojson")
	assert.Contains(t, byFormat, "csv")
	assert.Contains(t, byFormat, "xlsx")
	assert.Contains(t, byFormat, "manifest")
}

func TestWriteGeoJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.geojson")
	require.NoError(t, WriteGeoJSON(path, sampleResult().Sites))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "FeatureCollection", parsed.Type)
	require.Len(t, parsed.Features, 2)
	assert.Equal(t, "Point", parsed.Features[0].Geometry.Type)
	assert.InDelta(t, 44.0344, parsed.Features[0].Geometry.Coordinates[0], 1e-6)
	assert.InDelta(t, 35.0625, parsed.Features[0].Geometry.Coordinates[1], 1e-6)
	assert.Equal(t, "SITE_0001", parsed.Features[0].Properties["id"])
	assert.Equal(t, "high", parsed.Features[0].Properties["priority"])
}

func TestWriteCSV_Header(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.csv")
	require.NoError(t, WriteCSV(path, sampleResult().Sites))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "id,lat,lon,confidence,priority")
	assert.Contains(t, content, "SITE_0001")
	assert.Contains(t, content, "83.2")
}

func TestExport_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	_, err := New().Export(context.Background(), sampleResult(), []string{"shapefile"}, dir, "scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	// Nothing was written.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExport_ManifestJSONIsParseable(t *testing.T) {
	dir := t.TempDir()
	_, err := New().Export(context.Background(), sampleResult(), []string{"csv"}, dir, "scan")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "scan_manifest.json"))
	require.NoError(t, err)

	var manifest model.Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, "run-42", manifest.RunID)
	assert.Equal(t, model.StatusSuccess, manifest.Status)
}
