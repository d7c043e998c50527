// Package export serializes pipeline results to geographic and tabular
// interchange formats and records each written file as a checksummed
// manifest artifact.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/landmark-labs/sitescan/internal/model"
)

// Exporter writes result files under a base directory.
type Exporter struct {
	log *zap.Logger
}

func New() *Exporter {
	return &Exporter{log: zap.L().With(zap.String("component", "export"))}
}

// Export writes the requested formats plus the run manifest, returning one
// artifact record per file. Unknown formats fail before anything is
// written.
func (e *Exporter) Export(_ context.Context, result *model.PipelineResult, formats []string, outputDir, basename string) ([]model.OutputArtifact, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if basename == "" {
		basename = "sitescan_" + result.RunID
	}
	for _, format := range formats {
		switch format {
		case "geojson", "csv", "xlsx":
		default:
			return nil, eris.Errorf("export: unsupported format %q", format)
		}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "export: create output dir")
	}

	var artifacts []model.OutputArtifact
	write := func(format, path string, fn func(string) error) error {
		if err := fn(path); err != nil {
			return err
		}
		artifact, err := describeArtifact(format, path)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, artifact)
		e.log.Info("wrote export", zap.String("format", format), zap.String("path", path))
		return nil
	}

	for _, format := range formats {
		path := filepath.Join(outputDir, basename+"."+format)
		var err error
		switch format {
		case "geojson":
			err = write(format, path, func(p string) error { return WriteGeoJSON(p, result.Sites) })
		case "csv":
			err = write(format, path, func(p string) error { return WriteCSV(p, result.Sites) })
		case "xlsx":
			err = write(format, path, func(p string) error { return WriteXLSX(p, result) })
		}
		if err != nil {
			return nil, err
		}
	}

	// The manifest rides along with every export so results stay auditable
	// next to the data they describe.
	manifestPath := filepath.Join(outputDir, basename+"_manifest.json")
	if err := write("manifest", manifestPath, func(p string) error {
		return writeManifestJSON(p, result.Manifest)
	}); err != nil {
		return nil, err
	}

	return artifacts, nil
}

func writeManifestJSON(path string, manifest *model.Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write manifest")
	}
	return nil
}

func describeArtifact(format, path string) (model.OutputArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.OutputArtifact{}, eris.Wrap(err, "export: stat artifact")
	}
	sum := sha256.Sum256(data)
	return model.OutputArtifact{
		Path:           path,
		Format:         format,
		SizeBytes:      int64(len(data)),
		ChecksumSHA256: hex.EncodeToString(sum[:]),
	}, nil
}

func confidenceCell(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
