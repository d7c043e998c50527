package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/landmark-labs/sitescan/internal/scorer"
)

// ScoringProfile is the YAML representation of scorer tuning. Omitted
// fields keep the built-in defaults.
type ScoringProfile struct {
	Weights struct {
		Spectral   *float64 `yaml:"spectral"`
		Spatial    *float64 `yaml:"spatial"`
		Landform   *float64 `yaml:"landform"`
		Historical *float64 `yaml:"historical"`
	} `yaml:"weights"`
	ClusterRadiusM *float64 `yaml:"cluster_radius_m"`
	MinClusterSize *int     `yaml:"min_cluster_size"`
	MaxNeighbors   *int     `yaml:"max_neighbors"`
	HistoricalMaxM *float64 `yaml:"historical_max_m"`
	MaxSlopeDeg    *float64 `yaml:"max_slope_deg"`
	MaxElevationM  *float64 `yaml:"max_elevation_m"`
}

// LoadScoringProfile reads a scoring profile from a YAML file and overlays
// it on the default scorer configuration. An empty path returns the
// defaults untouched.
func LoadScoringProfile(path string) (scorer.Config, error) {
	cfg := scorer.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "config: read scoring profile %s", path)
	}

	// The YAML has a top-level "scoring" key
	var wrapper struct {
		Scoring ScoringProfile `yaml:"scoring"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return cfg, eris.Wrap(err, "config: parse scoring profile")
	}
	p := wrapper.Scoring

	if p.Weights.Spectral != nil {
		cfg.SpectralWeight = *p.Weights.Spectral
	}
	if p.Weights.Spatial != nil {
		cfg.SpatialWeight = *p.Weights.Spatial
	}
	if p.Weights.Landform != nil {
		cfg.LandformWeight = *p.Weights.Landform
	}
	if p.Weights.Historical != nil {
		cfg.HistoricalWeight = *p.Weights.Historical
	}
	if p.ClusterRadiusM != nil {
		cfg.ClusterRadiusM = *p.ClusterRadiusM
	}
	if p.MinClusterSize != nil {
		cfg.MinClusterSize = *p.MinClusterSize
	}
	if p.MaxNeighbors != nil {
		cfg.MaxNeighbors = *p.MaxNeighbors
	}
	if p.HistoricalMaxM != nil {
		cfg.HistoricalMaxM = *p.HistoricalMaxM
	}
	if p.MaxSlopeDeg != nil {
		cfg.MaxSlopeDeg = *p.MaxSlopeDeg
	}
	if p.MaxElevationM != nil {
		cfg.MaxElevationM = *p.MaxElevationM
	}

	if err := validateScoring(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateScoring(cfg scorer.Config) error {
	for name, w := range map[string]float64{
		"spectral":   cfg.SpectralWeight,
		"spatial":    cfg.SpatialWeight,
		"landform":   cfg.LandformWeight,
		"historical": cfg.HistoricalWeight,
	} {
		if w < 0 {
			return eris.Errorf("config: scoring weight %s must not be negative, got %f", name, w)
		}
	}
	if cfg.SpectralWeight+cfg.SpatialWeight+cfg.LandformWeight+cfg.HistoricalWeight <= 0 {
		return eris.New("config: scoring weights must sum to a positive value")
	}
	if cfg.ClusterRadiusM <= 0 || cfg.HistoricalMaxM <= 0 {
		return eris.New("config: scoring radii must be positive")
	}
	return nil
}
