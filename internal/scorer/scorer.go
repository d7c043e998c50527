// Package scorer computes archaeological likelihood confidences for
// candidate sites. Scoring is gated on the run manifest: without real,
// usable data every site gets confidence 0 and an unavailable breakdown.
package scorer

import (
	"math"

	"go.uber.org/zap"

	"github.com/landmark-labs/sitescan/internal/model"
)

// Factor names as they appear in evidence breakdowns.
const (
	FactorSpectral   = "spectral_anomaly"
	FactorSpatial    = "spatial_clustering"
	FactorLandform   = "landform_suitability"
	FactorHistorical = "historical_context"
)

// Config holds factor weights and geometry thresholds.
type Config struct {
	SpectralWeight   float64
	SpatialWeight    float64
	LandformWeight   float64
	HistoricalWeight float64

	ClusterRadiusM  float64 // neighbor search radius
	MinClusterSize  int     // neighbors required before clustering counts
	MaxNeighbors    int     // neighbor count that saturates the spatial score
	HistoricalMaxM  float64 // influence radius for known reference sites
	MaxSlopeDeg     float64 // slope at which landform suitability reaches 0
	MaxElevationM   float64 // elevation at which landform suitability reaches 0
}

// DefaultConfig returns the standard weighting: spectral 0.35, spatial
// 0.25, landform 0.20, historical 0.20.
func DefaultConfig() Config {
	return Config{
		SpectralWeight:   0.35,
		SpatialWeight:    0.25,
		LandformWeight:   0.20,
		HistoricalWeight: 0.20,
		ClusterRadiusM:   500,
		MinClusterSize:   3,
		MaxNeighbors:     5,
		HistoricalMaxM:   5000,
		MaxSlopeDeg:      30,
		MaxElevationM:    3000,
	}
}

// Scorer scores detection sites against a manifest-backed provenance gate.
type Scorer struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg, log: zap.L().With(zap.String("component", "scorer"))}
}

// Score populates confidence, priority, and the evidence breakdown of every
// site in place. The provenance gate runs first: when the manifest cannot
// attest to real computed indicators, every site gets confidence 0 and an
// unavailable breakdown regardless of its features. Scoring is pure over
// its inputs, so repeated calls yield identical breakdowns.
func (s *Scorer) Score(manifest *model.Manifest, sites []model.DetectionSite) []model.DetectionSite {
	if len(sites) == 0 {
		return sites
	}

	if manifest == nil || !manifest.CanComputeLikelihood() {
		status := model.StatusInit
		if manifest != nil {
			status = manifest.Status
		}
		s.log.Warn("likelihood gate closed, zeroing confidences",
			zap.String("manifest_status", string(status)),
			zap.Int("sites", len(sites)),
		)
		for i := range sites {
			sites[i].Confidence = 0
			sites[i].Priority = model.PriorityForConfidence(0)
			sites[i].Breakdown = &model.ScoreBreakdown{Unavailable: true}
			sites[i].Recommended = model.RecommendedAction(sites[i].Priority, 0)
		}
		return sites
	}

	bgMean, bgStd := intensityBackground(sites)
	for i := range sites {
		breakdown := s.scoreSite(&sites[i], sites, bgMean, bgStd)
		sites[i].Breakdown = breakdown
		sites[i].Confidence = breakdown.Confidence
		sites[i].Priority = model.PriorityForConfidence(breakdown.Confidence)
		sites[i].Recommended = model.RecommendedAction(sites[i].Priority, breakdown.Confidence)
	}

	s.log.Info("scored sites", zap.Int("sites", len(sites)))
	return sites
}

// scoreSite evaluates the four evidence factors, renormalizes the weights
// of the available ones, and folds them into a [0,100] confidence.
func (s *Scorer) scoreSite(site *model.DetectionSite, all []model.DetectionSite, bgMean, bgStd float64) *model.ScoreBreakdown {
	type factor struct {
		name      string
		score     float64
		weight    float64
		available bool
	}

	factors := []factor{
		{FactorSpectral, s.spectralScore(site, bgMean, bgStd), s.cfg.SpectralWeight, true},
		{FactorSpatial, s.spatialScore(site, all), s.cfg.SpatialWeight, true},
	}
	if lf, ok := s.landformScore(site); ok {
		factors = append(factors, factor{FactorLandform, lf, s.cfg.LandformWeight, true})
	}
	if hc, ok := s.historicalScore(site); ok {
		factors = append(factors, factor{FactorHistorical, hc, s.cfg.HistoricalWeight, true})
	}

	var totalWeight float64
	for _, f := range factors {
		totalWeight += f.weight
	}

	breakdown := &model.ScoreBreakdown{}
	var confidence float64
	for _, f := range factors {
		applied := 0.0
		if totalWeight > 0 {
			applied = f.weight / totalWeight
		}
		contribution := f.score * applied
		confidence += contribution
		breakdown.Factors = append(breakdown.Factors, model.FactorScore{
			Name:         f.name,
			Score:        f.score,
			Weight:       applied,
			Contribution: contribution,
		})
	}

	breakdown.Confidence = model.ClampConfidence(confidence * 100)
	return breakdown
}

// spectralScore measures how far the site's anomaly intensity sits above
// the background of all candidate sites, in units of three standard
// deviations. With a degenerate background it falls back to the raw
// intensity, which is already normalized to [0,1].
func (s *Scorer) spectralScore(site *model.DetectionSite, bgMean, bgStd float64) float64 {
	if bgStd <= 0 {
		return clamp01(site.Intensity)
	}
	return clamp01((site.Intensity - bgMean) / (3 * bgStd))
}

// spatialScore counts other candidates within the clustering radius. Below
// the minimum cluster size the factor is 0; beyond it the score grows
// linearly and saturates at MaxNeighbors.
func (s *Scorer) spatialScore(site *model.DetectionSite, all []model.DetectionSite) float64 {
	if len(all) < 3 {
		return 0
	}
	neighbors := 0
	for i := range all {
		if &all[i] == site {
			continue
		}
		if HaversineM(site.Lat, site.Lon, all[i].Lat, all[i].Lon) < s.cfg.ClusterRadiusM {
			neighbors++
		}
	}
	if neighbors < s.cfg.MinClusterSize {
		return 0
	}
	return math.Min(1, float64(neighbors)/float64(s.cfg.MaxNeighbors))
}

// landformScore is available only when elevation or slope was attached to
// the site. Gentle slopes and low elevations score highest.
func (s *Scorer) landformScore(site *model.DetectionSite) (float64, bool) {
	if site.Elevation == nil && site.Slope == nil {
		return 0, false
	}
	var sum float64
	var n int
	if site.Slope != nil {
		sum += 1 - clamp01(*site.Slope/s.cfg.MaxSlopeDeg)
		n++
	}
	if site.Elevation != nil {
		sum += 1 - clamp01(*site.Elevation/s.cfg.MaxElevationM)
		n++
	}
	return sum / float64(n), true
}

// historicalScore is inverse-distance proximity to the nearest known
// reference, zero at the influence radius and beyond.
func (s *Scorer) historicalScore(site *model.DetectionSite) (float64, bool) {
	if site.NearestRefM == nil {
		return 0, false
	}
	d := math.Min(*site.NearestRefM, s.cfg.HistoricalMaxM)
	return 1 - d/s.cfg.HistoricalMaxM, true
}

// AttachNearestReference sets each site's distance to the closest known
// reference point, enabling the historical factor.
func AttachNearestReference(sites []model.DetectionSite, refs []model.GroundTruthSite) {
	if len(refs) == 0 {
		return
	}
	for i := range sites {
		best := math.Inf(1)
		for _, ref := range refs {
			if d := HaversineM(sites[i].Lat, sites[i].Lon, ref.Lat, ref.Lon); d < best {
				best = d
			}
		}
		d := best
		sites[i].NearestRefM = &d
	}
}

func intensityBackground(sites []model.DetectionSite) (mean, std float64) {
	n := float64(len(sites))
	for _, s := range sites {
		mean += s.Intensity
	}
	mean /= n
	for _, s := range sites {
		d := s.Intensity - mean
		std += d * d
	}
	std = math.Sqrt(std / n)
	return mean, std
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
