package model

import (
	"github.com/rotisserie/eris"
)

// Priority buckets a site's confidence for triage.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// PriorityForConfidence derives a priority from a [0,100] confidence value.
func PriorityForConfidence(confidence float64) Priority {
	switch {
	case confidence >= 80:
		return PriorityHigh
	case confidence >= 60:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// FactorScore is one entry of an evidence breakdown: the bounded sub-score,
// the weight actually applied after renormalization, and their product.
type FactorScore struct {
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// ScoreBreakdown is the per-factor contribution record behind a confidence
// value. It is owned by a single DetectionSite and recomputed, never merged.
type ScoreBreakdown struct {
	Factors     []FactorScore `json:"factors,omitempty"`
	Confidence  float64       `json:"confidence"`
	Unavailable bool          `json:"unavailable,omitempty"`
}

// DetectionSite is one candidate site extracted from the anomaly map.
// Confidence and Priority are populated by the scorer; everything else by
// the coordinate extractor or the schema normalizer.
type DetectionSite struct {
	ID           string          `json:"id"`
	Lat          float64         `json:"lat"`
	Lon          float64         `json:"lon"`
	PixelCount   int             `json:"pixel_count"`
	AreaM2       float64         `json:"area_m2"`
	PerimeterM   float64         `json:"perimeter_m,omitempty"`
	Compactness  float64         `json:"compactness,omitempty"`
	Intensity    float64         `json:"anomaly_intensity"`
	IntensityStd float64         `json:"anomaly_std,omitempty"`
	Elevation    *float64        `json:"elevation_m,omitempty"`
	Slope        *float64        `json:"slope_deg,omitempty"`
	NearestRefM  *float64        `json:"nearest_reference_m,omitempty"`
	Confidence   float64         `json:"confidence"`
	Priority     Priority        `json:"priority"`
	SiteType     string          `json:"site_type,omitempty"`
	Recommended  string          `json:"recommended_action,omitempty"`
	Breakdown    *ScoreBreakdown `json:"score_breakdown,omitempty"`
}

// Validate checks coordinate and confidence ranges.
func (s *DetectionSite) Validate() error {
	if s.Lat < -90 || s.Lat > 90 {
		return eris.Errorf("site %s: latitude %f out of range [-90,90]", s.ID, s.Lat)
	}
	if s.Lon < -180 || s.Lon > 180 {
		return eris.Errorf("site %s: longitude %f out of range [-180,180]", s.ID, s.Lon)
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		return eris.Errorf("site %s: confidence %f out of range [0,100]", s.ID, s.Confidence)
	}
	return nil
}

// ClampConfidence bounds a confidence value to [0,100].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// RecommendedAction suggests a follow-up based on priority and confidence.
func RecommendedAction(priority Priority, confidence float64) string {
	switch {
	case priority == PriorityHigh && confidence >= 80:
		return "Field verification recommended - high probability"
	case confidence >= 60:
		return "Further analysis recommended - medium confidence"
	default:
		return "Monitor for changes - low confidence"
	}
}
