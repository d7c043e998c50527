package model

// GroundTruthSite is a known reference site used for evaluation and for the
// historical-context scoring factor.
type GroundTruthSite struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	SiteType string  `json:"site_type,omitempty"`
	Period   string  `json:"period,omitempty"`
}

// MatchResult is one committed detection-reference pair.
type MatchResult struct {
	DetectionID string  `json:"detection_id"`
	ReferenceID string  `json:"reference_id"`
	DistanceM   float64 `json:"distance_m"`
}

// Evaluation is the accuracy assessment of a detection set against a
// reference set. Each reference and each detection appears in at most one
// match.
type Evaluation struct {
	TruePositives  int           `json:"true_positives"`
	FalsePositives int           `json:"false_positives"`
	FalseNegatives int           `json:"false_negatives"`
	Precision      float64       `json:"precision"`
	Recall         float64       `json:"recall"`
	F1             float64       `json:"f1_score"`
	Matches        []MatchResult `json:"matches,omitempty"`
}
