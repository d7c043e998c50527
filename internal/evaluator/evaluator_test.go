package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landmark-labs/sitescan/internal/model"
)

func det(id string, lat, lon float64) model.DetectionSite {
	return model.DetectionSite{ID: id, Lat: lat, Lon: lon}
}

func ref(id string, lat, lon float64) model.GroundTruthSite {
	return model.GroundTruthSite{ID: id, Lat: lat, Lon: lon}
}

func TestEvaluate_ExactAndNearMatches(t *testing.T) {
	detections := []model.DetectionSite{
		det("SITE_0001", 35.0000, 44.0000),
		det("SITE_0002", 35.0010, 44.0010), // ~145m from GT_2
		det("SITE_0003", 35.5000, 44.5000), // no reference nearby
	}
	references := []model.GroundTruthSite{
		ref("GT_1", 35.0000, 44.0000),
		ref("GT_2", 35.0000, 44.0010),
		ref("GT_3", 34.0000, 43.0000), // never detected
	}

	eval := Evaluate(detections, references, 250)

	assert.Equal(t, 2, eval.TruePositives)
	assert.Equal(t, 1, eval.FalsePositives)
	assert.Equal(t, 1, eval.FalseNegatives)
	assert.InDelta(t, 2.0/3.0, eval.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, eval.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, eval.F1, 1e-9)
}

// The count identities TP+FP == detections and TP+FN == references must
// hold for any input, and no reference may be consumed twice.
func TestEvaluate_CountIdentities(t *testing.T) {
	cases := []struct {
		name       string
		detections []model.DetectionSite
		references []model.GroundTruthSite
	}{
		{"empty both", nil, nil},
		{"no references", []model.DetectionSite{det("D1", 35, 44)}, nil},
		{"no detections", nil, []model.GroundTruthSite{ref("R1", 35, 44)}},
		{
			// Two detections compete for one reference.
			"contested reference",
			[]model.DetectionSite{det("D1", 35.0001, 44), det("D2", 35.0002, 44)},
			[]model.GroundTruthSite{ref("R1", 35, 44)},
		},
		{
			// One detection sits within range of two references.
			"contested detection",
			[]model.DetectionSite{det("D1", 35, 44)},
			[]model.GroundTruthSite{ref("R1", 35.0001, 44), ref("R2", 35.0002, 44)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eval := Evaluate(tc.detections, tc.references, 250)

			assert.Equal(t, len(tc.detections), eval.TruePositives+eval.FalsePositives)
			assert.Equal(t, len(tc.references), eval.TruePositives+eval.FalseNegatives)

			seenDet := map[string]bool{}
			seenRef := map[string]bool{}
			for _, m := range eval.Matches {
				assert.False(t, seenDet[m.DetectionID], "detection matched twice")
				assert.False(t, seenRef[m.ReferenceID], "reference matched twice")
				seenDet[m.DetectionID] = true
				seenRef[m.ReferenceID] = true
			}
		})
	}
}

func TestEvaluate_GreedyPrefersClosestPair(t *testing.T) {
	// D1 is closer to R1 than D2 is; greedy commits (D1,R1) first, leaving
	// D2 unmatched even though it is also within range.
	detections := []model.DetectionSite{
		det("D2", 35.0015, 44),
		det("D1", 35.0005, 44),
	}
	references := []model.GroundTruthSite{ref("R1", 35, 44)}

	eval := Evaluate(detections, references, 250)
	require.Len(t, eval.Matches, 1)
	assert.Equal(t, "D1", eval.Matches[0].DetectionID)
	assert.Equal(t, "R1", eval.Matches[0].ReferenceID)
}

func TestEvaluate_ZeroDenominators(t *testing.T) {
	eval := Evaluate(nil, nil, 250)
	assert.Zero(t, eval.Precision)
	assert.Zero(t, eval.Recall)
	assert.Zero(t, eval.F1)
}

func TestEvaluate_BeyondThresholdNotMatched(t *testing.T) {
	// ~556m apart at the equator: outside the 250m threshold.
	eval := Evaluate(
		[]model.DetectionSite{det("D1", 0.005, 0)},
		[]model.GroundTruthSite{ref("R1", 0, 0)},
		250,
	)
	assert.Zero(t, eval.TruePositives)
	assert.Equal(t, 1, eval.FalsePositives)
	assert.Equal(t, 1, eval.FalseNegatives)
}
