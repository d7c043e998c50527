// Package evaluator assesses detection accuracy against a known reference
// site set.
package evaluator

import (
	"sort"

	"go.uber.org/zap"

	"github.com/landmark-labs/sitescan/internal/model"
	"github.com/landmark-labs/sitescan/internal/scorer"
)

// DefaultMatchDistanceM is the greatest detection-reference separation
// still counted as the same site.
const DefaultMatchDistanceM = 250.0

type candidate struct {
	det, ref  int
	distanceM float64
}

// Evaluate matches detections to references by greedy nearest-neighbor:
// all pairs within matchDistanceM are sorted by ascending distance and
// committed in order, consuming both endpoints, so no detection or
// reference is matched twice. Unmatched detections count as false
// positives, unmatched references as false negatives. A metric whose
// denominator is 0 is reported as 0.
func Evaluate(detections []model.DetectionSite, references []model.GroundTruthSite, matchDistanceM float64) *model.Evaluation {
	if matchDistanceM <= 0 {
		matchDistanceM = DefaultMatchDistanceM
	}

	var candidates []candidate
	for d := range detections {
		for r := range references {
			dist := scorer.HaversineM(detections[d].Lat, detections[d].Lon, references[r].Lat, references[r].Lon)
			if dist <= matchDistanceM {
				candidates = append(candidates, candidate{det: d, ref: r, distanceM: dist})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distanceM < candidates[j].distanceM })

	usedDet := make(map[int]bool, len(detections))
	usedRef := make(map[int]bool, len(references))
	eval := &model.Evaluation{}
	for _, c := range candidates {
		if usedDet[c.det] || usedRef[c.ref] {
			continue
		}
		usedDet[c.det] = true
		usedRef[c.ref] = true
		eval.Matches = append(eval.Matches, model.MatchResult{
			DetectionID: detections[c.det].ID,
			ReferenceID: references[c.ref].ID,
			DistanceM:   c.distanceM,
		})
	}

	eval.TruePositives = len(eval.Matches)
	eval.FalsePositives = len(detections) - eval.TruePositives
	eval.FalseNegatives = len(references) - eval.TruePositives
	eval.Precision = safeRatio(eval.TruePositives, eval.TruePositives+eval.FalsePositives)
	eval.Recall = safeRatio(eval.TruePositives, eval.TruePositives+eval.FalseNegatives)
	if eval.Precision+eval.Recall > 0 {
		eval.F1 = 2 * eval.Precision * eval.Recall / (eval.Precision + eval.Recall)
	}

	zap.L().Info("ground truth evaluation complete",
		zap.Int("detections", len(detections)),
		zap.Int("references", len(references)),
		zap.Int("true_positives", eval.TruePositives),
		zap.Float64("precision", eval.Precision),
		zap.Float64("recall", eval.Recall),
		zap.Float64("f1", eval.F1),
	)
	return eval
}

func safeRatio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
