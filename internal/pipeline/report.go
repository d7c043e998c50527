package pipeline

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/landmark-labs/sitescan/internal/model"
)

// Summary renders a human-readable run report with locale-aware number
// formatting, suitable for terminal output.
func Summary(result *model.PipelineResult) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	p.Fprintf(&b, "Run %s finished with status %s\n", result.RunID, result.Status)
	if result.FailureReason != "" {
		p.Fprintf(&b, "Reason: %s\n", result.FailureReason)
	}

	s := result.Stats
	p.Fprintf(&b, "Scenes processed: %d\n", s.TotalScenes)
	p.Fprintf(&b, "Pixels analyzed: %d (%.2f%% anomalous)\n", s.TotalPixels, s.AnomalyPct)
	p.Fprintf(&b, "Candidate sites: %d (%d high priority)\n", s.SiteCount, s.HighPriority)
	if s.SiteCount > 0 {
		p.Fprintf(&b, "Mean confidence: %.1f\n", s.MeanConfidence)
		p.Fprintf(&b, "Total site area: %.0f m²\n", s.TotalSiteAreaM2)
	}

	if e := result.Evaluation; e != nil {
		p.Fprintf(&b, "Evaluation: TP=%d FP=%d FN=%d precision=%.3f recall=%.3f f1=%.3f\n",
			e.TruePositives, e.FalsePositives, e.FalseNegatives, e.Precision, e.Recall, e.F1)
	}

	for format, path := range result.ExportPaths {
		p.Fprintf(&b, "Exported %s: %s\n", format, path)
	}
	p.Fprintf(&b, "Elapsed: %d ms\n", s.ElapsedMS)
	return b.String()
}
