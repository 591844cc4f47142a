package usecase

import (
	"fmt"
	"math"
	"strings"

	"github.com/verilens/verilens/internal/core/domain"
)

// Enum coercion policy: ambiguity never resolves toward authentic. Unknown
// verdicts become suspicious, unknown severities low, unknown categories
// metadata, unknown regions center.

func clampConfidence(v float64) int {
	if math.IsNaN(v) {
		return 50
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}

func canonicalToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, `"'.`)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func normalizeVerdict(s string) (domain.Verdict, bool) {
	switch canonicalToken(s) {
	case "authentic":
		return domain.VerdictAuthentic, true
	case "suspicious":
		return domain.VerdictSuspicious, true
	case "likely_fake":
		return domain.VerdictLikelyFake, true
	case "fake", "deepfake", "manipulated", "likely_manipulated":
		// Nonstandard but unambiguous in direction.
		return domain.VerdictLikelyFake, true
	}
	return domain.VerdictSuspicious, false
}

func normalizeSeverity(s string) (domain.Severity, bool) {
	switch canonicalToken(s) {
	case "low":
		return domain.SeverityLow, true
	case "medium", "moderate":
		return domain.SeverityMedium, true
	case "high", "critical":
		return domain.SeverityHigh, true
	}
	return domain.SeverityLow, false
}

func normalizeCategory(s string) (domain.IndicatorCategory, bool) {
	switch canonicalToken(s) {
	case "metadata":
		return domain.CategoryMetadata, true
	case "structural":
		return domain.CategoryStructural, true
	case "ai_pattern", "ai":
		return domain.CategoryAIPattern, true
	case "temporal":
		return domain.CategoryTemporal, true
	case "spectral":
		return domain.CategorySpectral, true
	case "behavioral":
		return domain.CategoryBehavioral, true
	}
	return domain.CategoryMetadata, false
}

func normalizeRegion(s string) (domain.Region, bool) {
	token := canonicalToken(s)
	switch token {
	case "center", "middle", "center_center":
		return domain.RegionCenter, true
	}
	if r := domain.Region(token); domain.ValidRegion(r) {
		return r, true
	}
	return domain.RegionCenter, false
}

func normalizeStageStatus(s string) (domain.StageStatus, bool) {
	switch canonicalToken(s) {
	case "pass", "passed", "ok":
		return domain.StagePass, true
	case "warning", "warn":
		return domain.StageWarning, true
	case "fail", "failed":
		return domain.StageFail, true
	}
	return domain.StageWarning, false
}

// stageRecord is the pipeline's own bookkeeping for one step, used to
// synthesize analysis stages when the model omits them.
type stageRecord struct {
	name    string
	defects []Defect
}

func synthesizeStages(records []stageRecord) []domain.AnalysisStage {
	stages := make([]domain.AnalysisStage, 0, len(records))
	for _, rec := range records {
		stage := domain.AnalysisStage{Stage: rec.name, Status: domain.StagePass, Finding: "completed"}
		if len(rec.defects) > 0 {
			stage.Status = domain.StageWarning
			stage.Finding = defectSummary(rec.defects)
		}
		stages = append(stages, stage)
	}
	return stages
}

func defectSummary(defects []Defect) string {
	parts := make([]string, 0, len(defects))
	for _, d := range defects {
		parts = append(parts, d.Detail)
	}
	return strings.Join(parts, "; ")
}

// mergeStages keeps model-provided stages when present and synthesizes from
// the pipeline records otherwise. Parser defects are always surfaced so a
// repaired response is visibly a repaired response.
func mergeStages(report parsedReport, records []stageRecord) []domain.AnalysisStage {
	if len(report.Stages) == 0 {
		return synthesizeStages(records)
	}
	stages := report.Stages
	if len(report.Defects) > 0 {
		stages = append(stages, domain.AnalysisStage{
			Stage:   "response_parsing",
			Status:  domain.StageWarning,
			Finding: defectSummary(report.Defects),
		})
	}
	return stages
}

// ensureNarrative fills user-facing text fields the model left blank so the
// stored record always reads complete.
func ensureNarrative(report *parsedReport) {
	if report.Summary == "" {
		report.Summary = fmt.Sprintf("The media was assessed as %s with %d%% confidence.",
			verdictPhrase(report.Verdict), report.Confidence)
	}
	if report.Recommendation == "" {
		report.Recommendation = defaultRecommendation(report.Verdict)
	}
}

func verdictPhrase(v domain.Verdict) string {
	switch v {
	case domain.VerdictAuthentic:
		return "authentic"
	case domain.VerdictLikelyFake:
		return "likely fake"
	default:
		return "suspicious"
	}
}

func defaultRecommendation(v domain.Verdict) string {
	switch v {
	case domain.VerdictAuthentic:
		return "No action needed. The media shows no signs of manipulation."
	case domain.VerdictLikelyFake:
		return "Treat this media as manipulated. Verify the claim through an independent source before sharing."
	default:
		return "Verify the source of this media before trusting or sharing it."
	}
}
