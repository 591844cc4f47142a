package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/verilens/verilens/internal/core/domain"
)

// Defect records one recoverable deviation found while interpreting model
// output. Defects never fail the pipeline; they surface as warning entries in
// the stored analysis stages.
type Defect struct {
	Field  string
	Detail string
}

// parsedReport is the typed best-effort projection of the pass-2 response.
// Every field has a declared default; nothing downstream reads loose maps.
type parsedReport struct {
	Verdict        domain.Verdict
	Confidence     int
	Summary        string
	Recommendation string
	ForensicNotes  string
	Indicators     []domain.Indicator
	Annotations    []domain.Annotation
	Technical      domain.TechnicalDetails
	Stages         []domain.AnalysisStage
	Defects        []Defect
}

type rawReport struct {
	Verdict        string          `json:"verdict"`
	Confidence     flexNumber      `json:"confidence"`
	Summary        string          `json:"summary"`
	Recommendation string          `json:"recommendation"`
	ForensicNotes  string          `json:"forensic_notes"`
	Indicators     []rawIndicator  `json:"indicators"`
	Annotations    []rawAnnotation `json:"annotations"`
	Technical      *rawTechnical   `json:"technical_details"`
	Stages         []rawStage      `json:"analysis_stages"`
}

type rawIndicator struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
}

type rawAnnotation struct {
	Label       string `json:"label"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Region      string `json:"region"`
}

type rawTechnical struct {
	ConsistencyScore  flexNumber  `json:"consistency_score"`
	FormatInfo        string      `json:"format_info"`
	QualityAssessment string      `json:"quality_assessment"`
	MetadataAnalysis  string      `json:"metadata_analysis"`
	ArtifactsFound    flexStrings `json:"artifacts_found"`
}

type rawStage struct {
	Stage   string `json:"stage"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Finding string `json:"finding"`
}

// flexNumber tolerates numbers, numeric strings and trailing percent signs.
type flexNumber struct {
	value float64
	set   bool
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		f.value, f.set = v, true
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	str = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(str), "%"))
	if v, err := strconv.ParseFloat(str, 64); err == nil {
		f.value, f.set = v, true
	}
	return nil
}

// flexStrings tolerates lists whose elements are not all strings.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, strings.TrimSpace(string(item)))
	}
	*f = flexStrings(out)
	return nil
}

// parseForensicResponse extracts the structured pass-2 payload from raw model
// text. It degrades in three steps — strict decode, embedded balanced block,
// regex salvage — and never fails outright: a partial verdict is more useful
// to the user than an error page.
func parseForensicResponse(raw string) parsedReport {
	candidate := stripCodeFences(raw)

	var rr rawReport
	if err := json.Unmarshal([]byte(candidate), &rr); err == nil {
		return validateReport(rr, nil)
	}

	// The payload may be wrapped in explanatory prose; take the first
	// balanced object. A clean embedded block is not a defect.
	if block, ok := extractBalancedObject(raw); ok {
		if err := json.Unmarshal([]byte(block), &rr); err == nil {
			return validateReport(rr, nil)
		}
	}

	return salvageReport(raw)
}

var (
	verdictPattern    = regexp.MustCompile(`(?i)"?verdict"?\s*[:=]\s*"?([a-z_ -]+)"?`)
	confidencePattern = regexp.MustCompile(`(?i)"?confidence"?\s*[:=]\s*"?(-?\d{1,3}(?:\.\d+)?)\s*%?"?`)
)

// salvageReport is the last resort: field-level extraction of the minimum
// viable fields so a garbled response still yields a usable record.
func salvageReport(raw string) parsedReport {
	report := parsedReport{
		Verdict:        domain.VerdictSuspicious,
		Confidence:     50,
		Summary:        "Analysis completed but the model response could not be fully parsed. Manual review recommended.",
		Recommendation: "Re-submit the file for another analysis attempt.",
		Indicators:     []domain.Indicator{},
		Annotations:    []domain.Annotation{},
		Technical:      defaultTechnical(),
		Stages:         []domain.AnalysisStage{},
	}

	salvaged := false
	if m := verdictPattern.FindStringSubmatch(raw); m != nil {
		if v, ok := normalizeVerdict(m[1]); ok {
			report.Verdict = v
			salvaged = true
		}
	}
	if m := confidencePattern.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			report.Confidence = clampConfidence(v)
			salvaged = true
		}
	}

	if salvaged {
		report.Defects = append(report.Defects, Defect{
			Field:  "response",
			Detail: "unstructured model response; verdict and confidence recovered by field-level extraction",
		})
	} else {
		report.Defects = append(report.Defects, Defect{
			Field:  "response",
			Detail: "model response unparseable; fell back to suspicious verdict at 50 confidence",
		})
	}
	return report
}

// validateReport checks every extracted field against its closed enum or
// range, repairing out-of-band values to safe defaults and recording a defect
// for each repair.
func validateReport(rr rawReport, defects []Defect) parsedReport {
	report := parsedReport{
		Summary:        strings.TrimSpace(rr.Summary),
		Recommendation: strings.TrimSpace(rr.Recommendation),
		ForensicNotes:  strings.TrimSpace(rr.ForensicNotes),
		Indicators:     []domain.Indicator{},
		Annotations:    []domain.Annotation{},
		Stages:         []domain.AnalysisStage{},
		Defects:        defects,
	}

	verdict, ok := normalizeVerdict(rr.Verdict)
	if !ok {
		report.Defects = append(report.Defects, Defect{
			Field:  "verdict",
			Detail: fmt.Sprintf("unrecognized verdict %q coerced to suspicious", rr.Verdict),
		})
	}
	report.Verdict = verdict

	switch {
	case !rr.Confidence.set:
		report.Confidence = 50
		report.Defects = append(report.Defects, Defect{
			Field:  "confidence",
			Detail: "confidence missing; defaulted to 50",
		})
	case rr.Confidence.value < 0 || rr.Confidence.value > 100:
		report.Confidence = clampConfidence(rr.Confidence.value)
		report.Defects = append(report.Defects, Defect{
			Field:  "confidence",
			Detail: fmt.Sprintf("confidence %v out of range; clamped to %d", rr.Confidence.value, report.Confidence),
		})
	default:
		report.Confidence = clampConfidence(rr.Confidence.value)
	}

	for i, ind := range rr.Indicators {
		name := firstNonEmpty(ind.Name, ind.Label)
		if name == "" && strings.TrimSpace(ind.Description) == "" {
			report.Defects = append(report.Defects, Defect{
				Field:  "indicators",
				Detail: fmt.Sprintf("indicator %d empty; dropped", i),
			})
			continue
		}
		severity, ok := normalizeSeverity(ind.Severity)
		if !ok {
			report.Defects = append(report.Defects, Defect{
				Field:  "indicators",
				Detail: fmt.Sprintf("indicator %q severity %q coerced to low", name, ind.Severity),
			})
		}
		category, ok := normalizeCategory(ind.Category)
		if !ok {
			report.Defects = append(report.Defects, Defect{
				Field:  "indicators",
				Detail: fmt.Sprintf("indicator %q category %q coerced to metadata", name, ind.Category),
			})
		}
		report.Indicators = append(report.Indicators, domain.Indicator{
			Name:        name,
			Description: strings.TrimSpace(ind.Description),
			Severity:    severity,
			Category:    category,
		})
	}

	for i, ann := range rr.Annotations {
		label := firstNonEmpty(ann.Label, ann.Name)
		if label == "" && strings.TrimSpace(ann.Description) == "" {
			report.Defects = append(report.Defects, Defect{
				Field:  "annotations",
				Detail: fmt.Sprintf("annotation %d empty; dropped", i),
			})
			continue
		}
		severity, ok := normalizeSeverity(ann.Severity)
		if !ok {
			report.Defects = append(report.Defects, Defect{
				Field:  "annotations",
				Detail: fmt.Sprintf("annotation %q severity %q coerced to low", label, ann.Severity),
			})
		}
		region, ok := normalizeRegion(ann.Region)
		if !ok {
			report.Defects = append(report.Defects, Defect{
				Field:  "annotations",
				Detail: fmt.Sprintf("annotation %q region %q coerced to center", label, ann.Region),
			})
		}
		report.Annotations = append(report.Annotations, domain.Annotation{
			Label:       label,
			Description: strings.TrimSpace(ann.Description),
			Severity:    severity,
			Region:      region,
		})
	}

	report.Technical = defaultTechnical()
	if rr.Technical == nil {
		report.Defects = append(report.Defects, Defect{
			Field:  "technical_details",
			Detail: "technical details missing; defaults applied",
		})
	} else {
		t := rr.Technical
		if t.ConsistencyScore.set {
			report.Technical.ConsistencyScore = clampConfidence(t.ConsistencyScore.value)
		} else {
			report.Defects = append(report.Defects, Defect{
				Field:  "technical_details",
				Detail: "consistency score missing; defaulted to 50",
			})
		}
		report.Technical.FormatInfo = strings.TrimSpace(t.FormatInfo)
		report.Technical.QualityAssessment = strings.TrimSpace(t.QualityAssessment)
		report.Technical.MetadataAnalysis = strings.TrimSpace(t.MetadataAnalysis)
		if t.ArtifactsFound != nil {
			report.Technical.ArtifactsFound = []string(t.ArtifactsFound)
		}
	}

	for _, st := range rr.Stages {
		name := firstNonEmpty(st.Stage, st.Name)
		if name == "" {
			continue
		}
		status, ok := normalizeStageStatus(st.Status)
		if !ok {
			report.Defects = append(report.Defects, Defect{
				Field:  "analysis_stages",
				Detail: fmt.Sprintf("stage %q status %q coerced to warning", name, st.Status),
			})
		}
		report.Stages = append(report.Stages, domain.AnalysisStage{
			Stage:   name,
			Status:  status,
			Finding: strings.TrimSpace(st.Finding),
		})
	}

	return report
}

// parseObservations interprets the pass-1 response: ideally a JSON string
// array, tolerably an object holding one, degradedly plain prose split into
// lines.
func parseObservations(raw string) ([]string, []Defect) {
	candidate := stripCodeFences(raw)

	var list flexStrings
	if err := json.Unmarshal([]byte(candidate), &list); err == nil && list != nil {
		return compactStrings(list), nil
	}

	var wrapped struct {
		Observations flexStrings `json:"observations"`
	}
	if err := json.Unmarshal([]byte(candidate), &wrapped); err == nil && wrapped.Observations != nil {
		return compactStrings(wrapped.Observations), []Defect{{
			Field:  "observations",
			Detail: "observation list arrived wrapped in an object",
		}}
	}
	if block, ok := extractBalancedObject(raw); ok {
		if err := json.Unmarshal([]byte(block), &wrapped); err == nil && wrapped.Observations != nil {
			return compactStrings(wrapped.Observations), []Defect{{
				Field:  "observations",
				Detail: "observation list extracted from embedded object",
			}}
		}
	}

	lines := splitProseLines(raw)
	if len(lines) == 0 {
		return []string{}, []Defect{{
			Field:  "observations",
			Detail: "observation pass returned no usable content",
		}}
	}
	return lines, []Defect{{
		Field:  "observations",
		Detail: "observation pass returned prose; split into lines",
	}}
}

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

func splitProseLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if line == "" || line == "```" || strings.HasPrefix(line, "```") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripCodeFences removes a single surrounding markdown fence, the most
// common formatting deviation in model output.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	return s
}

// extractBalancedObject returns the first balanced top-level JSON object in
// the text, tracking string and escape state so braces inside values do not
// break the scan.
func extractBalancedObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

func defaultTechnical() domain.TechnicalDetails {
	return domain.TechnicalDetails{
		ConsistencyScore: 50,
		ArtifactsFound:   []string{},
		RawObservations:  []string{},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
