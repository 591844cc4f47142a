package domain

import "time"

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

type Verdict string

const (
	VerdictAuthentic  Verdict = "authentic"
	VerdictSuspicious Verdict = "suspicious"
	VerdictLikelyFake Verdict = "likely_fake"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type IndicatorCategory string

const (
	CategoryMetadata   IndicatorCategory = "metadata"
	CategoryStructural IndicatorCategory = "structural"
	CategoryAIPattern  IndicatorCategory = "ai_pattern"
	CategoryTemporal   IndicatorCategory = "temporal"
	CategorySpectral   IndicatorCategory = "spectral"
	CategoryBehavioral IndicatorCategory = "behavioral"
)

// Region is a coarse 9-cell grid position, a spatial hint rather than a
// pixel-exact location.
type Region string

const (
	RegionTopLeft      Region = "top_left"
	RegionTopCenter    Region = "top_center"
	RegionTopRight     Region = "top_right"
	RegionCenterLeft   Region = "center_left"
	RegionCenter       Region = "center"
	RegionCenterRight  Region = "center_right"
	RegionBottomLeft   Region = "bottom_left"
	RegionBottomCenter Region = "bottom_center"
	RegionBottomRight  Region = "bottom_right"
)

type StageStatus string

const (
	StagePass    StageStatus = "pass"
	StageWarning StageStatus = "warning"
	StageFail    StageStatus = "fail"
)

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
)

type Origin string

const (
	OriginUpload Origin = "upload"
	OriginURL    Origin = "url"
)

// Indicator is one discrete piece of evidence the forensic pass attaches to
// its verdict.
type Indicator struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Severity    Severity          `json:"severity"`
	Category    IndicatorCategory `json:"category"`
}

// Annotation ties a finding to an approximate region of the media. Only
// meaningful for image and video input.
type Annotation struct {
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Region      Region   `json:"region"`
}

type TechnicalDetails struct {
	ConsistencyScore  int      `json:"consistency_score"`
	FormatInfo        string   `json:"format_info"`
	QualityAssessment string   `json:"quality_assessment"`
	MetadataAnalysis  string   `json:"metadata_analysis"`
	ArtifactsFound    []string `json:"artifacts_found"`
	// RawObservations carries the pass-1 report verbatim for the audit trail.
	RawObservations []string `json:"raw_observations"`
}

// AnalysisStage is the pipeline's own stage-by-stage self-report, distinct
// from model content.
type AnalysisStage struct {
	Stage   string      `json:"stage"`
	Status  StageStatus `json:"status"`
	Finding string      `json:"finding"`
}

// AnalysisResult is the persisted aggregate. It is written once at the end of
// the pipeline and immutable afterwards except for share id assignment.
type AnalysisResult struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	FileType       MediaType        `json:"file_type"`
	FileName       string           `json:"file_name"`
	FileSize       int64            `json:"file_size"`
	Verdict        Verdict          `json:"verdict"`
	Confidence     int              `json:"confidence"`
	Language       Language         `json:"language"`
	Summary        string           `json:"summary"`
	Recommendation string           `json:"recommendation"`
	ForensicNotes  string           `json:"forensic_notes"`
	Indicators     []Indicator      `json:"indicators"`
	Annotations    []Annotation     `json:"annotations"`
	Technical      TechnicalDetails `json:"technical_details"`
	Stages         []AnalysisStage  `json:"analysis_stages"`
	Preview        string           `json:"preview,omitempty"`
	PreviewType    string           `json:"preview_type,omitempty"`
	MediaDuration  float64          `json:"media_duration,omitempty"`
	ShareID        string           `json:"share_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Stats is the owner-scoped aggregate over stored results.
type Stats struct {
	Total      int               `json:"total"`
	Authentic  int               `json:"authentic"`
	Suspicious int               `json:"suspicious"`
	LikelyFake int               `json:"likely_fake"`
	ByType     map[MediaType]int `json:"by_type"`
}

func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictAuthentic, VerdictSuspicious, VerdictLikelyFake:
		return true
	}
	return false
}

func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

func ValidCategory(c IndicatorCategory) bool {
	switch c {
	case CategoryMetadata, CategoryStructural, CategoryAIPattern,
		CategoryTemporal, CategorySpectral, CategoryBehavioral:
		return true
	}
	return false
}

func ValidRegion(r Region) bool {
	switch r {
	case RegionTopLeft, RegionTopCenter, RegionTopRight,
		RegionCenterLeft, RegionCenter, RegionCenterRight,
		RegionBottomLeft, RegionBottomCenter, RegionBottomRight:
		return true
	}
	return false
}

func ValidLanguage(l Language) bool {
	return l == LanguageEnglish || l == LanguageArabic
}
