package domain

// MediaAsset is the transient, in-memory form of a submitted file. It never
// outlives the analysis request; only derived results persist.
type MediaAsset struct {
	Data     []byte
	Type     MediaType
	MimeType string
	FileName string
	Size     int64

	// Duration in seconds, video/audio only.
	Duration float64

	// Preview is a small encoded raster for UI display: a capped-resolution
	// copy for images, a representative frame for video, a rendered waveform
	// for audio.
	Preview     []byte
	PreviewMime string
}

// AnalysisRequest binds exactly one media asset to the requesting user.
type AnalysisRequest struct {
	Media    *MediaAsset
	UserID   string
	Language Language
	Origin   Origin
}

// ObservationReport is the pass-1 output: neutral, low-level findings with no
// verdict and no confidence. Keeping the first pass conclusion-free avoids
// anchoring the forensic pass.
type ObservationReport struct {
	Observations []string
}
