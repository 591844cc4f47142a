package ingest

import (
	"path"
	"strings"

	"github.com/verilens/verilens/internal/core/domain"
)

var typeByExtension = map[string]domain.MediaType{
	"jpg": domain.MediaImage, "jpeg": domain.MediaImage, "png": domain.MediaImage,
	"webp": domain.MediaImage, "gif": domain.MediaImage, "bmp": domain.MediaImage,
	"heic": domain.MediaImage,

	"mp4": domain.MediaVideo, "mov": domain.MediaVideo, "avi": domain.MediaVideo,
	"webm": domain.MediaVideo, "mkv": domain.MediaVideo, "flv": domain.MediaVideo,

	"mp3": domain.MediaAudio, "wav": domain.MediaAudio, "ogg": domain.MediaAudio,
	"aac": domain.MediaAudio, "flac": domain.MediaAudio, "m4a": domain.MediaAudio,
	"wma": domain.MediaAudio,
}

var mimeByExtension = map[string]string{
	"jpg": "image/jpeg", "jpeg": "image/jpeg", "png": "image/png",
	"webp": "image/webp", "gif": "image/gif",

	"mp4": "video/mp4", "mov": "video/quicktime", "avi": "video/x-msvideo",
	"webm": "video/webm", "mkv": "video/x-matroska",

	"mp3": "audio/mpeg", "wav": "audio/wav", "ogg": "audio/ogg",
	"aac": "audio/aac", "flac": "audio/flac", "m4a": "audio/mp4",
}

func extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	return ext
}

func typeForFilename(filename string) (domain.MediaType, bool) {
	t, ok := typeByExtension[extension(filename)]
	return t, ok
}

func mimeForFilename(filename string, mediaType domain.MediaType) string {
	ext := extension(filename)
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	return string(mediaType) + "/" + ext
}

// typeForContentType maps a response Content-Type to a media type, the
// fallback when a remote URL carries no useful extension.
func typeForContentType(contentType string) (domain.MediaType, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return domain.MediaImage, true
	case strings.HasPrefix(ct, "video/"):
		return domain.MediaVideo, true
	case strings.HasPrefix(ct, "audio/"):
		return domain.MediaAudio, true
	}
	return "", false
}
