package ingest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/verilens/verilens/internal/core/domain"
)

func capped(maxBytes int64) *Service {
	return New(nil, Config{MaxBytes: maxBytes})
}

func TestFromUploadDetectsMediaType(t *testing.T) {
	cases := []struct {
		filename string
		wantType domain.MediaType
		wantMime string
	}{
		{"photo.JPG", domain.MediaImage, "image/jpeg"},
		{"clip.mp4", domain.MediaVideo, "video/mp4"},
		{"voice.m4a", domain.MediaAudio, "audio/mp4"},
		{"scan.heic", domain.MediaImage, "image/heic"},
	}
	svc := capped(1 << 20)
	for _, tc := range cases {
		asset, err := svc.FromUpload(context.Background(), tc.filename, 4, strings.NewReader("data"))
		if err != nil {
			t.Fatalf("FromUpload(%q) error = %v", tc.filename, err)
		}
		if asset.Type != tc.wantType || asset.MimeType != tc.wantMime {
			t.Fatalf("FromUpload(%q) = %s/%s, want %s/%s",
				tc.filename, asset.Type, asset.MimeType, tc.wantType, tc.wantMime)
		}
		if asset.Size != 4 {
			t.Fatalf("size = %d", asset.Size)
		}
	}
}

func TestFromUploadRejectsUnknownExtension(t *testing.T) {
	svc := capped(1 << 20)
	_, err := svc.FromUpload(context.Background(), "document.pdf", 4, strings.NewReader("data"))
	if !domain.IsKind(err, domain.ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}
}

func TestFromUploadSizeBoundary(t *testing.T) {
	svc := capped(8)

	atLimit := bytes.Repeat([]byte{'a'}, 8)
	if _, err := svc.FromUpload(context.Background(), "a.jpg", int64(len(atLimit)), bytes.NewReader(atLimit)); err != nil {
		t.Fatalf("payload at the limit must pass: %v", err)
	}

	overLimit := bytes.Repeat([]byte{'a'}, 9)
	_, err := svc.FromUpload(context.Background(), "a.jpg", 0, bytes.NewReader(overLimit))
	if !domain.IsKind(err, domain.ErrPayloadTooLarge) {
		t.Fatalf("one byte over the limit must fail, got %v", err)
	}
}

func TestFromUploadRejectsDeclaredOversize(t *testing.T) {
	svc := capped(8)
	_, err := svc.FromUpload(context.Background(), "a.jpg", 9, strings.NewReader("tiny"))
	if !domain.IsKind(err, domain.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestFromUploadRejectsEmptyFile(t *testing.T) {
	svc := capped(8)
	_, err := svc.FromUpload(context.Background(), "a.jpg", 0, strings.NewReader(""))
	if !domain.IsKind(err, domain.ErrCorruptMedia) {
		t.Fatalf("expected ErrCorruptMedia, got %v", err)
	}
}

func TestFromURLFetchesAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("pngdata"))
	}))
	defer server.Close()

	svc := New(nil, Config{MaxBytes: 1 << 20, HTTPClient: server.Client()})
	asset, err := svc.FromURL(context.Background(), server.URL+"/media/shot.png")
	if err != nil {
		t.Fatalf("FromURL() error = %v", err)
	}
	if asset.Type != domain.MediaImage || asset.FileName != "shot.png" {
		t.Fatalf("asset = %s/%q", asset.Type, asset.FileName)
	}
	if asset.MimeType != "image/png" {
		t.Fatalf("mime = %q", asset.MimeType)
	}
}

func TestFromURLFallsBackToContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg; charset=binary")
		_, _ = w.Write([]byte("id3"))
	}))
	defer server.Close()

	svc := New(nil, Config{MaxBytes: 1 << 20, HTTPClient: server.Client()})
	asset, err := svc.FromURL(context.Background(), server.URL+"/stream")
	if err != nil {
		t.Fatalf("FromURL() error = %v", err)
	}
	if asset.Type != domain.MediaAudio {
		t.Fatalf("type = %s", asset.Type)
	}
}

func TestFromURLRejectsNonMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	svc := New(nil, Config{MaxBytes: 1 << 20, HTTPClient: server.Client()})
	_, err := svc.FromURL(context.Background(), server.URL+"/page")
	if !domain.IsKind(err, domain.ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}
}

func TestFromURLMapsRemoteErrorToFetchFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	svc := New(nil, Config{MaxBytes: 1 << 20, HTTPClient: server.Client()})
	_, err := svc.FromURL(context.Background(), server.URL+"/missing.jpg")
	if !domain.IsKind(err, domain.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFromURLTruncatedBodyIsFetchFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(64))
		_, _ = w.Write([]byte("short"))
	}))
	defer server.Close()

	svc := New(nil, Config{MaxBytes: 1 << 20, HTTPClient: server.Client()})
	_, err := svc.FromURL(context.Background(), server.URL+"/cut.jpg")
	if !domain.IsKind(err, domain.ErrFetchFailed) {
		t.Fatalf("mid-stream read failure must map to ErrFetchFailed, got %v", err)
	}
	if domain.IsKind(err, domain.ErrPayloadTooLarge) {
		t.Fatalf("read failure must not look like an oversize payload: %v", err)
	}
}

func TestFromUploadReadFailureIsCorruptMedia(t *testing.T) {
	svc := capped(1 << 20)
	broken := iotest.ErrReader(errors.New("connection reset"))
	_, err := svc.FromUpload(context.Background(), "a.jpg", 4, broken)
	if !domain.IsKind(err, domain.ErrCorruptMedia) {
		t.Fatalf("expected ErrCorruptMedia, got %v", err)
	}
}

func TestFromURLRejectsNonHTTPScheme(t *testing.T) {
	svc := capped(8)
	for _, raw := range []string{"ftp://host/file.jpg", "file:///etc/passwd", "not a url"} {
		if _, err := svc.FromURL(context.Background(), raw); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("FromURL(%q): expected ErrInvalidInput, got %v", raw, err)
		}
	}
}

func TestFromURLEnforcesSizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(bytes.Repeat([]byte{'v'}, 32))
	}))
	defer server.Close()

	svc := New(nil, Config{MaxBytes: 16, HTTPClient: server.Client()})
	_, err := svc.FromURL(context.Background(), server.URL+"/clip.mp4")
	if !domain.IsKind(err, domain.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
