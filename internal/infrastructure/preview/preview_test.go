package preview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/verilens/verilens/internal/core/domain"
)

type fakeScratch struct {
	saved   map[string][]byte
	removed []string
}

func newFakeScratch() *fakeScratch {
	return &fakeScratch{saved: map[string][]byte{}}
}

func (f *fakeScratch) Save(_ context.Context, key string, data io.Reader) (string, error) {
	b, _ := io.ReadAll(data)
	f.saved[key] = b
	return "/scratch/" + key, nil
}

func (f *fakeScratch) Remove(_ context.Context, key string) error {
	f.removed = append(f.removed, key)
	delete(f.saved, key)
	return nil
}

type scriptedRunner struct {
	outputs map[string][]byte
	errs    map[string]error
	calls   []string
}

func (s *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	s.calls = append(s.calls, name+" "+strings.Join(args, " "))
	if err := s.errs[name]; err != nil {
		return nil, err
	}
	return s.outputs[name], nil
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestDeriveImageCapsResolution(t *testing.T) {
	gen := New(newFakeScratch(), Config{MaxEdge: 64})
	asset := &domain.MediaAsset{
		Data:     encodePNG(t, 1000, 500),
		Type:     domain.MediaImage,
		MimeType: "image/png",
		FileName: "wide.png",
	}
	if err := gen.Derive(context.Background(), asset); err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if asset.PreviewMime != "image/jpeg" {
		t.Fatalf("preview mime = %q", asset.PreviewMime)
	}
	thumb, _, err := image.Decode(bytes.NewReader(asset.Preview))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	b := thumb.Bounds()
	if b.Dx() != 64 || b.Dy() != 32 {
		t.Fatalf("thumbnail = %dx%d, want 64x32", b.Dx(), b.Dy())
	}
}

func TestDeriveImageKeepsSmallImages(t *testing.T) {
	gen := New(newFakeScratch(), Config{MaxEdge: 640})
	asset := &domain.MediaAsset{Data: encodePNG(t, 20, 10), Type: domain.MediaImage, FileName: "tiny.png"}
	if err := gen.Derive(context.Background(), asset); err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	thumb, _, err := image.Decode(bytes.NewReader(asset.Preview))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if thumb.Bounds().Dx() != 20 {
		t.Fatalf("small image must not be upscaled, got %d", thumb.Bounds().Dx())
	}
}

func TestDeriveImageRejectsGarbage(t *testing.T) {
	gen := New(newFakeScratch(), Config{})
	asset := &domain.MediaAsset{Data: []byte("not an image"), Type: domain.MediaImage, FileName: "x.jpg"}
	if err := gen.Derive(context.Background(), asset); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDeriveVideoExtractsFrameAndDuration(t *testing.T) {
	scratch := newFakeScratch()
	runner := &scriptedRunner{outputs: map[string][]byte{
		"ffprobe": []byte("12.48\n"),
		"ffmpeg":  encodeJPEG(t, 320, 180),
	}}
	gen := New(scratch, Config{MaxEdge: 640, Runner: runner})

	asset := &domain.MediaAsset{Data: []byte("mp4bytes"), Type: domain.MediaVideo, FileName: "clip.mp4"}
	if err := gen.Derive(context.Background(), asset); err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if asset.Duration != 12.48 {
		t.Fatalf("duration = %v", asset.Duration)
	}
	if asset.PreviewMime != "image/jpeg" || len(asset.Preview) == 0 {
		t.Fatalf("frame preview missing")
	}
	if len(scratch.removed) != 1 {
		t.Fatalf("scratch file must be cleaned up, removed=%v", scratch.removed)
	}
	if !strings.Contains(runner.calls[1], "-ss 1") {
		t.Fatalf("frame extraction should seek to 1s: %q", runner.calls[1])
	}
}

func TestDeriveVideoShortClipSeeksToStart(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string][]byte{
		"ffprobe": []byte("0.8"),
		"ffmpeg":  encodeJPEG(t, 64, 64),
	}}
	gen := New(newFakeScratch(), Config{Runner: runner})

	asset := &domain.MediaAsset{Data: []byte("mp4"), Type: domain.MediaVideo, FileName: "short.mp4"}
	if err := gen.Derive(context.Background(), asset); err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if !strings.Contains(runner.calls[1], "-ss 0") {
		t.Fatalf("short clip should seek to 0: %q", runner.calls[1])
	}
}

func TestDeriveVideoToolFailureCleansUp(t *testing.T) {
	scratch := newFakeScratch()
	runner := &scriptedRunner{
		outputs: map[string][]byte{"ffprobe": []byte("5.0")},
		errs:    map[string]error{"ffmpeg": errors.New("ffmpeg: executable file not found")},
	}
	gen := New(scratch, Config{Runner: runner})

	asset := &domain.MediaAsset{Data: []byte("mp4"), Type: domain.MediaVideo, FileName: "clip.mp4"}
	if err := gen.Derive(context.Background(), asset); err == nil {
		t.Fatalf("expected error")
	}
	if len(scratch.removed) != 1 {
		t.Fatalf("scratch file must be cleaned up on failure")
	}
	if asset.Duration != 5.0 {
		t.Fatalf("duration probe result should survive frame failure, got %v", asset.Duration)
	}
}

func TestDeriveAudioRendersWaveform(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string][]byte{
		"ffprobe": []byte("33.1"),
		"ffmpeg":  encodePNG(t, 640, 120),
	}}
	gen := New(newFakeScratch(), Config{Runner: runner})

	asset := &domain.MediaAsset{Data: []byte("mp3"), Type: domain.MediaAudio, FileName: "voice.mp3"}
	if err := gen.Derive(context.Background(), asset); err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if asset.PreviewMime != "image/png" || len(asset.Preview) == 0 {
		t.Fatalf("waveform preview missing")
	}
	if asset.Duration != 33.1 {
		t.Fatalf("duration = %v", asset.Duration)
	}
	if !strings.Contains(runner.calls[1], "showwavespic") {
		t.Fatalf("waveform filter not used: %q", runner.calls[1])
	}
}
