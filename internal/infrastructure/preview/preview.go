package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/google/uuid"

	"github.com/verilens/verilens/internal/core/domain"
	"github.com/verilens/verilens/internal/core/ports"
)

// Generator derives UI preview artifacts: a capped-resolution copy for
// images, a representative frame for video, a rendered waveform for audio.
// Video and audio work goes through ffmpeg subprocesses; when the binaries
// are absent those derivations are skipped and the analysis proceeds without
// a preview.
type Generator struct {
	scratch ports.ScratchStore
	runner  CommandRunner
	ffmpeg  string
	ffprobe string
	maxEdge int
	logger  *slog.Logger
}

type Config struct {
	FFmpegPath  string
	FFprobePath string
	MaxEdge     int
	Runner      CommandRunner
	Logger      *slog.Logger
}

func New(scratch ports.ScratchStore, cfg Config) *Generator {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.MaxEdge <= 0 {
		cfg.MaxEdge = 640
	}
	if cfg.Runner == nil {
		cfg.Runner = execRunner{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Generator{
		scratch: scratch,
		runner:  cfg.Runner,
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		maxEdge: cfg.MaxEdge,
		logger:  cfg.Logger,
	}
}

func (g *Generator) Derive(ctx context.Context, asset *domain.MediaAsset) error {
	switch asset.Type {
	case domain.MediaImage:
		return g.deriveImage(asset)
	case domain.MediaVideo:
		return g.deriveVideo(ctx, asset)
	case domain.MediaAudio:
		return g.deriveAudio(ctx, asset)
	}
	return nil
}

func (g *Generator) deriveImage(asset *domain.MediaAsset) error {
	src, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	preview, err := g.encodeThumbnail(src)
	if err != nil {
		return err
	}
	asset.Preview = preview
	asset.PreviewMime = "image/jpeg"
	return nil
}

func (g *Generator) deriveVideo(ctx context.Context, asset *domain.MediaAsset) error {
	path, cleanup, err := g.spool(ctx, asset)
	if err != nil {
		return err
	}
	defer cleanup()

	duration, err := g.probeDuration(ctx, path)
	if err != nil {
		g.logger.Warn("probe duration failed", slog.String("file_name", asset.FileName), slog.Any("error", err))
	} else {
		asset.Duration = duration
	}

	// One second in is past most title frames; very short clips get frame 0.
	seek := "1"
	if duration > 0 && duration < 1.5 {
		seek = "0"
	}
	frame, err := g.runner.Run(ctx, g.ffmpeg,
		"-ss", seek, "-i", path,
		"-frames:v", "1", "-f", "image2", "-c:v", "mjpeg", "pipe:1")
	if err != nil {
		return fmt.Errorf("extract frame: %w", err)
	}
	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	preview, err := g.encodeThumbnail(src)
	if err != nil {
		return err
	}
	asset.Preview = preview
	asset.PreviewMime = "image/jpeg"
	return nil
}

func (g *Generator) deriveAudio(ctx context.Context, asset *domain.MediaAsset) error {
	path, cleanup, err := g.spool(ctx, asset)
	if err != nil {
		return err
	}
	defer cleanup()

	duration, err := g.probeDuration(ctx, path)
	if err != nil {
		g.logger.Warn("probe duration failed", slog.String("file_name", asset.FileName), slog.Any("error", err))
	} else {
		asset.Duration = duration
	}

	waveform, err := g.runner.Run(ctx, g.ffmpeg,
		"-i", path,
		"-filter_complex", fmt.Sprintf("showwavespic=s=%dx120:colors=0x3B82F6", g.maxEdge),
		"-frames:v", "1", "-f", "image2", "-c:v", "png", "pipe:1")
	if err != nil {
		return fmt.Errorf("render waveform: %w", err)
	}
	asset.Preview = waveform
	asset.PreviewMime = "image/png"
	return nil
}

func (g *Generator) spool(ctx context.Context, asset *domain.MediaAsset) (string, func(), error) {
	key := uuid.NewString() + extensionOf(asset.FileName)
	path, err := g.scratch.Save(ctx, key, bytes.NewReader(asset.Data))
	if err != nil {
		return "", nil, fmt.Errorf("spool media: %w", err)
	}
	return path, func() { _ = g.scratch.Remove(context.WithoutCancel(ctx), key) }, nil
}

func (g *Generator) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := g.runner.Run(ctx, g.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

func (g *Generator) encodeThumbnail(src image.Image) ([]byte, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > g.maxEdge || h > g.maxEdge {
		scale := float64(g.maxEdge) / float64(max(w, h))
		dw, dh := max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
		dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func extensionOf(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[i:]
	}
	return ""
}
