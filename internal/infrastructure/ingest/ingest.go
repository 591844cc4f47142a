package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/verilens/verilens/internal/core/domain"
	"github.com/verilens/verilens/internal/core/ports"
)

// Service validates submitted media and materializes it as an in-memory
// asset. Media bytes never persist past the request.
type Service struct {
	preview      ports.PreviewGenerator
	httpClient   *http.Client
	maxBytes     int64
	fetchTimeout time.Duration
	logger       *slog.Logger
}

type Config struct {
	MaxBytes     int64
	FetchTimeout time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

func New(preview ports.PreviewGenerator, cfg Config) *Service {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 50 << 20
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		preview:      preview,
		httpClient:   cfg.HTTPClient,
		maxBytes:     cfg.MaxBytes,
		fetchTimeout: cfg.FetchTimeout,
		logger:       cfg.Logger,
	}
}

func (s *Service) FromUpload(ctx context.Context, filename string, size int64, body io.Reader) (*domain.MediaAsset, error) {
	mediaType, ok := typeForFilename(filename)
	if !ok {
		return nil, domain.WrapError(domain.ErrUnsupportedMedia, "ingest.upload",
			fmt.Errorf("unrecognized extension on %q", filename))
	}
	// The declared size is a fast reject; the read below is the authority.
	if size > s.maxBytes {
		return nil, domain.WrapError(domain.ErrPayloadTooLarge, "ingest.upload",
			fmt.Errorf("declared size %d exceeds limit %d", size, s.maxBytes))
	}

	data, err := s.readCapped(body)
	if err != nil {
		if errors.Is(err, errOverLimit) {
			return nil, domain.WrapError(domain.ErrPayloadTooLarge, "ingest.upload", err)
		}
		return nil, domain.WrapError(domain.ErrCorruptMedia, "ingest.upload", err)
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrCorruptMedia, "ingest.upload",
			fmt.Errorf("empty file %q", filename))
	}

	asset := &domain.MediaAsset{
		Data:     data,
		Type:     mediaType,
		MimeType: mimeForFilename(filename, mediaType),
		FileName: filename,
		Size:     int64(len(data)),
	}
	s.derivePreview(ctx, asset)
	return asset, nil
}

func (s *Service) FromURL(ctx context.Context, rawURL string) (*domain.MediaAsset, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest.fetch",
			fmt.Errorf("not a fetchable http(s) url: %q", rawURL))
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest.fetch", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFetchFailed, "ingest.fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.WrapError(domain.ErrFetchFailed, "ingest.fetch",
			fmt.Errorf("remote returned status %d", resp.StatusCode))
	}
	if resp.ContentLength > s.maxBytes {
		return nil, domain.WrapError(domain.ErrPayloadTooLarge, "ingest.fetch",
			fmt.Errorf("declared length %d exceeds limit %d", resp.ContentLength, s.maxBytes))
	}

	filename := path.Base(u.Path)
	mediaType, ok := typeForFilename(filename)
	if !ok {
		mediaType, ok = typeForContentType(resp.Header.Get("Content-Type"))
		if !ok {
			return nil, domain.WrapError(domain.ErrUnsupportedMedia, "ingest.fetch",
				fmt.Errorf("cannot determine media type of %q (content-type %q)",
					rawURL, resp.Header.Get("Content-Type")))
		}
	}
	if filename == "." || filename == "/" || filename == "" {
		filename = "remote-media"
	}

	data, err := s.readCapped(resp.Body)
	if err != nil {
		if errors.Is(err, errOverLimit) {
			return nil, domain.WrapError(domain.ErrPayloadTooLarge, "ingest.fetch", err)
		}
		return nil, domain.WrapError(domain.ErrFetchFailed, "ingest.fetch", err)
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrCorruptMedia, "ingest.fetch",
			fmt.Errorf("remote body empty for %q", rawURL))
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = mimeForFilename(filename, mediaType)
	}
	asset := &domain.MediaAsset{
		Data:     data,
		Type:     mediaType,
		MimeType: mime,
		FileName: filename,
		Size:     int64(len(data)),
	}
	s.derivePreview(ctx, asset)
	return asset, nil
}

var errOverLimit = errors.New("payload exceeds size limit")

// readCapped reads at most maxBytes; a payload exactly at the limit is
// accepted, one byte over is not. Callers tell an over-limit payload apart
// from an underlying read failure via errOverLimit.
func (s *Service) readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w of %d bytes", errOverLimit, s.maxBytes)
	}
	return data, nil
}

// derivePreview is best effort; an analysis without a thumbnail is still an
// analysis.
func (s *Service) derivePreview(ctx context.Context, asset *domain.MediaAsset) {
	if s.preview == nil {
		return
	}
	if err := s.preview.Derive(ctx, asset); err != nil {
		s.logger.Warn("preview derivation failed",
			slog.String("file_name", asset.FileName),
			slog.String("media_type", string(asset.Type)),
			slog.Any("error", err))
	}
}
