package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"thumbsync/internal/logging"
	"thumbsync/internal/memory"
	"thumbsync/internal/metrics"
	"thumbsync/internal/models"
	"thumbsync/internal/storage"

	"github.com/disintegration/imaging"
)

const (
	// DefaultFetchTimeout bounds the download of one original.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxDownloadBytes caps the size of an original.
	DefaultMaxDownloadBytes = 200 << 20

	defaultQuality = 85
)

// URLResolver turns an original's path into a fetchable URL.
type URLResolver interface {
	ResolveURL(ctx context.Context, path string) (string, error)
}

// Encoder turns a rendered image into bytes of the requested format.
type Encoder interface {
	Encode(img image.Image, format string, quality int) ([]byte, error)
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc func(img image.Image, format string, quality int) ([]byte, error)

// Encode calls f.
func (f EncoderFunc) Encode(img image.Image, format string, quality int) ([]byte, error) {
	return f(img, format, quality)
}

// DefaultEncoder writes jpeg and png with imaging and webp with libvips.
var DefaultEncoder Encoder = EncoderFunc(encode)

func encode(img image.Image, format string, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case models.FormatJPEG, "jpg", "":
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, err
		}
	case models.FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, err
		}
	case models.FormatWebP:
		return encodeWebP(img, quality)
	default:
		return nil, fmt.Errorf("unsupported thumbnail format %q", format)
	}
	return buf.Bytes(), nil
}

// Options configures a Pipeline.
type Options struct {
	Resolver URLResolver
	Backend  storage.Backend

	// HTTPClient fetches originals. Defaults to a client with FetchTimeout.
	HTTPClient   *http.Client
	FetchTimeout time.Duration
	UserAgent    string

	// MaxDownloadBytes rejects larger originals. Defaults to DefaultMaxDownloadBytes.
	MaxDownloadBytes int64

	Encoder Encoder

	// Memory pauses decoding while heap usage is critical. Optional.
	Memory *memory.Monitor
}

// Pipeline renders every configured size of an original and writes the
// results through a storage backend.
type Pipeline struct {
	resolver    URLResolver
	backend     storage.Backend
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxDownload int64
	encoder     Encoder
	memory      *memory.Monitor
}

// NewPipeline creates a pipeline from opts.
func NewPipeline(opts Options) *Pipeline {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.FetchTimeout}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "thumbsync"
	}
	if opts.MaxDownloadBytes <= 0 {
		opts.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	if opts.Encoder == nil {
		opts.Encoder = DefaultEncoder
	}

	return &Pipeline{
		resolver:    opts.Resolver,
		backend:     opts.Backend,
		client:      opts.HTTPClient,
		timeout:     opts.FetchTimeout,
		userAgent:   opts.UserAgent,
		maxDownload: opts.MaxDownloadBytes,
		encoder:     opts.Encoder,
		memory:      opts.Memory,
	}
}

// GenerateThumbnails fetches originalPath once and writes one thumbnail
// per size in cfg. The returned map holds the location of every size that
// was written; sizes that failed are logged and left out. An error is
// returned when the original cannot be fetched or decoded, or when no
// size at all could be written.
func (p *Pipeline) GenerateThumbnails(ctx context.Context, originalPath string, cfg models.ThumbnailConfig) (map[string]string, error) {
	results := make(map[string]string, len(cfg.Sizes))
	if len(cfg.Sizes) == 0 {
		return results, nil
	}

	start := time.Now()
	data, err := p.fetch(ctx, originalPath)
	metrics.ThumbnailGenerationDuration.WithLabelValues("download").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailOriginalsFailed.WithLabelValues("download").Inc()
		return results, fmt.Errorf("failed to fetch %s: %w", originalPath, err)
	}

	if !p.memory.WaitIfPaused(ctx) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		return results, errors.New("memory monitor stopped while waiting to decode")
	}

	start = time.Now()
	src, err := decodeConstrained(data, originalPath)
	metrics.ThumbnailGenerationDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailOriginalsFailed.WithLabelValues("decode").Inc()
		return results, err
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = models.FormatJPEG
	}

	var errs []error
	for _, size := range cfg.Sizes {
		location, err := p.renderSize(ctx, src, originalPath, size, format)
		if err != nil {
			logging.Warn("Thumbnail %s for %s failed: %v", size.Name, originalPath, err)
			metrics.ThumbnailGenerationsTotal.WithLabelValues(size.Name, "error").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", size.Name, err))
			continue
		}
		metrics.ThumbnailGenerationsTotal.WithLabelValues(size.Name, "success").Inc()
		results[size.Name] = location
	}

	if len(results) == 0 {
		return results, fmt.Errorf("no thumbnails written for %s: %w", originalPath, errors.Join(errs...))
	}

	logging.Debug("Generated %d/%d thumbnails for %s", len(results), len(cfg.Sizes), originalPath)
	return results, nil
}

func (p *Pipeline) renderSize(ctx context.Context, src image.Image, originalPath string, size models.SizeProfile, format string) (string, error) {
	start := time.Now()
	img := resizeToFit(src, size.Width, size.Height)
	metrics.ThumbnailGenerationDuration.WithLabelValues("resize").Observe(time.Since(start).Seconds())

	start = time.Now()
	data, err := p.encoder.Encode(img, format, size.Quality)
	metrics.ThumbnailGenerationDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	start = time.Now()
	location, err := p.backend.Save(ctx, GetThumbnailPath(originalPath, size.Name, format), data, storage.ContentType(format))
	metrics.ThumbnailGenerationDuration.WithLabelValues("store").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	return location, nil
}

func (p *Pipeline) fetch(ctx context.Context, originalPath string) ([]byte, error) {
	if p.resolver == nil {
		return nil, errors.New("no URL resolver configured")
	}
	u, err := p.resolver.ResolveURL(ctx, originalPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Debug("failed to close response body for %s: %v", originalPath, err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxDownload+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.maxDownload {
		return nil, fmt.Errorf("original exceeds %d bytes", p.maxDownload)
	}
	return data, nil
}
