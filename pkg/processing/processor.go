package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/strangeway/internal/utils"
	"github.com/menta2k/strangeway/pkg/types"
	"github.com/menta2k/strangeway/pkg/vision"
)

// Sentinel errors used to classify pipeline failures
var (
	ErrNotFound     = errors.New("input image not found")
	ErrFetchFailed  = errors.New("failed to fetch image")
	ErrDecodeFailed = errors.New("failed to decode image")
	ErrEncodeFailed = errors.New("failed to encode image")
)

// Options holds configuration for the image processor
type Options struct {
	HTTPTimeout  time.Duration
	UserAgent    string
	Quality      int
	MinImageSize int
	MaxFetchSize int64
}

// DefaultOptions returns the processor configuration used when none is supplied
func DefaultOptions() Options {
	return Options{
		HTTPTimeout:  30 * time.Second,
		UserAgent:    "Strangeway/1.0 (+https://github.com/menta2k/strangeway)",
		Quality:      85,
		MinImageSize: 20,
		MaxFetchSize: 32 << 20,
	}
}

// Processor handles image loading, decoding and encoding
type Processor struct {
	options Options
	client  *http.Client
}

// NewProcessor creates a new image processor with default options
func NewProcessor() *Processor {
	return NewProcessorWithOptions(DefaultOptions())
}

// NewProcessorWithOptions creates a new image processor with custom options
func NewProcessorWithOptions(options Options) *Processor {
	return &Processor{
		options: options,
		client:  &http.Client{Timeout: options.HTTPTimeout},
	}
}

// LoadImage loads and decodes an image from a file path
func (p *Processor) LoadImage(path string) (image.Image, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, "", fmt.Errorf("failed to read image file: %w", err)
	}
	return p.DecodeImage(data)
}

// LoadImageFromURL downloads and decodes an image from a URL
func (p *Processor) LoadImageFromURL(imageURL string) (image.Image, string, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid URL: %v", ErrFetchFailed, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, "", fmt.Errorf("%w: unsupported URL scheme %q (only http and https are supported)", ErrFetchFailed, parsedURL.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", p.options.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: HTTP %d %s", ErrFetchFailed, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	limit := p.options.MaxFetchSize
	if limit <= 0 {
		limit = 32 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("%w: response exceeds %d bytes", ErrFetchFailed, limit)
	}

	return p.DecodeImage(data)
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (image.Image, string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

// DecodeImage decodes an image from byte data with WebP support. The returned
// string is the detected format name without the dot.
func (p *Processor) DecodeImage(data []byte) (image.Image, string, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, "", fmt.Errorf("%w: detected %s", ErrDecodeFailed, mtype.String())
	}

	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}

	// Fallback: explicit WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}

	return nil, "", fmt.Errorf("%w: unknown or unsupported format", ErrDecodeFailed)
}

// EncodeImage encodes an image into the specified format
func (p *Processor) EncodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch strings.ToLower(format) {
	case "webp":
		opts := &webp.Options{Quality: float32(quality)}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
	default: // jpg/jpeg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
	}

	return buf.Bytes(), nil
}

// EncodeForModel resizes and encodes an image for sending to a vision model
func (p *Processor) EncodeForModel(img image.Image, maxDim, quality int) ([]byte, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return buf.Bytes(), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		if err := webp.Encode(f, img, opts); err != nil {
			return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
		return nil
	case "png", "gif":
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
		return nil
	default: // jpg/jpeg
		if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
			return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
		return nil
	}
}

// OutputName builds a collision free output file name from the input source.
// The stem and extension are carried over from the source; format overrides
// the extension when set.
func (p *Processor) OutputName(source, outputDir, format string) string {
	stem, ext := utils.SplitSource(source)
	if format != "" {
		ext = strings.ToLower(format)
	}
	if ext == "" {
		ext = "jpg"
	}
	name := fmt.Sprintf("%s_%s.%s", stem, uuid.New().String(), ext)
	return filepath.Join(outputDir, name)
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
}

// GetImageInfo returns basic information about an image
func (p *Processor) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	return ImageInfo{
		Width:       width,
		Height:      height,
		AspectRatio: float64(width) / float64(height),
		Area:        width * height,
	}
}

// ValidateImage checks if an image meets minimum requirements
func (p *Processor) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < p.options.MinImageSize || bounds.Dy() < p.options.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), p.options.MinImageSize)
	}
	return nil
}

// RegionFromBox converts a normalized box to a pixel region for an image of
// the given dimensions
func (p *Processor) RegionFromBox(box types.Box, width, height int) vision.Region {
	x0 := int(clamp(box.X, 0, 1)*float64(width) + 0.5)
	y0 := int(clamp(box.Y, 0, 1)*float64(height) + 0.5)
	x1 := int(clamp(box.X+box.W, 0, 1)*float64(width) + 0.5)
	y1 := int(clamp(box.Y+box.H, 0, 1)*float64(height) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}

	return vision.Region{
		X:      x0,
		Y:      y0,
		Width:  x1 - x0,
		Height: y1 - y0,
	}
}

// CreateDebugOverlay creates an overlay image showing the detected face regions
func (p *Processor) CreateDebugOverlay(img image.Image, regions []vision.Region) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	green := color.NRGBA{0, 255, 0, 255}
	red := color.NRGBA{255, 0, 0, 255}
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h)))) // ~0.4% of min side
	cross := int(math.Max(4, 0.01*float64(minInt(w, h))))   // ~1% of min side

	for _, region := range regions {
		drawRegion(nrgba, region, green, stroke)

		cx, cy := region.Center()
		drawHLine(nrgba, cy, cx-cross, cx+cross, red)
		drawVLine(nrgba, cx, cy-cross, cy+cross, red)
	}

	return nrgba
}

// Helper functions
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func drawRegion(img *image.NRGBA, region vision.Region, color color.NRGBA, stroke int) {
	x0, y0 := region.X, region.Y
	x1, y1 := region.X+region.Width, region.Y+region.Height
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, color)
		drawHLine(img, y1-1-s, x0, x1, color)
		drawVLine(img, x0+s, y0, y1, color)
		drawVLine(img, x1-1-s, y0, y1, color)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
