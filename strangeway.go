// Package strangeway provides a novelty face replacement filter for images.
//
// This package combines frontal face detection with overlay composition to
// automatically replace every detected face in a photo with one of the
// bundled strangeway graphics, randomly chosen per face.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		"github.com/menta2k/strangeway"
//	)
//
//	func main() {
//		// Initialize the filter
//		filter, err := strangeway.New()
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// Load, process and save in one step
//		result, err := filter.ProcessSource("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		outputPath, err := filter.SaveResult(result, ".", "")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		fmt.Printf("Replaced %d faces, saved to %s\n", len(result.Placements), outputPath)
//	}
//
// The package consists of four main components:
//
// 1. Processing (pkg/processing): Handles image loading from files and URLs, decoding and encoding
// 2. Vision (pkg/vision): Provides frontal face detection with an embedded cascade
// 3. Overlay (pkg/overlay): Resizes and composites the replacement graphics over face boxes
// 4. Detection (pkg/detection): Optional face location through remote vision models
//
// Features:
//
//   - Frontal face detection with a pure Go cascade classifier
//   - Random per-face choice between the bundled replacement graphics
//   - Overlay enlargement centered on the detected face box
//   - Image input from local paths or http(s) URLs
//   - Collision free output names derived from the input source
//   - Optional remote detection backends (Ollama, llama.cpp)
//   - HTTP server mode for on-the-fly filtering
package strangeway

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/strangeway/internal/utils"
	"github.com/menta2k/strangeway/pkg/detection"
	"github.com/menta2k/strangeway/pkg/overlay"
	"github.com/menta2k/strangeway/pkg/processing"
	"github.com/menta2k/strangeway/pkg/vision"
)

// Version of the strangeway library
const Version = "1.0.0"

// Filter provides a high-level interface for face replacement
type Filter struct {
	processor  *processing.Processor
	detector   *vision.FaceDetector
	compositor *overlay.Compositor
	remote     *detection.Detector
	model      string
	quality    int
}

// New creates a new Filter with default configuration
func New() (*Filter, error) {
	return NewWithConfig(vision.DefaultConfig(), overlay.DefaultConfig(), processing.DefaultOptions())
}

// NewWithConfig creates a new Filter with custom configuration
func NewWithConfig(visionConfig vision.DetectionConfig, overlayConfig overlay.Config, processorOptions processing.Options) (*Filter, error) {
	detector, err := vision.NewWithConfig(visionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create face detector: %w", err)
	}

	compositor, err := overlay.NewWithConfig(overlayConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create compositor: %w", err)
	}

	return &Filter{
		processor:  processing.NewProcessorWithOptions(processorOptions),
		detector:   detector,
		compositor: compositor,
		quality:    processorOptions.Quality,
	}, nil
}

// SetDetector allows setting a custom face detector, e.g. one loaded from a
// cascade file on disk
func (f *Filter) SetDetector(detector *vision.FaceDetector) {
	f.detector = detector
}

// SetRemoteDetector switches face detection to a remote vision model backend
func (f *Filter) SetRemoteDetector(remote *detection.Detector, model string) {
	f.remote = remote
	f.model = model
}

// SetChooser allows setting a custom overlay variant chooser, e.g. a seeded
// source for reproducible output
func (f *Filter) SetChooser(choose overlay.Chooser) {
	f.compositor.SetChooser(choose)
}

// LoadImage loads an image from a file path
func (f *Filter) LoadImage(path string) (image.Image, string, error) {
	return f.processor.LoadImage(path)
}

// LoadImageFromURL downloads an image from a URL
func (f *Filter) LoadImageFromURL(imageURL string) (image.Image, string, error) {
	return f.processor.LoadImageFromURL(imageURL)
}

// LoadImageSmart loads an image from either a file path or URL
func (f *Filter) LoadImageSmart(source string) (image.Image, string, error) {
	return f.processor.LoadImageSmart(source)
}

// SaveImage saves an image to a file path
func (f *Filter) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	return f.processor.SaveImage(img, path, format, quality, lossless)
}

// Result contains the outcome of one face replacement run
type Result struct {
	Image      *image.NRGBA
	Info       processing.ImageInfo
	Faces      []vision.Region
	Placements []overlay.Placement
	Source     string
	Format     string
}

// Process detects the faces in an image and pastes an overlay over each one
func (f *Filter) Process(img image.Image) (*Result, error) {
	return f.process(img, nil)
}

// ProcessWithScale detects the faces in an image and pastes an overlay over
// each one using a custom enlargement scale
func (f *Filter) ProcessWithScale(img image.Image, scale float64) (*Result, error) {
	return f.process(img, &scale)
}

func (f *Filter) process(img image.Image, scale *float64) (*Result, error) {
	faces, err := f.DetectFaces(img)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	var (
		out        *image.NRGBA
		placements []overlay.Placement
	)
	if scale != nil {
		out, placements, err = f.compositor.ComposeWithScale(img, faces, *scale)
	} else {
		out, placements, err = f.compositor.Compose(img, faces)
	}
	if err != nil {
		return nil, fmt.Errorf("overlay composition failed: %w", err)
	}

	return &Result{
		Image:      out,
		Info:       f.processor.GetImageInfo(img),
		Faces:      faces,
		Placements: placements,
	}, nil
}

// ProcessFile loads an image from a file and replaces the detected faces
func (f *Filter) ProcessFile(path string) (*Result, error) {
	img, format, err := f.processor.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return f.processLoaded(img, path, format)
}

// ProcessURL downloads an image from a URL and replaces the detected faces
func (f *Filter) ProcessURL(imageURL string) (*Result, error) {
	img, format, err := f.processor.LoadImageFromURL(imageURL)
	if err != nil {
		return nil, err
	}
	return f.processLoaded(img, imageURL, format)
}

// ProcessSource loads an image from either a file path or URL and replaces
// the detected faces
func (f *Filter) ProcessSource(source string) (*Result, error) {
	img, format, err := f.processor.LoadImageSmart(source)
	if err != nil {
		return nil, err
	}
	return f.processLoaded(img, source, format)
}

func (f *Filter) processLoaded(img image.Image, source, format string) (*Result, error) {
	if err := f.processor.ValidateImage(img); err != nil {
		return nil, fmt.Errorf("image validation failed: %w", err)
	}

	result, err := f.Process(img)
	if err != nil {
		return nil, err
	}

	result.Source = source
	result.Format = format
	return result, nil
}

// DetectFaces returns the face regions found in an image. The remote backend
// is used when configured, otherwise the embedded cascade runs locally.
func (f *Filter) DetectFaces(img image.Image) ([]vision.Region, error) {
	if f.remote == nil {
		return f.detector.DetectFaces(img), nil
	}

	encoded, err := f.processor.EncodeForModel(img, 1024, 90)
	if err != nil {
		return nil, err
	}

	boxes, err := f.remote.DetectFaces(context.Background(), f.model, encoded)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	regions := make([]vision.Region, 0, len(boxes.Faces))
	for _, face := range boxes.Faces {
		region := f.processor.RegionFromBox(face.Box, bounds.Dx(), bounds.Dy())
		region.Score = face.Confidence
		regions = append(regions, region)
	}
	return regions, nil
}

// SaveResult writes the processed image next to a fresh UUID suffixed name
// derived from the input source and returns the written path. Without an
// explicit format the source extension is kept as-is; the encoder follows
// the extension of the name being written.
func (f *Filter) SaveResult(result *Result, outputDir, format string) (string, error) {
	outputPath := f.processor.OutputName(result.Source, outputDir, format)

	encodeFormat := format
	if encodeFormat == "" {
		encodeFormat = utils.GetFileExtension(outputPath)
	}
	if err := f.processor.SaveImage(result.Image, outputPath, encodeFormat, f.quality, false); err != nil {
		return "", err
	}
	return outputPath, nil
}

// EncodeResult encodes the processed image into the given format
func (f *Filter) EncodeResult(result *Result, format string, quality int) ([]byte, error) {
	return f.processor.EncodeImage(result.Image, format, quality)
}

// GetImageInfo returns basic information about an image
func (f *Filter) GetImageInfo(img image.Image) processing.ImageInfo {
	return f.processor.GetImageInfo(img)
}

// ValidateImage checks if an image meets minimum requirements
func (f *Filter) ValidateImage(img image.Image) error {
	return f.processor.ValidateImage(img)
}

// CreateDebugOverlay renders the detected face regions onto a copy of the image
func (f *Filter) CreateDebugOverlay(img image.Image, regions []vision.Region) image.Image {
	return f.processor.CreateDebugOverlay(img, regions)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
