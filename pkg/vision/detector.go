package vision

import (
	_ "embed"
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"
)

// The bundled cascade is a structurally valid placeholder that detects
// nothing. go generate replaces it with esimov's trained facefinder model
// and fetches a sample photo for the detection test; the next build embeds
// the trained model.
//
//go:generate curl -sSL --create-dirs -o cascade/facefinder https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder
//go:generate curl -sSL --create-dirs -o testdata/sample.jpg https://raw.githubusercontent.com/esimov/pigo/master/testdata/sample.jpg

//go:embed cascade/facefinder
var cascadeFile []byte

// FaceDetector provides functionality to detect frontal faces in images
type FaceDetector struct {
	classifier *pigo.Pigo
	config     DetectionConfig
}

// DetectionConfig holds configuration for face detection
type DetectionConfig struct {
	MinSize        int
	MaxSize        int
	ShiftFactor    float64
	ScaleFactor    float64
	IoUThreshold   float64
	Angle          float64
	ScoreThreshold float32
}

// DefaultConfig returns the detection configuration used when none is supplied
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		MinSize:        20,
		MaxSize:        1000,
		ShiftFactor:    0.1,
		ScaleFactor:    1.1,
		IoUThreshold:   0.2,
		Angle:          0.0,
		ScoreThreshold: 5.0,
	}
}

// New creates a new FaceDetector with the embedded cascade and default configuration
func New() (*FaceDetector, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new FaceDetector with the embedded cascade and custom configuration
func NewWithConfig(config DetectionConfig) (*FaceDetector, error) {
	return NewFromCascade(cascadeFile, config)
}

// NewFromFile creates a new FaceDetector from a cascade file on disk
func NewFromFile(path string, config DetectionConfig) (*FaceDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return NewFromCascade(data, config)
}

// NewFromCascade creates a new FaceDetector from raw cascade data
func NewFromCascade(data []byte, config DetectionConfig) (*FaceDetector, error) {
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return &FaceDetector{classifier: classifier, config: config}, nil
}

// Region represents a rectangular region of interest
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Rect returns the region as an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// DetectFaces runs the cascade over the image and returns the detected face regions.
// Regions are sorted by score in descending order; an image without frontal faces
// yields an empty slice.
func (d *FaceDetector) DetectFaces(img image.Image) []Region {
	src := pigo.ImgToNRGBA(img)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	maxSize := d.config.MaxSize
	if maxSize <= 0 {
		maxSize = cols
		if rows < cols {
			maxSize = rows
		}
	}

	cParams := pigo.CascadeParams{
		MinSize:     d.config.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(cParams, d.config.Angle)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	regions := make([]Region, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.config.ScoreThreshold {
			continue
		}
		regions = append(regions, Region{
			X:      det.Col - det.Scale/2,
			Y:      det.Row - det.Scale/2,
			Width:  det.Scale,
			Height: det.Scale,
			Score:  float64(det.Q),
		})
	}

	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Score > regions[j].Score
	})

	return regions
}
