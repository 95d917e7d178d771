package overlay

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/png"
	"math/rand/v2"

	"github.com/disintegration/imaging"

	"github.com/menta2k/strangeway/pkg/vision"
)

//go:embed strangeway/strangeway0.png strangeway/strangeway1.png
var assets embed.FS

var assetNames = []string{
	"strangeway/strangeway0.png",
	"strangeway/strangeway1.png",
}

// DefaultScale is the enlargement factor applied to each face box
const DefaultScale = 0.55

// Chooser picks an overlay variant index in [0, n)
type Chooser func(n int) int

// Compositor pastes overlay faces over detected face regions
type Compositor struct {
	overlays []image.Image
	config   Config
	choose   Chooser
}

// Config holds configuration for overlay composition
type Config struct {
	Scale float64
}

// DefaultConfig returns the composition configuration used when none is supplied
func DefaultConfig() Config {
	return Config{Scale: DefaultScale}
}

// New creates a new Compositor with the embedded overlay set and default configuration
func New() (*Compositor, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new Compositor with the embedded overlay set and custom configuration
func NewWithConfig(config Config) (*Compositor, error) {
	overlays, err := loadEmbedded()
	if err != nil {
		return nil, err
	}
	return &Compositor{
		overlays: overlays,
		config:   config,
		choose:   rand.IntN,
	}, nil
}

func loadEmbedded() ([]image.Image, error) {
	overlays := make([]image.Image, 0, len(assetNames))
	for _, name := range assetNames {
		data, err := assets.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read overlay %s: %w", name, err)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode overlay %s: %w", name, err)
		}
		overlays = append(overlays, img)
	}
	return overlays, nil
}

// SetChooser allows setting a custom variant chooser, e.g. a seeded source
// for reproducible output. The chooser must return an index in [0, n).
func (c *Compositor) SetChooser(choose Chooser) {
	c.choose = choose
}

// SetOverlays replaces the embedded overlay set with custom images
func (c *Compositor) SetOverlays(overlays ...image.Image) error {
	if len(overlays) == 0 {
		return fmt.Errorf("at least one overlay is required")
	}
	c.overlays = overlays
	return nil
}

// Placement records a single overlay composited onto the image
type Placement struct {
	Region  vision.Region
	Variant int
	X       int
	Y       int
	Width   int
	Height  int
}

// Compose pastes a randomly chosen overlay over every region using the
// configured scale. The input image is not modified.
func (c *Compositor) Compose(img image.Image, regions []vision.Region) (*image.NRGBA, []Placement, error) {
	return c.ComposeWithScale(img, regions, c.config.Scale)
}

// ComposeWithScale pastes a randomly chosen overlay over every region. Each
// overlay is resized to the face box enlarged by scale and shifted up and left
// by half of the added size, so the enlargement stays centered on the box.
// Parts falling outside the canvas are clipped.
func (c *Compositor) ComposeWithScale(img image.Image, regions []vision.Region, scale float64) (*image.NRGBA, []Placement, error) {
	if scale < 0 {
		return nil, nil, fmt.Errorf("scale must not be negative, got %v", scale)
	}
	if len(c.overlays) == 0 {
		return nil, nil, fmt.Errorf("no overlays configured")
	}

	out := imaging.Clone(img)
	placements := make([]Placement, 0, len(regions))

	for _, region := range regions {
		extraW := int(float64(region.Width) * scale)
		extraH := int(float64(region.Height) * scale)
		width := region.Width + extraW
		height := region.Height + extraH
		if width <= 0 || height <= 0 {
			continue
		}

		variant := c.choose(len(c.overlays))
		resized := imaging.Resize(c.overlays[variant], width, height, imaging.CatmullRom)
		pos := image.Pt(region.X-extraW/2, region.Y-extraH/2)
		out = imaging.Overlay(out, resized, pos, 1.0)

		placements = append(placements, Placement{
			Region:  region,
			Variant: variant,
			X:       pos.X,
			Y:       pos.Y,
			Width:   width,
			Height:  height,
		})
	}

	return out, placements, nil
}
