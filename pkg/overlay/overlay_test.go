package overlay

import (
	"image"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/menta2k/strangeway/pkg/vision"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.NRGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.NRGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

// createSolidOverlay creates a uniform opaque overlay for pixel checks
func createSolidOverlay(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNew(t *testing.T) {
	comp, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if comp == nil {
		t.Fatal("New() returned nil")
	}

	if len(comp.overlays) != 2 {
		t.Errorf("Expected 2 embedded overlays, got %d", len(comp.overlays))
	}

	if comp.config.Scale != DefaultScale {
		t.Errorf("Expected default scale %f, got %f", DefaultScale, comp.config.Scale)
	}
}

func TestNewWithConfig(t *testing.T) {
	comp, err := NewWithConfig(Config{Scale: 0.3})
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}

	if comp.config.Scale != 0.3 {
		t.Errorf("Expected scale 0.3, got %f", comp.config.Scale)
	}
}

func TestComposeNoRegions(t *testing.T) {
	comp, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	src := createTestImage(120, 80)
	out, placements, err := comp.Compose(src, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if len(placements) != 0 {
		t.Errorf("Expected no placements, got %d", len(placements))
	}

	bounds := out.Bounds()
	if bounds.Dx() != 120 || bounds.Dy() != 80 {
		t.Errorf("Expected 120x80 output, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	// Output must be pixel identical to the input
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			if out.NRGBAAt(x, y) != src.NRGBAAt(x, y) {
				t.Fatalf("Pixel (%d,%d) changed: %v != %v", x, y, out.NRGBAAt(x, y), src.NRGBAAt(x, y))
			}
		}
	}
}

func TestComposePlacementGeometry(t *testing.T) {
	comp, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	comp.SetChooser(func(n int) int { return 0 })

	tests := []struct {
		name   string
		region vision.Region
		scale  float64
		x      int
		y      int
		width  int
		height int
	}{
		{"half scale", vision.Region{X: 100, Y: 100, Width: 40, Height: 40}, 0.5, 90, 90, 60, 60},
		{"zero scale", vision.Region{X: 100, Y: 100, Width: 40, Height: 40}, 0.0, 100, 100, 40, 40},
		{"default scale", vision.Region{X: 200, Y: 150, Width: 100, Height: 100}, DefaultScale, 173, 123, 155, 155},
		{"truncated scale", vision.Region{X: 50, Y: 50, Width: 30, Height: 30}, 0.55, 42, 42, 46, 46},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := createTestImage(400, 400)
			_, placements, err := comp.ComposeWithScale(src, []vision.Region{tt.region}, tt.scale)
			if err != nil {
				t.Fatalf("ComposeWithScale failed: %v", err)
			}

			if len(placements) != 1 {
				t.Fatalf("Expected 1 placement, got %d", len(placements))
			}

			p := placements[0]
			if p.X != tt.x || p.Y != tt.y {
				t.Errorf("Expected position (%d,%d), got (%d,%d)", tt.x, tt.y, p.X, p.Y)
			}
			if p.Width != tt.width || p.Height != tt.height {
				t.Errorf("Expected size %dx%d, got %dx%d", tt.width, tt.height, p.Width, p.Height)
			}
		})
	}
}

func TestComposeCoversRegion(t *testing.T) {
	comp, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	red := color.NRGBA{255, 0, 0, 255}
	if err := comp.SetOverlays(createSolidOverlay(red)); err != nil {
		t.Fatalf("SetOverlays failed: %v", err)
	}
	comp.SetChooser(func(n int) int { return 0 })

	region := vision.Region{X: 100, Y: 100, Width: 40, Height: 40}
	src := createTestImage(300, 300)
	out, _, err := comp.ComposeWithScale(src, []vision.Region{region}, 0.5)
	if err != nil {
		t.Fatalf("ComposeWithScale failed: %v", err)
	}

	// The resized overlay spans (90,90)-(150,150) and must cover the face box
	for _, pt := range []image.Point{{100, 100}, {139, 139}, {120, 120}, {90, 90}, {149, 149}} {
		got := out.NRGBAAt(pt.X, pt.Y)
		if got != red {
			t.Errorf("Pixel (%d,%d) = %v, expected overlay color", pt.X, pt.Y, got)
		}
	}

	// Pixels outside the overlay footprint stay untouched
	for _, pt := range []image.Point{{89, 89}, {150, 150}, {10, 10}, {250, 250}} {
		if out.NRGBAAt(pt.X, pt.Y) != src.NRGBAAt(pt.X, pt.Y) {
			t.Errorf("Pixel (%d,%d) outside the overlay changed", pt.X, pt.Y)
		}
	}
}

func TestComposeClipsOffCanvas(t *testing.T) {
	comp, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	red := color.NRGBA{255, 0, 0, 255}
	if err := comp.SetOverlays(createSolidOverlay(red)); err != nil {
		t.Fatalf("SetOverlays failed: %v", err)
	}
	comp.SetChooser(func(n int) int { return 0 })

	// Face box hanging over the top left corner
	region := vision.Region{X: -10, Y: -10, Width: 40, Height: 40}
	src := createTestImage(100, 100)
	out, placements, err := comp.ComposeWithScale(src, []vision.Region{region}, 0.0)
	if err != nil {
		t.Fatalf("ComposeWithScale failed: %v", err)
	}

	if len(placements) != 1 {
		t.Fatalf("Expected 1 placement, got %d", len(placements))
	}
	if placements[0].X != -10 || placements[0].Y != -10 {
		t.Errorf("Expected position (-10,-10), got (%d,%d)", placements[0].X, placements[0].Y)
	}

	bounds := out.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Errorf("Expected 100x100 output, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	// Visible part of the overlay is drawn, the rest is clipped
	if out.NRGBAAt(5, 5) != red {
		t.Errorf("Pixel (5,5) = %v, expected overlay color", out.NRGBAAt(5, 5))
	}
	if out.NRGBAAt(50, 50) != src.NRGBAAt(50, 50) {
		t.Error("Pixel (50,50) outside the overlay changed")
	}
}

func TestComposeVariantChoice(t *testing.T) {
	comp, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}
	if err := comp.SetOverlays(createSolidOverlay(red), createSolidOverlay(blue)); err != nil {
		t.Fatalf("SetOverlays failed: %v", err)
	}
	comp.SetChooser(func(n int) int { return 1 })

	region := vision.Region{X: 50, Y: 50, Width: 20, Height: 20}
	src := createTestImage(200, 200)
	out, placements, err := comp.ComposeWithScale(src, []vision.Region{region}, 0.0)
	if err != nil {
		t.Fatalf("ComposeWithScale failed: %v", err)
	}

	if placements[0].Variant != 1 {
		t.Errorf("Expected variant 1, got %d", placements[0].Variant)
	}
	if got := out.NRGBAAt(60, 60); got != blue {
		t.Errorf("Pixel (60,60) = %v, expected second overlay color", got)
	}
}

func TestComposeSeededReproducibility(t *testing.T) {
	regions := []vision.Region{
		{X: 20, Y: 20, Width: 30, Height: 30},
		{X: 120, Y: 40, Width: 40, Height: 40},
		{X: 60, Y: 140, Width: 25, Height: 25},
		{X: 160, Y: 160, Width: 35, Height: 35},
	}
	src := createTestImage(250, 250)

	variants := func(seed uint64) []int {
		comp, err := New()
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		comp.SetChooser(rand.New(rand.NewPCG(seed, seed)).IntN)

		_, placements, err := comp.Compose(src, regions)
		if err != nil {
			t.Fatalf("Compose failed: %v", err)
		}

		out := make([]int, len(placements))
		for i, p := range placements {
			out[i] = p.Variant
		}
		return out
	}

	first := variants(7)
	second := variants(7)

	if len(first) != len(regions) {
		t.Fatalf("Expected %d placements, got %d", len(regions), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Variant %d differs between seeded runs: %d != %d", i, first[i], second[i])
		}
	}
}

func TestComposeSkipsDegenerateRegion(t *testing.T) {
	comp, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	src := createTestImage(100, 100)
	regions := []vision.Region{{X: 10, Y: 10, Width: 0, Height: 0}}

	out, placements, err := comp.Compose(src, regions)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if len(placements) != 0 {
		t.Errorf("Expected degenerate region to be skipped, got %d placements", len(placements))
	}
	if out.NRGBAAt(10, 10) != src.NRGBAAt(10, 10) {
		t.Error("Pixel (10,10) changed for a degenerate region")
	}
}

func TestComposeWithScaleNegative(t *testing.T) {
	comp, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	src := createTestImage(100, 100)
	region := vision.Region{X: 10, Y: 10, Width: 20, Height: 20}

	_, _, err = comp.ComposeWithScale(src, []vision.Region{region}, -0.5)
	if err == nil {
		t.Error("Expected error for negative scale")
	}
}

func TestSetOverlaysEmpty(t *testing.T) {
	comp, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := comp.SetOverlays(); err == nil {
		t.Error("Expected error when setting an empty overlay set")
	}
}

func BenchmarkCompose(b *testing.B) {
	comp, err := New()
	if err != nil {
		b.Fatalf("New() failed: %v", err)
	}

	src := createTestImage(1920, 1080)
	regions := []vision.Region{
		{X: 300, Y: 200, Width: 120, Height: 120},
		{X: 900, Y: 400, Width: 160, Height: 160},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		comp.Compose(src, regions)
	}
}
