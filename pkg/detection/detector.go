package detection

import (
	"context"

	"github.com/menta2k/strangeway/pkg/client"
	"github.com/menta2k/strangeway/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt is the default prompt for frontal face detection
const DefaultPrompt = `You are a frontal face locator.

Return JSON only:
{
  "faces": [
    {"label": "face", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "count": 0
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- Include one entry per clearly visible frontal face, nothing else.
- Each box must tightly enclose a single face from chin to forehead.
- Skip faces in profile, heavily occluded or smaller than 2% of the image.
- Do not guess real identities.
- If no frontal face is visible, return {"faces":[],"count":0}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Detector handles face detection using vision models
type Detector struct {
	client client.VisionClient
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient) *Detector {
	return &Detector{client: client}
}

// DetectFaces asks the vision model to locate the frontal faces in an image
func (d *Detector) DetectFaces(ctx context.Context, model string, image []byte) (*types.FaceBoxes, error) {
	return d.DetectFacesWithPrompt(ctx, model, image, DefaultPrompt)
}

// DetectFacesWithPrompt locates faces using a custom prompt
func (d *Detector) DetectFacesWithPrompt(ctx context.Context, model string, image []byte, prompt string) (*types.FaceBoxes, error) {
	result, err := d.client.DetectFaces(ctx, model, prompt, image)
	if err != nil {
		return nil, err
	}

	return validateFaces(result), nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, model string, image []byte) (string, error) {
	return d.client.SimpleQuery(ctx, model, SimpleTestPrompt, image)
}

// validateFaces clamps boxes into [0,1] and drops degenerate entries
func validateFaces(result *types.FaceBoxes) *types.FaceBoxes {
	faces := make([]types.FaceBox, 0, len(result.Faces))
	for _, face := range result.Faces {
		face.Box = normalizeBox(face.Box)
		if face.Box.W <= 0 || face.Box.H <= 0 {
			continue
		}
		if face.Label == "" {
			face.Label = "face"
		}
		faces = append(faces, face)
	}

	return &types.FaceBoxes{Faces: faces, Count: len(faces)}
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox ensures box coordinates are within [0,1] bounds
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}
