package client

import (
	"context"

	"github.com/menta2k/strangeway/pkg/types"
)

type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt string, image []byte) (string, error)
	DetectFaces(ctx context.Context, model, prompt string, image []byte) (*types.FaceBoxes, error)
}
