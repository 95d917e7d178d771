package types

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FaceBox represents a single detected face with its confidence score
type FaceBox struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// FaceBoxes contains the complete detection result from the vision model
type FaceBoxes struct {
	Faces []FaceBox `json:"faces"`
	Count int       `json:"count"`
}
