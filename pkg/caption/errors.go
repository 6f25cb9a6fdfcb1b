package caption

import "errors"

var (
	// ErrModelNotFound is returned when the image encoder file is missing.
	ErrModelNotFound = errors.New("caption: model not found")

	// ErrModelLoad is returned when OpenCV cannot load the encoder.
	ErrModelLoad = errors.New("caption: failed to load model")

	// ErrNoScenes is returned when there is nothing to rank against.
	ErrNoScenes = errors.New("caption: no scene templates")

	// ErrDimensionMismatch is returned when image and text embeddings differ
	// in size.
	ErrDimensionMismatch = errors.New("caption: embedding dimension mismatch")
)
