package detection

import "errors"

var (
	// ErrModelNotFound is returned when the ONNX file does not exist.
	ErrModelNotFound = errors.New("detection: model file not found")

	// ErrModelLoad is returned when OpenCV cannot load the network.
	ErrModelLoad = errors.New("detection: failed to load model")

	// ErrNoLabels is returned when the labels file lists no classes.
	ErrNoLabels = errors.New("detection: no class labels")
)
