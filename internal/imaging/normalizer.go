// Package imaging normalizes uploaded images to the input shape required by
// the external classifier.
package imaging

import (
	"bytes"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/dermnet/dermnet-go/internal/errors"
	"github.com/dermnet/dermnet-go/internal/logging"
)

// Classifier input shape and output encoding. The external model expects
// 224x224 JPEG input, quality is chosen high to balance size and fidelity.
const (
	TargetWidth   = 224
	TargetHeight  = 224
	OutputQuality = 90
)

// Normalizer decodes an arbitrary raster image and re-encodes it to a
// fixed-size JPEG buffer. All work happens in memory, nothing is staged
// to disk.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a new Normalizer.
func New() *Normalizer {
	logger := logging.ForService("imaging")
	if logger == nil {
		logger = slog.Default().With("service", "imaging")
	}
	return &Normalizer{logger: logger}
}

// Normalize decodes data, scales and crops it to TargetWidth x TargetHeight
// and re-encodes it as JPEG at OutputQuality. The output shape and format are
// deterministic for any input that decodes successfully. Inputs that are empty
// or not a decodable image fail with errors.ErrImageDecode.
func (n *Normalizer) Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.Newf("%w: empty input", errors.ErrImageDecode).
			Component("imaging").
			Category(errors.CategoryImageDecode).
			Build()
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		n.logger.Debug("Image decode failed", "input_size", len(data), "error", err)
		return nil, errors.Newf("%w: %v", errors.ErrImageDecode, err).
			Component("imaging").
			Category(errors.CategoryImageDecode).
			Context("input_size", len(data)).
			Build()
	}

	// Fill scales and center-crops, preserving aspect ratio while always
	// producing the exact target dimensions.
	resized := imaging.Fill(img, TargetWidth, TargetHeight, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(OutputQuality)); err != nil {
		return nil, errors.Newf("encoding normalized image: %w", err).
			Component("imaging").
			Category(errors.CategoryImageProcessing).
			Build()
	}

	n.logger.Debug("Normalized image",
		"input_size", len(data),
		"output_size", buf.Len(),
		"width", TargetWidth,
		"height", TargetHeight)

	return buf.Bytes(), nil
}
