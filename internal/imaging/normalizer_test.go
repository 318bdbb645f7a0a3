package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermnet/dermnet-go/internal/errors"
)

func testImage(t *testing.T, width, height int) image.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeProducesFixedShape(t *testing.T) {
	t.Parallel()
	n := New()

	tests := []struct {
		name  string
		input []byte
	}{
		{"landscape jpeg", encodeJPEG(t, testImage(t, 1024, 768))},
		{"portrait jpeg", encodeJPEG(t, testImage(t, 300, 900))},
		{"small jpeg", encodeJPEG(t, testImage(t, 50, 40))},
		{"square png", encodePNG(t, testImage(t, 512, 512))},
		{"already target size", encodeJPEG(t, testImage(t, 224, 224))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := n.Normalize(tt.input)
			require.NoError(t, err)
			require.NotEmpty(t, out)

			decoded, format, err := image.Decode(bytes.NewReader(out))
			require.NoError(t, err, "normalized output must be decodable")
			assert.Equal(t, "jpeg", format)
			assert.Equal(t, TargetWidth, decoded.Bounds().Dx())
			assert.Equal(t, TargetHeight, decoded.Bounds().Dy())
		})
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	t.Parallel()
	n := New()

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"not an image", []byte("hello, world")},
		{"truncated jpeg", encodeJPEG(t, testImage(t, 100, 100))[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := n.Normalize(tt.input)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, errors.ErrImageDecode),
				"bad input must fail with the decode sentinel, got: %v", err)
		})
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	t.Parallel()
	n := New()

	input := encodePNG(t, testImage(t, 640, 480))
	first, err := n.Normalize(input)
	require.NoError(t, err)
	second, err := n.Normalize(input)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same input must normalize to identical bytes")
}
