// Package imaging prepares uploaded images for text recognition.
//
// Recognition contrast is improved by a single fixed step: the image is
// converted to grayscale and binarized with an inverted global threshold,
// so dark ink becomes white foreground on a black background.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// Threshold is the gray level at or above which a pixel becomes background.
	Threshold = 150

	// Background and Foreground are the only values Normalize emits.
	Background uint8 = 0
	Foreground uint8 = 255
)

// Decode reads any registered image format (png, jpeg, gif, bmp, tiff, webp).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Normalize converts img to grayscale and applies the inverted threshold.
// The result has the same width and height as img, anchored at (0,0).
func Normalize(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y - b.Min.Y) * out.Stride
		for x := b.Min.X; x < b.Max.X; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			v := Foreground
			if gray.Y >= Threshold {
				v = Background
			}
			out.Pix[row+(x-b.Min.X)] = v
		}
	}

	return out
}

// EncodePNG serializes img as PNG, the format handed to recognition engines.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
