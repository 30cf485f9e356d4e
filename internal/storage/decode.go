package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
)

// DecodeWithOrientation decodes an uploaded image and applies its EXIF
// orientation so downstream geometry works on an upright frame. Missing or
// unreadable EXIF data leaves the pixels as decoded.
func DecodeWithOrientation(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return img, nil
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return img, nil
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return img, nil
	}

	switch orientation {
	case 3:
		return rotate180(img), nil
	case 6:
		return rotate90(img), nil
	case 8:
		return rotate270(img), nil
	default:
		return img, nil
	}
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(b.Max.Y-1-y, x-b.Min.X, img.At(x, y))
		}
	}
	return out
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(b.Max.X-1-x, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return out
}

func rotate270(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(y-b.Min.Y, b.Max.X-1-x, img.At(x, y))
		}
	}
	return out
}
