package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"

	"newsarchive/repo"
)

// clipMaxWidth bounds the thumbnail generated for an image-kind
// segment's clip.
const clipMaxWidth = 400

// CropSegmentImage crops bbox out of the page image at pagePath, honors
// EXIF orientation when present, and returns a resized JPEG clip. Used
// for segments of kind "image"; text/headline/article segments carry no
// image clip. The caller (repo.Store) owns writing the result to disk,
// since the repository store is the sole owner of files under its base
// directory.
func CropSegmentImage(pagePath string, bbox repo.BBox) ([]byte, error) {
	f, err := os.Open(pagePath)
	if err != nil {
		return nil, fmt.Errorf("ocr: open page image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("ocr: decode page image: %w", err)
	}

	if _, err := f.Seek(0, 0); err == nil {
		if exifData, err := exif.Decode(f); err == nil {
			img = applyOrientation(img, exifData)
		}
	}

	rect := image.Rect(bbox.X, bbox.Y, bbox.X+bbox.W, bbox.Y+bbox.H)
	cropper, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("ocr: page image does not support cropping")
	}
	clip := cropper.SubImage(rect)

	width := uint(clipMaxWidth)
	if clip.Bounds().Dx() < clipMaxWidth {
		width = uint(clip.Bounds().Dx())
	}
	thumb := resize.Resize(width, 0, clip, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("ocr: encode clip: %w", err)
	}
	return buf.Bytes(), nil
}

// applyOrientation rotates/flips img according to the EXIF orientation
// tag, returning img unchanged if no rotation is needed or the tag is
// absent. Only the common 90/180/270-degree cases are handled; values 2,
// 4, 5, 7 (mirrored) are left as-is since mirrored newspaper scans do not
// occur in practice.
func applyOrientation(img image.Image, data *exif.Exif) image.Image {
	tag, err := data.Get(exif.Orientation)
	if err != nil {
		return img
	}
	value, err := tag.Int(0)
	if err != nil {
		return img
	}
	switch value {
	case 6:
		return rotate90(img)
	case 3:
		return rotate180(img)
	case 8:
		return rotate270(img)
	default:
		return img
	}
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x, img.At(x, y))
		}
	}
	return dst
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}

func rotate270(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y, b.Max.X-1-x, img.At(x, y))
		}
	}
	return dst
}
