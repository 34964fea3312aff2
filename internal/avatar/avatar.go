// Package avatar validates uploaded avatar images and normalizes them to a
// fixed square thumbnail.
package avatar

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	// MaxDataURLLength bounds the whole data URL, prefix included.
	MaxDataURLLength = 10000
	// MaxDimension bounds both width and height of the source image.
	MaxDimension = 2500
	// Size is the edge length of the stored thumbnail.
	Size = 50

	dataURLPrefix = "data:image/"
	base64Marker  = ";base64,"
)

var (
	ErrInvalidFormat      = errors.New("invalid image format")
	ErrTooLarge           = errors.New("image too large")
	ErrInvalidImageData   = errors.New("invalid image data")
	ErrDimensionsExceeded = errors.New("image dimensions exceed limit")
)

// UnsupportedFormatError is returned for a well-formed data URL declaring a format outside the allow-list.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported image format: %s", e.Format)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}

var formats = map[string]imaging.Format{
	"jpeg": imaging.JPEG,
	"jpg":  imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
}

// Image is a processed avatar ready to store.
type Image struct {
	DataURL     string
	ContentType string
	Data        []byte
}

// Extension returns the canonical file extension for the image's content type.
func (i Image) Extension() string {
	return ExtensionFor(i.ContentType)
}

func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}

// ContentTypeOf extracts the MIME type of a stored data URL.
func ContentTypeOf(dataURL string) string {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return ""
	}
	mime, _, ok := strings.Cut(rest, ";")
	if !ok {
		return ""
	}
	return mime
}

// Process validates dataURL and returns a Size x Size cover-fit rendition
// encoded in the declared format. Checks run in a fixed order: format,
// length, decodability, dimensions.
func Process(dataURL string) (Image, error) {
	rest, ok := strings.CutPrefix(dataURL, dataURLPrefix)
	if !ok {
		return Image{}, ErrInvalidFormat
	}
	declared, payload, ok := strings.Cut(rest, base64Marker)
	if !ok || declared == "" {
		return Image{}, ErrInvalidFormat
	}
	declared = strings.ToLower(declared)
	format, ok := formats[declared]
	if !ok {
		return Image{}, &UnsupportedFormatError{Format: declared}
	}

	if len(dataURL) > MaxDataURLLength {
		return Image{}, ErrTooLarge
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) == 0 {
		return Image{}, ErrInvalidImageData
	}

	cfg, actual, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Image{}, ErrInvalidImageData
	}
	if got, known := formats[actual]; !known || got != format {
		return Image{}, ErrInvalidImageData
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return Image{}, ErrDimensionsExceeded
	}

	src, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, ErrInvalidImageData
	}
	thumb := imaging.Fill(src, Size, Size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format); err != nil {
		return Image{}, fmt.Errorf("encode avatar: %w", err)
	}

	contentType := "image/" + canonicalName(format)
	return Image{
		DataURL:     "data:" + contentType + base64Marker + base64.StdEncoding.EncodeToString(buf.Bytes()),
		ContentType: contentType,
		Data:        buf.Bytes(),
	}, nil
}

func canonicalName(f imaging.Format) string {
	switch f {
	case imaging.PNG:
		return "png"
	case imaging.GIF:
		return "gif"
	default:
		return "jpeg"
	}
}
