// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package panorama loads equirectangular images for the viewer: decode,
// 2:1 validation and downscaling to the renderer's texture limit.
package panorama

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

var (
	// ErrAspectRatio is returned for images that are not 2:1.
	ErrAspectRatio = errors.New("panorama must have a 2:1 aspect ratio")
	// ErrUnknownFormat is returned when no decoder matches the input.
	ErrUnknownFormat = errors.New("unknown image format")
)

// Supported formats.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
	FormatTGA  = "tga"
)

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// Options controls Decode.
type Options struct {
	MaxWidth        int     // downscale wider images; 0 disables
	AspectTolerance float64 // allowed |w/h - 2| / 2
}

// Image is a decoded, validated panorama.
type Image struct {
	Pixels       image.Image
	Format       string
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int
	Downscaled   bool
}

// CheckAspect verifies that w:h is 2:1 within tol.
func CheckAspect(w, h int, tol float64) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrAspectRatio, w, h)
	}
	ratio := float64(w) / float64(h)
	if math.Abs(ratio-2)/2 > tol {
		return fmt.Errorf("%w: %dx%d is %.3f:1", ErrAspectRatio, w, h, ratio)
	}
	return nil
}

// Decode reads a jpeg, png or webp panorama from r, picking the decoder from
// the leading magic bytes. TGA has no signature; use DecodeFormat or Open.
//
// image.Decode is not used: the tga package registers a decoder with an
// empty magic string that would claim every input.
func Decode(r io.Reader, opts Options) (*Image, error) {
	br := bufio.NewReader(r)
	format, err := sniff(br)
	if err != nil {
		return nil, err
	}
	return DecodeFormat(br, format, opts)
}

// DecodeFormat reads a panorama of a known format from r.
func DecodeFormat(r io.Reader, format string, opts Options) (*Image, error) {
	var (
		src image.Image
		err error
	)
	switch format {
	case FormatJPEG:
		src, err = jpeg.Decode(r)
	case FormatPNG:
		src, err = png.Decode(r)
	case FormatWebP:
		src, err = webp.Decode(r)
	case FormatTGA:
		src, err = tga.Decode(r)
	default:
		return nil, fmt.Errorf("panorama: decode: %w %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("panorama: decode %s: %w", format, err)
	}

	b := src.Bounds()
	if err := CheckAspect(b.Dx(), b.Dy(), opts.AspectTolerance); err != nil {
		return nil, err
	}

	img := &Image{
		Pixels:       src,
		Format:       format,
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		Width:        b.Dx(),
		Height:       b.Dy(),
	}
	if opts.MaxWidth > 0 && b.Dx() > opts.MaxWidth {
		img.Pixels = Downscale(src, opts.MaxWidth)
		img.Width = opts.MaxWidth
		img.Height = img.Pixels.Bounds().Dy()
		img.Downscaled = true
	}
	return img, nil
}

// Open decodes the panorama at path.
func Open(path string, opts Options) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("panorama: open %s: %w", path, err)
	}
	defer f.Close()

	var img *Image
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		img, err = DecodeFormat(f, FormatTGA, opts)
	} else {
		img, err = Decode(f, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func sniff(br *bufio.Reader) (string, error) {
	head, _ := br.Peek(12)
	switch {
	case bytes.HasPrefix(head, pngMagic):
		return FormatPNG, nil
	case bytes.HasPrefix(head, jpegMagic):
		return FormatJPEG, nil
	case len(head) == 12 && string(head[:4]) == "RIFF" && string(head[8:]) == "WEBP":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("panorama: decode: %w", ErrUnknownFormat)
}

// Downscale resizes src to width keeping its aspect ratio.
func Downscale(src image.Image, width int) *image.RGBA {
	b := src.Bounds()
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// EncodePreview writes a width-pixel wide WebP thumbnail of img to w.
func EncodePreview(w io.Writer, img image.Image, width int) error {
	if width > 0 && img.Bounds().Dx() > width {
		img = Downscale(img, width)
	}
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("panorama: webp encode: %w", err)
	}
	return nil
}
