// Package sink writes bake artifacts to disk: OpenEXR and TIFF images and
// binary glTF meshes. Files are written to a temporary name next to the
// target and renamed into place once complete.
package sink

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/tiff"

	"github.com/Faultbox/midgard-vat/internal/vat"
	"github.com/Faultbox/midgard-vat/pkg/exr"
)

// Sink errors.
var (
	ErrUnknownFormat   = errors.New("unknown image format")
	ErrFloatTIFF       = errors.New("TIFF output is limited to 16-bit unit precision")
	ErrPixelCount      = errors.New("pixel count does not match image size")
	ErrPixelsNotLoaded = errors.New("image has no pixels")
)

// ImageFiles is a vat.ImageSink writing image files.
type ImageFiles struct {
	log *zap.Logger
}

// NewImageFiles returns an image sink logging to log. A nil log is a no-op.
func NewImageFiles(log *zap.Logger) *ImageFiles {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImageFiles{log: log}
}

// CreateImage returns an empty image of the given size.
func (s *ImageFiles) CreateImage(name string, width, height int, alpha, floatPrecision bool) (vat.ImageHandle, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("image %s: invalid size %dx%d", name, width, height)
	}
	return &fileImage{
		sink:   s,
		name:   name,
		width:  width,
		height: height,
		alpha:  alpha,
		float:  floatPrecision,
	}, nil
}

// Discard removes a file written by this sink. A missing file is not an error.
func (s *ImageFiles) Discard(path string) error {
	return discard(path)
}

type fileImage struct {
	sink          *ImageFiles
	name          string
	width, height int
	alpha, float  bool
	pix           []float32
}

func (img *fileImage) WritePixels(flat []float32) error {
	if want := img.width * img.height * vat.Channels; len(flat) != want {
		return fmt.Errorf("%w: %d values for %dx%d", ErrPixelCount, len(flat), img.width, img.height)
	}
	img.pix = append(img.pix[:0], flat...)
	return nil
}

// Save encodes the image in format and writes it to path. Grid row 0 is
// stored as the bottom scanline.
func (img *fileImage) Save(path, format string) error {
	if img.pix == nil {
		return ErrPixelsNotLoaded
	}

	var encode func(io.Writer) error
	switch format {
	case vat.FormatOpenEXR:
		encode = img.encodeEXR
	case vat.FormatTIFF:
		if img.float {
			return ErrFloatTIFF
		}
		encode = img.encodeTIFF
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err := writeAtomic(path, encode); err != nil {
		return err
	}
	img.sink.log.Debug("image written",
		zap.String("name", img.name),
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("width", img.width),
		zap.Int("height", img.height))
	return nil
}

func (img *fileImage) channels() int {
	if img.alpha {
		return 4
	}
	return 3
}

// scanline returns the values of the grid row stored at scanline y.
func (img *fileImage) scanline(y int) []float32 {
	stride := img.width * vat.Channels
	row := img.height - 1 - y
	return img.pix[row*stride : (row+1)*stride]
}

func (img *fileImage) encodeEXR(w io.Writer) error {
	out := &exr.Image{
		Width:    img.width,
		Height:   img.height,
		Channels: []string{"R", "G", "B", "A"}[:img.channels()],
		Type:     exr.Half,
	}
	if img.float {
		out.Type = exr.Float
	}

	nc := img.channels()
	out.Pix = make([]float32, 0, img.width*img.height*nc)
	for y := 0; y < img.height; y++ {
		line := img.scanline(y)
		for x := 0; x < img.width; x++ {
			out.Pix = append(out.Pix, line[x*vat.Channels:x*vat.Channels+nc]...)
		}
	}
	return exr.Encode(w, out)
}

func (img *fileImage) encodeTIFF(w io.Writer) error {
	out := image.NewNRGBA64(image.Rect(0, 0, img.width, img.height))
	for y := 0; y < img.height; y++ {
		line := img.scanline(y)
		for x := 0; x < img.width; x++ {
			t := line[x*vat.Channels:]
			c := color.NRGBA64{R: unit16(t[0]), G: unit16(t[1]), B: unit16(t[2]), A: 0xffff}
			if img.alpha {
				c.A = unit16(t[3])
			}
			out.SetNRGBA64(x, y, c)
		}
	}
	return tiff.Encode(w, out, &tiff.Options{Compression: tiff.Deflate})
}

// unit16 quantizes a [0,1] value to 16 bits, clamping out-of-range input.
func unit16(v float32) uint16 {
	return uint16(min(max(v, 0), 1)*0xffff + 0.5)
}

// writeAtomic creates the parent directory, writes through encode into a
// temporary file and renames it to path.
func writeAtomic(path string, encode func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating export dir: %w", err)
		}
	}

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := encode(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

func discard(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("discarding %s: %w", path, err)
	}
	return nil
}
