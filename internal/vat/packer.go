package vat

import "fmt"

// ImageSpec describes how a grid is stored by an ImageSink.
type ImageSpec struct {
	Alpha          bool
	FloatPrecision bool
	Format         string
	Path           string
}

// Pack reinterprets buf as a width x height grid, row y holding tuples
// [y*width, (y+1)*width). It fails when the length is not width*height*4.
func Pack(buf ChannelBuffer, width, height int) (*PixelGrid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%d", ErrLayoutMismatch, width, height)
	}
	if want := width * height * Channels; len(buf) != want {
		return nil, fmt.Errorf("%w: %d values for a %dx%d grid, want %d",
			ErrLayoutMismatch, len(buf), width, height, want)
	}
	return &PixelGrid{Width: width, Height: height, Pix: buf}, nil
}

// Store creates an image in sink sized to grid, writes its pixels and saves
// it to spec.Path.
func Store(sink ImageSink, name string, grid *PixelGrid, spec ImageSpec) error {
	img, err := sink.CreateImage(name, grid.Width, grid.Height, spec.Alpha, spec.FloatPrecision)
	if err != nil {
		return fmt.Errorf("creating image %s: %w", name, err)
	}
	if err := img.WritePixels(grid.Pix); err != nil {
		return fmt.Errorf("writing pixels of %s: %w", name, err)
	}
	if err := img.Save(spec.Path, spec.Format); err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	return nil
}
