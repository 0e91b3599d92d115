package vat

// Image formats accepted by ImageHandle.Save.
const (
	FormatOpenEXR = "OPEN_EXR"
	FormatTIFF    = "TIFF"
)

// FormatExtension returns the file extension for an image format, or "" for
// an unknown format.
func FormatExtension(format string) string {
	switch format {
	case FormatOpenEXR:
		return ".exr"
	case FormatTIFF:
		return ".tif"
	}
	return ""
}

// ImageSink creates images to be filled and saved.
type ImageSink interface {
	CreateImage(name string, width, height int, alpha, floatPrecision bool) (ImageHandle, error)
}

// ImageHandle is an image created by an ImageSink. WritePixels takes
// width*height RGBA values, row 0 first.
type ImageHandle interface {
	WritePixels(flat []float32) error
	Save(path, format string) error
}

// MeshSink exports a static mesh in an interchange format.
type MeshSink interface {
	Export(path string, mesh *ExportMesh, scale float32) error
	Extension() string
}

// Discarder is implemented by sinks that can remove an artifact they wrote.
// A failed bake discards every artifact it already wrote.
type Discarder interface {
	Discard(path string) error
}
