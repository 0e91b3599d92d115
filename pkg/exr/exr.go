// Package exr reads and writes single-part, uncompressed, scanline OpenEXR
// images with HALF or FLOAT channels.
package exr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/x448/float16"
)

// Magic number and version field of a single-part scanline file.
const (
	Magic   = 20000630
	Version = 2
)

// PixelType is the storage type of a channel.
type PixelType int32

const (
	Uint  PixelType = 0
	Half  PixelType = 1
	Float PixelType = 2
)

// Size returns the number of bytes per sample.
func (t PixelType) Size() int {
	if t == Half {
		return 2
	}
	return 4
}

func (t PixelType) String() string {
	switch t {
	case Uint:
		return "UINT"
	case Half:
		return "HALF"
	case Float:
		return "FLOAT"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(t))
	}
}

// Compression methods. Only None is written or decoded.
const (
	CompressionNone = 0
	CompressionRLE  = 1
	CompressionZIPS = 2
	CompressionZIP  = 3
	CompressionPIZ  = 4
)

// EXR errors.
var (
	ErrInvalidMagic       = errors.New("invalid EXR magic")
	ErrUnsupportedVersion = errors.New("unsupported EXR version flags")
	ErrUnsupported        = errors.New("unsupported EXR feature")
	ErrTruncated          = errors.New("truncated EXR data")
	ErrInvalidImage       = errors.New("invalid EXR image")
)

// Image is a float image. Pix holds the samples of Channels interleaved in
// the listed order, row 0 first; row 0 is the top scanline of the file.
type Image struct {
	Width    int
	Height   int
	Channels []string
	Type     PixelType
	Pix      []float32
}

// Channel describes a channel in the header.
type Channel struct {
	Name      string
	Type      PixelType
	PLinear   uint8
	XSampling int32
	YSampling int32
}

// Box2i is an integer rectangle, max inclusive.
type Box2i struct {
	XMin, YMin, XMax, YMax int32
}

// Width returns the number of columns in the box.
func (b Box2i) Width() int { return int(b.XMax-b.XMin) + 1 }

// Height returns the number of rows in the box.
func (b Box2i) Height() int { return int(b.YMax-b.YMin) + 1 }

// Attribute is a raw header attribute.
type Attribute struct {
	Name  string
	Type  string
	Value []byte
}

// Header is the decoded file header.
type Header struct {
	Version       uint32
	Channels      []Channel
	Compression   uint8
	DataWindow    Box2i
	DisplayWindow Box2i
	LineOrder     uint8
	Attributes    []Attribute
}

// Encode writes img to w as a scanline file, one uncompressed scanline per
// chunk. Channels are stored in alphabetical order as the format requires.
func Encode(w io.Writer, img *Image) error {
	if err := img.validate(); err != nil {
		return err
	}

	order := sortedChannels(img.Channels)

	var hdr bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&hdr, le, uint32(Magic))
	binary.Write(&hdr, le, uint32(Version))

	var chlist bytes.Buffer
	for _, c := range order {
		chlist.WriteString(img.Channels[c])
		chlist.WriteByte(0)
		binary.Write(&chlist, le, int32(img.Type))
		chlist.Write([]byte{0, 0, 0, 0}) // pLinear + reserved
		binary.Write(&chlist, le, int32(1))
		binary.Write(&chlist, le, int32(1))
	}
	chlist.WriteByte(0)
	writeAttr(&hdr, "channels", "chlist", chlist.Bytes())

	writeAttr(&hdr, "compression", "compression", []byte{CompressionNone})
	window := Box2i{XMax: int32(img.Width - 1), YMax: int32(img.Height - 1)}
	writeAttr(&hdr, "dataWindow", "box2i", encodeBox(window))
	writeAttr(&hdr, "displayWindow", "box2i", encodeBox(window))
	writeAttr(&hdr, "lineOrder", "lineOrder", []byte{0})
	writeAttr(&hdr, "pixelAspectRatio", "float", le.AppendUint32(nil, math.Float32bits(1)))
	writeAttr(&hdr, "screenWindowCenter", "v2f", make([]byte, 8))
	writeAttr(&hdr, "screenWindowWidth", "float", le.AppendUint32(nil, math.Float32bits(1)))
	hdr.WriteByte(0)

	lineSize := img.Width * len(img.Channels) * img.Type.Size()
	chunkSize := 8 + lineSize
	tableStart := hdr.Len()
	for y := 0; y < img.Height; y++ {
		offset := uint64(tableStart + 8*img.Height + y*chunkSize)
		binary.Write(&hdr, le, offset)
	}
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}

	nc := len(img.Channels)
	line := make([]byte, chunkSize)
	for y := 0; y < img.Height; y++ {
		le.PutUint32(line[0:], uint32(int32(y)))
		le.PutUint32(line[4:], uint32(lineSize))
		pos := 8
		row := img.Pix[y*img.Width*nc : (y+1)*img.Width*nc]
		for _, c := range order {
			for x := 0; x < img.Width; x++ {
				v := row[x*nc+c]
				if img.Type == Half {
					le.PutUint16(line[pos:], float16.Fromfloat32(v).Bits())
					pos += 2
				} else {
					le.PutUint32(line[pos:], math.Float32bits(v))
					pos += 4
				}
			}
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func (img *Image) validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidImage, img.Width, img.Height)
	}
	if len(img.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrInvalidImage)
	}
	if img.Type != Half && img.Type != Float {
		return fmt.Errorf("%w: pixel type %s", ErrUnsupported, img.Type)
	}
	if want := img.Width * img.Height * len(img.Channels); len(img.Pix) != want {
		return fmt.Errorf("%w: %d samples, want %d", ErrInvalidImage, len(img.Pix), want)
	}
	seen := make(map[string]bool)
	for _, c := range img.Channels {
		if c == "" || seen[c] {
			return fmt.Errorf("%w: channel name %q", ErrInvalidImage, c)
		}
		seen[c] = true
	}
	return nil
}

// sortedChannels returns the indices of names in alphabetical name order.
func sortedChannels(names []string) []int {
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return names[order[a]] < names[order[b]] })
	return order
}

func writeAttr(buf *bytes.Buffer, name, typ string, value []byte) {
	buf.WriteString(name)
	buf.WriteByte(0)
	buf.WriteString(typ)
	buf.WriteByte(0)
	binary.Write(buf, binary.LittleEndian, int32(len(value)))
	buf.Write(value)
}

func encodeBox(b Box2i) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:], uint32(b.XMin))
	binary.LittleEndian.PutUint32(out[4:], uint32(b.YMin))
	binary.LittleEndian.PutUint32(out[8:], uint32(b.XMax))
	binary.LittleEndian.PutUint32(out[12:], uint32(b.YMax))
	return out
}
