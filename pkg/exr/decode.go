package exr

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/x448/float16"
)

// Version field flags that this package does not read.
const (
	flagTiled     = 0x200
	flagDeep      = 0x800
	flagMultipart = 0x1000
)

// DecodeHeader reads the magic, version and header attributes from r.
func DecodeHeader(r io.Reader) (*Header, error) {
	br := bufio.NewReader(r)
	h, _, err := readHeader(br)
	return h, err
}

// readHeader returns the header and the number of bytes it occupies.
func readHeader(br *bufio.Reader) (*Header, int, error) {
	var pre struct {
		Magic   uint32
		Version uint32
	}
	if err := binary.Read(br, binary.LittleEndian, &pre); err != nil {
		return nil, 0, fmt.Errorf("%w: reading magic", ErrTruncated)
	}
	if pre.Magic != Magic {
		return nil, 0, ErrInvalidMagic
	}
	if pre.Version&0xff != Version || pre.Version&(flagTiled|flagDeep|flagMultipart) != 0 {
		return nil, 0, fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, pre.Version)
	}

	h := &Header{Version: pre.Version}
	read := 8
	for {
		name, err := br.ReadString(0)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: reading attribute name", ErrTruncated)
		}
		read += len(name)
		if name == "\x00" {
			break
		}
		typ, err := br.ReadString(0)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: reading attribute type", ErrTruncated)
		}
		read += len(typ)

		var size int32
		if err := binary.Read(br, binary.LittleEndian, &size); err != nil || size < 0 {
			return nil, 0, fmt.Errorf("%w: reading size of %s", ErrTruncated, name)
		}
		value := make([]byte, size)
		if _, err := io.ReadFull(br, value); err != nil {
			return nil, 0, fmt.Errorf("%w: reading value of %s", ErrTruncated, name)
		}
		read += 4 + int(size)

		attr := Attribute{Name: name[:len(name)-1], Type: typ[:len(typ)-1], Value: value}
		h.Attributes = append(h.Attributes, attr)
		if err := h.apply(attr); err != nil {
			return nil, 0, err
		}
	}

	if len(h.Channels) == 0 {
		return nil, 0, fmt.Errorf("%w: header has no channels", ErrInvalidImage)
	}
	return h, read, nil
}

func (h *Header) apply(a Attribute) error {
	le := binary.LittleEndian
	switch a.Name {
	case "channels":
		chans, err := parseChannels(a.Value)
		if err != nil {
			return err
		}
		h.Channels = chans
	case "compression":
		if len(a.Value) != 1 {
			return fmt.Errorf("%w: compression attribute", ErrInvalidImage)
		}
		h.Compression = a.Value[0]
	case "lineOrder":
		if len(a.Value) != 1 {
			return fmt.Errorf("%w: lineOrder attribute", ErrInvalidImage)
		}
		h.LineOrder = a.Value[0]
	case "dataWindow", "displayWindow":
		if len(a.Value) != 16 {
			return fmt.Errorf("%w: %s attribute", ErrInvalidImage, a.Name)
		}
		box := Box2i{
			XMin: int32(le.Uint32(a.Value[0:])),
			YMin: int32(le.Uint32(a.Value[4:])),
			XMax: int32(le.Uint32(a.Value[8:])),
			YMax: int32(le.Uint32(a.Value[12:])),
		}
		if a.Name == "dataWindow" {
			h.DataWindow = box
		} else {
			h.DisplayWindow = box
		}
	}
	return nil
}

func parseChannels(data []byte) ([]Channel, error) {
	var chans []Channel
	for {
		end := bytes.IndexByte(data, 0)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated channel list", ErrInvalidImage)
		}
		if end == 0 {
			return chans, nil
		}
		if len(data) < end+1+16 {
			return nil, fmt.Errorf("%w: channel %q", ErrTruncated, data[:end])
		}
		rec := data[end+1:]
		chans = append(chans, Channel{
			Name:      string(data[:end]),
			Type:      PixelType(int32(binary.LittleEndian.Uint32(rec[0:]))),
			PLinear:   rec[4],
			XSampling: int32(binary.LittleEndian.Uint32(rec[8:])),
			YSampling: int32(binary.LittleEndian.Uint32(rec[12:])),
		})
		data = rec[16:]
	}
}

// Decode reads an uncompressed scanline file. The returned image lists its
// channels in file (alphabetical) order.
func Decode(data []byte) (*Image, error) {
	h, headerSize, err := readHeader(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, err
	}
	if h.Compression != CompressionNone {
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, h.Compression)
	}

	img := &Image{
		Width:  h.DataWindow.Width(),
		Height: h.DataWindow.Height(),
		Type:   h.Channels[0].Type,
	}
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("%w: data window %+v", ErrInvalidImage, h.DataWindow)
	}
	lineSize := 0
	for _, c := range h.Channels {
		if c.Type != img.Type || (c.Type != Half && c.Type != Float) {
			return nil, fmt.Errorf("%w: channel %s of type %s", ErrUnsupported, c.Name, c.Type)
		}
		if c.XSampling != 1 || c.YSampling != 1 {
			return nil, fmt.Errorf("%w: subsampled channel %s", ErrUnsupported, c.Name)
		}
		img.Channels = append(img.Channels, c.Name)
		lineSize += img.Width * c.Type.Size()
	}

	nc := len(img.Channels)
	img.Pix = make([]float32, img.Width*img.Height*nc)
	le := binary.LittleEndian
	table := headerSize
	if len(data) < table+8*img.Height {
		return nil, fmt.Errorf("%w: offset table", ErrTruncated)
	}

	for i := 0; i < img.Height; i++ {
		offset := le.Uint64(data[table+8*i:])
		if offset+8 > uint64(len(data)) {
			return nil, fmt.Errorf("%w: chunk %d", ErrTruncated, i)
		}
		chunk := data[offset:]
		y := int(int32(le.Uint32(chunk[0:]))) - int(h.DataWindow.YMin)
		size := int(le.Uint32(chunk[4:]))
		if y < 0 || y >= img.Height || size != lineSize || len(chunk) < 8+size {
			return nil, fmt.Errorf("%w: chunk %d (line %d, %d bytes)", ErrInvalidImage, i, y, size)
		}

		pos := 8
		row := img.Pix[y*img.Width*nc:]
		for c := 0; c < nc; c++ {
			for x := 0; x < img.Width; x++ {
				if img.Type == Half {
					row[x*nc+c] = float16.Frombits(le.Uint16(chunk[pos:])).Float32()
					pos += 2
				} else {
					row[x*nc+c] = math.Float32frombits(le.Uint32(chunk[pos:]))
					pos += 4
				}
			}
		}
	}
	return img, nil
}

// ReadHeaderFile reads the header of the file at path.
func ReadHeaderFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening EXR file: %w", err)
	}
	defer f.Close()
	return DecodeHeader(f)
}

// DecodeFile reads the image at path.
func DecodeFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading EXR file: %w", err)
	}
	return Decode(data)
}

// Channel returns the samples of the named channel, row 0 first.
func (img *Image) Channel(name string) []float32 {
	c := -1
	for i, n := range img.Channels {
		if n == name {
			c = i
		}
	}
	if c < 0 {
		return nil
	}
	nc := len(img.Channels)
	out := make([]float32, img.Width*img.Height)
	for i := range out {
		out[i] = img.Pix[i*nc+c]
	}
	return out
}
