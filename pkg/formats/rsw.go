// RSW (Resource World) reader. Only the model placements are kept: they give
// an RSM instance its object-to-world transform.

package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/midgard-vat/pkg/encoding"
)

// RSW format errors.
var (
	ErrInvalidRSWMagic       = errors.New("invalid RSW magic: expected 'GRSW'")
	ErrUnsupportedRSWVersion = errors.New("unsupported RSW version")
	ErrTruncatedRSWData      = errors.New("truncated RSW data")
	ErrUnknownObjectType     = errors.New("unknown RSW object type")
)

// RSWVersion represents the RSW file version.
type RSWVersion struct {
	Major       uint8
	Minor       uint8
	BuildNumber uint32 // v2.2+ (uint8 for v2.2-2.4, uint32 for v2.5+)
}

// String returns the version as "Major.Minor".
func (v RSWVersion) String() string {
	if v.BuildNumber > 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.BuildNumber)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSWVersion) AtLeast(major, minor uint8) bool {
	if v.Major > major {
		return true
	}
	return v.Major == major && v.Minor >= minor
}

// RSWObjectType represents the type of object in the world.
type RSWObjectType int32

const (
	RSWObjectModel  RSWObjectType = 1 // 3D model (RSM file)
	RSWObjectLight  RSWObjectType = 2 // Light source
	RSWObjectSound  RSWObjectType = 3 // Sound source
	RSWObjectEffect RSWObjectType = 4 // Visual effect
)

// Fixed record sizes of the object kinds that are skipped.
const (
	rswLightSize       = 80 + 12 + 12 + 4
	rswEffectSize      = 80 + 12 + 4 + 4 + 16
	rswSoundSize       = 80 + 80 + 12 + 4 + 4 + 4 + 4
	rswSoundCycleBytes = 4 // v2.0+
)

// RSWModel represents a 3D model placed in the world.
type RSWModel struct {
	Name      string     // Object instance name
	AnimType  int32      // Animation type
	AnimSpeed float32    // Animation playback speed
	BlockType int32      // Collision type
	ModelName string     // RSM model file name
	NodeName  string     // Node name within model
	Position  [3]float32 // World position (X, Y, Z)
	Rotation  [3]float32 // Rotation angles in degrees (X, Y, Z)
	Scale     [3]float32 // Scale factors (X, Y, Z)
}

// RSW holds the model placements of a world file.
type RSW struct {
	Version RSWVersion
	GndFile string
	Models  []RSWModel
}

// FindModel returns the placement with the given instance name, or nil.
func (r *RSW) FindModel(name string) *RSWModel {
	for i := range r.Models {
		if r.Models[i].Name == name {
			return &r.Models[i]
		}
	}
	return nil
}

// ParseRSW parses a RSW file from raw bytes.
func ParseRSW(data []byte) (*RSW, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedRSWData
	}

	if string(data[0:4]) != "GRSW" {
		return nil, ErrInvalidRSWMagic
	}

	version := RSWVersion{
		Major: data[4],
		Minor: data[5],
	}

	// Supported versions: 1.2 - 2.6
	if version.Major < 1 || version.Major > 2 || (version.Major == 2 && version.Minor > 6) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSWVersion, version)
	}

	rsw := &RSW{Version: version}
	r := bytes.NewReader(data[6:])

	if version.AtLeast(2, 2) {
		if version.AtLeast(2, 5) {
			// uint32 build number + uint8 render flag
			if err := binary.Read(r, binary.LittleEndian, &rsw.Version.BuildNumber); err != nil {
				return nil, fmt.Errorf("%w: reading build number", ErrTruncatedRSWData)
			}
			if err := skip(r, 1); err != nil {
				return nil, err
			}
		} else {
			var build uint8
			if err := binary.Read(r, binary.LittleEndian, &build); err != nil {
				return nil, fmt.Errorf("%w: reading build number", ErrTruncatedRSWData)
			}
			rsw.Version.BuildNumber = uint32(build)
		}
	}

	// ini + gnd file names, then gat + src (v1.4+)
	if err := skip(r, 40); err != nil {
		return nil, err
	}
	gnd := make([]byte, 40)
	if _, err := io.ReadFull(r, gnd); err != nil {
		return nil, fmt.Errorf("%w: reading gnd file name", ErrTruncatedRSWData)
	}
	rsw.GndFile = encoding.FixedStringToUTF8(gnd)
	if version.AtLeast(1, 4) {
		if err := skip(r, 80); err != nil {
			return nil, err
		}
	}

	// Water block (v1.3 up to v2.5; moved to GND in v2.6)
	if version.AtLeast(1, 3) && !version.AtLeast(2, 6) {
		if err := skip(r, 24); err != nil {
			return nil, err
		}
	}
	// Light block (v1.5+), shadow opacity (v1.7+), ground bounds (v1.6+)
	if version.AtLeast(1, 5) {
		if err := skip(r, 8+12+12); err != nil {
			return nil, err
		}
	}
	if version.AtLeast(1, 7) {
		if err := skip(r, 4); err != nil {
			return nil, err
		}
	}
	if version.AtLeast(1, 6) {
		if err := skip(r, 16); err != nil {
			return nil, err
		}
	}

	var objectCount uint32
	if err := binary.Read(r, binary.LittleEndian, &objectCount); err != nil {
		return nil, fmt.Errorf("%w: reading object count", ErrTruncatedRSWData)
	}

	for i := uint32(0); i < objectCount; i++ {
		var kind RSWObjectType
		if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
			return nil, fmt.Errorf("%w: reading object %d type", ErrTruncatedRSWData, i)
		}

		var err error
		switch kind {
		case RSWObjectModel:
			var model *RSWModel
			model, err = parseRSWModel(r, rsw.Version)
			if err == nil {
				rsw.Models = append(rsw.Models, *model)
			}
		case RSWObjectLight:
			err = skip(r, rswLightSize)
		case RSWObjectSound:
			size := rswSoundSize
			if version.AtLeast(2, 0) {
				size += rswSoundCycleBytes
			}
			err = skip(r, size)
		case RSWObjectEffect:
			err = skip(r, rswEffectSize)
		default:
			err = fmt.Errorf("%w: %d", ErrUnknownObjectType, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing object %d: %w", i, err)
		}
	}

	return rsw, nil
}

// parseRSWModel parses a model object.
func parseRSWModel(r *bytes.Reader, version RSWVersion) (*RSWModel, error) {
	model := &RSWModel{}

	name := make([]byte, 40)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("%w: reading model name", ErrTruncatedRSWData)
	}
	model.Name = encoding.FixedStringToUTF8(name)

	if err := binary.Read(r, binary.LittleEndian, &model.AnimType); err != nil {
		return nil, fmt.Errorf("%w: reading anim type", ErrTruncatedRSWData)
	}
	if err := binary.Read(r, binary.LittleEndian, &model.AnimSpeed); err != nil {
		return nil, fmt.Errorf("%w: reading anim speed", ErrTruncatedRSWData)
	}
	if err := binary.Read(r, binary.LittleEndian, &model.BlockType); err != nil {
		return nil, fmt.Errorf("%w: reading block type", ErrTruncatedRSWData)
	}

	// v2.6.162+ adds a collision flag byte after block type
	if version.AtLeast(2, 6) && version.BuildNumber >= 162 {
		if err := skip(r, 1); err != nil {
			return nil, err
		}
	}

	modelName := make([]byte, 80)
	if _, err := io.ReadFull(r, modelName); err != nil {
		return nil, fmt.Errorf("%w: reading model file name", ErrTruncatedRSWData)
	}
	model.ModelName = encoding.FixedStringToUTF8(modelName)

	nodeName := make([]byte, 80)
	if _, err := io.ReadFull(r, nodeName); err != nil {
		return nil, fmt.Errorf("%w: reading node name", ErrTruncatedRSWData)
	}
	model.NodeName = encoding.FixedStringToUTF8(nodeName)

	if err := binary.Read(r, binary.LittleEndian, &model.Position); err != nil {
		return nil, fmt.Errorf("%w: reading position", ErrTruncatedRSWData)
	}
	if err := binary.Read(r, binary.LittleEndian, &model.Rotation); err != nil {
		return nil, fmt.Errorf("%w: reading rotation", ErrTruncatedRSWData)
	}
	if err := binary.Read(r, binary.LittleEndian, &model.Scale); err != nil {
		return nil, fmt.Errorf("%w: reading scale", ErrTruncatedRSWData)
	}

	return model, nil
}

func skip(r *bytes.Reader, n int) error {
	if r.Len() < n {
		return ErrTruncatedRSWData
	}
	_, err := r.Seek(int64(n), io.SeekCurrent)
	return err
}

// ParseRSWFile parses a RSW file from disk.
func ParseRSWFile(path string) (*RSW, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSW file: %w", err)
	}
	return ParseRSW(data)
}
