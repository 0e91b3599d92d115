// Wavefront OBJ reader. Each file of an exported animation sequence holds one
// frame of the same mesh, so only geometry records are kept.

package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// OBJ format errors.
var (
	ErrMalformedOBJ       = errors.New("malformed OBJ record")
	ErrOBJIndexOutOfRange = errors.New("OBJ index out of range")
)

// OBJCorner references the attributes of one polygon corner.
// Absent attributes are -1.
type OBJCorner struct {
	Position int
	TexCoord int
	Normal   int
}

// OBJFace is a polygon with three or more corners.
type OBJFace struct {
	Corners []OBJCorner
}

// OBJ represents a parsed Wavefront OBJ file.
type OBJ struct {
	Name      string       // First o/g name, if any
	Positions [][3]float32 // v records
	Normals   [][3]float32 // vn records
	TexCoords [][2]float32 // vt records
	Faces     []OBJFace    // f records
}

// CornerCount returns the total number of polygon corners.
func (o *OBJ) CornerCount() int {
	total := 0
	for _, f := range o.Faces {
		total += len(f.Corners)
	}
	return total
}

// ParseOBJ parses OBJ text. Negative (relative) indices are resolved against
// the records read so far.
func ParseOBJ(data []byte) (*OBJ, error) {
	obj := &OBJ{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		ident, val := fields[0], fields[1:]

		var err error
		switch ident {
		case "v", "vn":
			var v [3]float32
			v, err = parseFloats3(val)
			if ident == "v" {
				obj.Positions = append(obj.Positions, v)
			} else {
				obj.Normals = append(obj.Normals, v)
			}
		case "vt":
			var t [2]float32
			t, err = parseFloats2(val)
			obj.TexCoords = append(obj.TexCoords, t)
		case "f":
			var face OBJFace
			face, err = obj.parseFace(val)
			obj.Faces = append(obj.Faces, face)
		case "o", "g":
			if obj.Name == "" && len(val) > 0 {
				obj.Name = strings.Join(val, " ")
			}
		default:
			// materials, smoothing groups, lines and free-form data carry no geometry
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}

	return obj, nil
}

func (o *OBJ) parseFace(val []string) (OBJFace, error) {
	if len(val) < 3 {
		return OBJFace{}, fmt.Errorf("%w: face with %d corners", ErrMalformedOBJ, len(val))
	}

	face := OBJFace{Corners: make([]OBJCorner, len(val))}
	for i, s := range val {
		idx := strings.Split(s, "/")
		if len(idx) > 3 {
			return OBJFace{}, fmt.Errorf("%w: corner %q", ErrMalformedOBJ, s)
		}

		c := OBJCorner{Position: -1, TexCoord: -1, Normal: -1}
		var err error
		if c.Position, err = resolveIndex(idx[0], len(o.Positions)); err != nil {
			return OBJFace{}, err
		}
		if len(idx) > 1 && idx[1] != "" {
			if c.TexCoord, err = resolveIndex(idx[1], len(o.TexCoords)); err != nil {
				return OBJFace{}, err
			}
		}
		if len(idx) > 2 && idx[2] != "" {
			if c.Normal, err = resolveIndex(idx[2], len(o.Normals)); err != nil {
				return OBJFace{}, err
			}
		}
		face.Corners[i] = c
	}
	return face, nil
}

// resolveIndex converts a 1-based or negative OBJ index into a 0-based one.
func resolveIndex(s string, count int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1, fmt.Errorf("%w: index %q", ErrMalformedOBJ, s)
	}
	switch {
	case n > 0 && n <= count:
		return n - 1, nil
	case n < 0 && -n <= count:
		return count + n, nil
	}
	return -1, fmt.Errorf("%w: %d of %d", ErrOBJIndexOutOfRange, n, count)
}

func parseFloats3(val []string) ([3]float32, error) {
	var v [3]float32
	if len(val) < 3 {
		return v, fmt.Errorf("%w: expected 3 components, got %d", ErrMalformedOBJ, len(val))
	}
	for i := range v {
		f, err := strconv.ParseFloat(val[i], 32)
		if err != nil {
			return v, fmt.Errorf("%w: %q", ErrMalformedOBJ, val[i])
		}
		v[i] = float32(f)
	}
	return v, nil
}

func parseFloats2(val []string) ([2]float32, error) {
	var t [2]float32
	if len(val) < 1 {
		return t, fmt.Errorf("%w: empty texture coordinate", ErrMalformedOBJ)
	}
	for i := 0; i < 2 && i < len(val); i++ {
		f, err := strconv.ParseFloat(val[i], 32)
		if err != nil {
			return t, fmt.Errorf("%w: %q", ErrMalformedOBJ, val[i])
		}
		t[i] = float32(f)
	}
	return t, nil
}

// ParseOBJFile parses an OBJ file from disk.
func ParseOBJFile(path string) (*OBJ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OBJ file: %w", err)
	}
	return ParseOBJ(data)
}
