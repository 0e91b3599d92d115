package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/midgard-vat/internal/vat"
	"github.com/Faultbox/midgard-vat/pkg/formats"
	"github.com/Faultbox/midgard-vat/pkg/math"
)

// ErrNoFrames is returned when an OBJ sequence has no frame files.
var ErrNoFrames = errors.New("no OBJ frames")

var upNormal = math.Vec3{Y: 1}

// OBJSequence hosts a mesh exported as one OBJ file per frame. Frame f is
// file f-1 of the sequence; every file must list the same vertices.
type OBJSequence struct {
	object Object
	frames []*formats.OBJ
	world  math.Mat4
	frame  int
	topo   *vat.Topology
}

// NewOBJSequence wraps parsed frames as an object called name.
func NewOBJSequence(name string, frames []*formats.OBJ, world math.Mat4) (*OBJSequence, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if len(frames) > vat.MaxFrame {
		return nil, fmt.Errorf("%w: %d frames, at most %d", ErrFrameOutOfRange, len(frames), vat.MaxFrame)
	}
	return &OBJSequence{
		object: Object(name),
		frames: frames,
		world:  world,
		frame:  vat.MinFrame,
	}, nil
}

// LoadOBJSequence reads every .obj file of dir in name order. The object is
// named after the first file's o/g record, or the directory.
func LoadOBJSequence(dir string, world math.Mat4) (*OBJSequence, error) {
	paths, err := FramePaths(dir)
	if err != nil {
		return nil, err
	}

	frames := make([]*formats.OBJ, len(paths))
	for i, p := range paths {
		if frames[i], err = formats.ParseOBJFile(p); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
	}

	name := frames[0].Name
	if name == "" {
		name = filepath.Base(filepath.Clean(dir))
	}
	return NewOBJSequence(name, frames, world)
}

// FramePaths lists the .obj files of dir sorted by name.
func FramePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".obj") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// FrameCount returns the number of frames in the sequence.
func (s *OBJSequence) FrameCount() int { return len(s.frames) }

// FrameRange returns the frames of the sequence, 1 to FrameCount.
func (s *OBJSequence) FrameRange() (first, last int) {
	return vat.MinFrame, len(s.frames)
}

func (s *OBJSequence) SetCurrentFrame(frame int) error {
	if frame < vat.MinFrame || frame > len(s.frames) {
		return fmt.Errorf("%w: %d of %d", ErrFrameOutOfRange, frame, len(s.frames))
	}
	s.frame = frame
	return nil
}

func (s *OBJSequence) CurrentFrame() int { return s.frame }

// EvaluateDeformed returns the current file's vertices. Normals come from the
// file's vn records when every corner has one, and are otherwise derived from
// the faces.
func (s *OBJSequence) EvaluateDeformed(obj vat.Object) ([]math.Vec3, []math.Vec3, error) {
	if obj == nil || obj.Name() != s.object.Name() {
		return nil, nil, ErrUnknownObject
	}
	o := s.frames[s.frame-1]

	positions := make([]math.Vec3, len(o.Positions))
	for i, p := range o.Positions {
		positions[i] = math.V3(p)
	}
	if normals, ok := fileNormals(o); ok {
		return positions, normals, nil
	}
	return positions, faceNormals(positions, o.Faces), nil
}

// fileNormals averages the vn records referenced at each vertex.
func fileNormals(o *formats.OBJ) ([]math.Vec3, bool) {
	if len(o.Normals) == 0 {
		return nil, false
	}
	sums := make([]math.Vec3, len(o.Positions))
	for _, f := range o.Faces {
		for _, c := range f.Corners {
			if c.Normal < 0 {
				return nil, false
			}
			sums[c.Position] = sums[c.Position].Add(math.V3(o.Normals[c.Normal]))
		}
	}
	return normalized(sums), true
}

// faceNormals accumulates area-weighted polygon normals per vertex, fanning
// polygons from their first corner.
func faceNormals(positions []math.Vec3, faces []formats.OBJFace) []math.Vec3 {
	sums := make([]math.Vec3, len(positions))
	for _, f := range faces {
		p0 := positions[f.Corners[0].Position]
		var n math.Vec3
		for i := 1; i+1 < len(f.Corners); i++ {
			e1 := positions[f.Corners[i].Position].Sub(p0)
			e2 := positions[f.Corners[i+1].Position].Sub(p0)
			n = n.Add(e1.Cross(e2))
		}
		for _, c := range f.Corners {
			sums[c.Position] = sums[c.Position].Add(n)
		}
	}
	return normalized(sums)
}

func normalized(sums []math.Vec3) []math.Vec3 {
	for i, s := range sums {
		if s.Length() < 1e-8 {
			sums[i] = upNormal
			continue
		}
		sums[i] = s.Normalize()
	}
	return sums
}

func (s *OBJSequence) WorldTransform(vat.Object) math.Mat4 { return s.world }

// Topology returns the polygons of the first frame. Texture coordinates
// become layer "UVMap" when the file has any.
func (s *OBJSequence) Topology(obj vat.Object) (*vat.Topology, error) {
	if obj == nil || obj.Name() != s.object.Name() {
		return nil, ErrUnknownObject
	}
	if s.topo != nil {
		return s.topo, nil
	}

	o := s.frames[0]
	if len(o.Faces) == 0 {
		return nil, fmt.Errorf("%s: first frame has no faces", s.object)
	}
	topo := &vat.Topology{
		Faces:   make([]vat.Face, 0, len(o.Faces)),
		Corners: make([]int, 0, o.CornerCount()),
	}
	var uv [][2]float32
	if len(o.TexCoords) > 0 {
		uv = make([][2]float32, 0, o.CornerCount())
	}
	for _, f := range o.Faces {
		topo.Faces = append(topo.Faces, vat.Face{Start: len(topo.Corners), Count: len(f.Corners)})
		for _, c := range f.Corners {
			topo.Corners = append(topo.Corners, c.Position)
			if uv == nil {
				continue
			}
			var coord [2]float32
			if c.TexCoord >= 0 {
				coord = o.TexCoords[c.TexCoord]
			}
			uv = append(uv, coord)
		}
	}
	if uv != nil {
		topo.UVLayers = []vat.UVLayer{{Name: "UVMap", Coords: uv}}
	}
	s.topo = topo
	return topo, nil
}

func (s *OBJSequence) SelectedObjects() []vat.Object {
	return []vat.Object{s.object}
}
