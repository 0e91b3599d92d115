// Package host provides geometry hosts for the baker: animated RSM models
// evaluated at timeline frames, and sequences of per-frame OBJ files.
package host

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-vat/internal/engine/model"
	"github.com/Faultbox/midgard-vat/internal/vat"
	"github.com/Faultbox/midgard-vat/pkg/formats"
	"github.com/Faultbox/midgard-vat/pkg/math"
)

// Host errors.
var (
	ErrFrameOutOfRange = errors.New("frame out of range")
	ErrUnknownObject   = errors.New("object does not belong to this host")
)

// DefaultFPS is the timeline rate used when none is configured.
const DefaultFPS = 30

// Object is an object exposed by a host.
type Object string

// Name returns the object name.
func (o Object) Name() string { return string(o) }

// Timing maps timeline frames to animation time.
type Timing struct {
	FPS  float64
	Loop bool
}

// RSMScene hosts one RSM model. Frame f evaluates the model at
// (f-1)*1000/FPS milliseconds.
type RSMScene struct {
	object Object
	rsm    *formats.RSM
	world  math.Mat4
	timing Timing
	frame  int
	topo   *vat.Topology
}

// NewRSMScene wraps rsm as an object called name placed by world.
func NewRSMScene(name string, rsm *formats.RSM, world math.Mat4, timing Timing) (*RSMScene, error) {
	if rsm == nil || rsm.GetTotalVertexCount() == 0 {
		return nil, fmt.Errorf("%s: %w", name, model.ErrEmptyModel)
	}
	if timing.FPS <= 0 {
		timing.FPS = DefaultFPS
	}
	return &RSMScene{
		object: Object(name),
		rsm:    rsm,
		world:  world,
		timing: timing,
		frame:  vat.MinFrame,
	}, nil
}

// Model returns the hosted model.
func (s *RSMScene) Model() *formats.RSM { return s.rsm }

// Timing returns the frame timing.
func (s *RSMScene) Timing() Timing { return s.timing }

// TimeAt returns the animation time of frame in milliseconds.
func (s *RSMScene) TimeAt(frame int) float32 {
	return model.FrameTime(frame, s.timing.FPS, s.rsm.AnimLength, s.timing.Loop)
}

func (s *RSMScene) SetCurrentFrame(frame int) error {
	if frame < vat.MinFrame || frame > vat.MaxFrame {
		return fmt.Errorf("%w: %d", ErrFrameOutOfRange, frame)
	}
	s.frame = frame
	return nil
}

func (s *RSMScene) CurrentFrame() int { return s.frame }

func (s *RSMScene) EvaluateDeformed(obj vat.Object) ([]math.Vec3, []math.Vec3, error) {
	if err := s.check(obj); err != nil {
		return nil, nil, err
	}
	pose, err := model.Evaluate(s.rsm, s.TimeAt(s.frame))
	if err != nil {
		return nil, nil, err
	}
	return pose.Positions, pose.Normals, nil
}

func (s *RSMScene) WorldTransform(vat.Object) math.Mat4 { return s.world }

// Topology returns the model's triangles with their texture coordinates as
// layer "UVMap". Faces referencing missing vertices are left out. Winding
// follows the evaluated normals: reversed for the Y flip except on nodes
// whose rest pose (time 0) matrix is a reflection.
func (s *RSMScene) Topology(obj vat.Object) (*vat.Topology, error) {
	if err := s.check(obj); err != nil {
		return nil, err
	}
	if s.topo != nil {
		return s.topo, nil
	}

	tris := model.Triangles(s.rsm)
	if len(tris) == 0 {
		return nil, fmt.Errorf("%s: model has no valid faces", s.object)
	}
	topo := &vat.Topology{
		Faces:    make([]vat.Face, 0, len(tris)),
		Corners:  make([]int, 0, 3*len(tris)),
		UVLayers: []vat.UVLayer{{Name: "UVMap", Coords: make([][2]float32, 0, 3*len(tris))}},
	}
	mirrored := model.MirroredNodes(s.rsm, 0)
	for _, tri := range tris {
		topo.Faces = append(topo.Faces, vat.Face{Start: len(topo.Corners), Count: 3, TwoSided: tri.TwoSided})
		order := [3]int{0, 2, 1}
		if mirrored[tri.Node] {
			order = [3]int{0, 1, 2}
		}
		for _, k := range order {
			topo.Corners = append(topo.Corners, tri.Vertices[k])
			topo.UVLayers[0].Coords = append(topo.UVLayers[0].Coords, tri.TexCoords[k])
		}
	}
	s.topo = topo
	return topo, nil
}

func (s *RSMScene) SelectedObjects() []vat.Object {
	return []vat.Object{s.object}
}

func (s *RSMScene) check(obj vat.Object) error {
	if obj == nil || obj.Name() != s.object.Name() {
		return ErrUnknownObject
	}
	return nil
}
