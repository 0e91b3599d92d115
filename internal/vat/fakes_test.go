package vat

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

type fakeObject string

func (o fakeObject) Name() string { return string(o) }

// fakeHost serves geometry from a per-frame function.
type fakeHost struct {
	frame    int
	geometry func(frame int) (positions, normals []math.Vec3, err error)
	world    math.Mat4
	topo     *Topology
	selected []Object

	// lastFrame, when set, is the last frame SetCurrentFrame accepts
	lastFrame int

	visited []int
	sets    []int
}

func newFakeHost(geometry func(frame int) ([]math.Vec3, []math.Vec3, error)) *fakeHost {
	return &fakeHost{
		frame:    1,
		geometry: geometry,
		world:    math.Identity(),
		selected: []Object{fakeObject("Cube")},
	}
}

func (h *fakeHost) SetCurrentFrame(frame int) error {
	if h.lastFrame > 0 && frame > h.lastFrame {
		return fmt.Errorf("frame %d past the last frame %d", frame, h.lastFrame)
	}
	h.sets = append(h.sets, frame)
	h.frame = frame
	return nil
}

func (h *fakeHost) CurrentFrame() int { return h.frame }

func (h *fakeHost) EvaluateDeformed(Object) ([]math.Vec3, []math.Vec3, error) {
	h.visited = append(h.visited, h.frame)
	return h.geometry(h.frame)
}

func (h *fakeHost) WorldTransform(Object) math.Mat4 { return h.world }

func (h *fakeHost) Topology(Object) (*Topology, error) {
	if h.topo == nil {
		return nil, errors.New("no mesh data")
	}
	return h.topo, nil
}

func (h *fakeHost) SelectedObjects() []Object { return h.selected }

// rangedHost reports a fixed frame domain.
type rangedHost struct {
	*fakeHost
	first, last int
}

func (h rangedHost) FrameRange() (int, int) { return h.first, h.last }

// staticGeometry returns n vertices spread along X with +Z normals, the same at every frame.
func staticGeometry(n int) func(int) ([]math.Vec3, []math.Vec3, error) {
	return func(int) ([]math.Vec3, []math.Vec3, error) {
		positions := make([]math.Vec3, n)
		normals := make([]math.Vec3, n)
		for i := range positions {
			positions[i] = math.Vec3{X: float32(i), Y: 1, Z: 2}
			normals[i] = math.Vec3{Z: 1}
		}
		return positions, normals, nil
	}
}

// waveGeometry moves vertex i by frame*(i+1) along X and tilts its normal with the frame.
func waveGeometry(n int) func(int) ([]math.Vec3, []math.Vec3, error) {
	return func(frame int) ([]math.Vec3, []math.Vec3, error) {
		positions := make([]math.Vec3, n)
		normals := make([]math.Vec3, n)
		for i := range positions {
			positions[i] = math.Vec3{X: float32(i) + float32(frame*(i+1)), Y: float32(i % 2), Z: -1}
			normals[i] = math.Vec3{X: float32(frame), Y: 1, Z: float32(i)}.Normalize()
		}
		return positions, normals, nil
	}
}

// fanTopology is a fan of triangles over n vertices, plus one UV layer.
func fanTopology(n int) *Topology {
	topo := &Topology{}
	uv := UVLayer{Name: "UVMap"}
	for i := 1; i+1 < n; i++ {
		topo.Faces = append(topo.Faces, Face{Start: len(topo.Corners), Count: 3})
		topo.Corners = append(topo.Corners, 0, i, i+1)
		uv.Coords = append(uv.Coords, [2]float32{0, 0}, [2]float32{1, 0}, [2]float32{1, 1})
	}
	topo.UVLayers = []UVLayer{uv}
	return topo
}

// countingEvaluator wraps an evaluator and counts calls.
type countingEvaluator struct {
	inner FrameEvaluator
	calls int
}

func (e *countingEvaluator) Evaluate(c *TimeCursor, obj Object, frame int) (*FrameSnapshot, error) {
	e.calls++
	return e.inner.Evaluate(c, obj, frame)
}

type memImage struct {
	sink           *memImageSink
	name           string
	width, height  int
	alpha, isFloat bool
	pix            []float32
	format         string
}

func (img *memImage) WritePixels(flat []float32) error {
	if len(flat) != img.width*img.height*Channels {
		return fmt.Errorf("got %d values for %dx%d", len(flat), img.width, img.height)
	}
	img.pix = slices.Clone(flat)
	return nil
}

func (img *memImage) Save(path, format string) error {
	if img.sink.failSave == path {
		return errors.New("disk full")
	}
	img.format = format
	img.sink.saved[path] = img
	return nil
}

// memImageSink keeps saved images in memory by path.
type memImageSink struct {
	saved     map[string]*memImage
	discarded []string
	failSave  string
}

func newMemImageSink() *memImageSink {
	return &memImageSink{saved: make(map[string]*memImage)}
}

func (s *memImageSink) CreateImage(name string, width, height int, alpha, floatPrecision bool) (ImageHandle, error) {
	return &memImage{sink: s, name: name, width: width, height: height, alpha: alpha, isFloat: floatPrecision}, nil
}

func (s *memImageSink) Discard(path string) error {
	s.discarded = append(s.discarded, path)
	delete(s.saved, path)
	return nil
}

// memMeshSink keeps exported meshes in memory by path.
type memMeshSink struct {
	exported  map[string]*ExportMesh
	scales    map[string]float32
	discarded []string
	fail      bool
}

func newMemMeshSink() *memMeshSink {
	return &memMeshSink{exported: make(map[string]*ExportMesh), scales: make(map[string]float32)}
}

func (s *memMeshSink) Export(path string, mesh *ExportMesh, scale float32) error {
	if s.fail {
		return errors.New("exporter crashed")
	}
	s.exported[path] = mesh
	s.scales[path] = scale
	return nil
}

func (s *memMeshSink) Extension() string { return ".glb" }

func (s *memMeshSink) Discard(path string) error {
	s.discarded = append(s.discarded, path)
	delete(s.exported, path)
	return nil
}
