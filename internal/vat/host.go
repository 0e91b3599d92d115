package vat

import "github.com/Faultbox/midgard-vat/pkg/math"

// Object is a mesh-bearing scene object of a Host.
type Object interface {
	Name() string
}

// Timeline is the host's global animation clock.
type Timeline interface {
	SetCurrentFrame(frame int) error
	CurrentFrame() int
}

// FrameDomain is implemented by hosts whose timeline only covers part of
// [MinFrame, MaxFrame], such as a fixed sequence of frame files.
type FrameDomain interface {
	FrameRange() (first, last int)
}

// Host evaluates animated geometry. EvaluateDeformed returns object-space
// positions and normals at the timeline's current frame with every animation
// and deformation applied; vertex i must denote the same vertex at every frame.
type Host interface {
	Timeline
	EvaluateDeformed(obj Object) (positions, normals []math.Vec3, err error)
	WorldTransform(obj Object) math.Mat4
	Topology(obj Object) (*Topology, error)
	SelectedObjects() []Object
}
