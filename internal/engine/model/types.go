// Package model evaluates animated RSM models: keyframe interpolation, node
// hierarchy matrices and the deformed vertex positions and normals at an
// animation time.
package model

import "github.com/Faultbox/midgard-vat/pkg/math"

// Pose is the deformed geometry of a model at one animation time.
// Vertex i is vertex i of the model's node vertices laid out back to back in
// node order, so indices are stable across animation times.
type Pose struct {
	TimeMs    float32
	Positions []math.Vec3
	Normals   []math.Vec3
	Bounds    Bounds
}

// Bounds holds the axis-aligned bounding box of a pose.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Size returns the extent of the box on each axis.
func (b Bounds) Size() math.Vec3 {
	return b.Max.Sub(b.Min)
}

// Triangle is one RSM face expressed in pose vertex indices.
type Triangle struct {
	Node      int // Index into RSM.Nodes
	Vertices  [3]int
	TexCoords [3][2]float32
	TwoSided  bool
}

// NodeInfo summarizes one RSM node.
type NodeInfo struct {
	Name          string
	Parent        string
	VertexBase    int
	VertexCount   int
	FaceCount     int
	PosKeyCount   int
	RotKeyCount   int
	ScaleKeyCount int
}
