// Package vat bakes an animated, fixed-topology mesh into a vertex animation
// texture: a per-frame offset image, a per-frame normal image and a static
// mesh whose second UV layer addresses each vertex's texture column.
//
// The pipeline is single-threaded. Frames are evaluated in increasing order
// through a TimeCursor, encoded frame-major and vertex-minor, packed into
// pixel grids of vertex_count x frame_count and handed to the sinks.
package vat

import (
	"fmt"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

// AnimLayerName is the name of the UV layer holding vertex texture columns.
const AnimLayerName = "vertex_anim"

// Channels is the number of values per texel (RGBA).
const Channels = 4

// FrameSnapshot is the world-space geometry of an object at one frame.
// It is read-only once created.
type FrameSnapshot struct {
	Frame     int
	Positions []math.Vec3
	Normals   []math.Vec3
}

// VertexCount returns the number of vertices in the snapshot.
func (s *FrameSnapshot) VertexCount() int {
	return len(s.Positions)
}

// Sequence holds one snapshot per frame of the inclusive range [Start, End].
type Sequence struct {
	Start  int
	End    int
	Frames []*FrameSnapshot
}

// Reference returns the first snapshot, the zero-offset baseline.
func (s *Sequence) Reference() *FrameSnapshot {
	if len(s.Frames) == 0 {
		return nil
	}
	return s.Frames[0]
}

// FrameCount returns End - Start + 1.
func (s *Sequence) FrameCount() int {
	return s.End - s.Start + 1
}

// VertexCount returns the vertex count of the reference pose.
func (s *Sequence) VertexCount() int {
	if ref := s.Reference(); ref != nil {
		return ref.VertexCount()
	}
	return 0
}

// ChannelBuffer is a flat list of RGBA tuples in frame-major, vertex-minor order.
type ChannelBuffer []float32

// Tuples returns the number of RGBA tuples in the buffer.
func (b ChannelBuffer) Tuples() int {
	return len(b) / Channels
}

// Tuple returns the i-th RGBA tuple.
func (b ChannelBuffer) Tuple(i int) [4]float32 {
	return [4]float32(b[i*Channels : i*Channels+Channels])
}

// PixelGrid is a row-major RGBA image. Row f holds frame f of the sequence,
// column v holds vertex v.
type PixelGrid struct {
	Width  int
	Height int
	Pix    []float32
}

// At returns the texel at column x, row y.
func (g *PixelGrid) At(x, y int) [4]float32 {
	i := (y*g.Width + x) * Channels
	return [4]float32(g.Pix[i : i+Channels])
}

// Row returns the flat values of row y.
func (g *PixelGrid) Row(y int) []float32 {
	stride := g.Width * Channels
	return g.Pix[y*stride : (y+1)*stride]
}

func (g *PixelGrid) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

// Face is a polygon: Count consecutive entries of Topology.Corners starting at Start.
type Face struct {
	Start    int
	Count    int
	TwoSided bool
}

// UVLayer holds one texture coordinate per topology corner.
type UVLayer struct {
	Name   string
	Coords [][2]float32
}

// Topology is the polygon layout of an object's mesh. Corners index vertices.
type Topology struct {
	Faces    []Face
	Corners  []int
	UVLayers []UVLayer
}

// ExportMesh is the reference pose with its topology and UV layers, layer 1
// being AnimLayerName. It is not modified after BuildExportMesh returns.
type ExportMesh struct {
	Name      string
	Positions []math.Vec3
	Normals   []math.Vec3
	Faces     []Face
	Corners   []int
	UVLayers  []UVLayer
}

// AnimLayer returns the vertex_anim layer.
func (m *ExportMesh) AnimLayer() *UVLayer {
	for i := range m.UVLayers {
		if m.UVLayers[i].Name == AnimLayerName {
			return &m.UVLayers[i]
		}
	}
	return nil
}

// TwoSided reports whether any face is rendered from both sides.
func (m *ExportMesh) TwoSided() bool {
	for _, f := range m.Faces {
		if f.TwoSided {
			return true
		}
	}
	return false
}
