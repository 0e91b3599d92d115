package sink

import (
	"encoding/binary"
	"errors"
	gomath "math"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/midgard-vat/internal/vat"
	"github.com/Faultbox/midgard-vat/pkg/math"
)

// quadMesh is a unit quad with four vertices. With split set, the two
// triangles use different layer-0 coordinates at their shared vertices.
func quadMesh(t *testing.T, split bool) *vat.ExportMesh {
	t.Helper()
	ref := &vat.FrameSnapshot{
		Frame:     1,
		Positions: []math.Vec3{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}},
		Normals:   []math.Vec3{{Z: 1}, {Z: 1}, {Z: 1}, {Z: 1}},
	}
	topo := &vat.Topology{
		Faces:   []vat.Face{{Start: 0, Count: 4}},
		Corners: []int{0, 1, 2, 3},
		UVLayers: []vat.UVLayer{{
			Name:   "UVMap",
			Coords: [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		}},
	}
	if split {
		topo.Faces = []vat.Face{{Start: 0, Count: 3}, {Start: 3, Count: 3, TwoSided: true}}
		topo.Corners = []int{0, 1, 2, 0, 2, 3}
		topo.UVLayers[0].Coords = [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0.5, 0.5}, {1, 1}, {0, 1}}
	}
	mesh, err := vat.BuildExportMesh(ref, topo)
	if err != nil {
		t.Fatalf("BuildExportMesh failed: %v", err)
	}
	mesh.Name = "Quad"
	return mesh
}

// readVec2 reads a tightly packed VEC2 float accessor.
func readVec2(t *testing.T, doc *gltf.Document, accessor int) [][2]float32 {
	t.Helper()
	acc := doc.Accessors[accessor]
	if acc.BufferView == nil {
		t.Fatalf("accessor %d has no buffer view", accessor)
	}
	view := doc.BufferViews[*acc.BufferView]
	data := doc.Buffers[view.Buffer].Data[int(view.ByteOffset)+int(acc.ByteOffset):]
	out := make([][2]float32, int(acc.Count))
	for i := range out {
		out[i][0] = gomath.Float32frombits(binary.LittleEndian.Uint32(data[i*8:]))
		out[i][1] = gomath.Float32frombits(binary.LittleEndian.Uint32(data[i*8+4:]))
	}
	return out
}

func TestDocument_Quad(t *testing.T) {
	doc, err := Document(quadMesh(t, false), 0.01)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}

	prim := doc.Meshes[0].Primitives[0]
	for _, attr := range []string{gltf.POSITION, gltf.NORMAL, gltf.TEXCOORD_0, gltf.TEXCOORD_1} {
		if _, ok := prim.Attributes[attr]; !ok {
			t.Errorf("missing attribute %s", attr)
		}
	}
	if n := int(doc.Accessors[prim.Attributes[gltf.POSITION]].Count); n != 4 {
		t.Errorf("vertex count = %d, want 4", n)
	}
	if n := int(doc.Accessors[*prim.Indices].Count); n != 6 {
		t.Errorf("index count = %d, want 6 (fan of 2 triangles)", n)
	}

	anim := readVec2(t, doc, int(prim.Attributes[gltf.TEXCOORD_1]))
	for i, uv := range anim {
		if want := vat.AnimU(i, 4); uv != [2]float32{want, 0} {
			t.Errorf("anim uv %d = %v, want (%v, 0)", i, uv, want)
		}
	}
	if doc.Materials[0].DoubleSided {
		t.Error("single-sided mesh exported double sided")
	}
	if got := float64(doc.Nodes[0].Scale[0]); gomath.Abs(got-0.01) > 1e-6 {
		t.Errorf("node scale = %v, want 0.01", got)
	}
}

func TestDocument_SplitsVerticesOnUVSeams(t *testing.T) {
	doc, err := Document(quadMesh(t, true), 1)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}

	prim := doc.Meshes[0].Primitives[0]
	// Vertex 0 has two layer-0 coordinates, vertex 2 has one
	if n := int(doc.Accessors[prim.Attributes[gltf.POSITION]].Count); n != 5 {
		t.Errorf("vertex count = %d, want 5", n)
	}
	anim := readVec2(t, doc, int(prim.Attributes[gltf.TEXCOORD_1]))
	seen := map[[2]float32]int{}
	for _, uv := range anim {
		seen[uv]++
	}
	// Both copies of vertex 0 keep the same texture column
	if seen[[2]float32{vat.AnimU(0, 4), 0}] != 2 {
		t.Errorf("anim uvs = %v", anim)
	}
	if !doc.Materials[0].DoubleSided {
		t.Error("two-sided face not exported double sided")
	}
}

func TestDocument_Empty(t *testing.T) {
	if _, err := Document(nil, 1); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("nil mesh: got %v", err)
	}
	if _, err := Document(&vat.ExportMesh{Name: "none"}, 1); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("no faces: got %v", err)
	}
}

func TestGLTF_ExportAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bake", "model.glb")
	sink := NewGLTF(nil)
	if sink.Extension() != ".glb" {
		t.Errorf("extension = %s", sink.Extension())
	}

	if err := sink.Export(path, quadMesh(t, false), 0.5); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "glTF" {
		t.Fatalf("file magic = %q, want glTF", data[:4])
	}

	doc, err := gltf.Open(path)
	if err != nil {
		t.Fatalf("gltf.Open failed: %v", err)
	}
	if len(doc.Meshes) != 1 || doc.Meshes[0].Name != "Quad" || doc.Nodes[0].Name != "Quad" {
		t.Fatalf("meshes = %+v", doc.Meshes)
	}
	extras, ok := doc.Meshes[0].Extras.(map[string]any)
	if !ok {
		t.Fatalf("extras = %#v", doc.Meshes[0].Extras)
	}
	layers, _ := extras[ExtrasUVLayers].([]any)
	if len(layers) != 2 || layers[0] != "UVMap" || layers[1] != vat.AnimLayerName {
		t.Errorf("uv layers = %v", extras[ExtrasUVLayers])
	}
	if got := float64(doc.Nodes[0].Scale[1]); got != 0.5 {
		t.Errorf("scale = %v, want 0.5", got)
	}

	if err := sink.Discard(path); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("model still exists after Discard")
	}
}
