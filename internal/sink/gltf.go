package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-vat/internal/vat"
)

// ErrEmptyMesh is returned when a mesh has no faces to export.
var ErrEmptyMesh = errors.New("mesh has no faces")

// Mesh extras keys.
const (
	ExtrasUVLayers  = "uvLayers"
	ExtrasAnimLayer = "vatAnimLayer"
)

// GLTF is a vat.MeshSink writing binary glTF (.glb) files. Each UV layer
// becomes a TEXCOORD_n attribute, so layer 1 (vertex_anim) is TEXCOORD_1.
// Texture coordinates are written as given, without flipping V.
type GLTF struct {
	log *zap.Logger
}

// NewGLTF returns a glTF mesh sink logging to log. A nil log is a no-op.
func NewGLTF(log *zap.Logger) *GLTF {
	if log == nil {
		log = zap.NewNop()
	}
	return &GLTF{log: log}
}

// Extension returns ".glb".
func (g *GLTF) Extension() string { return ".glb" }

// Discard removes a file written by this sink.
func (g *GLTF) Discard(path string) error {
	return discard(path)
}

// Export writes mesh to path as a single node scaled uniformly by scale.
func (g *GLTF) Export(path string, mesh *vat.ExportMesh, scale float32) error {
	doc, err := Document(mesh, scale)
	if err != nil {
		return err
	}
	err = writeAtomic(path, func(w io.Writer) error {
		enc := gltf.NewEncoder(w)
		enc.AsBinary = true
		return enc.Encode(doc)
	})
	if err != nil {
		return err
	}
	g.log.Debug("mesh written",
		zap.String("path", path),
		zap.String("mesh", mesh.Name),
		zap.Int("vertices", len(mesh.Positions)),
		zap.Int("faces", len(mesh.Faces)),
		zap.Float32("scale", scale))
	return nil
}

// Document converts mesh into a glTF document. Corners sharing a vertex and
// identical coordinates on every UV layer become one glTF vertex. Polygons
// are fan-triangulated.
func Document(mesh *vat.ExportMesh, scale float32) (*gltf.Document, error) {
	if mesh == nil || len(mesh.Faces) == 0 {
		return nil, ErrEmptyMesh
	}

	var (
		positions [][3]float32
		normals   [][3]float32
		uvs       = make([][][2]float32, len(mesh.UVLayers))
		indices   []uint32
		remap     = make(map[string]uint32)
		key       []byte
	)

	corner := func(c int) uint32 {
		v := mesh.Corners[c]
		key = binary.LittleEndian.AppendUint32(key[:0], uint32(v))
		for _, layer := range mesh.UVLayers {
			key = binary.LittleEndian.AppendUint32(key, math.Float32bits(layer.Coords[c][0]))
			key = binary.LittleEndian.AppendUint32(key, math.Float32bits(layer.Coords[c][1]))
		}
		if idx, ok := remap[string(key)]; ok {
			return idx
		}
		idx := uint32(len(positions))
		remap[string(key)] = idx
		positions = append(positions, mesh.Positions[v].Array())
		normals = append(normals, mesh.Normals[v].Array())
		for l, layer := range mesh.UVLayers {
			uvs[l] = append(uvs[l], layer.Coords[c])
		}
		return idx
	}

	for _, f := range mesh.Faces {
		first := corner(f.Start)
		for i := 1; i+1 < f.Count; i++ {
			indices = append(indices, first, corner(f.Start+i), corner(f.Start+i+1))
		}
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "midgard-vat"

	attrs := map[string]uint32{
		gltf.POSITION: uint32(modeler.WritePosition(doc, positions)),
		gltf.NORMAL:   uint32(modeler.WriteNormal(doc, normals)),
	}
	layerNames := make([]string, len(mesh.UVLayers))
	for l, layer := range mesh.UVLayers {
		attrs[fmt.Sprintf("TEXCOORD_%d", l)] = uint32(modeler.WriteTextureCoord(doc, uvs[l]))
		layerNames[l] = layer.Name
	}

	prim := &gltf.Primitive{
		Attributes: attrs,
		Indices:    gltf.Index(uint32(modeler.WriteIndices(doc, indices))),
		Material:   gltf.Index(0),
	}
	doc.Materials = []*gltf.Material{{
		Name:        mesh.Name,
		DoubleSided: mesh.TwoSided(),
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name:       mesh.Name,
		Primitives: []*gltf.Primitive{prim},
		Extras: map[string]any{
			ExtrasUVLayers:  layerNames,
			ExtrasAnimLayer: vat.AnimLayerName,
		},
	}}

	node := &gltf.Node{Name: mesh.Name, Mesh: gltf.Index(0)}
	setTransform(&node.Scale, &node.Rotation, scale)
	doc.Nodes = []*gltf.Node{node}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc, nil
}

// setTransform sets a uniform scale and the identity rotation.
func setTransform[T float32 | float64](scale *[3]T, rotation *[4]T, s float32) {
	*scale = [3]T{T(s), T(s), T(s)}
	*rotation = [4]T{0, 0, 0, 1}
}
