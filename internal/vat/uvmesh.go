package vat

import (
	"fmt"
	"slices"
)

// AnimU returns the texture column coordinate of vertex v: (v + 0.5) / n.
func AnimU(v, n int) float32 {
	return (float32(v) + 0.5) / float32(n)
}

// BuildExportMesh copies the reference pose and topology into an ExportMesh,
// adds UV layers until there are two and rewrites layer 1 as vertex_anim with
// U = AnimU(vertex) and V = 0 on every corner.
func BuildExportMesh(reference *FrameSnapshot, topo *Topology) (*ExportMesh, error) {
	if reference == nil || reference.VertexCount() == 0 {
		return nil, fmt.Errorf("%w: empty reference pose", ErrGeometryUnavailable)
	}
	if topo == nil {
		return nil, fmt.Errorf("%w: no topology", ErrGeometryUnavailable)
	}
	n := reference.VertexCount()
	for i, c := range topo.Corners {
		if c < 0 || c >= n {
			return nil, fmt.Errorf("%w: corner %d references vertex %d of %d", ErrGeometryUnavailable, i, c, n)
		}
	}
	for i, f := range topo.Faces {
		if f.Start < 0 || f.Count < 3 || f.Start+f.Count > len(topo.Corners) {
			return nil, fmt.Errorf("%w: face %d spans corners [%d,%d) of %d",
				ErrGeometryUnavailable, i, f.Start, f.Start+f.Count, len(topo.Corners))
		}
	}

	mesh := &ExportMesh{
		Positions: slices.Clone(reference.Positions),
		Normals:   slices.Clone(reference.Normals),
		Faces:     slices.Clone(topo.Faces),
		Corners:   slices.Clone(topo.Corners),
	}
	for _, layer := range topo.UVLayers {
		coords := slices.Clone(layer.Coords)
		if len(coords) != len(topo.Corners) {
			coords = make([][2]float32, len(topo.Corners))
		}
		mesh.UVLayers = append(mesh.UVLayers, UVLayer{Name: layer.Name, Coords: coords})
	}
	for len(mesh.UVLayers) < 2 {
		name := "UVMap"
		if len(mesh.UVLayers) > 0 {
			name = fmt.Sprintf("UVMap.%03d", len(mesh.UVLayers))
		}
		mesh.UVLayers = append(mesh.UVLayers, UVLayer{Name: name, Coords: make([][2]float32, len(topo.Corners))})
	}

	anim := &mesh.UVLayers[1]
	anim.Name = AnimLayerName
	for i, v := range mesh.Corners {
		anim.Coords[i] = [2]float32{AnimU(v, n), 0}
	}
	return mesh, nil
}
