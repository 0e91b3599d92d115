package model

import (
	"errors"

	"github.com/Faultbox/midgard-vat/pkg/formats"
	"github.com/Faultbox/midgard-vat/pkg/math"
)

// ErrEmptyModel is returned when a model has no vertices to evaluate.
var ErrEmptyModel = errors.New("model has no vertices")

var fallbackNormal = math.Vec3{X: 0, Y: 1, Z: 0}

// Evaluate deforms every node vertex of rsm at animTimeMs and derives smooth
// vertex normals from the deformed faces. Positions are in model space with
// Y flipped for the RO coordinate system.
func Evaluate(rsm *formats.RSM, animTimeMs float32) (*Pose, error) {
	count := rsm.GetTotalVertexCount()
	if count == 0 {
		return nil, ErrEmptyModel
	}

	pose := &Pose{
		TimeMs:    animTimeMs,
		Positions: make([]math.Vec3, count),
	}

	mirrored := make([]bool, len(rsm.Nodes))
	base := 0
	for i := range rsm.Nodes {
		node := &rsm.Nodes[i]
		m := BuildNodeMatrix(node, rsm, animTimeMs)
		mirrored[i] = isMirror(m)

		for j, v := range node.Vertices {
			p := m.TransformPoint(math.V3(v))
			p.Y = -p.Y
			pose.Positions[base+j] = p
		}
		base += len(node.Vertices)
	}

	pose.Normals = vertexNormals(rsm, pose.Positions, mirrored)
	pose.Bounds = boundsOf(pose.Positions)
	return pose, nil
}

// MirroredNodes reports, per node, whether its matrix at animTimeMs is a
// reflection. Faces of a mirrored node keep their stored winding after the Y
// flip while all others reverse it.
func MirroredNodes(rsm *formats.RSM, animTimeMs float32) []bool {
	mirrored := make([]bool, len(rsm.Nodes))
	for i := range rsm.Nodes {
		mirrored[i] = isMirror(BuildNodeMatrix(&rsm.Nodes[i], rsm, animTimeMs))
	}
	return mirrored
}

func isMirror(m math.Mat4) bool {
	return m.Determinant3() < 0
}

// vertexNormals accumulates area-weighted face normals per vertex.
// Vertices that belong to no face get the fallback up vector.
func vertexNormals(rsm *formats.RSM, positions []math.Vec3, mirrored []bool) []math.Vec3 {
	sums := make([]math.Vec3, len(positions))

	base := 0
	for i := range rsm.Nodes {
		node := &rsm.Nodes[i]
		// The Y flip is itself a reflection
		sign := float32(-1)
		if mirrored[i] {
			sign = 1
		}

		for _, face := range node.Faces {
			if !validFace(face, len(node.Vertices)) {
				continue
			}
			a := base + int(face.VertexIDs[0])
			b := base + int(face.VertexIDs[1])
			c := base + int(face.VertexIDs[2])

			// Cross product length is twice the triangle area
			n := positions[b].Sub(positions[a]).Cross(positions[c].Sub(positions[a])).Scale(sign)
			sums[a] = sums[a].Add(n)
			sums[b] = sums[b].Add(n)
			sums[c] = sums[c].Add(n)
		}
		base += len(node.Vertices)
	}

	normals := make([]math.Vec3, len(sums))
	for i, s := range sums {
		if s.Length() < 1e-8 {
			normals[i] = fallbackNormal
			continue
		}
		normals[i] = s.Normalize()
	}
	return normals
}

// Triangles returns the faces of every node in pose vertex indices with their
// texture coordinates. Faces referencing missing vertices are skipped.
func Triangles(rsm *formats.RSM) []Triangle {
	var tris []Triangle
	base := 0
	for i := range rsm.Nodes {
		node := &rsm.Nodes[i]
		for _, face := range node.Faces {
			if !validFace(face, len(node.Vertices)) {
				continue
			}
			var tri Triangle
			for k := 0; k < 3; k++ {
				tri.Vertices[k] = base + int(face.VertexIDs[k])
				if tc := int(face.TexCoordIDs[k]); tc < len(node.TexCoords) {
					tri.TexCoords[k] = [2]float32{node.TexCoords[tc].U, node.TexCoords[tc].V}
				}
			}
			tri.Node = i
			tri.TwoSided = face.TwoSide != 0
			tris = append(tris, tri)
		}
		base += len(node.Vertices)
	}
	return tris
}

func validFace(face formats.RSMFace, vertexCount int) bool {
	for _, vid := range face.VertexIDs {
		if int(vid) >= vertexCount {
			return false
		}
	}
	return true
}

// Nodes summarizes every node of rsm in file order.
func Nodes(rsm *formats.RSM) []NodeInfo {
	info := make([]NodeInfo, len(rsm.Nodes))
	for i, node := range rsm.Nodes {
		info[i] = NodeInfo{
			Name:          node.Name,
			Parent:        node.Parent,
			VertexBase:    rsm.VertexBase(i),
			VertexCount:   len(node.Vertices),
			FaceCount:     len(node.Faces),
			PosKeyCount:   len(node.PosKeys),
			RotKeyCount:   len(node.RotKeys),
			ScaleKeyCount: len(node.ScaleKeys),
		}
	}
	return info
}

// CountFaces returns total and two-sided face counts for an RSM.
func CountFaces(rsm *formats.RSM) (total, twoSided int) {
	for i := range rsm.Nodes {
		for _, face := range rsm.Nodes[i].Faces {
			total++
			if face.TwoSide != 0 {
				twoSided++
			}
		}
	}
	return total, twoSided
}

func boundsOf(points []math.Vec3) Bounds {
	b := Bounds{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min.X = min(b.Min.X, p.X)
		b.Min.Y = min(b.Min.Y, p.Y)
		b.Min.Z = min(b.Min.Z, p.Z)
		b.Max.X = max(b.Max.X, p.X)
		b.Max.Y = max(b.Max.Y, p.Y)
		b.Max.Z = max(b.Max.Z, p.Z)
	}
	return b
}
