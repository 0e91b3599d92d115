package model

import (
	"github.com/Faultbox/midgard-vat/pkg/formats"
	"github.com/Faultbox/midgard-vat/pkg/math"
)

// BuildNodeMatrix builds the transformation matrix for an RSM node.
// Following roBrowser's approach: hierarchy matrix (inherited) + vertex transform (not inherited).
func BuildNodeMatrix(node *formats.RSMNode, rsm *formats.RSM, animTimeMs float32) math.Mat4 {
	visited := make(map[string]bool)
	result := buildNodeHierarchyMatrix(node, rsm, animTimeMs, visited)

	// Offset and Mat3 apply to this node's vertices only
	result = result.Mul(math.Translate(node.Offset[0], node.Offset[1], node.Offset[2]))
	return result.Mul(math.FromMat3x3(node.Matrix))
}

// buildNodeHierarchyMatrix returns the matrix that children inherit:
// parent_hierarchy * Position * Rotation * Scale.
func buildNodeHierarchyMatrix(node *formats.RSMNode, rsm *formats.RSM, animTimeMs float32, visited map[string]bool) math.Mat4 {
	if visited[node.Name] {
		return math.Identity()
	}
	visited[node.Name] = true

	position := math.V3(node.Position)
	if animated, ok := InterpolatePosKeys(node.PosKeys, animTimeMs); ok {
		position = animated
	}
	local := math.Translate(position.X, position.Y, position.Z)

	// Rotation comes from keyframes when present, else from the static axis-angle
	if len(node.RotKeys) > 0 {
		local = local.Mul(InterpolateRotKeys(node.RotKeys, animTimeMs).ToMat4())
	} else if node.RotAngle != 0 {
		axis := math.V3(node.RotAxis)
		if axis.Length() > 1e-6 {
			local = local.Mul(math.RotateAxis(axis.Normalize(), node.RotAngle))
		}
	}

	local = local.Mul(math.Scale(node.Scale[0], node.Scale[1], node.Scale[2]))
	if len(node.ScaleKeys) > 0 {
		s := InterpolateScaleKeys(node.ScaleKeys, animTimeMs)
		local = local.Mul(math.Scale(s.X, s.Y, s.Z))
	}

	if node.Parent != "" && node.Parent != node.Name {
		if parent := rsm.GetNodeByName(node.Parent); parent != nil {
			return buildNodeHierarchyMatrix(parent, rsm, animTimeMs, visited).Mul(local)
		}
	}

	return local
}
