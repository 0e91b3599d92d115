package vat

import "github.com/Faultbox/midgard-vat/pkg/math"

// Encode linearizes a sequence frame-major, vertex-minor into two buffers:
// the offset of every vertex from the reference pose as (x, y, z, 1) and its
// normal remapped from [-1,1] to [0,1] as (x, y, z, 1). No clamping is done.
func Encode(seq *Sequence) (offsets, normals ChannelBuffer) {
	ref := seq.Reference()
	if ref == nil {
		return ChannelBuffer{}, ChannelBuffer{}
	}

	n := len(seq.Frames) * ref.VertexCount() * Channels
	offsets = make(ChannelBuffer, 0, n)
	normals = make(ChannelBuffer, 0, n)

	for _, frame := range seq.Frames {
		for v, p := range frame.Positions {
			d := p.Sub(ref.Positions[v])
			offsets = append(offsets, d.X, d.Y, d.Z, 1)

			nv := frame.Normals[v]
			normals = append(normals, EncodeUnit(nv.X), EncodeUnit(nv.Y), EncodeUnit(nv.Z), 1)
		}
	}
	return offsets, normals
}

// EncodeUnit maps a normal component from [-1,1] to [0,1].
func EncodeUnit(c float32) float32 {
	return (c + 1) * 0.5
}

// DecodeNormal maps an encoded normal texel back to [-1,1].
func DecodeNormal(texel [4]float32) math.Vec3 {
	return math.Vec3{X: texel[0]*2 - 1, Y: texel[1]*2 - 1, Z: texel[2]*2 - 1}
}

// DecodePosition rebuilds a vertex position from its reference position and
// its offset texel.
func DecodePosition(reference math.Vec3, texel [4]float32) math.Vec3 {
	return reference.Add(math.Vec3{X: texel[0], Y: texel[1], Z: texel[2]})
}
