package model

import (
	gomath "math"

	"github.com/Faultbox/midgard-vat/pkg/formats"
	"github.com/Faultbox/midgard-vat/pkg/math"
)

// keySpan finds the keyframes surrounding timeMs in a list sorted by frame.
// It returns the indices of both keys and the blend factor between them;
// prev == next when timeMs lies outside the keyed range.
func keySpan(count int, frame func(i int) int32, timeMs float32) (prev, next int, t float32) {
	for i := 0; i < count; i++ {
		if float32(frame(i)) > timeMs {
			next = i
			break
		}
		prev = i
		next = i
	}
	if prev == next {
		return prev, next, 0
	}

	f0, f1 := frame(prev), frame(next)
	if f1 != f0 {
		t = (timeMs - float32(f0)) / float32(f1-f0)
	}
	return prev, next, t
}

// InterpolateRotKeys interpolates rotation keyframes at the given time.
func InterpolateRotKeys(keys []formats.RSMRotKeyframe, timeMs float32) math.Quat {
	if len(keys) == 0 {
		return math.QuatIdentity()
	}

	prev, next, t := keySpan(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	q0 := math.QuatFromArray(keys[prev].Quaternion)
	if prev == next {
		return q0
	}
	return q0.Slerp(math.QuatFromArray(keys[next].Quaternion), t)
}

// InterpolateScaleKeys interpolates scale keyframes at the given time.
func InterpolateScaleKeys(keys []formats.RSMScaleKeyframe, timeMs float32) math.Vec3 {
	if len(keys) == 0 {
		return math.Vec3{X: 1, Y: 1, Z: 1}
	}

	prev, next, t := keySpan(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	s0 := math.V3(keys[prev].Scale)
	if prev == next {
		return s0
	}
	return s0.Lerp(math.V3(keys[next].Scale), t)
}

// InterpolatePosKeys interpolates translation keyframes (models before v1.5)
// at the given time. ok is false when the node has no position keys.
func InterpolatePosKeys(keys []formats.RSMPosKeyframe, timeMs float32) (pos math.Vec3, ok bool) {
	if len(keys) == 0 {
		return math.Vec3{}, false
	}

	prev, next, t := keySpan(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	p0 := math.V3(keys[prev].Position)
	if prev == next {
		return p0, true
	}
	return p0.Lerp(math.V3(keys[next].Position), t), true
}

// HasAnimation checks if an RSM model has any animation keyframes.
// Models with only 1 keyframe are static poses, not animations.
func HasAnimation(rsm *formats.RSM) bool {
	if rsm.AnimLength <= 0 {
		return false
	}
	for i := range rsm.Nodes {
		node := &rsm.Nodes[i]
		if len(node.RotKeys) > 1 || len(node.PosKeys) > 1 || len(node.ScaleKeys) > 1 {
			return true
		}
	}
	return false
}

// FrameTime maps a 1-based timeline frame to an animation time in
// milliseconds. With loop set, the time wraps at the model's animation length.
func FrameTime(frame int, fps float64, animLength int32, loop bool) float32 {
	if fps <= 0 {
		return 0
	}
	t := float64(frame-1) * 1000 / fps
	if loop && animLength > 0 {
		t = gomath.Mod(t, float64(animLength))
	}
	return float32(t)
}
