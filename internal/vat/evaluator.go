package vat

import (
	"fmt"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

// FrameEvaluator produces the world-space snapshot of an object at a frame.
type FrameEvaluator interface {
	Evaluate(cursor *TimeCursor, obj Object, frame int) (*FrameSnapshot, error)
}

// Evaluator is the FrameEvaluator backed by a Host.
type Evaluator struct {
	Host Host
}

// NewEvaluator returns an Evaluator for host.
func NewEvaluator(host Host) *Evaluator {
	return &Evaluator{Host: host}
}

// Evaluate advances the cursor to frame, asks the host for the deformed
// geometry and moves it to world space. Positions go through the world
// matrix, normals through its normal matrix and are renormalized.
func (e *Evaluator) Evaluate(cursor *TimeCursor, obj Object, frame int) (*FrameSnapshot, error) {
	release, err := cursor.Acquire(frame)
	if err != nil {
		return nil, err
	}
	defer release()

	positions, normals, err := e.Host.EvaluateDeformed(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %s at frame %d: %v", ErrGeometryUnavailable, obj.Name(), frame, err)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: %s has no vertices at frame %d", ErrGeometryUnavailable, obj.Name(), frame)
	}
	if len(normals) != len(positions) {
		return nil, fmt.Errorf("%w: %s at frame %d has %d positions but %d normals",
			ErrGeometryUnavailable, obj.Name(), frame, len(positions), len(normals))
	}

	world := e.Host.WorldTransform(obj)
	normalMatrix := world.NormalMatrix()

	snap := &FrameSnapshot{
		Frame:     frame,
		Positions: make([]math.Vec3, len(positions)),
		Normals:   make([]math.Vec3, len(normals)),
	}
	for i, p := range positions {
		snap.Positions[i] = world.TransformPoint(p)
	}
	for i, n := range normals {
		snap.Normals[i] = normalMatrix.TransformDirection(n).Normalize()
	}
	return snap, nil
}
