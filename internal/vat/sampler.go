package vat

import "fmt"

// Sample evaluates obj at every frame of [start, end] in increasing order and
// returns the snapshots. Vertex identity by index is assumed across frames; a
// changed vertex count is rejected with ErrTopologyMismatch.
func Sample(cursor *TimeCursor, eval FrameEvaluator, obj Object, start, end int) (*Sequence, error) {
	if start > end {
		return nil, fmt.Errorf("%w: start frame %d after end frame %d", ErrConfiguration, start, end)
	}

	cursor.BeginPass()
	defer cursor.EndPass()

	seq := &Sequence{
		Start:  start,
		End:    end,
		Frames: make([]*FrameSnapshot, 0, end-start+1),
	}

	vertexCount := 0
	for frame := start; frame <= end; frame++ {
		snap, err := eval.Evaluate(cursor, obj, frame)
		if err != nil {
			return nil, err
		}

		if frame == start {
			vertexCount = snap.VertexCount()
		} else if snap.VertexCount() != vertexCount {
			return nil, fmt.Errorf("%w: %s has %d vertices at frame %d, %d at frame %d",
				ErrTopologyMismatch, obj.Name(), snap.VertexCount(), frame, vertexCount, start)
		}
		seq.Frames = append(seq.Frames, snap)
	}

	return seq, nil
}
