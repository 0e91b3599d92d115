package vat

import "fmt"

// TimeCursor owns a host Timeline for the duration of a bake. It allows one
// evaluation in flight at a time and, within a sampling pass, only seeks to
// the same or a later frame.
type TimeCursor struct {
	timeline Timeline
	origin   int
	last     int
	inPass   bool
	busy     bool
}

// NewTimeCursor wraps timeline and remembers its current frame for Restore.
func NewTimeCursor(timeline Timeline) *TimeCursor {
	return &TimeCursor{
		timeline: timeline,
		origin:   timeline.CurrentFrame(),
	}
}

// Origin returns the frame the timeline was at when the cursor was created.
func (c *TimeCursor) Origin() int {
	return c.origin
}

// Frame returns the timeline's current frame.
func (c *TimeCursor) Frame() int {
	return c.timeline.CurrentFrame()
}

// BeginPass starts a sampling pass. Seeks must not go backwards until EndPass.
func (c *TimeCursor) BeginPass() {
	c.inPass = true
	c.last = 0
}

// EndPass ends the current sampling pass.
func (c *TimeCursor) EndPass() {
	c.inPass = false
}

// Acquire moves the timeline to frame and marks an evaluation in flight.
// The returned release func must be called when the evaluation is done.
func (c *TimeCursor) Acquire(frame int) (release func(), err error) {
	if c.busy {
		return nil, fmt.Errorf("%w: frame %d requested during another evaluation", ErrCursorBusy, frame)
	}
	if c.inPass && frame < c.last {
		return nil, fmt.Errorf("%w: frame %d after frame %d", ErrCursorRewind, frame, c.last)
	}
	if err := c.timeline.SetCurrentFrame(frame); err != nil {
		// A frame the host refuses lies outside its frame domain
		return nil, fmt.Errorf("%w: seeking frame %d: %w", ErrConfiguration, frame, err)
	}

	c.busy = true
	c.last = frame
	return func() { c.busy = false }, nil
}

// Restore puts the timeline back at its original frame.
func (c *TimeCursor) Restore() error {
	return c.timeline.SetCurrentFrame(c.origin)
}
