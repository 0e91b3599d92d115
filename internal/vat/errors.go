package vat

import "errors"

// Bake errors. Every one of them is fatal to the bake that raised it.
var (
	// ErrConfiguration reports an invalid request: missing export path, bad
	// frame range or no source object. Nothing has been evaluated or written.
	ErrConfiguration = errors.New("invalid bake configuration")

	// ErrGeometryUnavailable reports that the host could not produce deformed
	// geometry for the object at some frame.
	ErrGeometryUnavailable = errors.New("geometry unavailable")

	// ErrTopologyMismatch reports a vertex count that changed between frames.
	ErrTopologyMismatch = errors.New("topology mismatch")

	// ErrSinkWrite reports an image or mesh sink failure. Artifacts already
	// written by the bake have been discarded.
	ErrSinkWrite = errors.New("sink write failed")

	// ErrLayoutMismatch reports a channel buffer whose length does not match
	// the requested grid.
	ErrLayoutMismatch = errors.New("buffer layout mismatch")

	// ErrCursorBusy reports a second evaluation started while one is in flight.
	ErrCursorBusy = errors.New("time cursor busy")

	// ErrCursorRewind reports a seek to an earlier frame within one sampling pass.
	ErrCursorRewind = errors.New("time cursor moved backwards")
)
