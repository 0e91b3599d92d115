package vat

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Frame domain and export defaults.
const (
	MinFrame           = 1
	MaxFrame           = 4096
	DefaultEndFrame    = 300
	DefaultGlobalScale = 0.01

	ModelBaseName   = "model"
	OffsetsBaseName = "offsets"
	NormalsBaseName = "normals"
)

// Request describes one bake.
type Request struct {
	// Object to bake. Nil selects the host's first selected object.
	Object Object

	StartFrame int
	EndFrame   int

	// ExportPath is the directory receiving the three artifacts.
	ExportPath string

	// GlobalScale is handed to the mesh sink. Zero means DefaultGlobalScale.
	GlobalScale float32

	// Alpha stores the constant alpha channel in both images.
	Alpha bool

	// NormalsFormat is the image format of the normal texture.
	// Empty means FormatOpenEXR. Offsets are always OpenEXR.
	NormalsFormat string
}

// Validate checks the request without touching the host.
func (r Request) Validate() error {
	if r.ExportPath == "" {
		return fmt.Errorf("%w: export path is empty", ErrConfiguration)
	}
	if r.StartFrame < MinFrame {
		return fmt.Errorf("%w: start frame %d is below %d", ErrConfiguration, r.StartFrame, MinFrame)
	}
	if r.EndFrame < r.StartFrame {
		return fmt.Errorf("%w: end frame %d is before start frame %d", ErrConfiguration, r.EndFrame, r.StartFrame)
	}
	if r.EndFrame > MaxFrame {
		return fmt.Errorf("%w: end frame %d is above %d", ErrConfiguration, r.EndFrame, MaxFrame)
	}
	if r.GlobalScale < 0 {
		return fmt.Errorf("%w: negative global scale %g", ErrConfiguration, r.GlobalScale)
	}
	if r.NormalsFormat != "" && FormatExtension(r.NormalsFormat) == "" {
		return fmt.Errorf("%w: unknown normals format %q", ErrConfiguration, r.NormalsFormat)
	}
	return nil
}

// Result reports the artifacts of a successful bake.
type Result struct {
	Object      string
	VertexCount int
	FrameCount  int
	Width       int
	Height      int
	ModelPath   string
	OffsetsPath string
	NormalsPath string
	Duration    time.Duration
}

// Baker runs the bake pipeline against a host and a pair of sinks.
type Baker struct {
	Host   Host
	Images ImageSink
	Meshes MeshSink

	// Evaluator defaults to NewEvaluator(Host).
	Evaluator FrameEvaluator

	// Log defaults to a no-op logger.
	Log *zap.Logger
}

// artifact is a file written by a sink during a bake.
type artifact struct {
	path string
	sink any
}

// Bake samples the object over the requested range, encodes and packs both
// textures, builds the export mesh and writes model, offsets and normals to
// the export path. Either all three artifacts are written or none is left
// behind. The host timeline is put back at its pre-bake frame in any case.
func (b *Baker) Bake(req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if b.Host == nil || b.Images == nil || b.Meshes == nil {
		return nil, fmt.Errorf("%w: baker needs a host, an image sink and a mesh sink", ErrConfiguration)
	}

	log := b.Log
	if log == nil {
		log = zap.NewNop()
	}
	eval := b.Evaluator
	if eval == nil {
		eval = NewEvaluator(b.Host)
	}
	scale := req.GlobalScale
	if scale == 0 {
		scale = DefaultGlobalScale
	}
	normalsFormat := req.NormalsFormat
	if normalsFormat == "" {
		normalsFormat = FormatOpenEXR
	}

	obj := req.Object
	if obj == nil {
		selected := b.Host.SelectedObjects()
		if len(selected) == 0 {
			return nil, fmt.Errorf("%w: no object selected", ErrConfiguration)
		}
		obj = selected[0]
	}

	if d, ok := b.Host.(FrameDomain); ok {
		first, last := d.FrameRange()
		if req.StartFrame < first || req.EndFrame > last {
			return nil, fmt.Errorf("%w: frames %d-%d are outside the host range %d-%d",
				ErrConfiguration, req.StartFrame, req.EndFrame, first, last)
		}
	}

	started := time.Now()
	log = log.With(zap.String("object", obj.Name()))

	cursor := NewTimeCursor(b.Host)
	defer func() {
		if err := cursor.Restore(); err != nil {
			log.Warn("restoring timeline frame failed", zap.Int("frame", cursor.Origin()), zap.Error(err))
		}
	}()

	log.Debug("sampling", zap.Int("start", req.StartFrame), zap.Int("end", req.EndFrame))
	seq, err := Sample(cursor, eval, obj, req.StartFrame, req.EndFrame)
	if err != nil {
		return nil, err
	}

	width, height := seq.VertexCount(), seq.FrameCount()
	offsets, normals := Encode(seq)
	offsetGrid, err := Pack(offsets, width, height)
	if err != nil {
		return nil, err
	}
	normalGrid, err := Pack(normals, width, height)
	if err != nil {
		return nil, err
	}
	log.Debug("encoded", zap.Int("vertices", width), zap.Int("frames", height))

	topo, err := b.Host.Topology(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: topology of %s: %v", ErrGeometryUnavailable, obj.Name(), err)
	}
	mesh, err := BuildExportMesh(seq.Reference(), topo)
	if err != nil {
		return nil, err
	}
	mesh.Name = obj.Name()

	res := &Result{
		Object:      obj.Name(),
		VertexCount: width,
		FrameCount:  height,
		Width:       width,
		Height:      height,
		ModelPath:   filepath.Join(req.ExportPath, ModelBaseName+b.Meshes.Extension()),
		OffsetsPath: filepath.Join(req.ExportPath, OffsetsBaseName+FormatExtension(FormatOpenEXR)),
		NormalsPath: filepath.Join(req.ExportPath, NormalsBaseName+FormatExtension(normalsFormat)),
	}

	var written []artifact
	fail := func(path string, cause error) error {
		err := fmt.Errorf("%w: %s: %w", ErrSinkWrite, path, cause)
		for _, a := range written {
			if d, ok := a.sink.(Discarder); ok {
				err = multierr.Append(err, d.Discard(a.path))
			}
		}
		log.Error("bake failed, written artifacts discarded", zap.Int("discarded", len(written)), zap.Error(cause))
		return err
	}

	if err := b.Meshes.Export(res.ModelPath, mesh, scale); err != nil {
		return nil, fail(res.ModelPath, err)
	}
	written = append(written, artifact{res.ModelPath, b.Meshes})
	log.Debug("mesh exported", zap.String("path", res.ModelPath))

	images := []struct {
		name string
		grid *PixelGrid
		spec ImageSpec
	}{
		{OffsetsBaseName, offsetGrid, ImageSpec{Alpha: req.Alpha, FloatPrecision: true, Format: FormatOpenEXR, Path: res.OffsetsPath}},
		{NormalsBaseName, normalGrid, ImageSpec{Alpha: req.Alpha, FloatPrecision: false, Format: normalsFormat, Path: res.NormalsPath}},
	}
	for _, img := range images {
		if err := Store(b.Images, img.name, img.grid, img.spec); err != nil {
			return nil, fail(img.spec.Path, err)
		}
		written = append(written, artifact{img.spec.Path, b.Images})
		log.Debug("image saved", zap.String("path", img.spec.Path))
	}

	res.Duration = time.Since(started)
	log.Info("bake complete",
		zap.Int("vertices", res.VertexCount),
		zap.Int("frames", res.FrameCount),
		zap.String("path", req.ExportPath),
		zap.Duration("took", res.Duration))
	return res, nil
}

// IsConfigurationError reports whether err is a request problem rather than
// a failure while baking.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
