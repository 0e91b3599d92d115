package vat

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

const tolerance = 1e-5

func near(a, b float32) bool {
	return gomath.Abs(float64(a-b)) < tolerance
}

func TestTimeCursor(t *testing.T) {
	host := newFakeHost(staticGeometry(1))
	host.frame = 7
	cursor := NewTimeCursor(host)

	release, err := cursor.Acquire(3)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := cursor.Acquire(4); !errors.Is(err, ErrCursorBusy) {
		t.Errorf("second Acquire: expected ErrCursorBusy, got %v", err)
	}
	release()

	cursor.BeginPass()
	release, err = cursor.Acquire(5)
	if err != nil {
		t.Fatalf("Acquire(5) failed: %v", err)
	}
	release()
	if _, err := cursor.Acquire(4); !errors.Is(err, ErrCursorRewind) {
		t.Errorf("rewind inside pass: expected ErrCursorRewind, got %v", err)
	}
	cursor.EndPass()

	release, err = cursor.Acquire(2)
	if err != nil {
		t.Errorf("rewind outside a pass should be allowed, got %v", err)
	} else {
		release()
	}

	if err := cursor.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if host.frame != 7 || cursor.Origin() != 7 {
		t.Errorf("restored frame = %d, origin = %d, want 7", host.frame, cursor.Origin())
	}
}

func TestEvaluator_AppliesWorldTransform(t *testing.T) {
	host := newFakeHost(func(int) ([]math.Vec3, []math.Vec3, error) {
		s := float32(gomath.Sqrt2 / 2)
		return []math.Vec3{{X: 1}, {Y: 1}},
			[]math.Vec3{{X: 1}, {X: s, Y: s}}, nil
	})
	host.world = math.Translate(1, 2, 3).Mul(math.Scale(2, 1, 1))

	snap, err := NewEvaluator(host).Evaluate(NewTimeCursor(host), fakeObject("Cube"), 4)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if host.frame != 4 || snap.Frame != 4 {
		t.Errorf("timeline at %d, snapshot frame %d, want 4", host.frame, snap.Frame)
	}

	wantPos := []math.Vec3{{X: 3, Y: 2, Z: 3}, {X: 1, Y: 3, Z: 3}}
	for i, want := range wantPos {
		if got := snap.Positions[i]; !near(got.X, want.X) || !near(got.Y, want.Y) || !near(got.Z, want.Z) {
			t.Errorf("position %d = %+v, want %+v", i, got, want)
		}
	}

	// Stretching X by 2 halves the X component of the normal before renormalizing
	want := math.Vec3{X: 0.5, Y: 1}.Normalize()
	got := snap.Normals[1]
	if !near(got.X, want.X) || !near(got.Y, want.Y) || !near(got.Z, want.Z) {
		t.Errorf("normal = %+v, want %+v", got, want)
	}
	for i, n := range snap.Normals {
		if !near(n.Length(), 1) {
			t.Errorf("normal %d has length %v", i, n.Length())
		}
	}
}

func TestEvaluator_GeometryUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		geometry func(int) ([]math.Vec3, []math.Vec3, error)
	}{
		{"host error", func(int) ([]math.Vec3, []math.Vec3, error) {
			return nil, nil, errors.New("object has no mesh")
		}},
		{"empty mesh", func(int) ([]math.Vec3, []math.Vec3, error) {
			return nil, nil, nil
		}},
		{"normal count differs", func(int) ([]math.Vec3, []math.Vec3, error) {
			return make([]math.Vec3, 3), make([]math.Vec3, 2), nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost(tt.geometry)
			_, err := NewEvaluator(host).Evaluate(NewTimeCursor(host), fakeObject("Cube"), 1)
			if !errors.Is(err, ErrGeometryUnavailable) {
				t.Errorf("expected ErrGeometryUnavailable, got %v", err)
			}
		})
	}
}

func TestSample_VisitsFramesInOrder(t *testing.T) {
	host := newFakeHost(waveGeometry(3))
	eval := &countingEvaluator{inner: NewEvaluator(host)}

	seq, err := Sample(NewTimeCursor(host), eval, fakeObject("Cube"), 3, 7)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if seq.FrameCount() != 5 || len(seq.Frames) != 5 || seq.VertexCount() != 3 {
		t.Errorf("frames = %d (%d snapshots), vertices = %d", seq.FrameCount(), len(seq.Frames), seq.VertexCount())
	}
	if eval.calls != 5 {
		t.Errorf("evaluator called %d times, want 5", eval.calls)
	}
	want := []int{3, 4, 5, 6, 7}
	for i, f := range host.visited {
		if f != want[i] {
			t.Fatalf("visited frames %v, want %v", host.visited, want)
		}
	}
	if seq.Reference().Frame != 3 {
		t.Errorf("reference frame = %d, want 3", seq.Reference().Frame)
	}
}

func TestSample_TopologyMismatch(t *testing.T) {
	host := newFakeHost(func(frame int) ([]math.Vec3, []math.Vec3, error) {
		n := 4
		if frame == 2 {
			n = 5
		}
		return make([]math.Vec3, n), make([]math.Vec3, n), nil
	})

	_, err := Sample(NewTimeCursor(host), NewEvaluator(host), fakeObject("Cube"), 1, 3)
	if !errors.Is(err, ErrTopologyMismatch) {
		t.Fatalf("expected ErrTopologyMismatch, got %v", err)
	}
	if len(host.visited) != 2 {
		t.Errorf("sampling continued after the mismatch: visited %v", host.visited)
	}
}

func TestSample_InvertedRange(t *testing.T) {
	host := newFakeHost(staticGeometry(2))
	_, err := Sample(NewTimeCursor(host), NewEvaluator(host), fakeObject("Cube"), 5, 4)
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func sampleFor(t *testing.T, geometry func(int) ([]math.Vec3, []math.Vec3, error), start, end int) *Sequence {
	t.Helper()
	host := newFakeHost(geometry)
	seq, err := Sample(NewTimeCursor(host), NewEvaluator(host), fakeObject("Cube"), start, end)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	return seq
}

func TestEncode_StaticMesh(t *testing.T) {
	seq := sampleFor(t, staticGeometry(4), 1, 3)
	offsets, normals := Encode(seq)

	grid, err := Pack(offsets, seq.VertexCount(), seq.FrameCount())
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if grid.Width != 4 || grid.Height != 3 {
		t.Fatalf("grid = %s, want 4x3", grid)
	}
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			if got := grid.At(x, y); got != [4]float32{0, 0, 0, 1} {
				t.Errorf("offset (%d,%d) = %v, want (0,0,0,1)", x, y, got)
			}
		}
	}

	normalGrid, _ := Pack(normals, 4, 3)
	for y := 1; y < normalGrid.Height; y++ {
		for x := 0; x < normalGrid.Width; x++ {
			if normalGrid.At(x, y) != normalGrid.At(x, 0) {
				t.Errorf("normal (%d,%d) differs from frame 0", x, y)
			}
		}
	}
	if got := normalGrid.At(0, 0); got != [4]float32{0.5, 0.5, 1, 1} {
		t.Errorf("encoded +Z normal = %v, want (0.5,0.5,1,1)", got)
	}
}

func TestEncode_SingleVertexTranslation(t *testing.T) {
	seq := sampleFor(t, func(frame int) ([]math.Vec3, []math.Vec3, error) {
		return []math.Vec3{{X: float32(frame - 1), Y: 3, Z: 3}}, []math.Vec3{{Y: 1}}, nil
	}, 1, 2)

	offsets, _ := Encode(seq)
	grid, err := Pack(offsets, 1, 2)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if got := grid.At(0, 0); got != [4]float32{0, 0, 0, 1} {
		t.Errorf("reference row = %v", got)
	}
	if got := grid.At(0, 1); got != [4]float32{1, 0, 0, 1} {
		t.Errorf("frame 2 row = %v, want (1,0,0,1)", got)
	}
}

func TestEncode_Properties(t *testing.T) {
	seq := sampleFor(t, waveGeometry(6), 2, 9)
	offsets, normals := Encode(seq)

	n, frames := seq.VertexCount(), seq.FrameCount()
	if offsets.Tuples() != n*frames || normals.Tuples() != n*frames {
		t.Fatalf("tuples = %d/%d, want %d", offsets.Tuples(), normals.Tuples(), n*frames)
	}

	for v := 0; v < n; v++ {
		if got := offsets.Tuple(v); got != [4]float32{0, 0, 0, 1} {
			t.Errorf("reference offset of vertex %d = %v", v, got)
		}
	}

	for i := 0; i < normals.Tuples(); i++ {
		texel := normals.Tuple(i)
		for c := 0; c < 3; c++ {
			if texel[c] < 0 || texel[c] > 1 {
				t.Fatalf("normal tuple %d component %d = %v outside [0,1]", i, c, texel[c])
			}
		}
		if texel[3] != 1 {
			t.Errorf("normal tuple %d alpha = %v", i, texel[3])
		}
		if l := DecodeNormal(texel).Length(); !near(l, 1) {
			t.Errorf("decoded normal %d has length %v", i, l)
		}
	}

	// Frame-major order: tuple f*n+v is vertex v at frame f
	ref := seq.Reference()
	for f, frame := range seq.Frames {
		for v := 0; v < n; v++ {
			got := DecodePosition(ref.Positions[v], offsets.Tuple(f*n+v))
			want := frame.Positions[v]
			if !near(got.X, want.X) || !near(got.Y, want.Y) || !near(got.Z, want.Z) {
				t.Fatalf("frame %d vertex %d decodes to %+v, want %+v", f, v, got, want)
			}
		}
	}
}

func TestPack_LayoutMismatch(t *testing.T) {
	tests := []struct {
		name          string
		values        int
		width, height int
	}{
		{"short buffer", 4*4*3 - 4, 4, 3},
		{"long buffer", 4*4*3 + 4, 4, 3},
		{"zero width", 0, 0, 3},
		{"negative height", 16, 4, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Pack(make(ChannelBuffer, tt.values), tt.width, tt.height)
			if !errors.Is(err, ErrLayoutMismatch) {
				t.Errorf("expected ErrLayoutMismatch, got %v", err)
			}
		})
	}
}

func TestPack_RowsAreFrames(t *testing.T) {
	buf := make(ChannelBuffer, 0, 2*3*Channels)
	for f := 0; f < 3; f++ {
		for v := 0; v < 2; v++ {
			buf = append(buf, float32(f), float32(v), 0, 1)
		}
	}
	grid, err := Pack(buf, 2, 3)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if got := grid.At(1, 2); got != [4]float32{2, 1, 0, 1} {
		t.Errorf("At(1,2) = %v, want frame 2 vertex 1", got)
	}
	if row := grid.Row(1); len(row) != 2*Channels || row[0] != 1 {
		t.Errorf("Row(1) = %v", row)
	}
}

func TestStore(t *testing.T) {
	sink := newMemImageSink()
	grid, _ := Pack(make(ChannelBuffer, 3*2*Channels), 3, 2)

	spec := ImageSpec{Alpha: true, FloatPrecision: true, Format: FormatOpenEXR, Path: "/out/offsets.exr"}
	if err := Store(sink, "offsets", grid, spec); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	img := sink.saved["/out/offsets.exr"]
	if img == nil {
		t.Fatal("image not saved")
	}
	if img.width != 3 || img.height != 2 || !img.alpha || !img.isFloat || img.format != FormatOpenEXR {
		t.Errorf("image = %+v", img)
	}

	sink.failSave = "/out/normals.exr"
	spec.Path = sink.failSave
	if err := Store(sink, "normals", grid, spec); err == nil {
		t.Error("expected save error")
	}
}

func TestBuildExportMesh(t *testing.T) {
	seq := sampleFor(t, staticGeometry(5), 1, 1)
	topo := fanTopology(5)

	mesh, err := BuildExportMesh(seq.Reference(), topo)
	if err != nil {
		t.Fatalf("BuildExportMesh failed: %v", err)
	}
	if len(mesh.UVLayers) != 2 || mesh.UVLayers[0].Name != "UVMap" {
		t.Fatalf("uv layers = %+v", mesh.UVLayers)
	}
	anim := mesh.AnimLayer()
	if anim == nil || anim != &mesh.UVLayers[1] {
		t.Fatal("vertex_anim is not layer 1")
	}

	n := len(mesh.Positions)
	for i, v := range mesh.Corners {
		uv := anim.Coords[i]
		if uv[0] != AnimU(v, n) || uv[1] != 0 {
			t.Errorf("corner %d (vertex %d) uv = %v, want (%v, 0)", i, v, uv, AnimU(v, n))
		}
	}
	for v := 0; v < n; v++ {
		u := AnimU(v, n)
		if u <= 0 || u >= 1 {
			t.Errorf("U(%d) = %v outside (0,1)", v, u)
		}
		if v > 0 && u <= AnimU(v-1, n) {
			t.Errorf("U(%d) = %v not above U(%d)", v, u, v-1)
		}
		if !near(u, (float32(v)+0.5)/float32(n)) {
			t.Errorf("U(%d) = %v", v, u)
		}
	}

	// The topology handed in is left untouched
	if topo.UVLayers[0].Coords[1] != [2]float32{1, 0} || len(topo.UVLayers) != 1 {
		t.Error("BuildExportMesh modified its input topology")
	}
}

func TestBuildExportMesh_AddsLayers(t *testing.T) {
	seq := sampleFor(t, staticGeometry(3), 1, 1)
	topo := fanTopology(3)
	topo.UVLayers = nil

	mesh, err := BuildExportMesh(seq.Reference(), topo)
	if err != nil {
		t.Fatalf("BuildExportMesh failed: %v", err)
	}
	if len(mesh.UVLayers) != 2 || mesh.UVLayers[1].Name != AnimLayerName {
		t.Fatalf("uv layers = %+v", mesh.UVLayers)
	}
	if len(mesh.UVLayers[0].Coords) != len(mesh.Corners) {
		t.Errorf("layer 0 has %d coords for %d corners", len(mesh.UVLayers[0].Coords), len(mesh.Corners))
	}
}

func TestBuildExportMesh_Invalid(t *testing.T) {
	ref := sampleFor(t, staticGeometry(3), 1, 1).Reference()

	tests := []struct {
		name string
		ref  *FrameSnapshot
		topo *Topology
	}{
		{"corner out of range", ref, &Topology{Faces: []Face{{Start: 0, Count: 3}}, Corners: []int{0, 1, 3}}},
		{"negative corner", ref, &Topology{Faces: []Face{{Start: 0, Count: 3}}, Corners: []int{0, -1, 2}}},
		{"face past corners", ref, &Topology{Faces: []Face{{Start: 1, Count: 3}}, Corners: []int{0, 1, 2}}},
		{"no topology", ref, nil},
		{"empty reference", &FrameSnapshot{}, fanTopology(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildExportMesh(tt.ref, tt.topo)
			if !errors.Is(err, ErrGeometryUnavailable) {
				t.Errorf("expected ErrGeometryUnavailable, got %v", err)
			}
		})
	}
}
