package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/midgard-vat/internal/vat"
	"github.com/Faultbox/midgard-vat/pkg/formats"
)

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no command", nil, 2},
		{"help", []string{"help"}, 0},
		{"unknown", []string{"render"}, 2},
		{"info without model", []string{"info"}, 2},
		{"list without library", []string{"list"}, 2},
		{"inspect without file", []string{"inspect"}, 2},
		{"inspect missing file", []string{"inspect", "missing.exr"}, 1},
		{"info missing model", []string{"info", "missing.rsm"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != tt.code {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.code, stderr.String())
			}
		})
	}
}

func TestRun_List(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"data/model/mill.rsm", "data/prontera.rsw", "data/texture/a.bmp"} {
		p := filepath.Join(dir, filepath.FromSlash(name))
		os.MkdirAll(filepath.Dir(p), 0755)
		os.WriteFile(p, []byte("x"), 0644)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"list", "-data", dir}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr.String())
	}
	want := "data/model/mill.rsm\ndata/prontera.rsw\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRun_BakeOBJSequence(t *testing.T) {
	work := t.TempDir()
	chdir(t, work)
	t.Setenv("XDG_CONFIG_HOME", work)

	frames := filepath.Join(work, "frames")
	os.MkdirAll(frames, 0755)
	for f := 1; f <= 2; f++ {
		obj := fmt.Sprintf("o Flag\nv 0 0 0\nv %d 0 0\nv 0 1 0\nvt 0 0\nvt 1 0\nvt 0 1\nf 1/1 2/2 3/3\n", f)
		os.WriteFile(filepath.Join(frames, fmt.Sprintf("f%d.obj", f)), []byte(obj), 0644)
	}
	out := filepath.Join(work, "out")

	var stdout, stderr bytes.Buffer
	// No -end: the bake stops at the last frame file
	args := []string{"bake", "-obj-dir", frames, "-out", out}
	if code := run(args, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Baked Flag: 3 vertices x 2 frames") {
		t.Errorf("stdout = %q", stdout.String())
	}
	for _, name := range []string{"model.glb", "offsets.exr", "normals.exr"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing artifact: %v", err)
		}
	}

	stdout.Reset()
	if code := run([]string{"inspect", filepath.Join(out, "offsets.exr")}, &stdout, &stderr); code != 0 {
		t.Fatalf("inspect exit code %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Size:        3x2") {
		t.Errorf("inspect output = %q", stdout.String())
	}
}

func TestPrecheck(t *testing.T) {
	tests := []struct {
		name    string
		req     vat.Request
		wantErr bool
	}{
		{"end from source", vat.Request{StartFrame: 1, ExportPath: "out"}, false},
		{"explicit range", vat.Request{StartFrame: 5, EndFrame: 9, ExportPath: "out"}, false},
		{"empty export path", vat.Request{StartFrame: 1}, true},
		{"start past frame domain", vat.Request{StartFrame: vat.MaxFrame + 1, ExportPath: "out"}, true},
		{"unknown normals format", vat.Request{StartFrame: 1, ExportPath: "out", NormalsFormat: "PNG"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := precheck(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("precheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !vat.IsConfigurationError(err) {
				t.Errorf("expected a configuration error, got %v", err)
			}
		})
	}
}

func TestPrintNodeTree(t *testing.T) {
	rsm := &formats.RSM{
		RootNode: "base",
		Nodes: []formats.RSMNode{
			{Name: "blade", Parent: "hub", Faces: make([]formats.RSMFace, 2)},
			{Name: "base", Vertices: make([][3]float32, 4)},
			{Name: "hub", Parent: "base", RotKeys: make([]formats.RSMRotKeyframe, 3)},
			{Name: "loose", Parent: "missing"},
		},
	}

	var buf bytes.Buffer
	printNodeTree(&buf, rsm)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	wantPrefixes := []string{"  base ", "    hub ", "      blade ", "  loose "}
	for i, want := range wantPrefixes {
		if !strings.HasPrefix(lines[i], want) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], want)
		}
	}
	if !strings.Contains(lines[0], "verts=4") || !strings.Contains(lines[1], "keys=0/3/0") {
		t.Errorf("node counts missing:\n%s", buf.String())
	}
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}
