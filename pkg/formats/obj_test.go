package formats

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const quadOBJ = `# quad
o Plane
v 0 0 0
v 1 0 0
v 1 0 1
v 0 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 1 0
usemtl none
s off
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseOBJ_Quad(t *testing.T) {
	obj, err := ParseOBJ([]byte(quadOBJ))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}

	if obj.Name != "Plane" {
		t.Errorf("Name = %q, want Plane", obj.Name)
	}
	if len(obj.Positions) != 4 || len(obj.TexCoords) != 4 || len(obj.Normals) != 1 {
		t.Fatalf("counts = %d/%d/%d", len(obj.Positions), len(obj.TexCoords), len(obj.Normals))
	}
	if obj.Positions[2] != [3]float32{1, 0, 1} {
		t.Errorf("Positions[2] = %v", obj.Positions[2])
	}
	if len(obj.Faces) != 1 || len(obj.Faces[0].Corners) != 4 {
		t.Fatalf("faces = %+v", obj.Faces)
	}
	want := OBJCorner{Position: 3, TexCoord: 3, Normal: 0}
	if got := obj.Faces[0].Corners[3]; got != want {
		t.Errorf("corner 3 = %+v, want %+v", got, want)
	}
	if obj.CornerCount() != 4 {
		t.Errorf("CornerCount() = %d, want 4", obj.CornerCount())
	}
}

func TestParseOBJ_CornerForms(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0.5 0.5\nvn 0 0 1\n" +
		"f 1 2 3\n" +
		"f 1//1 2//1 3//1\n" +
		"f -3/-1 -2/-1 -1/-1\n"

	obj, err := ParseOBJ([]byte(src))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}

	tests := []struct {
		face int
		want OBJCorner
	}{
		{0, OBJCorner{Position: 0, TexCoord: -1, Normal: -1}},
		{1, OBJCorner{Position: 0, TexCoord: -1, Normal: 0}},
		{2, OBJCorner{Position: 0, TexCoord: 0, Normal: -1}},
	}
	for _, tt := range tests {
		if got := obj.Faces[tt.face].Corners[0]; got != tt.want {
			t.Errorf("face %d corner 0 = %+v, want %+v", tt.face, got, tt.want)
		}
	}
}

func TestParseOBJ_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"short vertex", "v 1 2\n", ErrMalformedOBJ},
		{"bad float", "v 1 x 2\n", ErrMalformedOBJ},
		{"two corner face", "v 0 0 0\nv 1 0 0\nf 1 2\n", ErrMalformedOBJ},
		{"bad index", "v 0 0 0\nf 1 a 1\n", ErrMalformedOBJ},
		{"index past end", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n", ErrOBJIndexOutOfRange},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", ErrOBJIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ([]byte(tt.src))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseOBJFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame_0001.obj")
	if err := os.WriteFile(path, []byte(quadOBJ), 0o644); err != nil {
		t.Fatal(err)
	}

	obj, err := ParseOBJFile(path)
	if err != nil {
		t.Fatalf("ParseOBJFile failed: %v", err)
	}
	if len(obj.Positions) != 4 {
		t.Errorf("got %d positions, want 4", len(obj.Positions))
	}

	if _, err := ParseOBJFile(filepath.Join(t.TempDir(), "missing.obj")); err == nil {
		t.Error("expected error for missing file")
	}
}
