package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	id := Identity()
	result := m.Mul(id)

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(5, 10, 15)

	// Translation should be in column 4 (indices 12, 13, 14)
	if m[12] != 5 || m[13] != 10 || m[14] != 15 {
		t.Errorf("Translate: got (%f, %f, %f), want (5, 10, 15)", m[12], m[13], m[14])
	}
}

func TestScale(t *testing.T) {
	m := Scale(2, 3, 4)

	if m[0] != 2 || m[5] != 3 || m[10] != 4 {
		t.Errorf("Scale diagonal: got (%f, %f, %f), want (2, 3, 4)", m[0], m[5], m[10])
	}
}

func TestTransformPoint(t *testing.T) {
	// Translate by (10, 20, 30)
	m := Translate(10, 20, 30)
	p := Vec3{1, 2, 3}
	result := m.TransformPoint(p)

	expected := Vec3{11, 22, 33}
	if result != expected {
		t.Errorf("TransformPoint: got %v, want %v", result, expected)
	}
}

func TestTransformPointScale(t *testing.T) {
	m := Scale(2, 2, 2)
	p := Vec3{1, 2, 3}
	result := m.TransformPoint(p)

	expected := Vec3{2, 4, 6}
	if result != expected {
		t.Errorf("TransformPoint with scale: got %v, want %v", result, expected)
	}
}

func TestRotateY90(t *testing.T) {
	m := RotateY(float32(math.Pi / 2)) // 90 degrees
	p := Vec3{1, 0, 0}                 // Point on X axis
	result := m.TransformPoint(p)

	// After 90 degree Y rotation, (1,0,0) should become approximately (0,0,-1)
	if abs(result.X) > 0.001 || abs(result.Y) > 0.001 || abs(result.Z+1) > 0.001 {
		t.Errorf("RotateY 90: got %v, want (0, 0, -1)", result)
	}
}

func TestFromMat3x3(t *testing.T) {
	m3 := [9]float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	m4 := FromMat3x3(m3)

	// Check that 3x3 portion is preserved
	if m4[0] != 1 || m4[1] != 2 || m4[2] != 3 {
		t.Error("FromMat3x3 column 0 incorrect")
	}
	if m4[4] != 4 || m4[5] != 5 || m4[6] != 6 {
		t.Error("FromMat3x3 column 1 incorrect")
	}
	// Element [15] should be 1
	if m4[15] != 1 {
		t.Errorf("FromMat3x3 [15] should be 1, got %f", m4[15])
	}
}

func TestInverse(t *testing.T) {
	m := Translate(1, 2, 3).Mul(RotateY(0.7)).Mul(Scale(2, 3, 4))
	got := m.Mul(m.Inverse())
	id := Identity()
	for i := 0; i < 16; i++ {
		if abs(got[i]-id[i]) > 0.0001 {
			t.Fatalf("M * M^-1 element %d: got %f, want %f", i, got[i], id[i])
		}
	}
}

func TestNormalMatrixNonUniformScale(t *testing.T) {
	// A plane sloped 45 degrees keeps its normal perpendicular after stretching X.
	m := Scale(2, 1, 1)
	n := m.NormalMatrix().TransformDirection(Vec3{1, 1, 0}.Normalize()).Normalize()
	tangent := m.TransformDirection(Vec3{1, -1, 0})
	if d := n.Dot(tangent); abs(d) > 0.0001 {
		t.Errorf("normal not perpendicular to transformed tangent: dot = %f", d)
	}
}

func TestNormalMatrixIgnoresTranslation(t *testing.T) {
	n := Translate(5, 6, 7).NormalMatrix().TransformDirection(Vec3{0, 1, 0})
	if n != (Vec3{0, 1, 0}) {
		t.Errorf("NormalMatrix of a translation changed the normal: %v", n)
	}
}

func TestDeterminant3(t *testing.T) {
	if d := Scale(1, -1, 1).Determinant3(); d != -1 {
		t.Errorf("Determinant3 of mirror = %f, want -1", d)
	}
	if d := Scale(2, 3, 4).Determinant3(); d != 24 {
		t.Errorf("Determinant3 of scale = %f, want 24", d)
	}
}

func TestPlacement(t *testing.T) {
	m := Placement(Vec3{10, 0, 0}, Vec3{0, 90, 0}, Vec3{2, 2, 2})
	got := m.TransformPoint(Vec3{1, 0, 0})
	// scale to (2,0,0), rotate 90 about Y to (0,0,-2), translate
	want := Vec3{10, 0, -2}
	if got.Distance(want) > 0.001 {
		t.Errorf("Placement: got %v, want %v", got, want)
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
