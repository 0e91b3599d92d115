package encoding

import (
	"testing"

	"golang.org/x/text/encoding/korean"
)

func TestFixedStringToUTF8(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"ascii", []byte("model.rsm\x00\x00\x00"), "model.rsm"},
		{"no terminator", []byte("abc"), "abc"},
		{"empty", []byte{0, 0, 0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FixedStringToUTF8(tt.data); got != tt.want {
				t.Errorf("FixedStringToUTF8() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeGRFPath(t *testing.T) {
	got := NormalizeGRFPath(`data\Model\Prontera\Fountain.RSM`)
	want := "data/model/prontera/fountain.rsm"
	if got != want {
		t.Errorf("NormalizeGRFPath() = %q, want %q", got, want)
	}
}

func TestFixedStringToUTF8Korean(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().Bytes([]byte("분수"))
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	fixed := make([]byte, 40)
	copy(fixed, encoded)

	if got := FixedStringToUTF8(fixed); got != "분수" {
		t.Errorf("FixedStringToUTF8() = %q, want %q", got, "분수")
	}
}
