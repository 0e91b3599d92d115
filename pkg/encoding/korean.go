// Package encoding provides text encoding utilities for Ragnarok Online file formats.
package encoding

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// EUCKRToUTF8 converts EUC-KR encoded bytes to UTF-8 string.
// Returns the original string if conversion fails.
func EUCKRToUTF8(data []byte) string {
	decoder := korean.EUCKR.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// FixedStringToUTF8 converts a fixed-size EUC-KR encoded byte array to UTF-8 string.
// Everything from the first null byte on is ignored.
func FixedStringToUTF8(data []byte) string {
	if nullIdx := bytes.IndexByte(data, 0); nullIdx >= 0 {
		data = data[:nullIdx]
	}
	return EUCKRToUTF8(data)
}

// NormalizeGRFPath normalizes a GRF file path for case-insensitive lookup.
func NormalizeGRFPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}
