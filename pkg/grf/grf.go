// Package grf provides reading functionality for Ragnarok Online GRF archives.
package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/Faultbox/midgard-vat/pkg/encoding"
)

const (
	grfMagic      = "Master of Magic"
	grfHeaderSize = 46
	grfVersion    = 0x200
)

// Entry flags.
const (
	FlagFile      = 0x01
	FlagEncrypted = 0x02
)

// GRF archive errors.
var (
	ErrInvalidMagic       = errors.New("invalid GRF magic")
	ErrUnsupportedVersion = errors.New("unsupported GRF version")
	ErrCorruptTable       = errors.New("corrupt GRF file table")
	ErrNotFound           = errors.New("file not found in GRF")
	ErrEncrypted          = errors.New("encrypted GRF entries are not supported")
)

// Archive represents an opened GRF archive.
type Archive struct {
	file     *os.File
	header   Header
	fileList map[string]*Entry
}

// Header contains GRF file header information.
type Header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

// Entry represents a file entry in the archive.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Open opens a GRF archive for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	archive := &Archive{
		file:     file,
		fileList: make(map[string]*Entry),
	}

	if err := archive.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if err := archive.readFileTable(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading file table: %w", err)
	}

	return archive, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func (a *Archive) readHeader() error {
	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if err := binary.Read(a.file, binary.LittleEndian, &a.header); err != nil {
		return err
	}

	if string(a.header.Magic[:]) != grfMagic {
		return ErrInvalidMagic
	}

	if a.header.Version != grfVersion {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}

	return nil
}

func (a *Archive) readFileTable() error {
	if _, err := a.file.Seek(int64(a.header.TableOffset)+grfHeaderSize, io.SeekStart); err != nil {
		return err
	}

	var sizes struct {
		Compressed   uint32
		Uncompressed uint32
	}
	if err := binary.Read(a.file, binary.LittleEndian, &sizes); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	compressed := make([]byte, sizes.Compressed)
	if _, err := io.ReadFull(a.file, compressed); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}
	defer reader.Close()

	table := make([]byte, sizes.Uncompressed)
	if _, err := io.ReadFull(reader, table); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	fileCount := a.header.FileCount - a.header.Seed - 7
	offset := 0

	for i := uint32(0); i < fileCount; i++ {
		nameEnd := bytes.IndexByte(table[offset:], 0)
		if nameEnd < 0 {
			break
		}
		name := encoding.EUCKRToUTF8(table[offset : offset+nameEnd])
		offset += nameEnd + 1

		if offset+17 > len(table) {
			break
		}

		entry := &Entry{
			Name:             encoding.NormalizeGRFPath(name),
			CompressedSize:   binary.LittleEndian.Uint32(table[offset:]),
			AlignedSize:      binary.LittleEndian.Uint32(table[offset+4:]),
			UncompressedSize: binary.LittleEndian.Uint32(table[offset+8:]),
			Flags:            table[offset+12],
			Offset:           binary.LittleEndian.Uint32(table[offset+13:]),
		}
		offset += 17

		if entry.Flags&FlagFile != 0 {
			a.fileList[entry.Name] = entry
		}
	}

	return nil
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for p := range a.fileList {
		result = append(result, p)
	}
	sort.Strings(result)
	return result
}

// Match returns the sorted paths whose extension is one of exts and whose
// path matches the shell pattern (empty pattern matches everything).
func (a *Archive) Match(pattern string, exts ...string) ([]string, error) {
	pattern = encoding.NormalizeGRFPath(pattern)
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	var result []string
	for _, p := range a.List() {
		if len(exts) > 0 && !hasExt(p, exts) {
			continue
		}
		if pattern != "" {
			ok, _ := path.Match(pattern, p)
			if !ok {
				ok, _ = path.Match(pattern, path.Base(p))
			}
			if !ok {
				continue
			}
		}
		result = append(result, p)
	}
	return result, nil
}

func hasExt(p string, exts []string) bool {
	ext := path.Ext(p)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Contains checks if a file exists.
func (a *Archive) Contains(name string) bool {
	_, ok := a.fileList[encoding.NormalizeGRFPath(name)]
	return ok
}

// Stat returns the table entry for a file.
func (a *Archive) Stat(name string) (*Entry, error) {
	entry, ok := a.fileList[encoding.NormalizeGRFPath(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return entry, nil
}

// Read reads a file from the archive.
func (a *Archive) Read(name string) ([]byte, error) {
	entry, err := a.Stat(name)
	if err != nil {
		return nil, err
	}

	if entry.Flags&FlagEncrypted != 0 {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, name)
	}

	if _, err := a.file.Seek(int64(entry.Offset)+grfHeaderSize, io.SeekStart); err != nil {
		return nil, err
	}

	compressed := make([]byte, entry.AlignedSize)
	if _, err := io.ReadFull(a.file, compressed); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	if entry.CompressedSize == entry.UncompressedSize {
		return compressed[:entry.UncompressedSize], nil
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressed[:entry.CompressedSize]))
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	defer reader.Close()

	result := make([]byte, entry.UncompressedSize)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	return result, nil
}
