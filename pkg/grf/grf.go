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
	"sort"

	"github.com/Faultbox/prcexport/pkg/encoding"
)

const (
	grfMagic     = "Master of Magic"
	headerSize   = 46
	version200   = 0x200
	entryMetaLen = 17
)

// Entry flags.
const (
	FlagFile     = 0x01
	FlagMixCrypt = 0x02
	FlagDESCrypt = 0x04
)

// GRF errors.
var (
	ErrInvalidMagic       = errors.New("invalid GRF magic")
	ErrUnsupportedVersion = errors.New("unsupported GRF version")
	ErrNotFound           = errors.New("file not found")
	ErrEncrypted          = errors.New("encrypted entries are not supported")
	ErrCorrupt            = errors.New("corrupt GRF")
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

// Entry represents a file entry in the archive. Name is decoded from
// EUC-KR and normalized with encoding.NormalizeGRFPath.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Encrypted reports whether the entry uses either GRF cipher.
func (e *Entry) Encrypted() bool {
	return e.Flags&(FlagMixCrypt|FlagDESCrypt) != 0
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
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}

	if err := archive.readFileTable(); err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: reading file table: %w", path, err)
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
	r := io.NewSectionReader(a.file, 0, headerSize)
	if err := binary.Read(r, binary.LittleEndian, &a.header); err != nil {
		return err
	}

	if string(a.header.Magic[:]) != grfMagic {
		return ErrInvalidMagic
	}

	if a.header.Version != version200 {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}

	return nil
}

func (a *Archive) readFileTable() error {
	tableOffset := int64(a.header.TableOffset) + headerSize

	var sizes [8]byte
	if _, err := a.file.ReadAt(sizes[:], tableOffset); err != nil {
		return err
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[0:])
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])

	compressedData := make([]byte, compressedSize)
	if _, err := a.file.ReadAt(compressedData, tableOffset+8); err != nil {
		return err
	}

	tableData, err := inflate(compressedData, uncompressedSize)
	if err != nil {
		return err
	}

	if a.header.FileCount < a.header.Seed+7 {
		return fmt.Errorf("%w: file count %d below seed %d", ErrCorrupt, a.header.FileCount, a.header.Seed)
	}
	fileCount := a.header.FileCount - a.header.Seed - 7
	offset := 0

	for i := uint32(0); i < fileCount; i++ {
		nameEnd := bytes.IndexByte(tableData[offset:], 0)
		if nameEnd < 0 {
			return fmt.Errorf("%w: entry %d name unterminated", ErrCorrupt, i)
		}
		name := encoding.EUCKRToUTF8(tableData[offset : offset+nameEnd])
		offset += nameEnd + 1

		if offset+entryMetaLen > len(tableData) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorrupt, i)
		}

		entry := &Entry{
			Name:             encoding.NormalizeGRFPath(name),
			CompressedSize:   binary.LittleEndian.Uint32(tableData[offset:]),
			AlignedSize:      binary.LittleEndian.Uint32(tableData[offset+4:]),
			UncompressedSize: binary.LittleEndian.Uint32(tableData[offset+8:]),
			Flags:            tableData[offset+12],
			Offset:           binary.LittleEndian.Uint32(tableData[offset+13:]),
		}
		offset += entryMetaLen

		if entry.Flags&FlagFile != 0 {
			a.fileList[entry.Name] = entry
		}
	}

	return nil
}

// Version returns the archive format version.
func (a *Archive) Version() uint32 {
	return a.header.Version
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for path := range a.fileList {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// Entry returns the table entry for path, or nil.
func (a *Archive) Entry(path string) *Entry {
	return a.fileList[encoding.NormalizeGRFPath(path)]
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	return a.Entry(path) != nil
}

// Read reads a file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	entry := a.Entry(path)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if entry.Encrypted() {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, path)
	}

	compressedData := make([]byte, entry.AlignedSize)
	if _, err := a.file.ReadAt(compressedData, int64(entry.Offset)+headerSize); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if entry.CompressedSize > entry.AlignedSize {
		return nil, fmt.Errorf("%w: %s compressed size exceeds block", ErrCorrupt, path)
	}

	if entry.CompressedSize == entry.UncompressedSize {
		return compressedData[:entry.UncompressedSize], nil
	}

	data, err := inflate(compressedData[:entry.CompressedSize], entry.UncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("inflating %s: %w", path, err)
	}
	return data, nil
}

func inflate(compressed []byte, size uint32) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	result := make([]byte, size)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}
