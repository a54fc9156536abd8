/*
Package matio implements a small binary container for dense matrices with
deterministic offsets, so that several processes can write disjoint column
ranges of one file concurrently.

A container holds one float64 matrix in column major order plus a trailing
metadata section of named enumeration datasets. All integers are little
endian. The layout is

	magic "GDNSMAT1"            8 bytes
	version                     uint32
	element size                uint32 (8 for float64)
	dims, reversed              2 x uint64 (columns first)
	chunk dims, reversed        2 x uint64
	payload                     rows*cols float64, column major
	enum datasets               see WriteEnums

The chunk dimensions are recorded for tooling; the payload is always one
contiguous column major extent.
*/
package matio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	// Magic identifies a matrix container file.
	Magic = "GDNSMAT1"
	// Version is the current container layout version.
	Version = 1

	elemSize   = 8
	headerSize = 8 + 4 + 4 + 16 + 16
)

// Header describes the matrix stored in a container.
type Header struct {
	Rows, Cols           int
	ChunkRows, ChunkCols int
}

type fileHeader struct {
	Magic    [8]byte
	Version  uint32
	ElemSize uint32
	Dims     [2]uint64
	Chunk    [2]uint64
}

// DataOffset returns the file offset of the first payload byte.
func DataOffset() int64 { return headerSize }

// EnumOffset returns the file offset of the enum metadata section.
func EnumOffset(h Header) int64 {
	return headerSize + int64(h.Rows)*int64(h.Cols)*elemSize
}

// Create creates (or truncates) a container file and writes its header.
// The returned file is positioned at the payload start.
func Create(name string, h Header) (*os.File, error) {
	if h.Rows < 1 || h.Cols < 1 {
		return nil, fmt.Errorf("matio: matrix dimensions must be positive, have %dx%d", h.Rows, h.Cols)
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	fh := fileHeader{
		Version:  Version,
		ElemSize: elemSize,
		Dims:     [2]uint64{uint64(h.Cols), uint64(h.Rows)},
		Chunk:    [2]uint64{uint64(h.ChunkCols), uint64(h.ChunkRows)},
	}
	copy(fh.Magic[:], Magic)
	if err := binary.Write(f, binary.LittleEndian, &fh); err != nil {
		f.Close()
		return nil, fmt.Errorf("matio: writing header: %w", err)
	}
	return f, nil
}

// Open opens a container file and parses its header.
func Open(name string) (*os.File, Header, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, Header{}, err
	}
	var fh fileHeader
	if err := binary.Read(f, binary.LittleEndian, &fh); err != nil {
		f.Close()
		return nil, Header{}, fmt.Errorf("matio: reading header: %w", err)
	}
	if string(fh.Magic[:]) != Magic {
		f.Close()
		return nil, Header{}, fmt.Errorf("matio: %s is not a matrix container", name)
	}
	if fh.Version != Version {
		f.Close()
		return nil, Header{}, fmt.Errorf("matio: unsupported container version %d", fh.Version)
	}
	if fh.ElemSize != elemSize {
		f.Close()
		return nil, Header{}, fmt.Errorf("matio: unsupported element size %d", fh.ElemSize)
	}
	h := Header{
		Rows:      int(fh.Dims[1]),
		Cols:      int(fh.Dims[0]),
		ChunkRows: int(fh.Chunk[1]),
		ChunkCols: int(fh.Chunk[0]),
	}
	return f, h, nil
}

// WriteColumns writes len(data)/h.Rows consecutive columns starting at
// firstCol. data must hold whole columns in column major order. Disjoint
// column ranges may be written concurrently by different processes.
func WriteColumns(f *os.File, h Header, firstCol int, data []float64) error {
	if len(data)%h.Rows != 0 {
		return fmt.Errorf("matio: payload of %d values is not a whole number of columns of %d", len(data), h.Rows)
	}
	nCols := len(data) / h.Rows
	if firstCol < 0 || firstCol+nCols > h.Cols {
		return fmt.Errorf("matio: columns [%d,%d) outside matrix with %d columns", firstCol, firstCol+nCols, h.Cols)
	}
	buf := make([]byte, len(data)*elemSize)
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[i*elemSize:], math.Float64bits(v))
	}
	off := DataOffset() + int64(firstCol)*int64(h.Rows)*elemSize
	if _, err := f.WriteAt(buf, off); err != nil {
		return fmt.Errorf("matio: writing columns [%d,%d): %w", firstCol, firstCol+nCols, err)
	}
	return nil
}

// ReadColumns reads nCols consecutive columns starting at firstCol into
// dst, which must hold exactly h.Rows*nCols values.
func ReadColumns(f *os.File, h Header, firstCol, nCols int, dst []float64) error {
	if firstCol < 0 || firstCol+nCols > h.Cols {
		return fmt.Errorf("matio: columns [%d,%d) outside matrix with %d columns", firstCol, firstCol+nCols, h.Cols)
	}
	if len(dst) != h.Rows*nCols {
		return fmt.Errorf("matio: destination holds %d values, want %d", len(dst), h.Rows*nCols)
	}
	buf := make([]byte, len(dst)*elemSize)
	off := DataOffset() + int64(firstCol)*int64(h.Rows)*elemSize
	if _, err := io.ReadFull(io.NewSectionReader(f, off, int64(len(buf))), buf); err != nil {
		return fmt.Errorf("matio: reading columns [%d,%d): %w", firstCol, firstCol+nCols, err)
	}
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*elemSize:]))
	}
	return nil
}

// EnumMember is one named value of an enumeration dataset.
type EnumMember struct {
	Name  string
	Value int
}

// EnumSet is a named enumeration dataset: the full member table plus the
// stored value. Readers validate the table so that files written against
// a different enumeration definition are rejected.
type EnumSet struct {
	Name    string
	Members []EnumMember
	Value   int
}

// WriteEnums writes the enum metadata section after the payload.
func WriteEnums(f *os.File, h Header, sets ...EnumSet) error {
	if _, err := f.Seek(EnumOffset(h), io.SeekStart); err != nil {
		return fmt.Errorf("matio: seeking metadata section: %w", err)
	}
	for _, s := range sets {
		if err := writeString(f, s.Name); err != nil {
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(len(s.Members))); err != nil {
			return fmt.Errorf("matio: writing %s: %w", s.Name, err)
		}
		for _, mem := range s.Members {
			if err := writeString(f, mem.Name); err != nil {
				return err
			}
			if err := binary.Write(f, binary.LittleEndian, int32(mem.Value)); err != nil {
				return fmt.Errorf("matio: writing %s: %w", s.Name, err)
			}
		}
		if err := binary.Write(f, binary.LittleEndian, int32(s.Value)); err != nil {
			return fmt.Errorf("matio: writing %s: %w", s.Name, err)
		}
	}
	return nil
}

// ReadEnums reads the enum metadata section. Each stored dataset must
// match the corresponding set's name and member table, and its stored
// value must be one of the members; the value is filled into the set.
func ReadEnums(f *os.File, h Header, sets ...*EnumSet) error {
	if _, err := f.Seek(EnumOffset(h), io.SeekStart); err != nil {
		return fmt.Errorf("matio: seeking metadata section: %w", err)
	}
	for _, s := range sets {
		name, err := readString(f)
		if err != nil {
			return err
		}
		if name != s.Name {
			return fmt.Errorf("matio: found dataset %q, want %q", name, s.Name)
		}
		var n uint32
		if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
			return fmt.Errorf("matio: reading %s: %w", s.Name, err)
		}
		if int(n) != len(s.Members) {
			return fmt.Errorf("matio: %s has %d members, want %d", s.Name, n, len(s.Members))
		}
		for _, want := range s.Members {
			name, err := readString(f)
			if err != nil {
				return err
			}
			var v int32
			if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
				return fmt.Errorf("matio: reading %s: %w", s.Name, err)
			}
			if name != want.Name || int(v) != want.Value {
				return fmt.Errorf("matio: %s member %q=%d does not match %q=%d",
					s.Name, name, v, want.Name, want.Value)
			}
		}
		var v int32
		if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
			return fmt.Errorf("matio: reading %s: %w", s.Name, err)
		}
		valid := false
		for _, mem := range s.Members {
			if int(v) == mem.Value {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("matio: %s value %d is not a member", s.Name, v)
		}
		s.Value = int(v)
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return fmt.Errorf("matio: writing string: %w", err)
	}
	if _, err := w.Write([]byte(s)); err != nil {
		return fmt.Errorf("matio: writing string: %w", err)
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("matio: reading string: %w", err)
	}
	if n > 1<<20 {
		return "", fmt.Errorf("matio: implausible string length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("matio: reading string: %w", err)
	}
	return string(buf), nil
}
