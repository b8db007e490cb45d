// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// DAT format constants
const (
	// Container header: directory count followed by reserved words
	headerReservedWords = 3
	headerSize          = 4 + headerReservedWords*4

	// Per-directory block header: file count followed by reserved words
	dirReservedWords = 3

	// Per-file: reserved word before offset, size and packed size
	fileReservedBytes = 4

	// Path conventions
	pathSeparator = "\\"
	rootName      = "."
	rootPrefix    = rootName + pathSeparator
)

// containerHeader is the fixed header at offset 0.
type containerHeader struct {
	DirectoryCount uint32
	Reserved       [headerReservedWords]uint32
}

// fileEntry is the on-disk record of one file, after its name.
type fileEntry struct {
	Reserved   uint32
	Offset     uint32
	Size       uint32
	PackedSize uint32
}

// archivedRange returns where the entry's content lives. A zero packed size
// marks an entry stored raw.
func (e *fileEntry) archivedRange() (Range, error) {
	length := e.PackedSize
	if length == 0 {
		length = e.Size
	}
	end := uint64(e.Offset) + uint64(length)
	if end > 0xFFFFFFFF {
		return Range{}, formatErrorf("entry at offset %d with length %d overflows the container", e.Offset, length)
	}
	return Range{Start: e.Offset, End: uint32(end)}, nil
}

// indexCursor reads the index sequentially through a Reader.
type indexCursor struct {
	r   Reader
	pos uint32
}

// next reads n bytes at the cursor and advances it.
func (c *indexCursor) next(n uint32, what string) ([]byte, error) {
	end := uint64(c.pos) + uint64(n)
	if end > 0xFFFFFFFF {
		return nil, formatErrorf("%s at offset %d runs past 4 GiB", what, c.pos)
	}
	rng := Range{Start: c.pos, End: uint32(end)}
	data, err := c.r.ReadRange(rng)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, formatErrorf("%s at offset %d: index ends early", what, c.pos)
		}
		return nil, &ReadError{Op: what, Err: err}
	}
	if uint32(len(data)) != n {
		return nil, &ProtocolError{Want: int(n), Got: len(data)}
	}
	c.pos = rng.End
	return data, nil
}

func (c *indexCursor) readUint32(what string) (uint32, error) {
	data, err := c.next(4, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(data), nil
}

func (c *indexCursor) skip(n uint32, what string) error {
	_, err := c.next(n, what)
	return err
}

// readName reads a u8 length-prefixed name and validates its encoding.
func (c *indexCursor) readName(what string) (string, error) {
	lenByte, err := c.next(1, what+" length")
	if err != nil {
		return "", err
	}
	data, err := c.next(uint32(lenByte[0]), what)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", formatErrorf("%s %q is not valid UTF-8", what, data)
	}
	return string(data), nil
}

// readContainerHeader reads the header at offset 0.
func (c *indexCursor) readContainerHeader() (*containerHeader, error) {
	data, err := c.next(headerSize, "container header")
	if err != nil {
		return nil, err
	}
	h := &containerHeader{DirectoryCount: binary.BigEndian.Uint32(data)}
	for i := range h.Reserved {
		h.Reserved[i] = binary.BigEndian.Uint32(data[4+i*4:])
	}
	return h, nil
}

// readFileEntry reads the fixed part of a file record.
func (c *indexCursor) readFileEntry() (*fileEntry, error) {
	data, err := c.next(fileReservedBytes+12, "file entry")
	if err != nil {
		return nil, err
	}
	return &fileEntry{
		Reserved:   binary.BigEndian.Uint32(data[0:]),
		Offset:     binary.BigEndian.Uint32(data[4:]),
		Size:       binary.BigEndian.Uint32(data[8:]),
		PackedSize: binary.BigEndian.Uint32(data[12:]),
	}, nil
}
