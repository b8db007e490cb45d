// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import (
	"encoding/binary"
	"testing"
)

// containerBuilder assembles DAT images for tests.
type containerBuilder struct {
	dirs []builderDir
}

type builderDir struct {
	path  string
	files []builderFile
}

type builderFile struct {
	name   string
	data   []byte
	packed []byte // chunk stream; nil stores data raw
}

// addDir adds an empty directory, keeping insertion order.
func (b *containerBuilder) addDir(path string) *containerBuilder {
	b.dir(path)
	return b
}

func (b *containerBuilder) dir(path string) *builderDir {
	for i := range b.dirs {
		if b.dirs[i].path == path {
			return &b.dirs[i]
		}
	}
	b.dirs = append(b.dirs, builderDir{path: path})
	return &b.dirs[len(b.dirs)-1]
}

// addStored adds a file stored raw.
func (b *containerBuilder) addStored(dir, name string, data []byte) *containerBuilder {
	d := b.dir(dir)
	d.files = append(d.files, builderFile{name: name, data: data})
	return b
}

// addCompressed adds a file encoded with encodeLZSS.
func (b *containerBuilder) addCompressed(dir, name string, data []byte) *containerBuilder {
	return b.addPacked(dir, name, data, encodeLZSS(data))
}

// addPacked adds a file with a hand-made chunk stream.
func (b *containerBuilder) addPacked(dir, name string, data, packed []byte) *containerBuilder {
	d := b.dir(dir)
	d.files = append(d.files, builderFile{name: name, data: data, packed: packed})
	return b
}

// bytes lays out header, paths, file blocks and then file contents.
func (b *containerBuilder) bytes(t testing.TB) []byte {
	t.Helper()

	indexSize := headerSize
	for _, d := range b.dirs {
		indexSize += 1 + len(d.path) + 4 + dirReservedWords*4
		for _, f := range d.files {
			indexSize += 1 + len(f.name) + fileReservedBytes + 12
		}
	}

	out := make([]byte, 0, indexSize)
	out = binary.BigEndian.AppendUint32(out, uint32(len(b.dirs)))
	out = append(out, make([]byte, headerReservedWords*4)...)
	for _, d := range b.dirs {
		out = appendName(t, out, d.path)
	}

	var content []byte
	for _, d := range b.dirs {
		out = binary.BigEndian.AppendUint32(out, uint32(len(d.files)))
		out = append(out, make([]byte, dirReservedWords*4)...)
		for _, f := range d.files {
			offset := uint32(indexSize + len(content))
			var packedSize uint32
			if f.packed != nil {
				if len(f.packed) == len(f.data) {
					t.Fatalf("packed stream of %s has the same length as its content", f.name)
				}
				packedSize = uint32(len(f.packed))
				content = append(content, f.packed...)
			} else {
				content = append(content, f.data...)
			}

			out = appendName(t, out, f.name)
			out = append(out, make([]byte, fileReservedBytes)...)
			out = binary.BigEndian.AppendUint32(out, offset)
			out = binary.BigEndian.AppendUint32(out, uint32(len(f.data)))
			out = binary.BigEndian.AppendUint32(out, packedSize)
		}
	}

	if len(out) != indexSize {
		t.Fatalf("index size: got %d, want %d", len(out), indexSize)
	}
	return append(out, content...)
}

func appendName(t testing.TB, out []byte, name string) []byte {
	t.Helper()
	if len(name) > 0xFF {
		t.Fatalf("name too long: %q", name)
	}
	out = append(out, byte(len(name)))
	return append(out, name...)
}

// encodeLZSS produces a chunk stream the decoder accepts: greedy LZSS blocks
// over the same window, followed by the end-of-stream header.
func encodeLZSS(src []byte) []byte {
	var window [windowSize]byte
	for i := range window {
		window[i] = windowFiller
	}
	wpos := windowStart

	var out, block []byte
	flush := func() {
		if len(block) == 0 {
			return
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(block)))
		out = append(out, block...)
		block = block[:0]
	}

	i := 0
	for i < len(src) {
		flagIdx := len(block)
		block = append(block, 0)
		for bit := 0; bit < 8 && i < len(src); bit++ {
			off, n := longestMatch(&window, wpos, src[i:])
			if n >= minMatch {
				block = append(block, byte(off), byte((off>>4)&0xF0|(n-minMatch)))
			} else {
				n = 1
				block[flagIdx] |= 1 << bit
				block = append(block, src[i])
			}
			for k := 0; k < n; k++ {
				window[wpos] = src[i+k]
				wpos = (wpos + 1) & windowMask
			}
			i += n
		}
		// A group is at most 17 bytes; keep every block under 0x7FFF.
		if len(block) > 0x7FFF-17 {
			flush()
		}
	}
	flush()
	return append(out, 0, 0)
}

// longestMatch finds the window offset whose copy reproduces the longest
// prefix of rest, accounting for bytes the copy itself writes.
func longestMatch(window *[windowSize]byte, wpos int, rest []byte) (int, int) {
	limit := min(maxMatch, len(rest))
	best, bestOff := 0, 0
	for off := 0; off < windowSize; off++ {
		n := 0
		for n < limit {
			p := (off + n) & windowMask
			c := window[p]
			if d := (p - wpos) & windowMask; d < n {
				c = rest[d]
			}
			if c != rest[n] {
				break
			}
			n++
		}
		if n > best {
			best, bestOff = n, off
			if n == limit {
				break
			}
		}
	}
	return bestOff, best
}

// literalChunk wraps data in a negative-header literal run.
func literalChunk(data []byte) []byte {
	out := binary.BigEndian.AppendUint16(nil, uint16(-int16(len(data))))
	return append(out, data...)
}

// blockChunk wraps hand-encoded LZSS bytes in a positive-header block.
func blockChunk(encoded ...byte) []byte {
	out := binary.BigEndian.AppendUint16(nil, uint16(len(encoded)))
	return append(out, encoded...)
}

// join concatenates chunk streams.
func join(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
