// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import (
	"encoding/binary"
	"io"
)

// LZSS window parameters
const (
	windowSize   = 4096 // ring buffer size
	windowMask   = windowSize - 1
	maxMatch     = 18 // longest back-reference
	minMatch     = 3  // shortest back-reference
	windowStart  = windowSize - maxMatch
	windowFiller = 0x20 // initial window contents (space)
	chunkHdrSize = 2    // signed 16-bit chunk header
)

// Extract writes the content of f to w, reading archived bytes from r.
// It returns the number of bytes written, which on success is always
// f.DeclaredSize.
//
// Stored entries are copied with a single read. Compressed entries are a
// sequence of chunks, each introduced by a signed big-endian 16-bit header:
// zero ends the stream, a negative value introduces a run of literal bytes
// and a positive value an LZSS block of that many encoded bytes.
func Extract(r Reader, f *FileRecord, w Writer) (int, error) {
	if !f.IsCompressed() {
		return extractStored(r, f, w)
	}
	return extractCompressed(r, f, w)
}

func extractStored(r Reader, f *FileRecord, w Writer) (int, error) {
	data, err := readExact(r, f.ArchivedRange, "stored "+f.Name)
	if err != nil {
		return 0, err
	}
	return appendAll(w, data, 0)
}

// lzssDecoder holds the per-call sliding window.
type lzssDecoder struct {
	window [windowSize]byte
	pos    int
}

func newLZSSDecoder() *lzssDecoder {
	d := &lzssDecoder{pos: windowStart}
	for i := range d.window {
		d.window[i] = windowFiller
	}
	return d
}

// decodeBlock decodes one LZSS block into out. Decoding stops when the block
// is exhausted; a back-reference cut short by the end of the block is
// dropped.
func (d *lzssDecoder) decodeBlock(block []byte, out []byte) []byte {
	i := 0
	for i < len(block) {
		flags := block[i]
		i++
		for bit := 0; bit < 8 && i < len(block); bit++ {
			if flags&(1<<bit) != 0 {
				c := block[i]
				i++
				out = append(out, c)
				d.window[d.pos] = c
				d.pos = (d.pos + 1) & windowMask
				continue
			}

			if i+1 >= len(block) {
				return out
			}
			b0, b1 := int(block[i]), int(block[i+1])
			i += 2
			offset := b0 | (b1&0xF0)<<4
			length := b1&0x0F + minMatch
			for k := 0; k < length; k++ {
				c := d.window[(offset+k)&windowMask]
				out = append(out, c)
				d.window[d.pos] = c
				d.pos = (d.pos + 1) & windowMask
			}
		}
	}
	return out
}

func extractCompressed(r Reader, f *FileRecord, w Writer) (int, error) {
	var (
		d       = newLZSSDecoder()
		want    = int(f.DeclaredSize)
		written int
		pos     = f.ArchivedRange.Start
		end     = f.ArchivedRange.End
		scratch []byte
	)

	for end-pos >= chunkHdrSize {
		hdr, err := readExact(r, Range{Start: pos, End: pos + chunkHdrSize}, "chunk header of "+f.Name)
		if err != nil {
			return written, err
		}
		pos += chunkHdrSize

		n := int16(binary.BigEndian.Uint16(hdr))
		if n == 0 {
			break
		}

		if n < 0 {
			run := uint32(-int32(n))
			if run > end-pos {
				return written, &DecompressError{Name: f.Name, Want: f.DeclaredSize, Got: uint32(written)}
			}
			data, err := readExact(r, Range{Start: pos, End: pos + run}, "literal run of "+f.Name)
			if err != nil {
				return written, err
			}
			pos += run
			if room := want - written; len(data) > room {
				data = data[:room]
			}
			if written, err = appendAll(w, data, written); err != nil {
				return written, err
			}
			continue
		}

		size := uint32(n)
		if size > end-pos {
			return written, &DecompressError{Name: f.Name, Want: f.DeclaredSize, Got: uint32(written)}
		}
		block, err := readExact(r, Range{Start: pos, End: pos + size}, "block of "+f.Name)
		if err != nil {
			return written, err
		}
		pos += size

		scratch = d.decodeBlock(block, scratch[:0])
		if written+len(scratch) > want {
			return written, &DecompressError{Name: f.Name, Want: f.DeclaredSize, Got: uint32(written + len(scratch))}
		}
		if written, err = appendAll(w, scratch, written); err != nil {
			return written, err
		}
	}

	if written != want {
		return written, &DecompressError{Name: f.Name, Want: f.DeclaredSize, Got: uint32(written)}
	}
	return written, nil
}

// readExact reads rng and enforces the Reader contract.
func readExact(r Reader, rng Range, what string) ([]byte, error) {
	data, err := r.ReadRange(rng)
	if err != nil {
		return nil, &ReadError{Op: what, Err: err}
	}
	if len(data) != int(rng.Len()) {
		return nil, &ProtocolError{Want: int(rng.Len()), Got: len(data)}
	}
	return data, nil
}

// appendAll appends p to w and returns the updated byte count.
func appendAll(w Writer, p []byte, written int) (int, error) {
	if len(p) == 0 {
		return written, nil
	}
	n, err := w.Append(p)
	if err != nil {
		return written + n, &WriteError{Err: err}
	}
	if n != len(p) {
		return written + n, &WriteError{Err: io.ErrShortWrite}
	}
	return written + n, nil
}
