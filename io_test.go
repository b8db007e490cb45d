// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// countingReaderAt counts the reads reaching the underlying source.
type countingReaderAt struct {
	r     *bytes.Reader
	reads int
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	c.reads++
	return c.r.ReadAt(p, off)
}

// countingWriter counts the writes reaching the underlying sink.
type countingWriter struct {
	bytes.Buffer
	writes int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes++
	return c.Buffer.Write(p)
}

func testImage(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestFileReaderBuffersSmallReads(t *testing.T) {
	data := testImage(10000)
	src := &countingReaderAt{r: bytes.NewReader(data)}
	r := NewFileReader(src, int64(len(data)), 4096)

	for i := uint32(0); i < uint32(len(data)); i++ {
		got, err := r.ReadRange(Range{Start: i, End: i + 1})
		if err != nil {
			t.Fatalf("read byte %d: %v", i, err)
		}
		if got[0] != data[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[0], data[i])
		}
	}

	// 10000 bytes through a 4096 byte window: three refills.
	if src.reads != 3 {
		t.Errorf("underlying reads = %d, want 3", src.reads)
	}
}

func TestFileReaderRanges(t *testing.T) {
	data := testImage(5000)
	src := &countingReaderAt{r: bytes.NewReader(data)}
	r := NewFileReader(src, int64(len(data)), 1024)

	tests := []struct {
		name string
		rng  Range
	}{
		{"start", Range{0, 10}},
		{"inside window", Range{100, 900}},
		{"spanning window edge", Range{1000, 1100}},
		{"backwards", Range{10, 20}},
		{"larger than window", Range{0, 3000}},
		{"tail", Range{4990, 5000}},
		{"empty", Range{42, 42}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := r.ReadRange(test.rng)
			if err != nil {
				t.Fatalf("read %s: %v", test.rng, err)
			}
			if !bytes.Equal(got, data[test.rng.Start:test.rng.End]) {
				t.Errorf("read %s returned the wrong bytes", test.rng)
			}
		})
	}
}

func TestFileReaderPastEnd(t *testing.T) {
	data := testImage(100)
	r := NewFileReader(bytes.NewReader(data), int64(len(data)), 64)

	_, err := r.ReadRange(Range{90, 110})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("got %v, want io.ErrUnexpectedEOF", err)
	}

	// A failed read leaves the reader usable.
	got, err := r.ReadRange(Range{0, 4})
	if err != nil || !bytes.Equal(got, data[:4]) {
		t.Errorf("read after failure: %v %v", got, err)
	}
}

func TestFileReaderCopiesOut(t *testing.T) {
	data := testImage(100)
	r := NewFileReader(bytes.NewReader(data), int64(len(data)), 64)

	first, _ := r.ReadRange(Range{0, 8})
	first[0] = 0xAA
	again, _ := r.ReadRange(Range{0, 8})
	if again[0] != data[0] {
		t.Errorf("modifying a returned slice changed the reader's buffer")
	}
}

func TestOpenFileReader(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := testImage(3000)
	if err := afero.WriteFile(fs, "/game/master.dat", data, 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	r, err := OpenFileReader(fs, "/game/master.dat", 0)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	if r.Size() != int64(len(data)) {
		t.Errorf("size = %d, want %d", r.Size(), len(data))
	}
	got, err := r.ReadRange(Range{2000, 2500})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data[2000:2500]) {
		t.Errorf("content mismatch")
	}

	if _, err := OpenFileReader(fs, "/game/missing.dat", 0); err == nil {
		t.Errorf("opening a missing file succeeded")
	}
}

func TestBufferedWriterThreshold(t *testing.T) {
	sink := &countingWriter{}
	w := NewBufferedWriter(sink, 1024)

	chunk := bytes.Repeat([]byte{'x'}, 100)
	for i := 0; i < 50; i++ {
		n, err := w.Append(chunk)
		if err != nil || n != len(chunk) {
			t.Fatalf("append %d: n=%d err=%v", i, n, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if sink.Len() != 5000 {
		t.Errorf("sink holds %d bytes, want 5000", sink.Len())
	}
	// 5000 bytes in 1024 byte batches.
	if sink.writes > 5 {
		t.Errorf("underlying writes = %d, want at most 5", sink.writes)
	}
}

func TestCreateBufferedWriter(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := CreateBufferedWriter(fs, "/out/art/intrface/iface.frm", 0)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if _, err := w.Append([]byte("frame data")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := afero.ReadFile(fs, "/out/art/intrface/iface.frm")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "frame data" {
		t.Errorf("got %q", got)
	}
}

func TestBytesReaderBounds(t *testing.T) {
	r := BytesReader("abcdef")
	if got, err := r.ReadRange(Range{1, 4}); err != nil || string(got) != "bcd" {
		t.Errorf("got %q %v", got, err)
	}
	if _, err := r.ReadRange(Range{4, 8}); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("got %v, want io.ErrUnexpectedEOF", err)
	}
	if _, err := r.ReadRange(Range{4, 2}); err == nil {
		t.Errorf("inverted range accepted")
	}
}
