// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Default buffer sizes for the file-backed capabilities.
const (
	DefaultReadWindow     = 2 << 20 // 2 MiB read-ahead
	DefaultWriteThreshold = 1 << 20 // 1 MiB before a bulk flush
)

// Reader is a range-addressable source of container bytes. On success
// ReadRange returns exactly r.Len() bytes. The codec may ask for ranges as
// small as a single byte, so implementations are expected to buffer.
type Reader interface {
	ReadRange(r Range) ([]byte, error)
}

// Writer is an append-only sink for extracted bytes.
type Writer interface {
	Append(p []byte) (int, error)
}

// FileReader serves ranges from an io.ReaderAt through a read-ahead window.
// The window is refilled only when a request falls outside it, so the number
// of underlying reads follows the size of the container rather than the
// number of requests. A FileReader is not safe for concurrent use.
type FileReader struct {
	src      io.ReaderAt
	closer   io.Closer
	size     int64
	buf      []byte
	bufStart int64
}

// NewFileReader returns a FileReader over size bytes of src, buffering up
// to window bytes at a time. A non-positive window selects DefaultReadWindow.
func NewFileReader(src io.ReaderAt, size int64, window int) *FileReader {
	if window <= 0 {
		window = DefaultReadWindow
	}
	return &FileReader{
		src:  src,
		size: size,
		buf:  make([]byte, 0, window),
	}
}

// OpenFileReader opens name on fs and wraps it in a FileReader. The caller
// must Close it.
func OpenFileReader(fs afero.Fs, name string, window int) (*FileReader, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat %s", name)
	}
	r := NewFileReader(f, info.Size(), window)
	r.closer = f
	return r, nil
}

// Size returns the length of the underlying source.
func (r *FileReader) Size() int64 {
	return r.size
}

// ReadRange implements Reader.
func (r *FileReader) ReadRange(rng Range) ([]byte, error) {
	if rng.End < rng.Start {
		return nil, errors.Errorf("invalid range %s", rng)
	}
	if int64(rng.End) > r.size {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "range %s past end of %d byte source", rng, r.size)
	}

	n := int(rng.Len())
	start := int64(rng.Start)
	if n == 0 {
		return []byte{}, nil
	}

	// Requests that cannot fit the window bypass it.
	if n > cap(r.buf) {
		out := make([]byte, n)
		if err := r.readAt(out, start); err != nil {
			return nil, err
		}
		return out, nil
	}

	if start < r.bufStart || start+int64(n) > r.bufStart+int64(len(r.buf)) {
		if err := r.fill(start); err != nil {
			return nil, err
		}
	}

	off := start - r.bufStart
	out := make([]byte, n)
	copy(out, r.buf[off:off+int64(n)])
	return out, nil
}

func (r *FileReader) fill(start int64) error {
	want := int64(cap(r.buf))
	if remaining := r.size - start; remaining < want {
		want = remaining
	}
	r.buf = r.buf[:want]
	if err := r.readAt(r.buf, start); err != nil {
		r.buf = r.buf[:0]
		return err
	}
	r.bufStart = start
	return nil
}

func (r *FileReader) readAt(p []byte, off int64) error {
	n, err := r.src.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return errors.Wrapf(err, "read %d bytes at offset %d", len(p), off)
}

// Close closes the underlying file if the reader was opened with
// OpenFileReader.
func (r *FileReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// BufferedWriter collects appended bytes and writes them to the underlying
// io.Writer in bulk once the threshold is reached or Flush is called.
type BufferedWriter struct {
	bw     *bufio.Writer
	closer io.Closer
}

// NewBufferedWriter wraps w. A non-positive threshold selects
// DefaultWriteThreshold.
func NewBufferedWriter(w io.Writer, threshold int) *BufferedWriter {
	if threshold <= 0 {
		threshold = DefaultWriteThreshold
	}
	bw := &BufferedWriter{bw: bufio.NewWriterSize(w, threshold)}
	if c, ok := w.(io.Closer); ok {
		bw.closer = c
	}
	return bw
}

// CreateBufferedWriter creates (or truncates) name on fs, creating parent
// directories as needed.
func CreateBufferedWriter(fs afero.Fs, name string, threshold int) (*BufferedWriter, error) {
	if dir := parentDir(name); dir != "" {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create directory %s", dir)
		}
	}
	f, err := fs.Create(name)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", name)
	}
	return NewBufferedWriter(f, threshold), nil
}

// Append implements Writer.
func (w *BufferedWriter) Append(p []byte) (int, error) {
	return w.bw.Write(p)
}

// Flush writes any buffered bytes to the underlying writer.
func (w *BufferedWriter) Flush() error {
	return w.bw.Flush()
}

// Close flushes and, if the underlying writer is an io.Closer, closes it.
func (w *BufferedWriter) Close() error {
	err := w.bw.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// BytesReader is a Reader over an in-memory container image.
type BytesReader []byte

// ReadRange implements Reader. The returned slice aliases the image.
func (b BytesReader) ReadRange(rng Range) ([]byte, error) {
	if rng.End < rng.Start {
		return nil, errors.Errorf("invalid range %s", rng)
	}
	if int(rng.End) > len(b) {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "range %s past end of %d byte image", rng, len(b))
	}
	return b[rng.Start:rng.End:rng.End], nil
}

// MemoryWriter is a Writer that accumulates output in memory.
type MemoryWriter struct {
	Bytes []byte
}

// Append implements Writer.
func (m *MemoryWriter) Append(p []byte) (int, error) {
	m.Bytes = append(m.Bytes, p...)
	return len(p), nil
}
