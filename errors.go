// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import "fmt"

// ReadError reports a failure of the underlying Reader. Op names what was
// being read when it failed.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failure of the destination Writer.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write output: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// FormatError reports a structurally invalid container: bad name encoding,
// inconsistent counts, unresolvable paths or a truncated index.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string {
	return "invalid DAT container: " + e.Msg
}

func formatErrorf(format string, args ...any) *FormatError {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}

// ProtocolError reports a Reader that returned a slice of the wrong length
// for the range it was asked for.
type ProtocolError struct {
	Want int
	Got  int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("reader protocol violation: asked for %d bytes, got %d", e.Want, e.Got)
}

// DecompressError reports that decoding an entry did not produce exactly
// its declared size.
type DecompressError struct {
	Name string
	Want uint32
	Got  uint32
}

func (e *DecompressError) Error() string {
	return fmt.Sprintf("decompress %s: produced %d bytes, want %d", e.Name, e.Got, e.Want)
}
