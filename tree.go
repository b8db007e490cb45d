// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import "fmt"

// Range is a half-open byte span [Start, End) within the container.
type Range struct {
	Start uint32
	End   uint32
}

// Len returns the number of bytes in the range.
func (r Range) Len() uint32 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// FileRecord describes one entry of a directory.
type FileRecord struct {
	Name         string
	DeclaredSize uint32 // size of the extracted content
	// ArchivedRange is where the raw or compressed content lives.
	ArchivedRange Range
}

// IsCompressed reports whether the entry's archived bytes must be run
// through the decoder. Entries whose archived length equals their declared
// size are stored raw.
func (f *FileRecord) IsCompressed() bool {
	return f.ArchivedRange.Len() != f.DeclaredSize
}

// DirectoryNode is one directory of the archive tree. A node exclusively
// owns its files and children; there are no parent links.
type DirectoryNode struct {
	Name     string
	Files    []FileRecord
	Children []DirectoryNode
}

// Child returns the direct child directory with the given name.
func (n *DirectoryNode) Child(name string) *DirectoryNode {
	for i := range n.Children {
		if n.Children[i].Name == name {
			return &n.Children[i]
		}
	}
	return nil
}

// File returns the file with the given name in this directory.
func (n *DirectoryNode) File(name string) *FileRecord {
	for i := range n.Files {
		if n.Files[i].Name == name {
			return &n.Files[i]
		}
	}
	return nil
}
