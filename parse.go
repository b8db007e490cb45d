// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import "strings"

// arenaNode is a directory under construction. Children are arena indices so
// handles stay valid while the tree grows.
type arenaNode struct {
	name     string
	files    []FileRecord
	children []int
}

// treeArena builds the directory tree from path strings.
type treeArena struct {
	nodes []arenaNode
}

func newTreeArena() *treeArena {
	return &treeArena{nodes: []arenaNode{{name: rootName}}}
}

// normalizeDirPath puts every path in the `.\A\B` form. The root is `.`;
// containers store other paths with or without the `.\` prefix.
func normalizeDirPath(p string) string {
	if p == rootName || strings.HasPrefix(p, rootPrefix) {
		return p
	}
	return rootPrefix + p
}

// resolve walks p from the root, creating missing directories, and returns
// the handle of the final node.
func (a *treeArena) resolve(p string) (int, error) {
	components := strings.Split(normalizeDirPath(p), pathSeparator)
	if components[0] != rootName {
		return 0, formatErrorf("directory path %q does not start at the root", p)
	}

	current := 0
	for _, name := range components[1:] {
		switch name {
		case "":
			return 0, formatErrorf("directory path %q has an empty component", p)
		case ".", "..":
			return 0, formatErrorf("directory path %q has a relative component %q", p, name)
		}
		current = a.child(current, name)
	}
	return current, nil
}

// child returns the handle of parent's child called name, appending a new
// empty node if there is none.
func (a *treeArena) child(parent int, name string) int {
	for _, idx := range a.nodes[parent].children {
		if a.nodes[idx].name == name {
			return idx
		}
	}
	idx := len(a.nodes)
	a.nodes = append(a.nodes, arenaNode{name: name})
	a.nodes[parent].children = append(a.nodes[parent].children, idx)
	return idx
}

// build materializes the owned tree rooted at idx.
func (a *treeArena) build(idx int) DirectoryNode {
	n := &a.nodes[idx]
	node := DirectoryNode{Name: n.name, Files: n.files}
	if len(n.children) > 0 {
		node.Children = make([]DirectoryNode, len(n.children))
		for i, c := range n.children {
			node.Children[i] = a.build(c)
		}
	}
	return node
}

// Parse reads the directory index of a container and returns its tree.
// It returns nil and no error when the container declares no directories.
//
// Parsing either yields a complete tree or fails; structural problems are
// reported as *FormatError, reader failures as *ReadError and mis-sized reads
// as *ProtocolError.
func Parse(r Reader) (*DirectoryNode, error) {
	c := &indexCursor{r: r}

	header, err := c.readContainerHeader()
	if err != nil {
		return nil, err
	}
	if header.DirectoryCount == 0 {
		return nil, nil
	}

	// Pass 1: build the skeleton and remember where each path landed.
	arena := newTreeArena()
	handles := make([]int, 0, min(header.DirectoryCount, 4096))
	for i := uint32(0); i < header.DirectoryCount; i++ {
		p, err := c.readName("directory path")
		if err != nil {
			return nil, err
		}
		h, err := arena.resolve(p)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}

	// Pass 2: the file blocks follow in the same order as the paths.
	for _, h := range handles {
		if err := readFileBlock(c, &arena.nodes[h]); err != nil {
			return nil, err
		}
	}

	root := arena.build(0)
	return &root, nil
}

// readFileBlock reads one directory's file count and records.
func readFileBlock(c *indexCursor, node *arenaNode) error {
	count, err := c.readUint32("file count")
	if err != nil {
		return err
	}
	if err := c.skip(dirReservedWords*4, "directory block header"); err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		name, err := c.readName("file name")
		if err != nil {
			return err
		}
		entry, err := c.readFileEntry()
		if err != nil {
			return err
		}
		rng, err := entry.archivedRange()
		if err != nil {
			return err
		}
		node.files = append(node.files, FileRecord{
			Name:          name,
			DeclaredSize:  entry.Size,
			ArchivedRange: rng,
		})
	}
	return nil
}
