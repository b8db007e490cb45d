// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Chain is a list of archives in order of increasing priority, such as a
// base game archive followed by patch archives. A file present in several
// archives resolves to the last one.
type Chain struct {
	archives []*Archive
	fileMap  map[string]int // normalized path -> archive index
	files    []string
}

// OpenChain opens every path on fs in order. The last archive has the
// highest priority.
func OpenChain(fs afero.Fs, paths []string, opts ...Option) (*Chain, error) {
	archives := make([]*Archive, 0, len(paths))
	for _, path := range paths {
		archive, err := OpenFs(fs, path, opts...)
		if err != nil {
			for _, opened := range archives {
				_ = opened.Close()
			}
			return nil, errors.Wrapf(err, "open archive %s", path)
		}
		archives = append(archives, archive)
	}

	chain := &Chain{archives: archives}
	chain.rebuildFileMap()
	return chain, nil
}

// rebuildFileMap indexes every path to the highest-priority archive holding
// it. File listing keeps the spelling of the first archive that has it.
func (c *Chain) rebuildFileMap() {
	c.fileMap = make(map[string]int)
	c.files = nil

	for i, archive := range c.archives {
		for _, e := range archive.Entries() {
			key := normalizeEntryPath(e.Path)
			if _, seen := c.fileMap[key]; !seen {
				c.files = append(c.files, e.Path)
			}
			c.fileMap[key] = i
		}
	}
}

// Close closes all archives in the chain.
func (c *Chain) Close() error {
	var firstErr error
	for _, archive := range c.archives {
		if err := archive.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// resolve returns the archive that provides path.
func (c *Chain) resolve(path string) (*Archive, bool) {
	idx, ok := c.fileMap[normalizeEntryPath(path)]
	if !ok {
		return nil, false
	}
	return c.archives[idx], true
}

// Lookup returns the highest-priority record for path and the archive that
// holds it.
func (c *Chain) Lookup(path string) (*FileRecord, *Archive, bool) {
	archive, ok := c.resolve(path)
	if !ok {
		return nil, nil, false
	}
	rec, ok := archive.Lookup(path)
	return rec, archive, ok
}

// HasFile returns true if any archive contains the specified file.
func (c *Chain) HasFile(path string) bool {
	_, ok := c.resolve(path)
	return ok
}

// ReadFile returns the highest-priority version of a file.
func (c *Chain) ReadFile(path string) ([]byte, error) {
	archive, ok := c.resolve(path)
	if !ok {
		return nil, errors.Errorf("file not found in chain: %s", path)
	}
	return archive.ReadFile(path)
}

// ExtractFile extracts the highest-priority version of a file.
func (c *Chain) ExtractFile(path, destPath string) error {
	archive, ok := c.resolve(path)
	if !ok {
		return errors.Errorf("file not found in chain: %s", path)
	}
	return archive.ExtractFile(path, destPath)
}

// ListFiles returns the union of all archive entries. Each path appears once.
func (c *Chain) ListFiles() []string {
	return c.files
}

// ArchiveCount returns the number of archives in the chain.
func (c *Chain) ArchiveCount() int {
	return len(c.archives)
}
