// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

/*
Package dat provides pure Go support for reading DAT archives.

DAT is the archive container of Fallout 1 era games: a big-endian directory
index followed by file contents, some of them compressed with a variant of
LZSS. This package rebuilds the directory tree, locates each entry and
extracts it byte for byte.

# Features

  - Directory tree parsing with strict failure semantics
  - Pre-order tree walking without recursion
  - LZSS decoding compatible with the original game tools
  - Buffered, range-addressable readers over any afero filesystem
  - Parallel extraction of whole archives
  - Patch chains where later archives override earlier ones

# Basic Usage

Reading an archive:

	archive, err := dat.Open("master.dat")
	if err != nil {
		log.Fatal(err)
	}
	defer archive.Close()

	if archive.HasFile("art\\intrface\\iface.frm") {
		err = archive.ExtractFile("art\\intrface\\iface.frm", "out/iface.frm")
		if err != nil {
			log.Fatal(err)
		}
	}

Walking the directory tree:

	for step := range archive.Root().Walk() {
		fmt.Println(strings.Repeat("  ", step.Depth) + step.Node.Name)
	}

# Lower-level API

[Parse] and [Extract] work on the [Reader] and [Writer] capabilities rather
than files, so a container can come from memory ([BytesReader]) or anything
implementing io.ReaderAt ([FileReader]).

	root, err := dat.Parse(dat.BytesReader(image))
	...
	var out dat.MemoryWriter
	_, err = dat.Extract(dat.BytesReader(image), rec, &out)

# Path Conventions

DAT archives use backslash (\) as the path separator and the root directory
is stored as ".". Lookups accept forward slashes, ignore case and tolerate a
leading ".\":

	archive.HasFile("ART\\INTRFACE\\IFACE.FRM")  // Native form
	archive.HasFile("art/intrface/iface.frm")    // Also works

# Limitations

  - Read only: no compression and no archive modification
  - The later DAT2 format is not supported
*/
package dat
