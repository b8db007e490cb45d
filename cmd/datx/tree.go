// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	dat "github.com/suprsokr/go-dat"
)

const (
	branchConnector = "├── "
	lastConnector   = "└── "
	pipeIndent      = "│   "
	blankIndent     = "    "
)

type treeStyles struct {
	connector lipgloss.Style
	directory lipgloss.Style
	count     lipgloss.Style
}

func defaultTreeStyles() treeStyles {
	return treeStyles{
		connector: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		directory: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		count:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func plainTreeStyles() treeStyles {
	return treeStyles{
		connector: lipgloss.NewStyle(),
		directory: lipgloss.NewStyle(),
		count:     lipgloss.NewStyle(),
	}
}

// renderTree draws one directory per line. Indentation for each ancestor
// depends only on whether that ancestor was the last of its siblings.
func renderTree(w io.Writer, root *dat.DirectoryNode, styles treeStyles) error {
	var lastAt []bool
	var line strings.Builder

	it := dat.NewTreeIterator(root)
	for {
		step, ok := it.Next()
		if !ok {
			return nil
		}
		lastAt = append(lastAt[:step.Depth], step.IsLast)

		line.Reset()
		for d := 1; d < step.Depth; d++ {
			if lastAt[d] {
				line.WriteString(styles.connector.Render(blankIndent))
			} else {
				line.WriteString(styles.connector.Render(pipeIndent))
			}
		}
		if step.Depth > 0 {
			if step.IsLast {
				line.WriteString(styles.connector.Render(lastConnector))
			} else {
				line.WriteString(styles.connector.Render(branchConnector))
			}
		}
		line.WriteString(styles.directory.Render(step.Node.Name))
		if n := len(step.Node.Files); n > 0 {
			line.WriteString(" ")
			line.WriteString(styles.count.Render(fileCount(n)))
		}

		if _, err := fmt.Fprintln(w, line.String()); err != nil {
			return err
		}
	}
}

func fileCount(n int) string {
	if n == 1 {
		return "(1 file)"
	}
	return fmt.Sprintf("(%d files)", n)
}
