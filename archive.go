// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package dat

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Entry is a file of the archive together with its full path.
type Entry struct {
	Path   string // backslash separated, without the leading `.\`
	Record *FileRecord
}

// Option configures an Archive.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	readWindow     int
	writeThreshold int
	outputFs       afero.Fs
}

// WithLogger sets the logger used for debug output. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithReadWindow sets the read-ahead window of the archive's readers.
func WithReadWindow(size int) Option {
	return func(o *options) { o.readWindow = size }
}

// WithWriteThreshold sets how many bytes extraction buffers before writing.
func WithWriteThreshold(size int) Option {
	return func(o *options) { o.writeThreshold = size }
}

// WithOutputFs sets the filesystem extracted files are written to. By
// default it is the filesystem the archive was opened from.
func WithOutputFs(fs afero.Fs) Option {
	return func(o *options) { o.outputFs = fs }
}

// Archive is an opened DAT container.
//
// The directory tree is parsed once by Open and never changes afterwards.
// Lookups and ExtractAll may be used from several goroutines; Extract,
// ReadFile and ExtractFile share one reader and must not be called
// concurrently.
type Archive struct {
	fs     afero.Fs
	path   string
	reader *FileReader
	root   *DirectoryNode
	index  map[string]*FileRecord
	order  []Entry
	opts   options
}

// Open opens an archive on the OS filesystem.
func Open(path string, opts ...Option) (*Archive, error) {
	return OpenFs(afero.NewOsFs(), path, opts...)
}

// OpenFs opens an archive stored on fs and parses its directory index.
func OpenFs(fs afero.Fs, path string, opts ...Option) (*Archive, error) {
	o := options{
		logger:         slog.New(slog.DiscardHandler),
		readWindow:     DefaultReadWindow,
		writeThreshold: DefaultWriteThreshold,
		outputFs:       fs,
	}
	for _, opt := range opts {
		opt(&o)
	}

	reader, err := OpenFileReader(fs, path, o.readWindow)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}

	root, err := Parse(reader)
	if err != nil {
		reader.Close()
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	a := &Archive{
		fs:     fs,
		path:   path,
		reader: reader,
		root:   root,
		index:  make(map[string]*FileRecord),
		opts:   o,
	}
	a.buildIndex()

	o.logger.Debug("opened archive",
		"path", path,
		"size", reader.Size(),
		"files", len(a.order),
	)
	return a, nil
}

// buildIndex records every file under its normalized path, walking the tree
// with one path component per depth. When several records share a path the
// first one wins, and only it is listed in Entries.
func (a *Archive) buildIndex() {
	if a.root == nil {
		return
	}
	var dirs []string
	for step := range a.root.Walk() {
		dirs = append(dirs[:step.Depth], step.Node.Name)
		prefix := strings.Join(dirs[1:], pathSeparator)
		for i := range step.Node.Files {
			rec := &step.Node.Files[i]
			p := rec.Name
			if prefix != "" {
				p = prefix + pathSeparator + rec.Name
			}
			key := normalizeEntryPath(p)
			if _, dup := a.index[key]; dup {
				a.opts.logger.Debug("duplicate entry ignored", "path", p)
				continue
			}
			a.index[key] = rec
			a.order = append(a.order, Entry{Path: p, Record: rec})
		}
	}
}

// normalizeEntryPath maps a lookup path to its index key. Lookups accept
// either separator, ignore case and tolerate a leading `.\`.
func normalizeEntryPath(p string) string {
	normalized := strings.ReplaceAll(p, "/", pathSeparator)
	normalized = strings.TrimPrefix(normalized, rootPrefix)
	normalized = strings.TrimLeft(normalized, pathSeparator)
	for strings.Contains(normalized, pathSeparator+pathSeparator) {
		normalized = strings.ReplaceAll(normalized, pathSeparator+pathSeparator, pathSeparator)
	}
	return strings.ToUpper(normalized)
}

// Path returns the location the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Root returns the directory tree, or nil for an archive without directories.
func (a *Archive) Root() *DirectoryNode {
	return a.root
}

// Entries returns every distinct file path in tree order.
func (a *Archive) Entries() []Entry {
	return a.order
}

// Lookup returns the record stored under path.
func (a *Archive) Lookup(path string) (*FileRecord, bool) {
	rec, ok := a.index[normalizeEntryPath(path)]
	return rec, ok
}

// HasFile returns true if the archive contains the specified file.
func (a *Archive) HasFile(path string) bool {
	_, ok := a.Lookup(path)
	return ok
}

// Extract decodes rec into w using the archive's own reader.
func (a *Archive) Extract(rec *FileRecord, w Writer) (int, error) {
	a.opts.logger.Debug("extracting",
		"name", rec.Name,
		"size", rec.DeclaredSize,
		"range", rec.ArchivedRange.String(),
		"compressed", rec.IsCompressed(),
	)
	return Extract(a.reader, rec, w)
}

// ReadFile returns the content of the file at path.
func (a *Archive) ReadFile(path string) ([]byte, error) {
	rec, ok := a.Lookup(path)
	if !ok {
		return nil, errors.Errorf("file not found: %s", path)
	}
	w := &MemoryWriter{Bytes: make([]byte, 0, rec.DeclaredSize)}
	if _, err := a.Extract(rec, w); err != nil {
		return nil, errors.Wrapf(err, "extract %s", path)
	}
	return w.Bytes, nil
}

// ExtractFile extracts the file at path to destPath on the output
// filesystem, creating parent directories as needed.
func (a *Archive) ExtractFile(path, destPath string) error {
	rec, ok := a.Lookup(path)
	if !ok {
		return errors.Errorf("file not found: %s", path)
	}
	return errors.Wrapf(a.extractTo(a.reader, rec, destPath), "extract %s", path)
}

func (a *Archive) extractTo(r Reader, rec *FileRecord, destPath string) error {
	w, err := CreateBufferedWriter(a.opts.outputFs, destPath, a.opts.writeThreshold)
	if err != nil {
		return err
	}
	if _, err := Extract(r, rec, w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "write %s", destPath)
	}
	return nil
}

// ExtractAll extracts every file below destDir, mirroring the archive's
// directory layout. Up to workers files are extracted at once, each with
// its own reader; workers < 1 means one. The first failure cancels the
// remaining work and is returned.
func (a *Archive) ExtractAll(ctx context.Context, destDir string, workers int) error {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan Entry)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for _, e := range a.order {
			select {
			case jobs <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			reader, err := OpenFileReader(a.fs, a.path, a.opts.readWindow)
			if err != nil {
				return err
			}
			defer reader.Close()

			for e := range jobs {
				if err := ctx.Err(); err != nil {
					return err
				}
				dest, err := DestinationPath(destDir, e.Path)
				if err != nil {
					return err
				}
				if err := a.extractTo(reader, e.Record, dest); err != nil {
					return errors.Wrapf(err, "extract %s", e.Path)
				}
				a.opts.logger.Debug("extracted", "path", e.Path, "dest", dest)
			}
			return nil
		})
	}

	return g.Wait()
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.reader == nil {
		return nil
	}
	return a.reader.Close()
}

// DestinationPath maps an archive path below destDir, refusing paths that
// would land outside it.
func DestinationPath(destDir, entryPath string) (string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(entryPath, pathSeparator, "/"))
	dest := filepath.Join(destDir, rel)
	if r, err := filepath.Rel(destDir, dest); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("entry %s escapes %s", entryPath, destDir)
	}
	return dest, nil
}

// parentDir returns the directory part of name, or "" when there is none.
func parentDir(name string) string {
	dir := filepath.Dir(name)
	if dir == "." || dir == name {
		return ""
	}
	return dir
}
