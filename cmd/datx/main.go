// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// datx lists, draws and extracts the contents of Fallout DAT archives.
//
// Defaults for extraction come from the environment, optionally loaded
// from a .env file in the working directory:
//
//	DATX_JOBS    parallel extraction workers (default: number of CPUs)
//	DATX_OUTPUT  extraction directory (default: current directory)
//	DATX_DEBUG   any non-empty value enables debug logging
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	dat "github.com/suprsokr/go-dat"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: load .env: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if os.Getenv("DATX_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		printUsage(stdout)
		return errors.New("no command given")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "list":
		return runList(rest, stdout, logger)
	case "tree":
		return runTree(rest, stdout, logger)
	case "extract":
		return runExtract(ctx, rest, stdout, logger)
	case "cat":
		return runCat(rest, stdout, logger)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stdout)
		return errors.Errorf("unknown command %q", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `datx inspects Fallout DAT archives.

Usage:
  datx list [--long] <archive>
  datx tree <archive>
  datx extract [-o dir] [-j jobs] <archive> [paths...]
  datx cat <archive> <path>

Environment:
  DATX_JOBS    default for extract -j
  DATX_OUTPUT  default for extract -o
  DATX_DEBUG   enable debug logging
`)
}

// parseCommand parses a subcommand's flags and returns its positional
// arguments, requiring at least want of them.
func parseCommand(flagSet *pflag.FlagSet, args []string, want int) ([]string, error) {
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	positional := flagSet.Args()
	if len(positional) < want {
		return nil, errors.Errorf("%s: expected at least %d argument(s), got %d", flagSet.Name(), want, len(positional))
	}
	return positional, nil
}

func openArchive(path string, logger *slog.Logger) (*dat.Archive, error) {
	return dat.Open(path, dat.WithLogger(logger))
}

func runList(args []string, stdout io.Writer, logger *slog.Logger) error {
	var long bool
	flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
	flagSet.BoolVarP(&long, "long", "l", false, "show sizes and compression")

	positional, err := parseCommand(flagSet, args, 1)
	if err != nil {
		return err
	}

	archive, err := openArchive(positional[0], logger)
	if err != nil {
		return err
	}
	defer archive.Close()

	for _, e := range archive.Entries() {
		if !long {
			fmt.Fprintln(stdout, e.Path)
			continue
		}
		marker := "-"
		if e.Record.IsCompressed() {
			marker = "c"
		}
		fmt.Fprintf(stdout, "%s %10s %10s  %s\n",
			marker,
			humanize.Bytes(uint64(e.Record.DeclaredSize)),
			humanize.Bytes(uint64(e.Record.ArchivedRange.Len())),
			e.Path,
		)
	}
	return nil
}

func runTree(args []string, stdout io.Writer, logger *slog.Logger) error {
	flagSet := pflag.NewFlagSet("tree", pflag.ContinueOnError)
	positional, err := parseCommand(flagSet, args, 1)
	if err != nil {
		return err
	}

	archive, err := openArchive(positional[0], logger)
	if err != nil {
		return err
	}
	defer archive.Close()

	if archive.Root() == nil {
		return nil
	}
	return renderTree(stdout, archive.Root(), defaultTreeStyles())
}

func runExtract(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	var outDir string
	var jobs int
	flagSet := pflag.NewFlagSet("extract", pflag.ContinueOnError)
	flagSet.StringVarP(&outDir, "output", "o", envString("DATX_OUTPUT", "."), "destination directory")
	flagSet.IntVarP(&jobs, "jobs", "j", envInt("DATX_JOBS", runtime.NumCPU()), "parallel workers")

	positional, err := parseCommand(flagSet, args, 1)
	if err != nil {
		return err
	}

	archive, err := openArchive(positional[0], logger)
	if err != nil {
		return err
	}
	defer archive.Close()

	paths := positional[1:]
	if len(paths) == 0 {
		logger.Info("extracting archive",
			"archive", positional[0],
			"files", len(archive.Entries()),
			"output", outDir,
			"jobs", jobs,
		)
		return archive.ExtractAll(ctx, outDir, jobs)
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest, err := dat.DestinationPath(outDir, p)
		if err != nil {
			return err
		}
		if err := archive.ExtractFile(p, dest); err != nil {
			return err
		}
		fmt.Fprintln(stdout, dest)
	}
	return nil
}

func runCat(args []string, stdout io.Writer, logger *slog.Logger) error {
	flagSet := pflag.NewFlagSet("cat", pflag.ContinueOnError)
	positional, err := parseCommand(flagSet, args, 2)
	if err != nil {
		return err
	}

	archive, err := openArchive(positional[0], logger)
	if err != nil {
		return err
	}
	defer archive.Close()

	rec, ok := archive.Lookup(positional[1])
	if !ok {
		return errors.Errorf("file not found: %s", positional[1])
	}
	w := dat.NewBufferedWriter(stdout, 0)
	if _, err := archive.Extract(rec, w); err != nil {
		return errors.Wrapf(err, "extract %s", positional[1])
	}
	return w.Flush()
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
