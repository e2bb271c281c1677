// Command jackc compiles one or more Jack source files (or directories
// of them) to VM bytecode. Each file is compiled independently; a
// failure in one file does not stop the others, but the process exits
// non-zero if any file failed.
package main

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/libklein/jackc/internal/codegen"
	"github.com/libklein/jackc/internal/compiler"
	"github.com/libklein/jackc/internal/lexer"
)

var verbose bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "jackc <path> [path ...]",
		Short:        "Compile Jack source files into VM bytecode",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return compileAll(args)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging, including symbol declarations")
	return cmd
}

// compileAll expands each argument (file or directory) and compiles
// every .jack file found, independently and sequentially -- no
// concurrency, fresh per-file state. Every failure is logged and
// accumulated; the final error reflects whether *any* file failed,
// without suppressing the others.
func compileAll(paths []string) error {
	var failures *multierror.Error

	for _, path := range paths {
		files, err := collectFiles(path)
		if err != nil {
			logrus.Errorf("%s: %v", path, err)
			failures = multierror.Append(failures, err)
			continue
		}
		for _, file := range files {
			logrus.Infof("compiling %s", file)
			out, err := compileFile(file)
			if err != nil {
				logrus.Errorf("%s: %v", file, err)
				failures = multierror.Append(failures, errors.Wrap(err, file))
				continue
			}
			logrus.Infof("wrote %s", out)
		}
	}

	return failures.ErrorOrNil()
}

// collectFiles expands fileOrDir into the list of .jack files to
// compile: itself if it's a regular file with a .jack extension (a
// directory is walked non-recursively), or every *.jack entry of it if
// it's a directory.
func collectFiles(fileOrDir string) ([]string, error) {
	info, err := os.Stat(fileOrDir)
	if err != nil {
		return nil, compiler.NewIOError(fileOrDir, err)
	}

	if !info.IsDir() {
		if filepath.Ext(fileOrDir) != ".jack" {
			logrus.Warnf("%s: not a .jack file, skipping", fileOrDir)
			return nil, nil
		}
		return []string{fileOrDir}, nil
	}

	entries, err := os.ReadDir(fileOrDir)
	if err != nil {
		return nil, compiler.NewIOError(fileOrDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".jack" {
			files = append(files, filepath.Join(fileOrDir, entry.Name()))
		}
	}
	if len(files) == 0 {
		logrus.Warnf("%s: no .jack files found", fileOrDir)
	}
	return files, nil
}

func outputPathFor(jackPath string) string {
	ext := filepath.Ext(jackPath)
	return jackPath[:len(jackPath)-len(ext)] + ".vm"
}

// compileFile compiles one Jack file and writes its VM output beside
// it. Input and output handles are scoped to this call and released
// before returning.
func compileFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", compiler.NewIOError(path, err)
	}
	defer in.Close()

	tokenizer := lexer.New(in)
	sink := codegen.New()
	comp := compiler.New(tokenizer, sink)

	if err := comp.Compile(); err != nil {
		return "", err
	}

	outPath := outputPathFor(path)
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", compiler.NewIOError(outPath, err)
	}
	defer out.Close()

	if err := sink.Flush(out); err != nil {
		return "", compiler.NewIOError(outPath, err)
	}
	return outPath, nil
}
