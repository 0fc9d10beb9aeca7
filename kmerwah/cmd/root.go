// Copyright © 2023-2026 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package cmd is the kmerwah command-line interface: count, histogram,
// find and plot subcommands driving the engine package.
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/iafan/cwalk"
	"github.com/mattn/go-colorable"
	homedir "github.com/mitchellh/go-homedir"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"

	"github.com/kmerwah/kmerwah/kmerwah/bin"
)

// VERSION is the kmerwah release version.
const VERSION = "0.1.0"

var log *logging.Logger

func init() {
	log = logging.MustGetLogger("kmerwah")
	logging.SetFormatter(logging.MustStringFormatter(
		`%{color}[%{level:.4s}]%{color:reset} %{message}`,
	))
	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	logging.SetBackend(backend)
}

// addLog duplicates log output to file, matching the teacher's
// --log/--verbose split: a file backend is added on top of stderr
// rather than replacing it.
func addLog(file string, verbose bool) *os.File {
	fh, err := os.Create(file)
	checkError(err)

	level := logging.INFO
	if !verbose {
		level = logging.WARNING
	}
	logging.SetLevel(level, "kmerwah")

	stderrBackend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	fileBackend := logging.NewLogBackend(io.MultiWriter(fh), "", 0)
	logging.SetBackend(stderrBackend, fileBackend)
	return fh
}

// checkError prints err and exits with status 1 if it is non-nil,
// matching the teacher's fail-fast CLI error handling.
func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// Options holds the global flags shared by every subcommand.
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool
}

func getOptions(cmd *cobra.Command) *Options {
	cfg := loadConfig(getFlagString(cmd, "config"))

	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 && !cmd.Flags().Changed("threads") && cfg.Threads > 0 {
		threads = cfg.Threads
	}
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs:  threads,
		Verbose:  !getFlagBool(cmd, "quiet"),
		LogFile:  logfile,
		Log2File: logfile != "",
	}
}

// RootCmd is the entry point cobra command; subcommands register
// themselves onto it from their own init().
var RootCmd = &cobra.Command{
	Use:   "kmerwah",
	Short: "Disk-backed k-mer counter for DNA sequences",
	Long: `kmerwah counts k-mers from FASTA/FASTQ sequences into a
disk-backed index, and answers histogram and point-lookup queries
against it without loading the full key set into memory.
`,
}

// Execute runs the CLI; main's only job is to call this.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		checkError(err)
	}
}

func init() {
	RootCmd.PersistentFlags().IntP("threads", "j", 0,
		formatFlagUsage("Number of CPUs to use. 0 means all available CPUs."))
	RootCmd.PersistentFlags().BoolP("quiet", "q", false,
		formatFlagUsage("Suppress progress and informational output."))
	RootCmd.PersistentFlags().StringP("log", "", "",
		formatFlagUsage("Also write log messages to this file."))
	RootCmd.PersistentFlags().StringP("config", "", "",
		formatFlagUsage("TOML config file overriding --threads defaults. Defaults to ~/.kmerwah.toml if present."))
}

// formatFlagUsage collapses a possibly multi-line usage string into one
// line, matching the teacher's flag-help formatting.
func formatFlagUsage(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func getFlagString(cmd *cobra.Command, flag string) string {
	v, err := cmd.Flags().GetString(flag)
	checkError(err)
	return v
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	v, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return v
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	v, err := cmd.Flags().GetInt(flag)
	checkError(err)
	return v
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	v := getFlagInt(cmd, flag)
	if v <= 0 {
		checkError(fmt.Errorf("value of flag --%s should be a positive integer", flag))
	}
	return v
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	v := getFlagInt(cmd, flag)
	if v < 0 {
		checkError(fmt.Errorf("value of flag --%s should be a non-negative integer", flag))
	}
	return v
}

func getFlagStringSlice(cmd *cobra.Command, flag string) []string {
	v, err := cmd.Flags().GetStringSlice(flag)
	checkError(err)
	return v
}

func getFlagInt64(cmd *cobra.Command, flag string) int64 {
	v, err := cmd.Flags().GetInt64(flag)
	checkError(err)
	return v
}

var reIgnoreCase = regexp.MustCompile(`^\(\?i\)`)

const reIgnoreCaseStr = "(?i)"

// parseMode maps a --mode flag value to its bin.Mode, exiting on an
// unrecognized value.
func parseMode(s string) bin.Mode {
	switch s {
	case "raw":
		return bin.RAW
	case "canonical":
		return bin.CANONICAL
	case "both":
		return bin.BOTH
	default:
		checkError(fmt.Errorf("flag --mode must be one of raw, canonical, both, got %q", s))
		return bin.RAW
	}
}

// isStdin reports whether file names the "read from stdin" sentinel.
func isStdin(file string) bool {
	return file == "-"
}

// makeOutDir creates outDir, removing any existing contents first when
// force is set, matching the teacher's out-dir lifecycle.
func makeOutDir(outDir string, force bool) {
	pwd, _ := os.Getwd()
	if outDir == "" || outDir == "." || outDir == "./" || pwd == filepath.Clean(outDir) {
		checkError(fmt.Errorf("out-dir should not be the current directory"))
	}

	existed, err := pathutil.DirExists(outDir)
	checkError(errors.Wrapf(err, "checking out-dir %s", outDir))
	if existed {
		empty, err := pathutil.IsEmpty(outDir)
		checkError(errors.Wrapf(err, "checking out-dir %s", outDir))
		if !empty {
			if !force {
				checkError(fmt.Errorf("out-dir %s not empty, use --force to overwrite", outDir))
			}
			checkError(os.RemoveAll(outDir))
		} else {
			checkError(os.RemoveAll(outDir))
		}
	}
	checkError(os.MkdirAll(outDir, 0755))
}

// getFileListFromDir walks dir (following symlinks, concurrently across
// threads workers) and collects every file whose base name matches re.
func getFileListFromDir(dir string, re *regexp.Regexp, threads int) ([]string, error) {
	var files []string
	var mu sync.Mutex

	cwalk.NumWorkers = threads
	err := cwalk.WalkWithSymlinks(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && re.MatchString(info.Name()) {
			mu.Lock()
			files = append(files, filepath.Join(dir, path))
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking directory %s", dir)
	}
	return files, nil
}

// compileFileRegexp is a case-insensitive convenience wrapper used by
// --file-regexp flags: the (?i) prefix is added unless it's already
// there.
func compileFileRegexp(pattern string) *regexp.Regexp {
	if !reIgnoreCase.MatchString(pattern) {
		pattern = reIgnoreCaseStr + pattern
	}
	re, err := regexp.Compile(pattern)
	checkError(errors.Wrapf(err, "compiling --file-regexp %q", pattern))
	return re
}

// config holds the subset of persistent flag defaults that can be
// overridden from a TOML config file (~/.kmerwah.toml by default), the
// way the teacher's own tools let a user pin --threads/--max-mem once
// instead of repeating it on every invocation.
type config struct {
	Threads int   `toml:"threads"`
	MaxMem  int64 `toml:"max_mem"`
}

// loadConfig reads path (or ~/.kmerwah.toml if path is empty) if it
// exists; a missing file is not an error, since the config is optional.
func loadConfig(path string) config {
	var cfg config
	if path == "" {
		home, err := homedir.Dir()
		if err != nil {
			return cfg
		}
		path = filepath.Join(home, ".kmerwah.toml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	checkError(errors.Wrapf(toml.Unmarshal(data, &cfg), "parsing config file %s", path))
	return cfg
}
