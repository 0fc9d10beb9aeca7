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

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/kmerwah/kmerwah/kmerwah/engine"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count k-mers from FASTA/FASTQ files into a disk-backed index",
	Long: `Count k-mers from FASTA/FASTQ files into a disk-backed index

Every file is streamed record by record; each record's sequence is fed
to the engine, which spills hash-partitioned bins to disk whenever one
fills and merges them all into the final index on completion.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
			defer fhLog.Close()
		}
		timeStart := time.Now()

		k := getFlagPositiveInt(cmd, "kmer")
		if k < 1 || k > 256 {
			checkError(fmt.Errorf("flag -k/--kmer should be in [1, 256]"))
		}
		outDir := getFlagString(cmd, "out-dir")
		force := getFlagBool(cmd, "force")
		maxMem := getFlagInt64(cmd, "max-mem")
		if cfg := loadConfig(getFlagString(cmd, "config")); cfg.MaxMem > 0 && !cmd.Flags().Changed("max-mem") {
			maxMem = cfg.MaxMem
		}
		mode := parseMode(getFlagString(cmd, "mode"))
		inDir := getFlagString(cmd, "in-dir")
		fileRegexp := getFlagString(cmd, "file-regexp")

		files := append([]string{}, args...)
		if inDir != "" {
			found, err := getFileListFromDir(inDir, compileFileRegexp(fileRegexp), opt.NumCPUs)
			checkError(err)
			files = append(files, found...)
		}
		if len(files) == 0 {
			checkError(fmt.Errorf("at least one FASTA/Q file is required, via positional arguments or --in-dir"))
		}
		makeOutDir(outDir, force)

		e, err := engine.New(k, opt.NumCPUs, outDir, mode)
		checkError(err)
		if opt.Verbose {
			e.Progress = func(event string, n, total int) {
				log.Infof("%s (%d/%d)", event, n, total)
			}
		}
		checkError(e.Allocate(maxMem))

		var pbs *mpb.Progress
		var bar *mpb.Bar
		if opt.Verbose {
			pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
			bar = pbs.AddBar(int64(len(files)),
				mpb.PrependDecorators(
					decor.Name("counting files: ", decor.WC{W: len("counting files: "), C: decor.DindentRight}),
					decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(decor.Elapsed(decor.ET_STYLE_GO)),
			)
		}

		for _, file := range files {
			fastxReader, err := fastx.NewReader(nil, file, "")
			checkError(err)

			var record *fastx.Record
			for {
				record, err = fastxReader.Read()
				if err != nil {
					if err == io.EOF {
						break
					}
					checkError(fmt.Errorf("reading %s: %s", file, err))
				}
				checkError(e.AddSequence(record.Seq.Seq))
			}
			fastxReader.Close()
			if bar != nil {
				bar.Increment()
			}
		}
		if pbs != nil {
			pbs.Wait()
		}

		if opt.Verbose {
			log.Infof("merging spilled batches and writing final index ...")
		}
		checkError(e.Save())

		if opt.Verbose {
			log.Infof("counted k-mers from %d file(s) in %s", len(files), time.Since(timeStart))
			log.Infof("index saved: %s", outDir)
		}
	},
}

func init() {
	RootCmd.AddCommand(countCmd)

	countCmd.Flags().IntP("kmer", "k", 21,
		formatFlagUsage("K-mer length."))
	countCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage("Output directory for the index. Required."))
	countCmd.Flags().BoolP("force", "f", false,
		formatFlagUsage("Overwrite out-dir if it already exists."))
	countCmd.Flags().Int64P("max-mem", "m", 1<<30,
		formatFlagUsage("Approximate in-memory budget in bytes before a bin spills to disk."))
	countCmd.Flags().StringP("mode", "M", "canonical",
		formatFlagUsage("Strand mode: raw, canonical, or both."))
	countCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage("Also collect FASTA/Q files by walking this directory."))
	countCmd.Flags().StringP("file-regexp", "r", `\.(fa|fasta|fq|fastq)(\.gz)?$`,
		formatFlagUsage("Regular expression file names must match when using --in-dir."))
}
