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
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmerwah/kmerwah/kmerwah/engine"
)

var histogramCmd = &cobra.Command{
	Use:   "histogram",
	Short: "Print the (frequency, distinct k-mer count) histogram of an index",
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		dbDir := getFlagString(cmd, "index")
		k := getFlagPositiveInt(cmd, "kmer")
		outFile := getFlagString(cmd, "out-file")
		mode := parseMode(getFlagString(cmd, "mode"))

		e, err := engine.New(k, opt.NumCPUs, dbDir, mode)
		checkError(err)
		checkError(e.Load())

		hist, err := e.Histogram()
		checkError(err)

		var w *bufio.Writer
		if outFile == "" || outFile == "-" {
			w = bufio.NewWriter(os.Stdout)
		} else {
			fh, err := os.Create(outFile)
			checkError(err)
			defer fh.Close()
			w = bufio.NewWriter(fh)
		}
		defer w.Flush()

		fmt.Fprintln(w, "frequency\tdistinct_kmers")
		for _, f := range hist {
			fmt.Fprintf(w, "%d\t%d\n", f.F, f.N)
		}
	},
}

func init() {
	RootCmd.AddCommand(histogramCmd)

	histogramCmd.Flags().StringP("index", "d", "",
		formatFlagUsage("Index directory produced by 'kmerwah count'. Required."))
	histogramCmd.Flags().IntP("kmer", "k", 21,
		formatFlagUsage("K-mer length the index was built with."))
	histogramCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage("Output file, or '-' for stdout."))
	histogramCmd.Flags().StringP("mode", "M", "canonical",
		formatFlagUsage("Strand mode the index was built with: raw, canonical, or both."))
}
