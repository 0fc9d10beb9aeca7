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

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/kmerwah/kmerwah/kmerwah/engine"
	"github.com/kmerwah/kmerwah/kmerwah/histplot"
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render an index's k-mer frequency histogram as a PNG",
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		dbDir := getFlagString(cmd, "index")
		k := getFlagPositiveInt(cmd, "kmer")
		mode := parseMode(getFlagString(cmd, "mode"))
		outFile := getFlagString(cmd, "out-file")
		title := getFlagString(cmd, "title")

		e, err := engine.New(k, opt.NumCPUs, dbDir, mode)
		checkError(err)
		checkError(e.Load())

		hist, err := e.Histogram()
		checkError(err)
		if len(hist) == 0 {
			checkError(fmt.Errorf("index %s has no k-mers to plot", dbDir))
		}

		points := make([]histplot.Point, len(hist))
		for i, f := range hist {
			points[i] = histplot.Point{F: f.F, N: f.N}
		}

		checkError(histplot.Render(points, title, outFile, 6*vg.Inch, 4*vg.Inch))
		if opt.Verbose {
			log.Infof("histogram plot saved: %s", outFile)
		}
	},
}

func init() {
	RootCmd.AddCommand(plotCmd)

	plotCmd.Flags().StringP("index", "d", "",
		formatFlagUsage("Index directory produced by 'kmerwah count'. Required."))
	plotCmd.Flags().IntP("kmer", "k", 21,
		formatFlagUsage("K-mer length the index was built with."))
	plotCmd.Flags().StringP("mode", "M", "canonical",
		formatFlagUsage("Strand mode the index was built with: raw, canonical, or both."))
	plotCmd.Flags().StringP("out-file", "o", "histogram.png",
		formatFlagUsage("Output PNG file."))
	plotCmd.Flags().StringP("title", "t", "k-mer frequency histogram",
		formatFlagUsage("Plot title."))
}
