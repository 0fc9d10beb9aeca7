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
	"strings"

	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"

	"github.com/kmerwah/kmerwah/kmerwah/engine"
)

var findCmd = &cobra.Command{
	Use:   "find [k-mer]...",
	Short: "Look up the occurrence count of one or more k-mers in an index",
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		dbDir := getFlagString(cmd, "index")
		k := getFlagPositiveInt(cmd, "kmer")
		mode := parseMode(getFlagString(cmd, "mode"))
		queryFile := getFlagString(cmd, "kmer-file")

		queries := append([]string{}, args...)
		if queryFile != "" {
			fh, err := xopen.Ropen(queryFile)
			checkError(err)
			scanner := bufio.NewScanner(fh)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line != "" {
					queries = append(queries, line)
				}
			}
			checkError(scanner.Err())
			fh.Close()
		}
		if len(queries) == 0 {
			checkError(fmt.Errorf("at least one k-mer to look up is required, via positional arguments or --kmer-file"))
		}

		e, err := engine.New(k, opt.NumCPUs, dbDir, mode)
		checkError(err)
		checkError(e.Load())

		for _, query := range queries {
			f, err := e.Find(strings.ToUpper(query))
			checkError(err)
			fmt.Printf("%s\t%d\n", query, f)
		}
	},
}

func init() {
	RootCmd.AddCommand(findCmd)

	findCmd.Flags().StringP("index", "d", "",
		formatFlagUsage("Index directory produced by 'kmerwah count'. Required."))
	findCmd.Flags().IntP("kmer", "k", 21,
		formatFlagUsage("K-mer length the index was built with."))
	findCmd.Flags().StringP("mode", "M", "canonical",
		formatFlagUsage("Strand mode the index was built with: raw, canonical, or both."))
	findCmd.Flags().StringP("kmer-file", "K", "",
		formatFlagUsage("Also read k-mer queries from this file, one per line. May be gzipped."))
}
