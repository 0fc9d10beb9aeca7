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

// Package histplot renders a k-mer frequency histogram as a log-log PNG
// plot: x is the occurrence frequency f, y is the number of distinct
// k-mers n_f observed exactly f times.
package histplot

import (
	"errors"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrEmptyHistogram is returned when there is nothing to plot.
var ErrEmptyHistogram = errors.New("histplot: empty histogram")

// Point is one (frequency, distinct-count) histogram bar.
type Point struct {
	F uint32
	N uint32
}

// Render draws points as a log-log scatter-and-line plot and writes it
// to path at the given width and height (vg.Length); the image format is
// chosen from path's extension (PNG for ".png").
func Render(points []Point, title, path string, width, height vg.Length) error {
	if len(points) == 0 {
		return ErrEmptyHistogram
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "frequency (f)"
	p.Y.Label.Text = "distinct k-mers (n_f)"
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{}
	p.Y.Tick.Marker = plot.LogTicks{}

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = math.Max(float64(pt.F), 1)
		xys[i].Y = math.Max(float64(pt.N), 1)
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	p.Add(line, scatter)
	p.Add(plotter.NewGrid())

	return p.Save(width, height, path)
}
