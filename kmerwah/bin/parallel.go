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

package bin

import (
	"fmt"
	"sync"
)

// ForEachBin partitions the NumBins bins into threads contiguous ranges
// and runs fn over each bin, joining before returning, matching the
// fixed-worker-pool-with-bin-range-tasks-and-join-barrier scheduling
// model: no cross-bin communication, so no synchronization is needed
// inside fn beyond what the caller's own per-bin state requires.
func ForEachBin(threads int, fn func(bin int) error) error {
	if threads < 1 {
		threads = 1
	}
	binsPerWorker := (NumBins + threads - 1) / threads

	var wg sync.WaitGroup
	errs := make([]error, NumBins)

	for t := 0; t < threads; t++ {
		start := t * binsPerWorker
		if start >= NumBins {
			break
		}
		end := start + binsPerWorker
		if end > NumBins {
			end = NumBins
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for b := start; b < end; b++ {
				if err := fn(b); err != nil {
					errs[b] = err
				}
			}
		}(start, end)
	}
	wg.Wait()

	for b, err := range errs {
		if err != nil {
			return fmt.Errorf("bin %d: %w", b, err)
		}
	}
	return nil
}
