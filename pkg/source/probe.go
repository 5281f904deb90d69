package source

import (
	"context"
	"time"
)

// probeSampleSize caps how many numbers a probe reports back.
const probeSampleSize = 5

// ProbeResult reports whether a feed answered within its deadline.
type ProbeResult struct {
	Category  Category      `json:"category"`
	Success   bool          `json:"success"`
	Elapsed   time.Duration `json:"-"`
	ElapsedMs int64         `json:"responseTimeMs"`
	Sample    []int64       `json:"numbers,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// Probe fetches one batch from gw bounded by deadline and reports the result.
// It never touches a window.
func Probe(ctx context.Context, gw Gateway, c Category, deadline time.Duration) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	nums, err := gw.FetchBatch(ctx, c)
	elapsed := time.Since(start)

	res := ProbeResult{
		Category:  c,
		Elapsed:   elapsed,
		ElapsedMs: elapsed.Milliseconds(),
	}
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Success = true
	res.Sample = append([]int64{}, nums[:min(len(nums), probeSampleSize)]...)
	return res
}
