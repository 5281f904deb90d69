package slidingwindow

import (
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/window-average-service/pkg/source"
)

// Outcome is the result of one successful Update.
type Outcome struct {
	Category     source.Category `json:"category"`
	WindowBefore []int64         `json:"windowPrevState"`
	WindowAfter  []int64         `json:"windowCurrState"`
	Fetched      []int64         `json:"numbers"`
	Average      float64         `json:"avg"`
	Elapsed      time.Duration   `json:"-"`
	ElapsedMs    int64           `json:"elapsedMs"`
}

// FetchError reports that the gateway failed or missed its deadline. The
// window is unchanged whenever Update returns a FetchError.
type FetchError struct {
	Category source.Category
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s numbers: %v", e.Category.Name(), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a missed deadline.
func (e *FetchError) Timeout() bool {
	return errors.Is(e.Err, source.ErrTimeout)
}
