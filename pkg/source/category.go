package source

import (
	"fmt"
	"strings"
)

// Category selects which number feed a batch is fetched from.
type Category string

const (
	Prime     Category = "p"
	Fibonacci Category = "f"
	Even      Category = "e"
	Random    Category = "r"
)

// Categories lists every known category in display order.
var Categories = []Category{Prime, Fibonacci, Even, Random}

var (
	categoryNames = map[Category]string{
		Prime:     "prime",
		Fibonacci: "fibonacci",
		Even:      "even",
		Random:    "random",
	}
	// Upstream path segment per category.
	categoryPaths = map[Category]string{
		Prime:     "primes",
		Fibonacci: "fibo",
		Even:      "even",
		Random:    "rand",
	}
)

// ParseCategory accepts either the single letter code or the long name.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range categoryNames {
		if s == string(c) || s == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// Name returns the long name of the category, e.g. "prime".
func (c Category) Name() string {
	return categoryNames[c]
}

// Path returns the upstream path segment for the category, e.g. "primes".
func (c Category) Path() string {
	return categoryPaths[c]
}

func (c Category) String() string {
	return string(c)
}
