package market

import "math"

// Valid reports whether p is a finite, strictly positive price.
func Valid(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
