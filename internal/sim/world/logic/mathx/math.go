// Package mathx has small integer helpers for grid math.
package mathx

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// CeilDiv divides rounding toward positive infinity. b must be positive.
func CeilDiv(a, b int) int {
	q := a / b
	if a%b > 0 {
		q++
	}
	return q
}
