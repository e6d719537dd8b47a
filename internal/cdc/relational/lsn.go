// Package relational implements log-based CDC against a relational
// engine that exposes changes through a server-side table-valued
// function, addressed by an opaque, bytewise-comparable log sequence
// number (SQL Server change-tracking/CDC style).
package relational

// LSN is an opaque log sequence number. Positions are compared
// bytewise-unsigned; a nil LSN compares less than any non-nil LSN and
// equal to another nil LSN.
type LSN []byte

// Compare returns -1, 0, or 1 comparing a and b bytewise-unsigned, with
// nil ordered before every non-nil value.
func Compare(a, b LSN) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
