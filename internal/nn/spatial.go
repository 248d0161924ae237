package nn

import (
	"fmt"
	"strings"
)

// Padding modes for windowed layers.
const (
	PaddingValid = "valid"
	PaddingSame  = "same"
)

// ParsePadding normalises a padding id.
func ParsePadding(p string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(p)); v {
	case PaddingValid, PaddingSame:
		return v, nil
	}
	return "", fmt.Errorf("padding must be 'valid' or 'same', got %q", p)
}

// WindowOutput returns the output length of a window of size k sliding with
// stride s over n positions, and the padding inserted before the first one.
// A non-positive output length means the window does not fit.
func WindowOutput(n, k, s int, padding string) (out, before int) {
	if padding == PaddingSame {
		out = (n + s - 1) / s
		total := max((out-1)*s+k-n, 0)
		return out, total / 2
	}
	if n < k {
		return 0, 0
	}
	return (n-k)/s + 1, 0
}
