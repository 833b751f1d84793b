package budget

import (
	"fmt"
	"unicode/utf8"
)

// headPercent is the share of the kept characters taken from the start of the
// text; the remainder comes from the end.
const headPercent = 60

// Clamp shortens s to at most maxChars bytes. When s is too long, the first
// 60% and last 40% of the kept budget are preserved and the excised middle is
// replaced by a single marker line naming the original and clamped lengths.
//
// Cuts never split a multi-byte UTF-8 sequence, so the result may be a few
// bytes shorter than maxChars. Clamp is idempotent: a clamped string already
// fits its ceiling and is returned unchanged.
func Clamp(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	if maxChars <= 0 {
		return ""
	}

	marker := fmt.Sprintf("\n[... truncated %d chars to %d ...]\n", len(s), maxChars)
	if len(marker) >= maxChars {
		// Ceiling too small for a marker: keep the head only.
		return s[:cutBack(s, maxChars)]
	}

	keep := maxChars - len(marker)
	head := keep * headPercent / 100
	tail := keep - head

	return s[:cutBack(s, head)] + marker + s[cutForward(s, len(s)-tail):]
}

// cutBack moves i backwards to the nearest rune start so s[:i] stays valid UTF-8.
func cutBack(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// cutForward moves i forwards to the nearest rune start so s[i:] stays valid UTF-8.
func cutForward(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
