package format

import (
	"iter"
	"slices"
	"strings"
)

// DefaultMaxLen is Discord's per-message content limit.
const DefaultMaxLen = 2000

// Chunks yields consecutive pieces of text, each at most maxLen runes long.
//
// A piece that would overflow is cut just after its last newline; a line
// longer than maxLen is hard-cut at exactly maxLen runes. Concatenating the
// pieces gives back text. maxLen <= 0 yields text as a single piece.
func Chunks(text string, maxLen int) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := text
		for rest != "" {
			n := len(rest)
			if maxLen > 0 {
				n = cutIndex(rest, maxLen)
			}
			if !yield(rest[:n]) {
				return
			}
			rest = rest[n:]
		}
	}
}

// SplitToChunks collects Chunks into a slice. It is empty iff text is empty.
func SplitToChunks(text string, maxLen int) []string {
	return slices.Collect(Chunks(text, maxLen))
}

// cutIndex returns the byte offset where the next chunk of s ends.
func cutIndex(s string, maxLen int) int {
	runes := 0
	end := -1
	for i := range s {
		if runes == maxLen {
			end = i
			break
		}
		runes++
	}
	if end < 0 {
		// The remainder fits.
		return len(s)
	}
	if nl := strings.LastIndexByte(s[:end], '\n'); nl >= 0 {
		return nl + 1
	}
	return end
}
