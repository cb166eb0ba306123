package debounce

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Text is an append-only buffer of typed characters that supports removing
// the last user-perceived character. A character is a grapheme cluster, so
// deleting after "é" or an emoji never leaves a dangling code point.
type Text struct {
	s string
}

// String returns the buffer contents.
func (t *Text) String() string {
	return t.s
}

// Len returns the number of characters in the buffer.
func (t *Text) Len() int {
	return uniseg.GraphemeClusterCount(t.s)
}

// Empty reports whether the buffer holds no characters.
func (t *Text) Empty() bool {
	return t.s == ""
}

// Append adds s to the end of the buffer.
func (t *Text) Append(s string) {
	t.s += s
}

// DeleteLast removes the last character. It returns false if the buffer
// was already empty.
func (t *Text) DeleteLast() bool {
	if t.s == "" {
		return false
	}

	last := 0
	state := -1
	rest := t.s
	offset := 0
	for len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.StepString(rest, state)
		last = offset
		offset += len(cluster)
	}

	t.s = t.s[:last]
	return true
}

// Reset empties the buffer.
func (t *Text) Reset() {
	t.s = ""
}

// isSingleCharacter reports whether s is exactly one character long.
func isSingleCharacter(s string) bool {
	if s == "" {
		return false
	}
	_, rest, _, _ := uniseg.FirstGraphemeClusterInString(s, -1)
	return rest == ""
}

// equalFold compares gesture labels case-insensitively. An empty label
// never matches.
func equalFold(category, label string) bool {
	return label != "" && strings.EqualFold(category, label)
}
