package markdown

import (
	"strings"
	"unicode/utf8"
)

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `\_*[]()~` + "`" + `>#+-=|{}.!`

// MessageMaxLength is the Telegram limit for a message text.
const MessageMaxLength = 4096

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2Lookup = func() [256]bool {
	var m [256]bool
	for i := range len(mdV2SpecialChars) {
		m[mdV2SpecialChars[i]] = true
	}
	return m
}()

func EscapeV2(input string) string {
	charsToEscape := 0

	for i := range len(input) {
		if mdV2Lookup[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if mdV2Lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

// Split cuts text into parts of at most limit characters. Cuts prefer line
// breaks, then spaces, and never separate an escape from the escaped
// character.
func Split(text string, limit int) []string {
	if limit <= 1 {
		limit = MessageMaxLength
	}

	var parts []string

	for utf8.RuneCountInString(text) > limit {
		cut := byteOffset(text, limit)

		if i := strings.LastIndexByte(text[:cut], '\n'); i > 0 {
			cut = i + 1
		} else if i = strings.LastIndexByte(text[:cut], ' '); i > 0 {
			cut = i + 1
		}

		if escapedCut(text, cut) {
			cut--
		}

		parts = append(parts, text[:cut])
		text = text[cut:]
	}

	if text != "" {
		parts = append(parts, text)
	}

	return parts
}

// byteOffset returns the byte offset of the rune with index n.
func byteOffset(text string, n int) int {
	for i := range text {
		if n == 0 {
			return i
		}
		n--
	}

	return len(text)
}

// escapedCut reports whether text[:cut] ends with an unpaired backslash.
func escapedCut(text string, cut int) bool {
	backslashes := 0
	for i := cut - 1; i >= 0 && text[i] == '\\'; i-- {
		backslashes++
	}

	return backslashes%2 == 1
}
