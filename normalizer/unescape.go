package normalizer

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var simpleEscapes = map[byte]rune{
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
}

// decodeEscapes replaces backslash escapes with the characters they name.
// Text that is already non-ASCII passes through untouched. Malformed escapes
// become U+FFFD and are counted; unknown escapes such as \q are kept as is.
func decodeEscapes(text string, report *Report) string {
	if !strings.Contains(text, `\`) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}

		if i+1 == len(text) {
			// Dangling backslash
			b.WriteRune(utf8.RuneError)
			report.DecodeErrors++
			break
		}

		r, n, ok := decodeEscape(text[i:])
		switch {
		case !ok:
			b.WriteRune(utf8.RuneError)
			report.DecodeErrors++
		case n == 0:
			b.WriteString(text[i : i+2])
			n = 2
		case r >= 0:
			b.WriteRune(r)
		}
		i += n
	}

	return b.String()
}

// decodeEscape decodes the escape at the start of s, which begins with a
// backslash. It returns the rune, the bytes consumed and whether the escape
// was well formed. n == 0 marks an unknown escape to copy verbatim; r < 0
// marks an escape that produces nothing (an escaped line break).
func decodeEscape(s string) (r rune, n int, ok bool) {
	c := s[1]

	if v, found := simpleEscapes[c]; found {
		return v, 2, true
	}

	switch {
	case c == '\n':
		return -1, 2, true
	case c >= '0' && c <= '7':
		end := 2
		for end < len(s) && end < 4 && s[end] >= '0' && s[end] <= '7' {
			end++
		}
		v, _ := strconv.ParseUint(s[1:end], 8, 32)
		return rune(v), end, true
	case c == 'x':
		return hexEscape(s, 2)
	case c == 'U':
		r, n, ok = hexEscape(s, 8)
		if ok && !utf8.ValidRune(r) {
			return 0, n, false
		}
		return r, n, ok
	case c == 'u':
		r, n, ok = hexEscape(s, 4)
		if !ok || !utf16.IsSurrogate(r) {
			return r, n, ok
		}
		// High surrogate followed by an escaped low surrogate
		if r < 0xdc00 && len(s) >= 12 && s[6] == '\\' && s[7] == 'u' {
			if low, _, lowOK := hexEscape(s[6:], 4); lowOK {
				if pair := utf16.DecodeRune(r, low); pair != utf8.RuneError {
					return pair, 12, true
				}
			}
		}
		return 0, 6, false
	}

	return 0, 0, true
}

// hexEscape reads exactly digits hex digits after the two byte prefix
func hexEscape(s string, digits int) (rune, int, bool) {
	end := 2 + digits
	if len(s) < end {
		return 0, bytesUntilNonHex(s, len(s)), false
	}

	v, err := strconv.ParseUint(s[2:end], 16, 32)
	if err != nil {
		return 0, bytesUntilNonHex(s, end), false
	}
	if v > utf8.MaxRune {
		return 0, end, false
	}
	return rune(v), end, true
}

// bytesUntilNonHex returns how much of a broken hex escape to consume
func bytesUntilNonHex(s string, limit int) int {
	i := 2
	for i < limit && isHex(s[i]) {
		i++
	}
	return i
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
