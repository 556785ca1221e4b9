package linker

import (
	"html"
	"unicode"
	"unicode/utf8"
)

// maxEntityLen bounds the length of a character reference, "&" and ";" included.
const maxEntityLen = 40

// patternsFor returns the spellings of keyword to search for. A keyword written with
// character references in the rule list is also searched in decoded form.
func patternsFor(keyword string) []string {
	decoded := html.UnescapeString(keyword)
	if decoded == keyword {
		return []string{keyword}
	}
	return []string{keyword, decoded}
}

// findWord returns the byte range of the first occurrence of any pattern in text at or
// after from that is delimited by non-letters on both sides. Character references in
// text are single units: a match never starts or ends inside one, and they compare and
// bound words by the characters they decode to.
func findWord(text string, from int, patterns []string) (start, end int, ok bool) {
	for i := from; i < len(text); i += unitLen(text, i) {
		if !atWordStart(text, i) {
			continue
		}
		for _, p := range patterns {
			if e, matched := matchFold(text, i, p); matched && atWordEnd(text, e) {
				return i, e, true
			}
		}
	}
	return 0, 0, false
}

// matchFold reports whether pattern occurs in s at byte offset i under Unicode simple
// case folding, returning the end offset of the match in s.
func matchFold(s string, i int, pattern string) (int, bool) {
	if pattern == "" {
		return 0, false
	}
	j, p := i, 0
	for p < len(pattern) {
		if j >= len(s) {
			return 0, false
		}

		if n := entityLen(s, j); n > 0 {
			for _, dr := range html.UnescapeString(s[j : j+n]) {
				if p >= len(pattern) {
					return 0, false
				}
				pr, size := utf8.DecodeRuneInString(pattern[p:])
				if !equalFoldRune(dr, pr) {
					return 0, false
				}
				p += size
			}
			j += n
			continue
		}

		sr, ssize := utf8.DecodeRuneInString(s[j:])
		pr, psize := utf8.DecodeRuneInString(pattern[p:])
		if !equalFoldRune(sr, pr) {
			return 0, false
		}
		j += ssize
		p += psize
	}
	return j, true
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

// entityLen returns the length of the character reference (&name; &#n; &#xh;) at
// s[i], or 0 if there is none.
func entityLen(s string, i int) int {
	if i >= len(s) || s[i] != '&' {
		return 0
	}

	j := i + 1
	if j < len(s) && s[j] == '#' {
		j++
		hex := j < len(s) && (s[j] == 'x' || s[j] == 'X')
		if hex {
			j++
		}
		start := j
		for j < len(s) && (isDigit(s[j]) || hex && isHexLetter(s[j])) {
			j++
		}
		if j == start {
			return 0
		}
	} else {
		start := j
		for j < len(s) && (isASCIILetter(s[j]) || isDigit(s[j])) {
			j++
		}
		if j == start || !isASCIILetter(s[start]) {
			return 0
		}
	}

	if j >= len(s) || s[j] != ';' || j+1-i > maxEntityLen {
		return 0
	}
	return j + 1 - i
}

// unitLen returns the byte length of the character reference or rune at s[i].
func unitLen(s string, i int) int {
	if n := entityLen(s, i); n > 0 {
		return n
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return size
}

// runeBefore returns the last character before s[i], decoding a character reference
// that ends at i.
func runeBefore(s string, i int) rune {
	if s[i-1] == ';' {
		for k := i - 2; k >= 0 && k > i-maxEntityLen; k-- {
			if s[k] != '&' {
				continue
			}
			if entityLen(s, k) == i-k {
				r, _ := utf8.DecodeLastRuneInString(html.UnescapeString(s[k:i]))
				return r
			}
			break
		}
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return r
}

// runeAt returns the character at s[i], decoding a character reference.
func runeAt(s string, i int) rune {
	if n := entityLen(s, i); n > 0 {
		r, _ := utf8.DecodeRuneInString(html.UnescapeString(s[i : i+n]))
		return r
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r
}

func atWordStart(s string, i int) bool {
	return i == 0 || !isWordRune(runeBefore(s, i))
}

func atWordEnd(s string, i int) bool {
	return i >= len(s) || !isWordRune(runeAt(s, i))
}

// isWordRune reports whether r belongs to a word. Combining marks count so that
// scripts written with them do not split inside a word.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsMark(r)
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isHexLetter(c byte) bool { return 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F' }

func isASCIILetter(c byte) bool { return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' }
