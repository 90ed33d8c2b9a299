package coach

// Models asked for JSON frequently wrap it in prose or code fences. The
// scanners below locate the first top-level JSON array or object substring in
// raw text with a string-aware depth scan, so a reply like
// "Sure! Here you go:\n```json\n[...]\n```" still parses.

// firstJSONArray returns the first balanced top-level [...] substring.
func firstJSONArray(s string) (string, bool) {
	return scanBalanced(s, '[', ']')
}

// firstJSONObject returns the first balanced top-level {...} substring.
func firstJSONObject(s string) (string, bool) {
	return scanBalanced(s, '{', '}')
}

// scanBalanced finds the first substring starting at open and ending at its
// matching close, tracking nesting depth and skipping over string literals
// (including escaped quotes) so brackets inside strings do not miscount.
func scanBalanced(s string, open, close byte) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case open:
			if start < 0 {
				start = i
			}
			depth++
		case close:
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
