package weburl

// ExtractLinks scans content for URL-shaped byte spans and resolves them
// against base, returning the set of links found (self-loops are not
// removed here — the fetcher that owns base does that once it knows its
// own URL).
//
// The scanner is intentionally not HTML-aware: it tracks one bit of state
// per candidate span (whether it already contains "://", i.e. is absolute,
// or was introduced by an href="/src=" attribute prefix) and terminates a
// span at the first byte outside the permissive character set, or at a
// second '?' within the same span. This permissiveness is deliberate: it
// also picks up URLs embedded in CSS, JS, inline JSON, and raw PDF text.
func ExtractLinks(content []byte, base URL) map[string]URL {
	links := make(map[string]URL)

	host := base.Root()
	path := base.String()

	start := 0
	patternMatching := false
	patternMatchingPos := 0
	hasGetParam := false

	emit := func(end int) {
		if start > end {
			return
		}
		span := string(content[start : end+1])

		// Look at the up-to-6 bytes immediately preceding the span for an
		// href="/src=" attribute prefix.
		lo := start - 6
		if lo < 0 {
			lo = 0
		}
		hi := start - 1
		if hi < 0 {
			hi = 0
		}
		if hi >= lo && start > 0 {
			prefix := string(content[lo:min(hi+1, len(content))])
			isAttr := hasSuffixAny(prefix, `src="`, `href="`)
			if isAttr && (satSub(patternMatchingPos, start) >= 6 || !patternMatching) {
				if len(span) > 0 && span[0] == '/' {
					span = host + span[1:]
				} else {
					span = path + span
				}
				patternMatching = true
			}
		}

		if start <= end && patternMatching {
			if u, err := Parse(span); err == nil {
				links[u.String()] = u
			}
		}
	}

	for end := 0; end < len(content); end++ {
		c := content[end]
		isSecondQuestion := c == '?' && hasGetParam
		if isPermissive(c) && !isSecondQuestion {
			if c == '?' {
				hasGetParam = true
			}
			if !patternMatching {
				lo := end - 2
				if lo >= 0 && string(content[lo:end+1]) == "://" {
					patternMatching = true
					patternMatchingPos = lo
				}
			}
			continue
		}

		termEnd := end
		if c == '?' {
			termEnd = end - 1
		}
		if termEnd >= 0 {
			emit(termEnd)
		}
		hasGetParam = false
		patternMatching = false
		start = end + 1
	}

	return links
}

func satSub(a, b int) int {
	d := a - b
	if d < 0 {
		return 0
	}
	return d
}

func hasSuffixAny(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if len(s) >= len(suf) && s[len(s)-len(suf):] == suf {
			return true
		}
	}
	return false
}

