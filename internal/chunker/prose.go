package chunker

import "regexp"

var (
	sentenceBoundary = regexp.MustCompile(`[.?!]+\s+`)
	clauseBoundary   = regexp.MustCompile(`[,;:]+\s+`)
	wordBoundary     = regexp.MustCompile(`\s+`)
)

// splitProse recursively splits prose by paragraph, then sentence, then
// clause, then word boundary; a word that still exceeds limit is
// hard-sliced. Every returned piece has length <= limit (runes are never
// split mid-rune) and concatenating all pieces reproduces the input.
func splitProse(text string, limit int) []string {
	return packRecursive(splitAfterLiteral(text, "\n\n"), limit, splitSentences)
}

func splitSentences(text string, limit int) []string {
	return packRecursive(splitAfterRegex(text, sentenceBoundary), limit, splitClauses)
}

func splitClauses(text string, limit int) []string {
	return packRecursive(splitAfterRegex(text, clauseBoundary), limit, splitWords)
}

func splitWords(text string, limit int) []string {
	return packRecursive(splitAfterRegex(text, wordBoundary), limit, hardSlice)
}

// hardSlice cuts text into rune-boundary-respecting pieces of at most
// limit bytes each; used when a single prose word or a single code line
// exceeds the room available for it.
func hardSlice(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		n := 0
		size := 0
		for n < len(runes) {
			rl := len(string(runes[n]))
			if size+rl > limit && n > 0 {
				break
			}
			size += rl
			n++
		}
		if n == 0 {
			n = 1 // a single rune wider than limit still must make progress
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

// splitAfterLiteral splits text immediately after every occurrence of sep,
// keeping sep attached to the preceding piece (mirrors strings.SplitAfter
// but drops the trailing empty piece SplitAfter can produce).
func splitAfterLiteral(text, sep string) []string {
	parts := make([]string, 0, 4)
	for {
		idx := indexOf(text, sep)
		if idx < 0 {
			if text != "" {
				parts = append(parts, text)
			}
			return parts
		}
		cut := idx + len(sep)
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// splitAfterRegex splits text immediately after every regex match,
// keeping the match attached to the preceding piece.
func splitAfterRegex(text string, re *regexp.Regexp) []string {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	var out []string
	last := 0
	for _, loc := range locs {
		out = append(out, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

// packRecursive greedily packs pieces into chunks no longer than limit.
// A piece that alone exceeds limit is flushed out to recurse for a finer
// split instead of being force-fit.
func packRecursive(pieces []string, limit int, recurse func(string, int) []string) []string {
	var out []string
	var cur string
	flush := func() {
		if cur != "" {
			out = append(out, cur)
			cur = ""
		}
	}
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if len(p) > limit {
			flush()
			out = append(out, recurse(p, limit)...)
			continue
		}
		if len(cur)+len(p) > limit {
			flush()
		}
		cur += p
	}
	flush()
	return out
}
