package chunker

// DefaultMinChunk is the threshold below which a trailing chunk is
// merged backward into its predecessor when the merge still fits the
// limit (spec C1's final merge pass).
const DefaultMinChunk = 64

// Split packs text into chunks no longer than limit characters,
// preserving fenced code blocks and natural prose boundaries. It is pure
// and deterministic: the same (text, limit, minChunk) always produces
// the same chunks.
func Split(text string, limit, minChunk int) []string {
	if limit <= 0 {
		return []string{text}
	}
	if minChunk <= 0 {
		minChunk = DefaultMinChunk
	}

	segs := parseSegments(text)
	var chunks []string
	var cur string

	flush := func() {
		if cur != "" {
			chunks = append(chunks, cur)
			cur = ""
		}
	}

	for _, seg := range segs {
		rendered := seg.render()
		if len(rendered) > limit {
			flush()
			if seg.isCode {
				chunks = append(chunks, splitCodeBlock(seg, limit)...)
			} else {
				chunks = append(chunks, splitProse(rendered, limit)...)
			}
			continue
		}

		sepLen := 0
		if cur != "" {
			sepLen = 1 // joining newline
		}
		if len(cur)+sepLen+len(rendered) > limit {
			flush()
			sepLen = 0
		}
		if cur == "" {
			cur = rendered
		} else {
			cur = cur + "\n" + rendered
		}
	}
	flush()

	if len(chunks) == 0 {
		return []string{""}
	}
	return mergeSmallTrailing(chunks, limit, minChunk)
}

// mergeSmallTrailing folds a small trailing chunk back into its
// predecessor whenever the merge still respects limit.
func mergeSmallTrailing(chunks []string, limit, minChunk int) []string {
	if len(chunks) < 2 {
		return chunks
	}
	out := make([]string, 0, len(chunks))
	out = append(out, chunks[0])
	for i := 1; i < len(chunks); i++ {
		next := chunks[i]
		last := out[len(out)-1]
		if len(next) < minChunk && len(last)+1+len(next) <= limit {
			out[len(out)-1] = last + "\n" + next
		} else {
			out = append(out, next)
		}
	}
	return out
}
