package chunker

import "strings"

const closingFence = "```"

// splitCodeBlock re-emits an oversized fenced code block as a sequence of
// separately-fenced blocks, preserving the opener (including any language
// tag) and the closer on each, splitting along interior line boundaries.
// A single interior line wider than the available room is hard-sliced.
func splitCodeBlock(seg segment, limit int) []string {
	overhead := len(seg.opener) + 1 + len(closingFence) // opener\n ... \n```
	var chunks []string
	var cur []string
	curLen := overhead

	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, buildCodeChunk(seg.opener, cur))
			cur = nil
			curLen = overhead
		}
	}

	for _, line := range seg.lines {
		lineCost := len(line) + 1 // line + its newline
		if curLen+lineCost > limit {
			flush()
		}
		// A single line that alone can't fit in an empty chunk must be
		// hard-sliced across multiple fenced blocks.
		for overhead+lineCost > limit {
			room := limit - overhead - 1
			if room <= 0 {
				room = 1
			}
			pieces := hardSlice(line, room)
			for _, p := range pieces[:len(pieces)-1] {
				chunks = append(chunks, buildCodeChunk(seg.opener, []string{p}))
			}
			line = pieces[len(pieces)-1]
			lineCost = len(line) + 1
		}
		cur = append(cur, line)
		curLen += lineCost
	}
	flush()
	if len(chunks) == 0 {
		// Degenerate case: an empty code block.
		chunks = append(chunks, buildCodeChunk(seg.opener, nil))
	}
	return chunks
}

func buildCodeChunk(opener string, lines []string) string {
	var b strings.Builder
	b.WriteString(opener)
	b.WriteByte('\n')
	if len(lines) > 0 {
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteByte('\n')
	}
	b.WriteString(closingFence)
	return b.String()
}
