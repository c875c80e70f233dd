// Package chunker splits outbound text into transport-sized pieces while
// preserving fenced code blocks and natural prose boundaries (spec C1).
package chunker

import "strings"

// segment is either a prose run or a fenced code block.
type segment struct {
	isCode bool
	opener string   // e.g. "```go" — only set when isCode
	lines  []string // prose lines, or code interior lines
}

// parseSegments separates text into alternating prose and fenced
// code-block segments. A fence line is any line whose trimmed content
// starts with three backticks.
func parseSegments(text string) []segment {
	lines := strings.Split(text, "\n")
	var segs []segment
	var prose []string

	flushProse := func() {
		if len(prose) > 0 {
			segs = append(segs, segment{lines: prose})
			prose = nil
		}
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		if isFenceLine(line) {
			flushProse()
			opener := line
			i++
			var interior []string
			for i < len(lines) && !isFenceLine(lines[i]) {
				interior = append(interior, lines[i])
				i++
			}
			if i < len(lines) {
				i++ // skip the closing fence line
			}
			segs = append(segs, segment{isCode: true, opener: opener, lines: interior})
			continue
		}
		prose = append(prose, line)
		i++
	}
	flushProse()
	return segs
}

func isFenceLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

// render returns the segment's full textual form, ready to be packed
// into a chunk or measured against the limit.
func (s segment) render() string {
	if s.isCode {
		return s.opener + "\n" + strings.Join(s.lines, "\n") + "\n```"
	}
	return strings.Join(s.lines, "\n")
}
