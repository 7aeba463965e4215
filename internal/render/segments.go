// Package render turns stored chat turns into display layouts.
//
// Code detection is a character heuristic, not a parser: prose containing
// '=' or '/' is shown as code, and code without any of those marks is not.
package render

import "strings"

const fence = "```"

type SegmentKind int

const (
	Plain SegmentKind = iota
	Code
)

func (k SegmentKind) String() string {
	if k == Code {
		return "code"
	}
	return "plain"
}

// Segment is one displayable piece of a turn's content.
type Segment struct {
	Kind SegmentKind
	Text string
}

// codeMarks covers assignment, brackets, braces, statement terminators and
// slashes, which also catches "//" comments.
const codeMarks = "=[]{};/"

// IsCode reports whether s looks like source code.
func IsCode(s string) bool {
	return strings.ContainsAny(s, codeMarks) || strings.Contains(s, "//")
}

// Split breaks content on ``` fences. Content without a fence is a single
// plain segment equal to content. Otherwise blank pieces are dropped and each
// remaining piece is classified with IsCode.
func Split(content string) []Segment {
	if !strings.Contains(content, fence) {
		return []Segment{{Kind: Plain, Text: content}}
	}

	blocks := strings.Split(content, fence)
	segments := make([]Segment, 0, len(blocks))
	for _, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		kind := Plain
		if IsCode(block) {
			kind = Code
		}
		segments = append(segments, Segment{Kind: kind, Text: block})
	}
	return segments
}
