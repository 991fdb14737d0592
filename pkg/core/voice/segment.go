// Package voice coordinates speech input and output for live conversations.
package voice

import (
	"strings"
)

// DefaultMinSegmentChars is the minimum buffered length before a segment
// is emitted. Short fragments produce choppy synthesis, so text is held
// until a natural break accumulates.
const DefaultMinSegmentChars = 25

// segmentMarks are the characters treated as synthesis break points.
// Commas are included so long clauses flush without waiting for a
// full sentence.
const segmentMarks = ".!?,"

// SegmentBuffer accumulates streamed text and emits speakable segments.
// A segment is released once the buffer holds at least MinChars runes
// and ends at a break mark. This keeps time-to-first-audio low while
// avoiding one-word utterances.
type SegmentBuffer struct {
	minChars int
	buffer   strings.Builder
}

// NewSegmentBuffer creates a buffer with the given minimum segment
// length. Values below 1 fall back to DefaultMinSegmentChars.
func NewSegmentBuffer(minChars int) *SegmentBuffer {
	if minChars < 1 {
		minChars = DefaultMinSegmentChars
	}
	return &SegmentBuffer{minChars: minChars}
}

// Add appends streamed text and returns any segments that became ready.
func (b *SegmentBuffer) Add(text string) []string {
	b.buffer.WriteString(text)

	content := b.buffer.String()
	var segments []string

	for len(content) >= b.minChars {
		cut := lastBreakMark(content)
		if cut < 0 {
			break
		}
		segment := strings.TrimSpace(content[:cut+1])
		if segment != "" {
			segments = append(segments, segment)
		}
		content = content[cut+1:]
	}

	b.buffer.Reset()
	b.buffer.WriteString(content)
	return segments
}

// Flush returns any remaining text and clears the buffer. Called when
// the model finishes responding so trailing text without punctuation
// is still spoken.
func (b *SegmentBuffer) Flush() string {
	result := strings.TrimSpace(b.buffer.String())
	b.buffer.Reset()
	return result
}

// Pending returns the buffered text without clearing it.
func (b *SegmentBuffer) Pending() string {
	return b.buffer.String()
}

// Reset discards buffered text, used when a response is interrupted.
func (b *SegmentBuffer) Reset() {
	b.buffer.Reset()
}

// lastBreakMark returns the index of the last break mark in s, or -1.
func lastBreakMark(s string) int {
	return strings.LastIndexAny(s, segmentMarks)
}
