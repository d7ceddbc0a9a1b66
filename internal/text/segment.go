// Package text provides input-text segmentation for batch voice generation.
//
// A segment is one blank-line-delimited unit of input text; every segment
// becomes exactly one synthesis call in a generation job.
package text

import "strings"

// Separator constants.
const (
	segmentSeparator = "\n\n"
	srtCueSeparator  = "-->"
)

// Split divides free-form input text into an ordered sequence of generation
// units. The text is split on blank lines (two consecutive newline
// characters), each piece is trimmed, and empty pieces are discarded. Input
// whose trimmed form is empty yields an empty slice. Split is a pure function.
func Split(input string) []string {
	pieces := strings.Split(input, segmentSeparator)

	segments := make([]string, 0, len(pieces))

	for _, piece := range pieces {
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}

		segments = append(segments, trimmed)
	}

	return segments
}

// IsSRT reports whether the text looks like SRT subtitle output: a numeric cue
// index on the first line followed by a timestamp line.
func IsSRT(input string) bool {
	lines := strings.Split(strings.TrimSpace(input), "\n")
	if len(lines) < 3 {
		return false
	}

	firstLine := strings.TrimSpace(lines[0])
	if firstLine == "" || !isDigits(firstLine) {
		return false
	}

	return strings.Contains(lines[1], srtCueSeparator)
}

// StripSRT removes cue indices, timestamp lines, and blank lines from SRT
// text, returning the spoken lines joined by blank-line separators so the
// result feeds directly back into Split.
func StripSRT(srt string) string {
	lines := strings.Split(strings.TrimSpace(srt), "\n")

	var textLines []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || isDigits(trimmed) {
			continue
		}

		if strings.Contains(trimmed, srtCueSeparator) {
			continue
		}

		textLines = append(textLines, trimmed)
	}

	return strings.Join(textLines, segmentSeparator)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return len(s) > 0
}
