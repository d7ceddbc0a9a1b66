// Package naming builds deterministic, collision-avoided output filenames for
// generated audio clips and merged transcripts.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rogoai/voice-studio/internal/core"
)

// Template placeholder tokens recognized in a filename pattern. Substitution
// is plain text replacement in a fixed order; there is no escaping mechanism,
// so a pattern cannot emit a literal occurrence of a token string.
const (
	TokenText   = "{Text}"
	TokenID     = "{ID}"
	TokenDate   = "{Date}"
	TokenPrefix = "{Prefix}"
	TokenSeq    = "{Seq}"
)

// DefaultPattern is used when the caller supplies an empty pattern.
const DefaultPattern = "{ID}_{Prefix}_{Seq}"

// Derived-value shapes.
const (
	shortTextLength    = 7
	shortTextPadding   = '_'
	clipTimestampForm  = "060102_150405"
	transcriptTimeForm = "20060102_150405"
	snippetLength      = 20
	idTagPrefix        = "ID"
	cloneIDTag         = "CQ"
	speakerIDForm      = "%03d"
	defaultSeqDigits   = 3
)

// Characters stripped from short text because they are invalid in filenames
// on common filesystems. Newlines and both ASCII and ideographic spaces are
// removed as well.
const invalidFilenameChars = `:*?"<>|/\`

// ClipTimestampLayout is the time layout for the clip timestamp token
// (yyMMdd_HHmmss, local time).
const ClipTimestampLayout = clipTimestampForm

// TranscriptTimestampLayout is the time layout for merged-transcript
// filenames (yyyyMMdd_HHmmss, local time).
const TranscriptTimestampLayout = transcriptTimeForm

// ShortText derives the content token value: the first 7 characters of source
// after removing newlines, whitespace, and filesystem-invalid characters,
// right-padded with underscores to exactly 7 characters.
func ShortText(source string) string {
	short := make([]rune, 0, shortTextLength)

	for _, r := range source {
		if r == '\n' || r == '\r' || r == ' ' || r == '　' {
			continue
		}

		if strings.ContainsRune(invalidFilenameChars, r) {
			continue
		}

		short = append(short, r)
		if len(short) == shortTextLength {
			break
		}
	}

	for len(short) < shortTextLength {
		short = append(short, shortTextPadding)
	}

	return string(short)
}

// IDTag derives the identity token value: "IDCQ" for the cloning engine,
// otherwise "ID" plus the speaker id zero-padded to three digits.
func IDTag(backend core.BackendKind, speakerID int) string {
	if backend == core.BackendClone {
		return idTagPrefix + cloneIDTag
	}

	return idTagPrefix + fmt.Sprintf(speakerIDForm, speakerID)
}

// Render builds one clip filename from the user pattern and per-item
// metadata, and appends the audio extension. An empty pattern falls back to
// DefaultPattern; unrecognized tokens pass through literally. The timestamp
// token is formatted from timestamp (local time, yyMMdd_HHmmss); all other
// derived values are pure functions of the inputs.
func Render(
	pattern string,
	prefix string,
	sequenceIndex int,
	digitWidth int,
	sourceText string,
	backend core.BackendKind,
	speakerID int,
	format core.AudioFormat,
	timestamp string,
) string {
	if pattern == "" {
		pattern = DefaultPattern
	}

	if digitWidth <= 0 {
		digitWidth = defaultSeqDigits
	}

	seqTag := fmt.Sprintf("%0*d", digitWidth, sequenceIndex)

	name := strings.ReplaceAll(pattern, TokenText, ShortText(sourceText))
	name = strings.ReplaceAll(name, TokenID, IDTag(backend, speakerID))
	name = strings.ReplaceAll(name, TokenDate, timestamp)
	name = strings.ReplaceAll(name, TokenPrefix, prefix)
	name = strings.ReplaceAll(name, TokenSeq, seqTag)

	return name + "." + string(format)
}

// TranscriptSnippet derives the content snippet for a merged-transcript
// filename: the first 20 characters of the merged text, trimmed, filtered to
// letters, digits, space, underscore, hyphen, and the long-vowel mark, with
// spaces collapsed to underscores. Letters include the CJK and kana ranges.
// Returns "" when nothing survives the filter.
func TranscriptSnippet(merged string) string {
	runes := []rune(merged)
	if len(runes) > snippetLength {
		runes = runes[:snippetLength]
	}

	head := strings.TrimSpace(string(runes))

	var builder strings.Builder

	for _, r := range head {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
		case r == ' ' || r == '_' || r == '-' || r == 'ー':
			builder.WriteRune(r)
		}
	}

	snippet := strings.ReplaceAll(builder.String(), " ", "_")

	snippetRunes := []rune(snippet)
	if len(snippetRunes) > snippetLength {
		snippetRunes = snippetRunes[:snippetLength]
	}

	return string(snippetRunes)
}

// TranscriptFileName builds the merged-transcript filename from a formatted
// timestamp and the merged text. When the filtered snippet is empty the
// snippet segment is omitted entirely.
func TranscriptFileName(timestamp, merged string, format core.TranscriptFormat) string {
	ext := "txt"
	if format == core.TranscriptSRT {
		ext = "srt"
	}

	snippet := TranscriptSnippet(merged)
	if snippet == "" {
		return timestamp + "." + ext
	}

	return timestamp + "_" + snippet + "." + ext
}

// ResolveCollision returns a path in dir for filename that does not yet
// exist, appending _1, _2, ... before the extension until a free name is
// found. A stat failure that is not "does not exist" (unreadable or invalid
// dir) is returned instead of being probed past, since no suffix can ever
// free such a name.
func ResolveCollision(dir, filename string) (string, error) {
	candidate := filepath.Join(dir, filename)

	free, statErr := nameIsFree(candidate)
	if statErr != nil {
		return "", statErr
	}

	if free {
		return candidate, nil
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	for counter := 1; ; counter++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))

		free, statErr = nameIsFree(candidate)
		if statErr != nil {
			return "", statErr
		}

		if free {
			return candidate, nil
		}
	}
}

func nameIsFree(candidate string) (bool, error) {
	_, statErr := os.Stat(candidate)
	if statErr == nil {
		return false, nil
	}

	if os.IsNotExist(statErr) {
		return true, nil
	}

	return false, fmt.Errorf("failed to probe output name %s: %w", candidate, statErr)
}
