// Package text_test tests input-text segmentation.
package text_test

import (
	"testing"

	"github.com/rogoai/voice-studio/internal/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "single block yields itself trimmed",
			input:    "  Hello there.  ",
			expected: []string{"Hello there."},
		},
		{
			name:     "blank line separates segments",
			input:    "Hello there.\n\nGoodbye now.",
			expected: []string{"Hello there.", "Goodbye now."},
		},
		{
			name:     "order is preserved with surrounding whitespace",
			input:    "\n\nA\n\nB\n\nC\n\n",
			expected: []string{"A", "B", "C"},
		},
		{
			name:     "single newlines stay within one segment",
			input:    "line one\nline two",
			expected: []string{"line one\nline two"},
		},
		{
			name:     "triple newline does not create an empty segment",
			input:    "A\n\n\nB",
			expected: []string{"A", "B"},
		},
		{
			name:     "whitespace-only input yields nothing",
			input:    "   \n\n \t \n\n",
			expected: []string{},
		},
		{
			name:     "empty input yields nothing",
			input:    "",
			expected: []string{},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := text.Split(testCase.input)
			assert.Equal(t, testCase.expected, result)
		})
	}
}

func TestSplit_IsDeterministic(t *testing.T) {
	t.Parallel()

	input := "First paragraph.\n\nSecond paragraph.\n\nThird."

	first := text.Split(input)
	second := text.Split(input)

	require.Equal(t, first, second)
}

func TestIsSRT(t *testing.T) {
	t.Parallel()

	srt := "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n\n2\n00:00:02,500 --> 00:00:04,000\nGoodbye now.\n"

	assert.True(t, text.IsSRT(srt))
	assert.False(t, text.IsSRT("just some prose\nwith two lines\nand a third"))
	assert.False(t, text.IsSRT("short"))
}

func TestStripSRT(t *testing.T) {
	t.Parallel()

	srt := "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n\n2\n00:00:02,500 --> 00:00:04,000\nGoodbye now.\n"

	stripped := text.StripSRT(srt)
	require.Equal(t, "Hello there.\n\nGoodbye now.", stripped)

	segments := text.Split(stripped)
	assert.Equal(t, []string{"Hello there.", "Goodbye now."}, segments)
}
