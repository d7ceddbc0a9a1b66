package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rogoai/voice-studio/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadAudio = errors.New("unreadable audio")

// fakeTranscriber implements core.Transcriber with scripted per-file results.
type fakeTranscriber struct {
	texts      map[string]string
	failOn     map[string]bool
	modelSize  string
	switchedTo []string
}

func (f *fakeTranscriber) Transcribe(
	_ context.Context,
	filePath string,
	_ string,
	_ core.TranscriptFormat,
	progress func(string),
) (string, error) {
	if progress != nil {
		progress(fmt.Sprintf("transcribing %s", filePath))
	}

	if f.failOn[filePath] {
		return "", errBadAudio
	}

	return f.texts[filePath], nil
}

func (f *fakeTranscriber) ModelSize() string {
	return f.modelSize
}

func (f *fakeTranscriber) SetModelSize(size string) error {
	f.switchedTo = append(f.switchedTo, size)
	f.modelSize = size

	return nil
}

func newTranscriptionRunner(t *testing.T, transcriber *fakeTranscriber) *TranscriptionRunner {
	t.Helper()

	runner := NewTranscriptionRunner(transcriber, newTestLogger(t))
	runner.now = func() time.Time {
		return time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)
	}

	return runner
}

func transcriptionRequest(outputDir string, files []string) core.TranscriptionRequest {
	return core.TranscriptionRequest{
		Files:     files,
		Language:  "ja",
		ModelSize: "",
		Format:    core.TranscriptText,
		OutputDir: outputDir,
	}
}

func TestTranscriptionRunner_Run_MergesInSelectionOrder(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{
		texts: map[string]string{
			"b.wav": "second part",
			"a.wav": "first part",
		},
		modelSize: "base",
	}
	runner := newTranscriptionRunner(t, transcriber)
	outputDir := t.TempDir()

	// Selection order, not lexical order, dictates the merge.
	summary, err := runner.Run(
		context.Background(),
		transcriptionRequest(outputDir, []string{"b.wav", "a.wav"}),
		nil,
	)
	require.NoError(t, err)

	assert.Equal(t, "second part\n\nfirst part", summary.MergedText)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, summary.Total)
	assert.Empty(t, summary.FailedFiles)

	expectedPath := filepath.Join(outputDir, "20250101_120000_second_part.txt")
	assert.Equal(t, expectedPath, summary.OutputPath)

	content, readErr := os.ReadFile(expectedPath)
	require.NoError(t, readErr)
	assert.Equal(t, summary.MergedText, string(content))
}

func TestTranscriptionRunner_Run_IsolatesFileFailures(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{
		texts: map[string]string{
			"a.wav": "first",
			"c.wav": "third",
		},
		failOn:    map[string]bool{"b.wav": true},
		modelSize: "base",
	}
	runner := newTranscriptionRunner(t, transcriber)

	summary, err := runner.Run(
		context.Background(),
		transcriptionRequest(t.TempDir(), []string{"a.wav", "b.wav", "c.wav"}),
		nil,
	)
	require.NoError(t, err)

	// The failed file is skipped; the merge contains only the survivors.
	assert.Equal(t, "first\n\nthird", summary.MergedText)
	assert.Equal(t, 2, summary.Succeeded)
	require.Len(t, summary.FailedFiles, 1)
	assert.Equal(t, "b.wav", summary.FailedFiles[0].File)
	assert.Contains(t, summary.FailedFiles[0].Message, "unreadable audio")
}

func TestTranscriptionRunner_Run_AllFilesFailed(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{
		failOn:    map[string]bool{"a.wav": true, "b.wav": true},
		modelSize: "base",
	}
	runner := newTranscriptionRunner(t, transcriber)

	summary, err := runner.Run(
		context.Background(),
		transcriptionRequest(t.TempDir(), []string{"a.wav", "b.wav"}),
		nil,
	)
	require.ErrorIs(t, err, ErrAllFilesFailed)
	assert.Zero(t, summary.Succeeded)
	assert.Len(t, summary.FailedFiles, 2)
	assert.Empty(t, summary.OutputPath)
}

func TestTranscriptionRunner_Run_NoFiles(t *testing.T) {
	t.Parallel()

	runner := newTranscriptionRunner(t, &fakeTranscriber{modelSize: "base"})

	_, err := runner.Run(
		context.Background(),
		transcriptionRequest(t.TempDir(), nil),
		nil,
	)
	require.ErrorIs(t, err, ErrNoFiles)
}

func TestTranscriptionRunner_Run_SwitchesModelOnlyOnChange(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{
		texts:     map[string]string{"a.wav": "text"},
		modelSize: "base",
	}
	runner := newTranscriptionRunner(t, transcriber)

	// Same size: no switch issued.
	req := transcriptionRequest(t.TempDir(), []string{"a.wav"})
	req.ModelSize = "base"

	_, err := runner.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Empty(t, transcriber.switchedTo)

	// Different size: exactly one switch.
	req = transcriptionRequest(t.TempDir(), []string{"a.wav"})
	req.ModelSize = "medium"

	_, err = runner.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"medium"}, transcriber.switchedTo)
}

func TestTranscriptionRunner_Run_UnusableOutputDir(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{
		texts:     map[string]string{"a.wav": "hello"},
		modelSize: "base",
	}
	runner := newTranscriptionRunner(t, transcriber)

	// A regular file occupying the output path must fail the write promptly
	// instead of probing for a free name forever.
	blocker := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	summary, err := runner.Run(
		context.Background(),
		transcriptionRequest(filepath.Join(blocker, "transcripts"), []string{"a.wav"}),
		nil,
	)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAllFilesFailed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Empty(t, summary.OutputPath)
}

func TestTranscriptionRunner_Run_CollisionProbing(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{
		texts:     map[string]string{"a.wav": "hello"},
		modelSize: "base",
	}
	runner := newTranscriptionRunner(t, transcriber)
	outputDir := t.TempDir()

	existing := filepath.Join(outputDir, "20250101_120000_hello.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o600))

	summary, err := runner.Run(
		context.Background(),
		transcriptionRequest(outputDir, []string{"a.wav"}),
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join(outputDir, "20250101_120000_hello_1.txt"),
		summary.OutputPath,
	)

	// The pre-existing file is never overwritten.
	content, readErr := os.ReadFile(existing)
	require.NoError(t, readErr)
	assert.Equal(t, "old", string(content))
}
