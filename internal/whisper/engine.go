// Package whisper provides the offline speech-to-text engine, driven as a
// subprocess around a whisper.cpp style binary.
//
// Three fixed model sizes are supported; the engine loads lazily and reloads
// only when the requested size actually changes, since a load can take
// minutes on first use.
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/book-expert/logger"
	"github.com/rogoai/voice-studio/internal/core"
)

// Model sizes accepted by the engine.
const (
	ModelBase    = "base"
	ModelMedium  = "medium"
	ModelLargeV3 = "large-v3"
)

const (
	modelFilePattern    = "ggml-%s.bin"
	progressInterval    = 10
	errFmtBinaryFailure = "whisper binary execution failed: %w - output: %s"
	errFmtModelNotFound = "model file not found for size %q: %w"
	errFmtInvalidSize   = "%w: %q (choose one of base, medium, large-v3)"
	srtTimestampSep     = " --> "
	millisPerSecond     = 1000
	millisPerMinute     = 60 * millisPerSecond
	millisPerHour       = 60 * millisPerMinute
)

// Static errors.
var (
	ErrInvalidModelSize = errors.New("invalid model size")
	ErrNoSegments       = errors.New("transcription produced no segments")
)

// ModelInfo describes the resource footprint and expected quality of one
// model size, surfaced to callers that present a model selection.
type ModelInfo struct {
	DiskSize    string
	VRAM        string
	RAM         string
	Accuracy    string
	Speed       string
	Description string
}

// modelInfoTable mirrors the published footprint figures for each supported
// size.
var modelInfoTable = map[string]ModelInfo{
	ModelBase: {
		DiskSize:    "~140MB",
		VRAM:        "~1GB",
		RAM:         "~2GB",
		Accuracy:    "85%",
		Speed:       "10x",
		Description: "fast and light, for short clips or low-spec machines",
	},
	ModelMedium: {
		DiskSize:    "~1.5GB",
		VRAM:        "~5GB",
		RAM:         "~8GB",
		Accuracy:    "95%",
		Speed:       "4x",
		Description: "recommended balance of accuracy and speed",
	},
	ModelLargeV3: {
		DiskSize:    "~3GB",
		VRAM:        "~10GB",
		RAM:         "~16GB",
		Accuracy:    "98%",
		Speed:       "1x",
		Description: "highest accuracy, for long or difficult audio",
	},
}

// AvailableModels returns the supported model sizes in ascending footprint
// order.
func AvailableModels() []string {
	return []string{ModelBase, ModelMedium, ModelLargeV3}
}

// InfoFor returns the footprint table entry for a model size.
func InfoFor(size string) (ModelInfo, bool) {
	info, ok := modelInfoTable[size]

	return info, ok
}

// segment is one timed unit of the binary's JSON output.
type segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// transcribeOutput is the JSON document the binary writes to stdout.
type transcribeOutput struct {
	Segments []segment `json:"segments"`
}

// Engine implements core.Transcriber by invoking the whisper binary once per
// audio file.
type Engine struct {
	binaryPath string
	modelsDir  string
	log        *logger.Logger

	mu        sync.Mutex
	modelSize string
	loaded    bool
}

// New creates an engine for the given binary, model directory, and initial
// model size.
func New(binaryPath, modelsDir, modelSize string, log *logger.Logger) (*Engine, error) {
	if _, ok := modelInfoTable[modelSize]; !ok {
		return nil, fmt.Errorf(errFmtInvalidSize, ErrInvalidModelSize, modelSize)
	}

	return &Engine{
		binaryPath: binaryPath,
		modelsDir:  modelsDir,
		log:        log,
		modelSize:  modelSize,
	}, nil
}

// ModelSize returns the currently selected model size.
func (e *Engine) ModelSize() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.modelSize
}

// SetModelSize switches the engine to a different model size. Selecting the
// size already in use is a no-op and keeps the loaded model; an actual change
// unloads it so the next transcription triggers a fresh load.
func (e *Engine) SetModelSize(size string) error {
	if _, ok := modelInfoTable[size]; !ok {
		return fmt.Errorf(errFmtInvalidSize, ErrInvalidModelSize, size)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if size == e.modelSize {
		return nil
	}

	e.modelSize = size
	e.loaded = false

	return nil
}

// isLoaded reports whether the current model has been verified on disk.
func (e *Engine) isLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.loaded
}

// Transcribe runs speech recognition on one audio file and returns the
// result formatted as plain text or SRT subtitles. The model loads lazily on
// the first call after construction or a size change; progress, when
// non-nil, receives human-readable status lines.
func (e *Engine) Transcribe(
	ctx context.Context,
	filePath string,
	language string,
	format core.TranscriptFormat,
	progress func(string),
) (string, error) {
	notify := func(msg string) {
		if progress != nil {
			progress(msg)
		}
	}

	modelPath, loadErr := e.ensureLoaded(notify)
	if loadErr != nil {
		return "", loadErr
	}

	notify("transcription started")

	args := []string{
		"-m", modelPath,
		"-l", language,
		"-f", filePath,
		"--output-json",
	}

	// #nosec G204 -- binary path comes from the service configuration.
	cmd := exec.CommandContext(ctx, e.binaryPath, args...)

	var stderr strings.Builder

	cmd.Stderr = &stderr

	stdout, runErr := cmd.Output()
	if runErr != nil {
		return "", fmt.Errorf(errFmtBinaryFailure, runErr, stderr.String())
	}

	var output transcribeOutput

	unmarshalErr := json.Unmarshal(stdout, &output)
	if unmarshalErr != nil {
		return "", fmt.Errorf("failed to decode whisper output: %w", unmarshalErr)
	}

	if len(output.Segments) == 0 {
		return "", ErrNoSegments
	}

	if format == core.TranscriptSRT {
		return formatSRT(output.Segments, notify), nil
	}

	return formatText(output.Segments, notify), nil
}

// ensureLoaded verifies the current model file exists and marks the engine
// loaded, returning the model path.
func (e *Engine) ensureLoaded(notify func(string)) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	modelPath := filepath.Join(e.modelsDir, fmt.Sprintf(modelFilePattern, e.modelSize))

	if e.loaded {
		return modelPath, nil
	}

	notify(fmt.Sprintf("loading model '%s'...", e.modelSize))

	_, statErr := os.Stat(modelPath)
	if statErr != nil {
		return "", fmt.Errorf(errFmtModelNotFound, e.modelSize, statErr)
	}

	e.loaded = true

	e.log.Info("Whisper model '%s' ready at %s", e.modelSize, modelPath)
	notify(fmt.Sprintf("model '%s' loaded", e.modelSize))

	return modelPath, nil
}

// formatText joins non-empty segment texts with newlines.
func formatText(segments []segment, notify func(string)) string {
	lines := make([]string, 0, len(segments))

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		lines = append(lines, text)

		if len(lines)%progressInterval == 0 {
			notify(fmt.Sprintf("processed %d segments", len(lines)))
		}
	}

	notify(fmt.Sprintf("done: %d segments", len(lines)))

	return strings.Join(lines, "\n")
}

// formatSRT renders segments as SRT subtitle cues. Cue numbers count only
// non-empty segments, starting at 1.
func formatSRT(segments []segment, notify func(string)) string {
	lines := make([]string, 0, len(segments)*4)
	count := 0

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		count++

		lines = append(lines,
			strconv.Itoa(count),
			formatTimestamp(seg.Start)+srtTimestampSep+formatTimestamp(seg.End),
			text,
			"",
		)

		if count%progressInterval == 0 {
			notify(fmt.Sprintf("rendered %d cues", count))
		}
	}

	notify(fmt.Sprintf("done: %d segments", count))

	return strings.Join(lines, "\n")
}

// formatTimestamp renders seconds as an SRT "HH:MM:SS,mmm" timestamp.
func formatTimestamp(seconds float64) string {
	totalMillis := int(seconds * millisPerSecond)

	hours := totalMillis / millisPerHour
	minutes := (totalMillis % millisPerHour) / millisPerMinute
	secs := (totalMillis % millisPerMinute) / millisPerSecond
	millis := totalMillis % millisPerSecond

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
