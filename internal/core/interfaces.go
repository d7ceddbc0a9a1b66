// Package core defines the shared interfaces and job types for voice-studio.
package core

import "context"

// BackendKind identifies one of the two interchangeable voice-synthesis
// backends.
type BackendKind string

const (
	// BackendClone is the local file-based voice-cloning engine.
	BackendClone BackendKind = "clone"
	// BackendCharacter is the remote parametric character-voice engine.
	BackendCharacter BackendKind = "character"
)

// AudioFormat selects the container for exported clips.
type AudioFormat string

const (
	// FormatWAV exports the clip with its native lossless encoding.
	FormatWAV AudioFormat = "wav"
	// FormatMP3 exports the clip at a fixed constant bitrate.
	FormatMP3 AudioFormat = "mp3"
)

// TranscriptFormat selects the output produced by the transcription backend.
type TranscriptFormat string

const (
	// TranscriptText produces plain newline-joined segment text.
	TranscriptText TranscriptFormat = "text"
	// TranscriptSRT produces numbered SRT cue blocks with timestamps.
	TranscriptSRT TranscriptFormat = "srt"
)

// SynthesisParams holds the per-request synthesis knobs. Pitch and Intonation
// are meaningful only for the character backend; ReferenceVoicePath and
// LanguageCode only for the clone backend.
type SynthesisParams struct {
	Speed              float64
	Volume             float64
	Pitch              float64
	Intonation         float64
	ReferenceVoicePath string
	LanguageCode       string
	SpeakerID          int
}

// SynthesisEngine is the uniform boundary over a voice-synthesis backend.
// Synthesize returns raw encoded audio bytes in a WAV container; decoding and
// normalization are the post-processor's job, not the engine's.
type SynthesisEngine interface {
	Kind() BackendKind
	Synthesize(ctx context.Context, text string, params SynthesisParams) ([]byte, error)
}

// Transcriber is the boundary to the offline speech-to-text engine. The
// progress callback, when non-nil, receives human-readable status lines.
type Transcriber interface {
	Transcribe(
		ctx context.Context,
		filePath string,
		language string,
		format TranscriptFormat,
		progress func(string),
	) (string, error)
	ModelSize() string
}

// ObjectStore is the boundary to a key-value blob store used by the headless
// worker to publish generated artifacts.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// GenerationRequest is an immutable snapshot of one batch generation
// submission. It is built once when the user triggers a run and passed by
// value into the job, so in-flight work never reads live mutable UI state.
type GenerationRequest struct {
	Segments        []string
	Backend         BackendKind
	Params          SynthesisParams
	PreSilenceSec   float64
	PostSilenceSec  float64
	OutputDir       string
	Format          AudioFormat
	FilenamePattern string
	SequenceDigits  int
	Prefix          string
}

// GenerationResult records the outcome of one segment. ClipMillis is the
// written clip's duration including the silence padding; it is zero when the
// segment failed.
type GenerationResult struct {
	Succeeded  bool
	FilePath   string
	ClipMillis int
	Text       string
	Backend    BackendKind
	SpeakerID  int
	Err        error
}

// TranscriptionRequest is an immutable snapshot of one batch transcription
// submission. Files are processed strictly in slice order.
type TranscriptionRequest struct {
	Files     []string
	Language  string
	ModelSize string
	Format    TranscriptFormat
	OutputDir string
}

// FileFailure pairs a failed input file with the error message it produced.
type FileFailure struct {
	File    string
	Message string
}

// TranscriptionSummary is the terminal result of a batch transcription job.
type TranscriptionSummary struct {
	MergedText  string
	Succeeded   int
	Total       int
	FailedFiles []FileFailure
	OutputPath  string
}
