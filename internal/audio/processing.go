package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rogoai/voice-studio/internal/core"
)

// Gain and silence constants.
const (
	unityVolume      = 1.0
	decibelsPerDecad = 20.0
	millisPerSecond  = 1000
	maxSampleValue   = math.MaxInt16
	minSampleValue   = math.MinInt16
)

// Export constants. Lossy export always uses the same constant bitrate.
const (
	mp3Bitrate          = "192k"
	ffmpegBinary        = "ffmpeg"
	exportPermissions   = 0o600
	tempExportPattern   = "voice-studio-export-*.wav"
	errFmtFFmpegFailure = "ffmpeg export failed: %w - output: %s"
)

// ErrUnknownFormat is returned for an export format the processor does not
// handle.
var ErrUnknownFormat = errors.New("unknown output audio format")

// Process decodes a raw synthesized WAV byte stream, applies gain, and pads
// pre/post silence, returning a clip ready for export.
//
// Volume is a linear multiplier converted to a decibel gain of
// 20*log10(volume). A volume of exactly 1.0 is a no-op; volume <= 0 is also a
// no-op rather than an error, matching the reference behavior (muting must be
// handled by the caller, not by a zero volume).
func Process(raw []byte, volume, preSilenceSec, postSilenceSec float64) (*Clip, error) {
	clip, decodeErr := DecodeWAV(raw)
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode synthesized audio: %w", decodeErr)
	}

	if volume != unityVolume && volume > 0 {
		applyGain(clip, decibelsPerDecad*math.Log10(volume))
	}

	if preSilenceSec > 0 {
		clip.Samples = append(silenceSamples(clip, preSilenceSec), clip.Samples...)
	}

	if postSilenceSec > 0 {
		clip.Samples = append(clip.Samples, silenceSamples(clip, postSilenceSec)...)
	}

	return clip, nil
}

// Export writes the clip to path in the requested container format. WAV uses
// the clip's native PCM encoding; MP3 shells out to ffmpeg at a fixed
// constant bitrate.
func Export(ctx context.Context, clip *Clip, path string, format core.AudioFormat) error {
	switch format {
	case core.FormatWAV:
		writeErr := os.WriteFile(path, EncodeWAV(clip), exportPermissions)
		if writeErr != nil {
			return fmt.Errorf("failed to write wav file: %w", writeErr)
		}

		return nil
	case core.FormatMP3:
		return exportMP3(ctx, clip, path)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func exportMP3(ctx context.Context, clip *Clip, path string) error {
	tempFile, tempErr := os.CreateTemp(filepath.Dir(path), tempExportPattern)
	if tempErr != nil {
		return fmt.Errorf("failed to create temp file for mp3 export: %w", tempErr)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	_, writeErr := tempFile.Write(EncodeWAV(clip))
	closeErr := tempFile.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to write temp wav: %w", writeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close temp wav: %w", closeErr)
	}

	// #nosec G204 -- both paths are produced by this process.
	cmd := exec.CommandContext(ctx, ffmpegBinary,
		"-y", "-i", tempPath, "-b:a", mp3Bitrate, path)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return fmt.Errorf(errFmtFFmpegFailure, runErr, string(output))
	}

	return nil
}

func applyGain(clip *Clip, gainDB float64) {
	factor := math.Pow(10, gainDB/decibelsPerDecad)

	for i, sample := range clip.Samples {
		scaled := math.Round(float64(sample) * factor)

		switch {
		case scaled > maxSampleValue:
			clip.Samples[i] = maxSampleValue
		case scaled < minSampleValue:
			clip.Samples[i] = minSampleValue
		default:
			clip.Samples[i] = int16(scaled)
		}
	}
}

// silenceSamples builds a run of zero samples covering the given duration at
// the clip's own rate and channel count. Duration resolves at millisecond
// granularity.
func silenceSamples(clip *Clip, seconds float64) []int16 {
	millis := int(seconds * millisPerSecond)
	frames := millis * clip.SampleRate / millisPerSecond

	return make([]int16, frames*clip.Channels)
}
