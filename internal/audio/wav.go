// Package audio provides decoding, gain and silence-padding post-processing,
// and container export for synthesized voice clips.
//
// Both synthesis backends hand back raw 16-bit PCM WAV bytes; this package is
// the only place that looks inside the container.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV container layout constants.
const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkMinSize = 16
	pcmFormatCode   = 1
	pcm16BitDepth   = 16
	bytesPerSample  = 2
)

// Chunk identifiers.
const (
	riffTag = "RIFF"
	waveTag = "WAVE"
	fmtTag  = "fmt "
	dataTag = "data"
)

// Static errors.
var (
	ErrNotWAV            = errors.New("data is not a RIFF/WAVE container")
	ErrTruncatedWAV      = errors.New("truncated WAV data")
	ErrUnsupportedFormat = errors.New("unsupported WAV encoding")
	ErrMissingDataChunk  = errors.New("WAV container has no data chunk")
)

// Clip is a decoded, in-memory audio buffer between synthesis and file
// export. Samples are interleaved 16-bit PCM.
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// DurationMillis returns the clip length in milliseconds.
func (c *Clip) DurationMillis() int {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}

	frames := len(c.Samples) / c.Channels

	return frames * 1000 / c.SampleRate
}

// DecodeWAV parses a 16-bit PCM RIFF/WAVE byte stream into a Clip.
func DecodeWAV(raw []byte) (*Clip, error) {
	if len(raw) < riffHeaderSize {
		return nil, ErrTruncatedWAV
	}

	if string(raw[0:4]) != riffTag || string(raw[8:12]) != waveTag {
		return nil, ErrNotWAV
	}

	var (
		clip     Clip
		haveFmt  bool
		haveData bool
	)

	offset := riffHeaderSize

	for offset+chunkHeaderSize <= len(raw) {
		chunkID := string(raw[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		body := offset + chunkHeaderSize

		if body+chunkSize > len(raw) {
			return nil, ErrTruncatedWAV
		}

		switch chunkID {
		case fmtTag:
			fmtErr := parseFmtChunk(raw[body:body+chunkSize], &clip)
			if fmtErr != nil {
				return nil, fmtErr
			}

			haveFmt = true
		case dataTag:
			clip.Samples = decodeSamples(raw[body : body+chunkSize])
			haveData = true
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		offset = body + chunkSize + chunkSize%2
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrNotWAV)
	}

	if !haveData {
		return nil, ErrMissingDataChunk
	}

	return &clip, nil
}

// EncodeWAV serializes a Clip back into a 16-bit PCM RIFF/WAVE byte stream.
func EncodeWAV(clip *Clip) []byte {
	dataSize := len(clip.Samples) * bytesPerSample
	total := riffHeaderSize + chunkHeaderSize + fmtChunkMinSize + chunkHeaderSize + dataSize

	out := make([]byte, 0, total)
	out = append(out, riffTag...)
	out = binary.LittleEndian.AppendUint32(out, uint32(total-chunkHeaderSize))
	out = append(out, waveTag...)

	byteRate := clip.SampleRate * clip.Channels * bytesPerSample
	blockAlign := clip.Channels * bytesPerSample

	out = append(out, fmtTag...)
	out = binary.LittleEndian.AppendUint32(out, fmtChunkMinSize)
	out = binary.LittleEndian.AppendUint16(out, pcmFormatCode)
	out = binary.LittleEndian.AppendUint16(out, uint16(clip.Channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(clip.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(byteRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, pcm16BitDepth)

	out = append(out, dataTag...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))

	for _, sample := range clip.Samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(sample))
	}

	return out
}

func parseFmtChunk(body []byte, clip *Clip) error {
	if len(body) < fmtChunkMinSize {
		return ErrTruncatedWAV
	}

	formatCode := binary.LittleEndian.Uint16(body[0:2])
	if formatCode != pcmFormatCode {
		return fmt.Errorf("%w: format code %d", ErrUnsupportedFormat, formatCode)
	}

	bitDepth := binary.LittleEndian.Uint16(body[14:16])
	if bitDepth != pcm16BitDepth {
		return fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitDepth)
	}

	clip.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
	clip.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))

	return nil
}

func decodeSamples(body []byte) []int16 {
	count := len(body) / bytesPerSample
	samples := make([]int16, count)

	for i := range count {
		samples[i] = int16(binary.LittleEndian.Uint16(body[i*bytesPerSample : i*bytesPerSample+bytesPerSample]))
	}

	return samples
}
