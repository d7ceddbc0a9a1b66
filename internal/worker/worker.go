// Package worker provides the headless NATS intake: generation jobs arrive
// as JSON messages, each segment is synthesized and post-processed, the
// clips are uploaded to the object store, and a summary is published as the
// reply.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rogoai/voice-studio/internal/audio"
	"github.com/rogoai/voice-studio/internal/core"
	"github.com/rogoai/voice-studio/internal/text"
)

const (
	handleMessageTimeout = 5 * time.Minute
	clipKeyFormat        = "%s_%03d.wav"
)

// Static errors.
var (
	ErrTextEmpty       = errors.New("job text cannot be empty")
	ErrUnknownBackend  = errors.New("unknown backend in job")
	ErrSpeedRange      = errors.New("speed must be greater than 0")
	ErrVolumeRange     = errors.New("volume must be non-negative")
	ErrSilenceNegative = errors.New("silence durations must be non-negative")
)

// GenerationJob is the wire format of one batch generation request. Text is
// split into segments on the worker side, so producers send raw input.
type GenerationJob struct {
	JobID              string  `json:"job_id,omitempty"`
	Text               string  `json:"text"`
	Backend            string  `json:"backend"`
	SpeakerID          int     `json:"speaker_id"`
	ReferenceVoicePath string  `json:"reference_voice_path,omitempty"`
	LanguageCode       string  `json:"language_code,omitempty"`
	Speed              float64 `json:"speed"`
	Volume             float64 `json:"volume"`
	Pitch              float64 `json:"pitch"`
	Intonation         float64 `json:"intonation"`
	PreSilence         float64 `json:"pre_silence"`
	PostSilence        float64 `json:"post_silence"`
}

// GenerationJobResult is the reply published when a job finishes. ClipKeys
// are object-store keys in segment order; Error is set when the job aborted
// before completing every segment.
type GenerationJobResult struct {
	JobID     string   `json:"job_id"`
	ClipKeys  []string `json:"clip_keys"`
	Succeeded int      `json:"succeeded"`
	Total     int      `json:"total"`
	Error     string   `json:"error,omitempty"`
}

// NatsWorker listens for generation jobs on a NATS subject and processes
// them.
type NatsWorker struct {
	natsConnection   *nats.Conn
	jetstreamContext nats.JetStreamContext
	subject          string
	store            core.ObjectStore
	engines          map[core.BackendKind]core.SynthesisEngine
	log              *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	jetstreamContext nats.JetStreamContext,
	subject string,
	store core.ObjectStore,
	engines map[core.BackendKind]core.SynthesisEngine,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection:   natsConnection,
		jetstreamContext: jetstreamContext,
		subject:          subject,
		store:            store,
		engines:          engines,
		log:              log,
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	job, parseErr := w.parseAndValidateJob(msg)
	if parseErr != nil {
		w.log.Error("Failed to parse and validate job: %v", parseErr)

		return
	}

	result := w.processJob(ctx, job)

	publishErr := w.publishResult(msg, result)
	if publishErr != nil {
		w.log.Error("Failed to publish result for job %s: %v", result.JobID, publishErr)
	}
}

// processJob splits, synthesizes, post-processes, and uploads every segment
// of one job. The first failing segment aborts the rest; clips already
// uploaded stay in the store and are reported in the result.
func (w *NatsWorker) processJob(ctx context.Context, job *GenerationJob) *GenerationJobResult {
	segments := text.Split(job.Text)

	result := &GenerationJobResult{
		JobID:     job.JobID,
		ClipKeys:  nil,
		Succeeded: 0,
		Total:     len(segments),
		Error:     "",
	}

	engine := w.engines[core.BackendKind(job.Backend)]
	params := core.SynthesisParams{
		Speed:              job.Speed,
		Volume:             job.Volume,
		Pitch:              job.Pitch,
		Intonation:         job.Intonation,
		ReferenceVoicePath: job.ReferenceVoicePath,
		LanguageCode:       job.LanguageCode,
		SpeakerID:          job.SpeakerID,
	}

	for index, segment := range segments {
		key, segErr := w.processSegment(ctx, engine, segment, params, job, index+1)
		if segErr != nil {
			w.log.Error("Job %s segment %d/%d failed: %v",
				job.JobID, index+1, result.Total, segErr)
			result.Error = segErr.Error()

			return result
		}

		result.ClipKeys = append(result.ClipKeys, key)
		result.Succeeded++
	}

	return result
}

func (w *NatsWorker) processSegment(
	ctx context.Context,
	engine core.SynthesisEngine,
	segment string,
	params core.SynthesisParams,
	job *GenerationJob,
	sequence int,
) (string, error) {
	rawAudio, synthErr := engine.Synthesize(ctx, segment, params)
	if synthErr != nil {
		return "", fmt.Errorf("synthesis failed: %w", synthErr)
	}

	clip, processErr := audio.Process(rawAudio, params.Volume, job.PreSilence, job.PostSilence)
	if processErr != nil {
		return "", processErr
	}

	key := fmt.Sprintf(clipKeyFormat, job.JobID, sequence)

	uploadErr := w.store.Upload(ctx, key, audio.EncodeWAV(clip))
	if uploadErr != nil {
		return "", fmt.Errorf("failed to upload clip '%s': %w", key, uploadErr)
	}

	return key, nil
}

// publishResult marshals and responds with the job result.
func (w *NatsWorker) publishResult(msg *nats.Msg, result *GenerationJobResult) error {
	replyData, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal job result: %w", marshalErr)
	}

	respondErr := msg.Respond(replyData)
	if respondErr != nil {
		return fmt.Errorf("failed to publish job result: %w", respondErr)
	}

	return nil
}

func (w *NatsWorker) parseAndValidateJob(msg *nats.Msg) (*GenerationJob, error) {
	var job GenerationJob

	unmarshalErr := json.Unmarshal(msg.Data, &job)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", unmarshalErr)
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}

	validationErr := w.validateJob(&job)
	if validationErr != nil {
		return nil, validationErr
	}

	return &job, nil
}

// validateJob ensures the job contains valid and safe values before any
// engine is invoked.
func (w *NatsWorker) validateJob(job *GenerationJob) error {
	if len(text.Split(job.Text)) == 0 {
		return ErrTextEmpty
	}

	_, ok := w.engines[core.BackendKind(job.Backend)]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownBackend, job.Backend)
	}

	if job.Speed <= 0 {
		return fmt.Errorf("%w: got %f", ErrSpeedRange, job.Speed)
	}

	if job.Volume < 0 {
		return fmt.Errorf("%w: got %f", ErrVolumeRange, job.Volume)
	}

	if job.PreSilence < 0 || job.PostSilence < 0 {
		return fmt.Errorf("%w: got %f/%f", ErrSilenceNegative, job.PreSilence, job.PostSilence)
	}

	return nil
}
