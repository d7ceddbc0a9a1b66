// Package worker_test tests the NATS worker for voice generation jobs.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/rogoai/voice-studio/internal/audio"
	"github.com/rogoai/voice-studio/internal/core"
	"github.com/rogoai/voice-studio/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockUpload = errors.New("mock upload error")

// mockObjectStore is a mock implementation of the ObjectStore interface.
type mockObjectStore struct {
	mu               sync.Mutex
	uploadShouldFail bool
	uploadedKeys     []string
	uploadedData     map[string][]byte
}

func (m *mockObjectStore) Download(_ context.Context, _ string) ([]byte, error) {
	return nil, nil
}

func (m *mockObjectStore) Upload(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.uploadShouldFail {
		return errMockUpload
	}

	if m.uploadedData == nil {
		m.uploadedData = make(map[string][]byte)
	}

	m.uploadedKeys = append(m.uploadedKeys, key)
	m.uploadedData[key] = data

	return nil
}

// mockEngine is a mock implementation of the SynthesisEngine interface.
type mockEngine struct {
	mu    sync.Mutex
	texts []string
}

func (m *mockEngine) Kind() core.BackendKind {
	return core.BackendCharacter
}

func (m *mockEngine) Synthesize(
	_ context.Context,
	text string,
	_ core.SynthesisParams,
) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.texts = append(m.texts, text)

	clip := &audio.Clip{
		SampleRate: 24000,
		Channels:   1,
		Samples:    []int16{100, -100},
	}

	return audio.EncodeWAV(clip), nil
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func setupTest(t *testing.T) (*mockObjectStore, *mockEngine, *nats.Conn, context.CancelFunc) {
	t.Helper()

	mockStore := &mockObjectStore{}
	engine := &mockEngine{}

	natsConnection := createTestNatsClient(t)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = testLogger.Close()
	})

	workerInstance, err := worker.NewNatsWorker(
		natsConnection,
		jetstreamContext,
		"voice.generate",
		mockStore,
		map[core.BackendKind]core.SynthesisEngine{core.BackendCharacter: engine},
		testLogger,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan)
	})

	// Wait until the worker's subscription is registered and flushed to the
	// server before letting tests publish requests.
	require.Eventually(t, func() bool {
		return natsConnection.NumSubscriptions() > 0
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, natsConnection.Flush())

	return mockStore, engine, natsConnection, cancel
}

func TestWorker_ProcessJob_Success(t *testing.T) {
	t.Parallel()

	mockStore, engine, natsConnection, _ := setupTest(t)

	job := worker.GenerationJob{
		JobID:      "job-42",
		Text:       "First segment.\n\nSecond segment.",
		Backend:    "character",
		SpeakerID:  3,
		Speed:      1.0,
		Volume:     1.0,
		Intonation: 1.0,
	}
	jobData, err := json.Marshal(job)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("voice.generate", jobData, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var result worker.GenerationJobResult

	require.NoError(t, json.Unmarshal(replyMsg.Data, &result))

	assert.Equal(t, "job-42", result.JobID)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Total)
	assert.Empty(t, result.Error)
	assert.Equal(t, []string{"job-42_001.wav", "job-42_002.wav"}, result.ClipKeys)

	assert.Equal(t, []string{"First segment.", "Second segment."}, engine.texts)
	assert.Equal(t, result.ClipKeys, mockStore.uploadedKeys)

	// Uploaded clips are valid containers.
	clip, decodeErr := audio.DecodeWAV(mockStore.uploadedData["job-42_001.wav"])
	require.NoError(t, decodeErr)
	assert.Equal(t, 24000, clip.SampleRate)
}

func TestWorker_ProcessJob_AssignsJobID(t *testing.T) {
	t.Parallel()

	_, _, natsConnection, _ := setupTest(t)

	job := worker.GenerationJob{
		Text:    "Only segment.",
		Backend: "character",
		Speed:   1.0,
		Volume:  1.0,
	}
	jobData, err := json.Marshal(job)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("voice.generate", jobData, 5*time.Second)
	require.NoError(t, err)

	var result worker.GenerationJobResult

	require.NoError(t, json.Unmarshal(replyMsg.Data, &result))
	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, 1, result.Succeeded)
}

func TestWorker_ProcessJob_UploadFailureAborts(t *testing.T) {
	t.Parallel()

	mockStore, _, natsConnection, _ := setupTest(t)
	mockStore.uploadShouldFail = true

	job := worker.GenerationJob{
		JobID:   "job-43",
		Text:    "One.\n\nTwo.",
		Backend: "character",
		Speed:   1.0,
		Volume:  1.0,
	}
	jobData, err := json.Marshal(job)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("voice.generate", jobData, 5*time.Second)
	require.NoError(t, err)

	var result worker.GenerationJobResult

	require.NoError(t, json.Unmarshal(replyMsg.Data, &result))
	assert.Zero(t, result.Succeeded)
	assert.Equal(t, 2, result.Total)
	assert.Contains(t, result.Error, "mock upload error")
}

func TestWorker_ProcessJob_RejectsInvalidJob(t *testing.T) {
	t.Parallel()

	_, engine, natsConnection, _ := setupTest(t)

	// Unknown backend: the worker drops the message without replying.
	job := worker.GenerationJob{
		Text:    "Some text.",
		Backend: "vocoder",
		Speed:   1.0,
		Volume:  1.0,
	}
	jobData, err := json.Marshal(job)
	require.NoError(t, err)

	_, err = natsConnection.Request("voice.generate", jobData, 200*time.Millisecond)
	require.Error(t, err)
	assert.Empty(t, engine.texts)
}
