package character_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rogoai/voice-studio/internal/core"
	"github.com/rogoai/voice-studio/internal/synth/character"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 10 * time.Second
	testText    = "こんにちは、世界。"
	testWAVBody = "RIFF....WAVE"
)

func testParams() core.SynthesisParams {
	return core.SynthesisParams{
		Speed:      1.2,
		Volume:     0.9,
		Pitch:      0.05,
		Intonation: 1.1,
		SpeakerID:  3,
	}
}

// newEngineServer builds a mock engine implementing the two-step protocol
// and records the query document the render step receives.
func newEngineServer(t *testing.T, rendered *map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, testText, r.URL.Query().Get("text"))
		require.Equal(t, "3", r.URL.Query().Get("speaker"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accent_phrases":     []any{},
			"speedScale":         1.0,
			"volumeScale":        1.0,
			"pitchScale":         0.0,
			"intonationScale":    1.0,
			"outputSamplingRate": 24000,
		})
	})

	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "3", r.URL.Query().Get("speaker"))

		decodeErr := json.NewDecoder(r.Body).Decode(rendered)
		require.NoError(t, decodeErr)

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte(testWAVBody))
	})

	return httptest.NewServer(mux)
}

func TestClient_Synthesize_Success(t *testing.T) {
	t.Parallel()

	var rendered map[string]any

	server := newEngineServer(t, &rendered)
	defer server.Close()

	client := character.NewClient(server.URL, testTimeout, 0)

	audio, err := client.Synthesize(context.Background(), testText, testParams())
	require.NoError(t, err)
	assert.Equal(t, []byte(testWAVBody), audio)

	// The scale fields must be overwritten while the rest of the engine's
	// query document passes through untouched.
	assert.InEpsilon(t, 1.2, rendered["speedScale"], 0.0001)
	assert.InEpsilon(t, 0.9, rendered["volumeScale"], 0.0001)
	assert.InEpsilon(t, 0.05, rendered["pitchScale"], 0.0001)
	assert.InEpsilon(t, 1.1, rendered["intonationScale"], 0.0001)
	assert.InEpsilon(t, 24000, rendered["outputSamplingRate"], 0.0001)
}

func TestClient_Synthesize_EmptyText(t *testing.T) {
	t.Parallel()

	client := character.NewClient("http://127.0.0.1:50021", testTimeout, 0)

	_, err := client.Synthesize(context.Background(), "", testParams())
	require.ErrorIs(t, err, character.ErrTextEmpty)
}

func TestClient_Synthesize_EngineError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"detail": "invalid speaker",
			})
		}),
	)
	defer server.Close()

	client := character.NewClient(server.URL, testTimeout, 0)

	_, err := client.Synthesize(context.Background(), testText, testParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid speaker")
}

func TestClient_Synthesize_WrongContentType(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"speedScale":1.0}`))
	})
	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("not audio"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := character.NewClient(server.URL, testTimeout, 0)

	_, err := client.Synthesize(context.Background(), testText, testParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content type")
}

func TestClient_HealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/version", r.URL.Path)
			require.Equal(t, http.MethodGet, r.Method)

			_, _ = w.Write([]byte(`"0.14.0"`))
		}),
	)
	defer server.Close()

	client := character.NewClient(server.URL, testTimeout, 0)

	require.NoError(t, client.HealthCheck(context.Background()))
}

func TestClient_HealthCheck_EngineDown(t *testing.T) {
	t.Parallel()

	client := character.NewClient("http://127.0.0.1:1", time.Second, 0)

	require.Error(t, client.HealthCheck(context.Background()))
}

func TestClient_Speakers(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/speakers", r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"name":"ずんだもん","styles":[{"name":"ノーマル","id":3},{"name":"あまあま","id":1}]},
				{"name":"四国めたん","styles":[{"name":"ノーマル","id":2}]}
			]`))
		}),
	)
	defer server.Close()

	client := character.NewClient(server.URL, testTimeout, 0)

	speakers, err := client.Speakers(context.Background())
	require.NoError(t, err)
	require.Len(t, speakers, 2)
	assert.Equal(t, "ずんだもん", speakers[0].Name)
	require.Len(t, speakers[0].Styles, 2)
	assert.Equal(t, 3, speakers[0].Styles[0].ID)
}

func TestResolveSpeakerID(t *testing.T) {
	t.Parallel()

	speakers := []character.Speaker{
		{
			Name: "ずんだもん",
			Styles: []character.Style{
				{Name: "ノーマル", ID: 3},
				{Name: "あまあま", ID: 1},
			},
		},
	}

	id, err := character.ResolveSpeakerID(speakers, "ずんだもん", "あまあま")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	_, err = character.ResolveSpeakerID(speakers, "ずんだもん", "ささやき")
	require.ErrorIs(t, err, character.ErrSpeakerUnknown)
}

func TestClient_Kind(t *testing.T) {
	t.Parallel()

	client := character.NewClient("http://127.0.0.1:50021", testTimeout, 0)

	assert.Equal(t, core.BackendCharacter, client.Kind())
}
