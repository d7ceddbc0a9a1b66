// Package character provides the HTTP client for the remote character-voice
// synthesis engine.
//
// The engine exposes a two-step protocol: a parameter-build call returns a
// JSON synthesis query for a text and speaker, the caller adjusts the scale
// fields in that query, and a render call turns the adjusted query into WAV
// audio.
package character

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rogoai/voice-studio/internal/core"
	"golang.org/x/time/rate"
)

// API endpoints and paths.
const (
	apiAudioQuery = "/audio_query"
	apiSynthesis  = "/synthesis"
	apiVersion    = "/version"
	apiSpeakers   = "/speakers"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Query parameter names.
const (
	paramText    = "text"
	paramSpeaker = "speaker"
)

// Default request pacing when the caller does not configure one.
const defaultRequestsPerSecond = 4.0

// Error messages.
const (
	errFmtServiceErrorDetail = "character engine error (%s): %s"
	errFmtServiceNonOKStatus = "character engine returned non-OK status: %s, body: %s"
	errFmtUnexpectedAudio    = "unexpected content type: expected audio/wav, got %s"
)

// Static errors.
var (
	ErrTextEmpty      = errors.New("text cannot be empty")
	ErrEmptyAudio     = errors.New("received empty audio data")
	ErrSpeakerUnknown = errors.New("speaker not found")
)

// Client represents a client for the character-voice HTTP engine.
// It encapsulates the HTTP configuration and paces requests so batch jobs do
// not flood the engine.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// synthesisQuery is the parameter document returned by the engine's
// build-parameters call. Only the scale fields are adjusted locally; every
// other field the engine returned is carried back verbatim, which is why the
// document is kept as a raw map.
type synthesisQuery map[string]any

// errorResponse is the structured error body the engine returns on failures.
type errorResponse struct {
	Detail string `json:"detail"`
}

// Style is one selectable voice style of a speaker.
type Style struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// Speaker is one entry of the engine's speaker catalog.
type Speaker struct {
	Name   string  `json:"name"`
	Styles []Style `json:"styles"`
}

// NewClient creates and configures a client for the character-voice engine.
// The baseURL should include the protocol and port (e.g.
// "http://localhost:50021"). The timeout applies to every HTTP request;
// requestsPerSecond bounds the request rate (<= 0 selects a default).
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}

	return &Client{
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Kind identifies this engine to the filename synthesizer and job layer.
func (c *Client) Kind() core.BackendKind {
	return core.BackendCharacter
}

// Synthesize renders one text segment with the given speaker and scale
// parameters and returns the raw WAV bytes. The two remote calls behave as
// one atomic operation: any failure in either step fails the whole call and
// nothing is retried.
func (c *Client) Synthesize(
	ctx context.Context,
	text string,
	params core.SynthesisParams,
) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	query, queryErr := c.buildQuery(ctx, text, params.SpeakerID)
	if queryErr != nil {
		return nil, queryErr
	}

	query["speedScale"] = params.Speed
	query["volumeScale"] = params.Volume
	query["pitchScale"] = params.Pitch
	query["intonationScale"] = params.Intonation

	return c.render(ctx, query, params.SpeakerID)
}

// HealthCheck verifies that the engine is running by fetching its version
// string. Batch jobs call this before processing to fail fast when the
// engine is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+apiVersion,
		http.NoBody,
	)
	if reqErr != nil {
		return fmt.Errorf("failed to create health check request: %w", reqErr)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf(
			"health check failed for engine at %s: %w",
			c.baseURL,
			doErr,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// Speakers fetches the engine's speaker catalog.
func (c *Client) Speakers(ctx context.Context) ([]Speaker, error) {
	req, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+apiSpeakers,
		http.NoBody,
	)
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create speakers request: %w", reqErr)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf(
			"failed to fetch speakers from engine at %s: %w",
			c.baseURL,
			doErr,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var speakers []Speaker

	decodeErr := json.NewDecoder(resp.Body).Decode(&speakers)
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode speaker catalog: %w", decodeErr)
	}

	return speakers, nil
}

// ResolveSpeakerID looks a "speaker (style)" pair up in the catalog and
// returns its numeric style id.
func ResolveSpeakerID(speakers []Speaker, speakerName, styleName string) (int, error) {
	for _, speaker := range speakers {
		if speaker.Name != speakerName {
			continue
		}

		for _, style := range speaker.Styles {
			if style.Name == styleName {
				return style.ID, nil
			}
		}
	}

	return 0, fmt.Errorf("%w: %s (%s)", ErrSpeakerUnknown, speakerName, styleName)
}

// buildQuery performs the parameter-build step and returns the engine's
// synthesis query document.
func (c *Client) buildQuery(
	ctx context.Context,
	text string,
	speakerID int,
) (synthesisQuery, error) {
	waitErr := c.limiter.Wait(ctx)
	if waitErr != nil {
		return nil, fmt.Errorf("request pacing interrupted: %w", waitErr)
	}

	values := url.Values{}
	values.Set(paramText, text)
	values.Set(paramSpeaker, strconv.Itoa(speakerID))

	requestURL := c.baseURL + apiAudioQuery + "?" + values.Encode()

	req, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		requestURL,
		http.NoBody,
	)
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create query request: %w", reqErr)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf(
			"failed to send query request to engine at %s: %w",
			c.baseURL,
			doErr,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var query synthesisQuery

	decodeErr := json.NewDecoder(resp.Body).Decode(&query)
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode synthesis query: %w", decodeErr)
	}

	return query, nil
}

// render performs the render step and returns the WAV bytes.
func (c *Client) render(
	ctx context.Context,
	query synthesisQuery,
	speakerID int,
) ([]byte, error) {
	waitErr := c.limiter.Wait(ctx)
	if waitErr != nil {
		return nil, fmt.Errorf("request pacing interrupted: %w", waitErr)
	}

	body, marshalErr := json.Marshal(query)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal synthesis query: %w", marshalErr)
	}

	values := url.Values{}
	values.Set(paramSpeaker, strconv.Itoa(speakerID))

	requestURL := c.baseURL + apiSynthesis + "?" + values.Encode()

	req, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		requestURL,
		bytes.NewBuffer(body),
	)
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create render request: %w", reqErr)
	}

	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerAccept, contentTypeWAV)

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf(
			"failed to send render request to engine at %s: %w",
			c.baseURL,
			doErr,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf(errFmtUnexpectedAudio, contentType)
	}

	audioData, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", readErr)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// engine. If structured parsing fails, it falls back to the raw response body
// so diagnostic information is preserved.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errorResp errorResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&errorResp)
	if decodeErr == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorDetail, resp.Status, errorResp.Detail)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
