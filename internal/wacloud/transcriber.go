// ABOUTME: Audio media retrieval and transcription for voice messages
// ABOUTME: Resolves a media id to a download URL, fetches bytes, transcribes them

package wacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const maxMediaBytes = 16 << 20 // Cloud API caps audio uploads at 16 MB

// Transcriber turns an inbound audio message into text. Media lives behind
// the Graph API (media id -> short-lived URL -> bytes); transcription goes
// through an OpenAI-compatible audio endpoint.
type Transcriber struct {
	graphBaseURL string
	accessToken  string
	sttBaseURL   string
	sttAPIKey    string
	sttModel     string
	http         *http.Client
	logger       *slog.Logger
}

// NewTranscriber creates a transcriber. Empty base URLs select the
// production Graph and OpenAI endpoints.
func NewTranscriber(graphBaseURL, accessToken, sttBaseURL, sttAPIKey, sttModel string, logger *slog.Logger) *Transcriber {
	if graphBaseURL == "" {
		graphBaseURL = defaultGraphBaseURL
	}
	if sttBaseURL == "" {
		sttBaseURL = "https://api.openai.com"
	}
	if sttModel == "" {
		sttModel = "whisper-1"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		graphBaseURL: strings.TrimRight(graphBaseURL, "/"),
		accessToken:  accessToken,
		sttBaseURL:   strings.TrimRight(sttBaseURL, "/"),
		sttAPIKey:    sttAPIKey,
		sttModel:     sttModel,
		http:         &http.Client{Timeout: 60 * time.Second},
		logger:       logger.With("component", "wacloud.transcriber"),
	}
}

type mediaLookup struct {
	URL      string    `json:"url"`
	MimeType string    `json:"mime_type"`
	Error    *apiError `json:"error,omitempty"`
}

type transcription struct {
	Text  string    `json:"text"`
	Error *apiError `json:"error,omitempty"`
}

// DownloadAndTranscribe resolves the media id and returns the transcript
// text.
func (t *Transcriber) DownloadAndTranscribe(ctx context.Context, mediaID string) (string, error) {
	audio, mimeType, err := t.fetchMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}

	text, err := t.transcribe(ctx, audio, mimeType)
	if err != nil {
		return "", err
	}

	t.logger.Debug("audio transcribed", "media_id", mediaID, "chars", len(text))
	return text, nil
}

// fetchMedia resolves the media id to its short-lived URL and downloads
// the bytes. Both requests carry the Graph access token.
func (t *Transcriber) fetchMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.graphBaseURL+"/"+mediaID, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building media lookup: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.accessToken)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("looking up media %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, "", fmt.Errorf("reading media lookup: %w", err)
	}

	var lookup mediaLookup
	if err := json.Unmarshal(raw, &lookup); err != nil {
		return nil, "", fmt.Errorf("decoding media lookup (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if lookup.Error != nil {
			return nil, "", fmt.Errorf("media lookup rejected: %s", lookup.Error)
		}
		return nil, "", fmt.Errorf("media lookup rejected: status %d", resp.StatusCode)
	}
	if lookup.URL == "" {
		return nil, "", fmt.Errorf("media lookup returned no url")
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, lookup.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building media download: %w", err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+t.accessToken)

	dlResp, err := t.http.Do(dlReq)
	if err != nil {
		return nil, "", fmt.Errorf("downloading media %s: %w", mediaID, err)
	}
	defer dlResp.Body.Close()

	if dlResp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media download rejected: status %d", dlResp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(dlResp.Body, maxMediaBytes))
	if err != nil {
		return nil, "", fmt.Errorf("reading media bytes: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("media download was empty")
	}
	return audio, lookup.MimeType, nil
}

// transcribe posts the audio as multipart form data to the transcription
// endpoint.
func (t *Transcriber) transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("model", t.sttModel); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	part, err := mw.CreateFormFile("file", fileNameForMime(mimeType))
	if err != nil {
		return "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio bytes: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finishing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.sttBaseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("building transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if t.sttAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.sttAPIKey)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling transcription endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading transcription response: %w", err)
	}

	var out transcription
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decoding transcription (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil {
			return "", fmt.Errorf("transcription rejected: %s", out.Error)
		}
		return "", fmt.Errorf("transcription rejected: status %d", resp.StatusCode)
	}

	return strings.TrimSpace(out.Text), nil
}

// fileNameForMime picks a file extension the endpoint will accept.
func fileNameForMime(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"):
		return "audio.ogg"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return "audio.mp3"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return "audio.m4a"
	case strings.Contains(mimeType, "wav"):
		return "audio.wav"
	default:
		return "audio.ogg" // Cloud API voice notes default to ogg/opus
	}
}
