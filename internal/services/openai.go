package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig selects the models used when the OpenAI backend is active.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	VisionModel     string
	TranscribeModel string
	Marker          string
}

// OpenAIClient analyses CT images with a vision chat model and transcribes
// voice notes with Whisper.
type OpenAIClient struct {
	client          *openai.Client
	httpClient      *http.Client
	visionModel     string
	transcribeModel string
	marker          string
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = "gpt-4o-mini"
	}
	transcribeModel := cfg.TranscribeModel
	if transcribeModel == "" {
		transcribeModel = openai.Whisper1
	}

	return &OpenAIClient{
		client:          openai.NewClientWithConfig(oc),
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		visionModel:     visionModel,
		transcribeModel: transcribeModel,
		marker:          cfg.Marker,
	}, nil
}

// Analyze sends the image and optional clinical note to the vision model.
func (c *OpenAIClient) Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error) {
	userParts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: analysisUserPrompt(req.Context),
		},
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    req.ImageRef,
				Detail: openai.ImageURLDetailAuto,
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisSystemPrompt(c.marker)},
			{Role: openai.ChatMessageRoleUser, MultiContent: userParts},
		},
		MaxTokens:   1500,
		Temperature: 0.2,
	})
	if err != nil {
		return AnalysisResult{}, wrapOpenAIError("analyze", err)
	}
	if len(resp.Choices) == 0 {
		return AnalysisResult{}, fmt.Errorf("analyze: %w", ErrEmptyResponse)
	}

	result := parseSections(resp.Choices[0].Message.Content)
	result.ContextUsed = strings.TrimSpace(req.Context) != ""
	return result, nil
}

// Transcribe accepts a data: URL or an http(s) URL to the audio file.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioRef string) (string, error) {
	name, data, err := c.fetchAudio(ctx, audioRef)
	if err != nil {
		return "", err
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: name,
		Reader:   bytes.NewReader(data),
	})
	if err != nil {
		return "", wrapOpenAIError("transcribe", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Ping lists models as a cheap authenticated round trip.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return wrapOpenAIError("ping", err)
	}
	return nil
}

func (c *OpenAIClient) fetchAudio(ctx context.Context, ref string) (string, []byte, error) {
	mediaType, data, err := decodeDataURL(ref)
	switch {
	case err == nil:
		return "voice-note" + extensionFor(mediaType), data, nil
	case !errors.Is(err, errNotDataURL):
		return "", nil, fmt.Errorf("transcribe: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", nil, fmt.Errorf("transcribe: failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("transcribe: %w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, &PlatformError{Op: "fetch audio", StatusCode: resp.StatusCode, Body: resp.Status}
	}
	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("transcribe: failed to read audio: %w", err)
	}

	name := path.Base(req.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "voice-note" + extensionFor(resp.Header.Get("Content-Type"))
	}
	return name, data, nil
}

func wrapOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &PlatformError{Op: op, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &PlatformError{Op: op, StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrServiceUnavailable, err)
}
