// Package vlm provides the vision-language image describer consumed
// when a platform message part is an image or emoji/sticker. The HTTP
// shape mirrors internal/llm's OpenAI-compatible chat completion client,
// adapted to a single-purpose "describe these bytes" call instead of a
// general chat loop.
package vlm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const timeout = 30 * time.Second

// Description is the result of describing one image.
type Description struct {
	Text    string `json:"description"`
	Emotion string `json:"emotion,omitempty"` // only populated for stickers
}

// Describer produces a description (and, for stickers, an inferred
// emotion) from raw image bytes.
type Describer interface {
	Describe(ctx context.Context, data []byte, isSticker bool) (Description, error)
}

// HTTPDescriber calls an OpenAI-compatible /chat/completions endpoint
// with an inline base64 image content part.
type HTTPDescriber struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
}

// NewHTTPDescriber creates a new HTTP-backed vision describer.
func NewHTTPDescriber(apiKey, apiBase, model string) *HTTPDescriber {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &HTTPDescriber{
		apiKey:  apiKey,
		apiBase: apiBase,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

const (
	imagePrompt  = "Describe what is shown in this image in one or two plain sentences."
	stickerPrompt = "This is a chat sticker/emoji. Reply with strict JSON: {\"description\": \"what it depicts\", \"emotion\": \"the single emotion it conveys\"}."
)

func (d *HTTPDescriber) Describe(ctx context.Context, data []byte, isSticker bool) (Description, error) {
	prompt := imagePrompt
	if isSticker {
		prompt = stickerPrompt
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	body := map[string]any{
		"model": d.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]string{"url": "data:image/png;base64," + encoded}},
				},
			},
		},
		"max_tokens":  300,
		"temperature": 0.5,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Description{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return Description{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Description{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data2, err := io.ReadAll(resp.Body)
	if err != nil {
		return Description{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Description{}, fmt.Errorf("vlm API error %d: %s", resp.StatusCode, string(data2))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data2, &parsed); err != nil {
		return Description{}, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Description{}, fmt.Errorf("no choices in vlm response")
	}

	content := parsed.Choices[0].Message.Content
	if !isSticker {
		return Description{Text: content}, nil
	}

	var sticker Description
	if err := json.Unmarshal([]byte(content), &sticker); err != nil {
		// Fall back to treating the whole completion as the description
		// rather than failing the message entirely.
		return Description{Text: content, Emotion: "neutral"}, nil
	}
	return sticker, nil
}
