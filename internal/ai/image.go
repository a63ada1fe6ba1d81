package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIImageProvider calls the images/generations endpoint. Depending on
// the model, a result arrives as inline base64 or a fetchable URL.
type OpenAIImageProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type imageGenerationReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	N      int    `json:"n"`
}

type imageGenerationResp struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAIImageProvider(baseURL, apiKey, model string) *OpenAIImageProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIImageProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OpenAIImageProvider) Generate(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	if p.Client == nil {
		return nil, errors.New("openai: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}

	size := req.Size
	if size == "" {
		size = "1024x1024"
	}
	b, err := json.Marshal(imageGenerationReq{
		Model:  p.Model,
		Prompt: req.Prompt,
		Size:   size,
		N:      1,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/images/generations", strings.TrimRight(p.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	var decoded imageGenerationResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, errors.New(decoded.Error.Message)
	}
	if len(decoded.Data) == 0 {
		return nil, errors.New("openai: no image data returned")
	}

	first := decoded.Data[0]
	if first.B64JSON == "" && first.URL == "" {
		return nil, errors.New("openai: image payload has neither b64_json nor url")
	}
	return &ImageResult{B64: first.B64JSON, URL: first.URL}, nil
}
