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

	"skychat/internal/config"
)

// Gateway is an HTTP client for the platform AI endpoints. It serves every
// model without a first-party adapter, plus image generation and OCR.
type Gateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGateway constructs the gateway client from app config.
func NewGateway(cfg config.GatewayConfig) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Image  string `json:"image,omitempty"`
	Stream bool   `json:"stream"`
}

type txt2imgRequest struct {
	Prompt   string `json:"prompt"`
	TestMode bool   `json:"test_mode"`
}

type img2txtRequest struct {
	Image string `json:"image"`
}

// Chat sends a plain prompt and unwraps the reply.
func (g *Gateway) Chat(ctx context.Context, prompt string, opts ChatOptions) (string, error) {
	raw, err := g.post(ctx, "/ai/chat", chatRequest{Prompt: prompt, Model: opts.Model})
	if err != nil {
		return "", err
	}
	return finishText(opts.Model, ExtractText(raw)), nil
}

// ChatVision sends a prompt with an inlined image payload.
func (g *Gateway) ChatVision(ctx context.Context, prompt, imagePayload string, opts ChatOptions) (string, error) {
	raw, err := g.post(ctx, "/ai/chat", chatRequest{Prompt: prompt, Model: opts.Model, Image: imagePayload})
	if err != nil {
		return "", err
	}
	return finishText(opts.Model, ExtractText(raw)), nil
}

// TextToImage synthesizes an image and returns its displayable reference.
func (g *Gateway) TextToImage(ctx context.Context, prompt string, testMode bool) (string, error) {
	raw, err := g.post(ctx, "/ai/txt2img", txt2imgRequest{Prompt: prompt, TestMode: testMode})
	if err != nil {
		return "", err
	}
	return ExtractImageRef(raw)
}

// ImageToText runs OCR over an inlined image payload.
func (g *Gateway) ImageToText(ctx context.Context, imagePayload string) (string, error) {
	raw, err := g.post(ctx, "/ai/img2txt", img2txtRequest{Image: imagePayload})
	if err != nil {
		return "", err
	}
	res := ExtractText(raw)
	if res.Kind == KindUnrecognized {
		return "", errors.New("ai: ocr response not recognized")
	}
	return res.Text, nil
}

func (g *Gateway) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	if g.baseURL == "" {
		return nil, errors.New("ai gateway not configured")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, payload)
	}
	return payload, nil
}

func decodeAPIError(status int, payload []byte) error {
	var body struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != nil {
		return &APIError{Code: body.Error.Code, Message: body.Error.Message}
	}
	return &APIError{Message: fmt.Sprintf("gateway returned status %d", status)}
}

// finishText turns a decoded result into user-visible reply text. An
// unrecognized payload is surfaced as a diagnostic naming the model rather
// than dropped.
func finishText(model string, res Result) string {
	if res.Kind != KindUnrecognized {
		return res.Text
	}
	if res.Text != "" {
		return fmt.Sprintf("Response from %s: %s", model, res.Text)
	}
	return "The model replied but returned no displayable content."
}
