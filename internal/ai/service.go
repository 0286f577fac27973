package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"skychat/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Service implements Client by routing each model id either to a
// first-party chat model or to the platform gateway. Vision, image
// generation, and OCR always go through the gateway.
type Service struct {
	cfg     *config.Config
	gateway *Gateway

	mu         sync.Mutex
	chatModels map[string]model.ToolCallingChatModel
}

// NewService constructs the inference service.
func NewService(cfg *config.Config, gateway *Gateway) *Service {
	return &Service{
		cfg:        cfg,
		gateway:    gateway,
		chatModels: make(map[string]model.ToolCallingChatModel),
	}
}

// Chat sends the prompt to the selected model and returns the reply text.
func (s *Service) Chat(ctx context.Context, prompt string, opts ChatOptions) (string, error) {
	provider, modelName := routeModel(opts.Model)
	if provider == "" {
		return s.gateway.Chat(ctx, prompt, opts)
	}
	provCfg, ok := s.cfg.Providers[provider]
	if !ok {
		return s.gateway.Chat(ctx, prompt, opts)
	}

	chatModel, err := s.chatModel(ctx, provider, modelName, provCfg)
	if err != nil {
		return "", err
	}
	resp, err := chatModel.Generate(ctx, []*schema.Message{{Role: schema.User, Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return resp.Content, nil
}

// ChatVision sends a prompt with an inlined image payload through the
// gateway; the first-party adapters are text-only here.
func (s *Service) ChatVision(ctx context.Context, prompt, imagePayload string, opts ChatOptions) (string, error) {
	return s.gateway.ChatVision(ctx, prompt, imagePayload, opts)
}

// TextToImage synthesizes an image through the gateway.
func (s *Service) TextToImage(ctx context.Context, prompt string, testMode bool) (string, error) {
	return s.gateway.TextToImage(ctx, prompt, testMode)
}

// ImageToText runs OCR through the gateway.
func (s *Service) ImageToText(ctx context.Context, imagePayload string) (string, error) {
	return s.gateway.ImageToText(ctx, imagePayload)
}

func (s *Service) chatModel(ctx context.Context, provider, modelName string, provCfg config.ProviderConfig) (model.ToolCallingChatModel, error) {
	if modelName == "" {
		modelName = provCfg.Model
	}
	key := provider + "/" + modelName

	s.mu.Lock()
	defer s.mu.Unlock()
	if cm, ok := s.chatModels[key]; ok {
		return cm, nil
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{APIKey: provCfg.APIKey})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}

	s.chatModels[key] = chatModel
	return chatModel, nil
}

// routeModel maps a catalog model id to a first-party provider. Ids outside
// the known families (openrouter-prefixed, community models) return an empty
// provider and go through the gateway.
func routeModel(id string) (provider, modelName string) {
	switch {
	case strings.HasPrefix(id, "gpt-"),
		strings.HasPrefix(id, "o1"),
		strings.HasPrefix(id, "o3"),
		strings.HasPrefix(id, "o4"):
		return "openai", id
	case strings.HasPrefix(id, "claude"):
		return "claude", id
	case strings.HasPrefix(id, "google/"):
		return "gemini", strings.TrimPrefix(id, "google/")
	}
	return "", id
}
