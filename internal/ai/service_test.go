package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"skychat/internal/config"
)

func TestRouteModel(t *testing.T) {
	cases := []struct {
		id       string
		provider string
		model    string
	}{
		{"gpt-4o-mini", "openai", "gpt-4o-mini"},
		{"o1-pro", "openai", "o1-pro"},
		{"o3", "openai", "o3"},
		{"claude-sonnet-4", "claude", "claude-sonnet-4"},
		{"google/gemini-2.5-flash", "gemini", "gemini-2.5-flash"},
		{"mistral-large-latest", "", "mistral-large-latest"},
		{"deepseek-chat", "", "deepseek-chat"},
	}
	for _, tc := range cases {
		provider, model := routeModel(tc.id)
		if provider != tc.provider || model != tc.model {
			t.Fatalf("routeModel(%q) = (%q, %q), want (%q, %q)", tc.id, provider, model, tc.provider, tc.model)
		}
	}
}

func TestServiceRoutesUnknownModelsToGateway(t *testing.T) {
	gateway, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode("gateway reply")
	})
	svc := NewService(&config.Config{}, gateway)

	reply, err := svc.Chat(context.Background(), "hi", ChatOptions{Model: "mistral-large-latest"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "gateway reply" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestServiceFallsBackWhenProviderUnconfigured(t *testing.T) {
	gateway, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode("gateway reply")
	})
	// No openai entry in Providers, so gpt- models fall through.
	svc := NewService(&config.Config{}, gateway)

	reply, err := svc.Chat(context.Background(), "hi", ChatOptions{Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "gateway reply" {
		t.Fatalf("reply = %q", reply)
	}
}
