package models

// DefaultModel is used when a session does not carry a model of its own.
const DefaultModel = "gpt-4o-mini"

// ModelInfo describes one selectable chat model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description"`
}

var catalog = []ModelInfo{
	{ID: "gpt-4o", Name: "GPT-4o", Provider: "OpenAI", Description: "Most capable GPT-4 model"},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "OpenAI", Description: "Faster, cheaper GPT-4o"},
	{ID: "gpt-4.1", Name: "GPT-4.1", Provider: "OpenAI", Description: "Latest GPT-4 iteration"},
	{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", Provider: "OpenAI", Description: "Efficient GPT-4.1"},
	{ID: "o1", Name: "o1", Provider: "OpenAI", Description: "Reasoning model"},
	{ID: "o1-mini", Name: "o1 Mini", Provider: "OpenAI", Description: "Efficient reasoning"},
	{ID: "o3-mini", Name: "o3 Mini", Provider: "OpenAI", Description: "Fast reasoning"},
	{ID: "claude-sonnet-4", Name: "Claude Sonnet 4", Provider: "Anthropic", Description: "Latest Claude model"},
	{ID: "claude-opus-4", Name: "Claude Opus 4", Provider: "Anthropic", Description: "Most capable Claude"},
	{ID: "claude-3-5-sonnet", Name: "Claude 3.5 Sonnet", Provider: "Anthropic", Description: "Balanced Claude model"},
	{ID: "google/gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: "Google", Description: "Fast Google model"},
	{ID: "google/gemini-pro", Name: "Gemini Pro", Provider: "Google", Description: "Google's flagship model"},
	{ID: "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo", Name: "Llama 3.1 70B Turbo", Provider: "Meta", Description: "Large open-source model"},
	{ID: "openrouter:anthropic/claude-sonnet-4", Name: "Claude Sonnet 4 (OpenRouter)", Provider: "OpenRouter", Description: "Claude via OpenRouter"},
}

// Catalog returns the selectable chat models.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ModelDisplay resolves a model id to its display name, falling back to the
// raw id for models outside the catalog.
func ModelDisplay(id string) string {
	for _, m := range catalog {
		if m.ID == id {
			return m.Name
		}
	}
	return id
}
