package ai

import (
	"context"
	"errors"
	"fmt"
)

// Client is the inference collaborator consumed by the chat manager, the
// image ledger, and the upload session. Every call is one-shot and
// non-streamed; retries are the caller's business.
type Client interface {
	// Chat sends the prompt to the selected model and returns the reply text.
	Chat(ctx context.Context, prompt string, opts ChatOptions) (string, error)
	// ChatVision is the variant carrying an inlined image payload.
	ChatVision(ctx context.Context, prompt, imagePayload string, opts ChatOptions) (string, error)
	// TextToImage synthesizes an image and returns a displayable reference.
	TextToImage(ctx context.Context, prompt string, testMode bool) (string, error)
	// ImageToText runs OCR over an inlined image payload.
	ImageToText(ctx context.Context, imagePayload string) (string, error)
}

// ChatOptions selects the model for a chat call.
type ChatOptions struct {
	Model string
}

// CodeInsufficientFunds is returned by the platform when the account cannot
// pay for a production-mode generation.
const CodeInsufficientFunds = "insufficient_funds"

// APIError carries the provider's error code so callers can react to
// specific conditions.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInsufficientFunds reports whether the error is the platform's
// insufficient-funds condition.
func IsInsufficientFunds(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeInsufficientFunds
}
