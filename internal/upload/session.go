package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"skychat/internal/ai"
	"skychat/internal/blob"
	"skychat/internal/models"

	"github.com/google/uuid"
)

// ErrNotImage is returned for files outside the accepted image MIME types.
var ErrNotImage = errors.New("upload: file is not an image")

const defaultDescribePrompt = "Describe in detail what you see in this image"

// Session is the transient upload/analysis state for one user's view
// session. Descriptors live in memory only and are never written to the
// key-value store.
type Session struct {
	ai    ai.Client
	files blob.Storage
	owner string
	now   func() time.Time

	mu     sync.Mutex
	images []models.UploadedImage
}

// NewSession constructs an upload session for one user.
func NewSession(aiClient ai.Client, files blob.Storage, owner string) *Session {
	return &Session{
		ai:    aiClient,
		files: files,
		owner: owner,
		now:   time.Now,
	}
}

// Add accepts one file: non-image MIME types are rejected, the byte payload
// is inlined for inference use, and the original bytes go to blob storage
// for a durable path.
func (s *Session) Add(ctx context.Context, name, mimeType string, data []byte) (models.UploadedImage, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return models.UploadedImage{}, ErrNotImage
	}

	payload := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	path, err := s.files.Save(ctx, blob.SaveRequest{
		FileName:    name,
		ContentType: mimeType,
		Size:        int64(len(data)),
		Reader:      bytes.NewReader(data),
		Owner:       s.owner,
	})
	if err != nil {
		return models.UploadedImage{}, fmt.Errorf("upload %s: %w", name, err)
	}

	img := models.UploadedImage{
		ID:          uuid.NewString(),
		Name:        name,
		Size:        int64(len(data)),
		MimeType:    mimeType,
		PreviewURL:  s.files.URL(path),
		StoragePath: path,
		Payload:     payload,
		UploadedAt:  s.now(),
	}

	s.mu.Lock()
	s.images = append(s.images, img)
	s.mu.Unlock()
	return img, nil
}

// Describe asks the vision model for a free-form description. Failures fall
// back once to a text-only request and, failing that, to a descriptive
// message; no error escapes this boundary.
func (s *Session) Describe(ctx context.Context, img models.UploadedImage, prompt, model string) (string, string) {
	if prompt == "" {
		prompt = defaultDescribePrompt
	}
	analysisPrompt := fmt.Sprintf("%s\n\n[Image analysis: %s]", prompt, img.Name)

	response, err := s.ai.ChatVision(ctx, analysisPrompt, img.Payload, ai.ChatOptions{Model: model})
	if err == nil {
		return analysisPrompt, response
	}
	log.Printf("analyze image %s: %v", img.Name, err)

	fallbackPrompt := fmt.Sprintf(
		"Image analysis: %s. %s. Note: the image could not be loaded directly; describe what this file likely contains, or suggest re-uploading as JPG/PNG.",
		img.Name, prompt,
	)
	fallback, fbErr := s.ai.Chat(ctx, fallbackPrompt, ai.ChatOptions{Model: model})
	shortPrompt := fmt.Sprintf("Image analysis: %s", img.Name)
	if fbErr == nil {
		return shortPrompt, fmt.Sprintf("Could not analyze the image directly.\n\n%s", fallback)
	}
	log.Printf("fallback analysis %s: %v", img.Name, fbErr)
	return shortPrompt, fmt.Sprintf(
		"Image analysis failed: %v\n\nTry a JPG/PNG image, a vision-capable model, or a smaller file.", err,
	)
}

// ExtractText runs OCR over the image, falling back once to a vision-model
// request when the dedicated OCR call is unavailable or fails.
func (s *Session) ExtractText(ctx context.Context, img models.UploadedImage, model string) (string, string) {
	prompt := fmt.Sprintf("Extract text from image: %s", img.Name)

	text, err := s.ai.ImageToText(ctx, img.Payload)
	if err == nil {
		if text == "" {
			text = "No text found in the image"
		}
		return prompt, fmt.Sprintf("**Extracted text:**\n\n%s", text)
	}
	log.Printf("ocr %s: %v", img.Name, err)

	visionText, fbErr := s.ai.ChatVision(ctx,
		"Extract all text present in this image. Return only the text found, with no extra commentary.",
		img.Payload, ai.ChatOptions{Model: model},
	)
	if fbErr == nil {
		if visionText == "" {
			visionText = "No text found in the image"
		}
		return prompt, fmt.Sprintf("**Extracted text:**\n\n%s", visionText)
	}
	log.Printf("vision ocr %s: %v", img.Name, fbErr)
	return prompt, fmt.Sprintf("Text extraction failed: %v\n\nTry a clearer image or a vision-capable model.", err)
}

// Images returns a copy of the session's uploaded descriptors.
func (s *Session) Images() []models.UploadedImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UploadedImage, len(s.images))
	copy(out, s.images)
	return out
}

// Find returns the descriptor with the given id.
func (s *Session) Find(id string) (models.UploadedImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, img := range s.images {
		if img.ID == id {
			return img, true
		}
	}
	return models.UploadedImage{}, false
}

// Remove drops the descriptor from the session.
func (s *Session) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := s.images[:0]
	for _, img := range s.images {
		if img.ID != id {
			filtered = append(filtered, img)
		}
	}
	s.images = filtered
}
