package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"skychat/internal/ai"
	"skychat/internal/blob"
)

type fakeAI struct {
	chatReply   string
	chatErr     error
	visionReply string
	visionErr   error
	ocrReply    string
	ocrErr      error

	visionPrompts []string
}

func (f *fakeAI) Chat(ctx context.Context, prompt string, opts ai.ChatOptions) (string, error) {
	return f.chatReply, f.chatErr
}

func (f *fakeAI) ChatVision(ctx context.Context, prompt, image string, opts ai.ChatOptions) (string, error) {
	f.visionPrompts = append(f.visionPrompts, prompt)
	return f.visionReply, f.visionErr
}

func (f *fakeAI) TextToImage(ctx context.Context, prompt string, testMode bool) (string, error) {
	return "", errors.New("not supported")
}

func (f *fakeAI) ImageToText(ctx context.Context, image string) (string, error) {
	return f.ocrReply, f.ocrErr
}

type fakeBlob struct {
	saved map[string][]byte
	err   error
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{saved: make(map[string][]byte)}
}

func (b *fakeBlob) Save(ctx context.Context, req blob.SaveRequest) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	data, err := io.ReadAll(req.Reader)
	if err != nil {
		return "", err
	}
	path := req.Owner + "/" + req.FileName
	b.saved[path] = data
	return path, nil
}

func (b *fakeBlob) URL(path string) string {
	return "https://files.example/" + path
}

func TestAddRejectsNonImages(t *testing.T) {
	s := NewSession(&fakeAI{}, newFakeBlob(), "u1")
	if _, err := s.Add(context.Background(), "notes.pdf", "application/pdf", []byte("%PDF")); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
	if len(s.Images()) != 0 {
		t.Fatalf("rejected file must not be tracked")
	}
}

func TestAddStoresAndInlines(t *testing.T) {
	files := newFakeBlob()
	s := NewSession(&fakeAI{}, files, "u1")
	data := []byte{0x89, 0x50, 0x4e, 0x47}

	img, err := s.Add(context.Background(), "photo.png", "image/png", data)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	wantPrefix := "data:image/png;base64,"
	if !strings.HasPrefix(img.Payload, wantPrefix) {
		t.Fatalf("payload prefix = %q", img.Payload)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(img.Payload, wantPrefix))
	if err != nil || string(decoded) != string(data) {
		t.Fatalf("payload does not round-trip the bytes: %v", err)
	}
	if img.ID == "" {
		t.Fatalf("descriptor needs an id")
	}
	if got, ok := files.saved[img.StoragePath]; !ok || string(got) != string(data) {
		t.Fatalf("original bytes not stored at %q", img.StoragePath)
	}
	if img.PreviewURL != "https://files.example/"+img.StoragePath {
		t.Fatalf("preview url = %q", img.PreviewURL)
	}
}

func TestAddFailsWhenStorageFails(t *testing.T) {
	files := newFakeBlob()
	files.err = errors.New("bucket gone")
	s := NewSession(&fakeAI{}, files, "u1")

	if _, err := s.Add(context.Background(), "photo.png", "image/png", []byte("x")); err == nil {
		t.Fatalf("expected storage error")
	}
	if len(s.Images()) != 0 {
		t.Fatalf("failed upload must not be tracked")
	}
}

func TestDescribeUsesVisionModel(t *testing.T) {
	client := &fakeAI{visionReply: "a red bicycle"}
	s := NewSession(client, newFakeBlob(), "u1")

	img, err := s.Add(context.Background(), "bike.jpg", "image/jpeg", []byte("jpg"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	prompt, response := s.Describe(context.Background(), img, "", "gpt-4o")
	if response != "a red bicycle" {
		t.Fatalf("response = %q", response)
	}
	if !strings.Contains(prompt, defaultDescribePrompt) {
		t.Fatalf("empty prompt should use the default, got %q", prompt)
	}
	if !strings.Contains(prompt, "bike.jpg") {
		t.Fatalf("prompt should reference the file, got %q", prompt)
	}
}

func TestDescribeFallsBackToTextChat(t *testing.T) {
	client := &fakeAI{visionErr: errors.New("no vision support"), chatReply: "likely a photo of a bike"}
	s := NewSession(client, newFakeBlob(), "u1")
	img, _ := s.Add(context.Background(), "bike.jpg", "image/jpeg", []byte("jpg"))

	_, response := s.Describe(context.Background(), img, "what is this", "text-only-model")
	if !strings.Contains(response, "likely a photo of a bike") {
		t.Fatalf("fallback reply missing: %q", response)
	}
	if !strings.Contains(response, "Could not analyze the image directly") {
		t.Fatalf("fallback must be labelled: %q", response)
	}
}

func TestDescribeSurvivesTotalFailure(t *testing.T) {
	client := &fakeAI{visionErr: errors.New("vision down"), chatErr: errors.New("chat down")}
	s := NewSession(client, newFakeBlob(), "u1")
	img, _ := s.Add(context.Background(), "bike.jpg", "image/jpeg", []byte("jpg"))

	_, response := s.Describe(context.Background(), img, "", "m")
	if !strings.Contains(response, "Image analysis failed") {
		t.Fatalf("expected failure message, got %q", response)
	}
}

func TestExtractTextUsesOCR(t *testing.T) {
	client := &fakeAI{ocrReply: "TOTAL: $12.50"}
	s := NewSession(client, newFakeBlob(), "u1")
	img, _ := s.Add(context.Background(), "receipt.png", "image/png", []byte("png"))

	_, response := s.ExtractText(context.Background(), img, "gpt-4o")
	want := "**Extracted text:**\n\nTOTAL: $12.50"
	if response != want {
		t.Fatalf("response = %q, want %q", response, want)
	}
}

func TestExtractTextEmptyResult(t *testing.T) {
	s := NewSession(&fakeAI{}, newFakeBlob(), "u1")
	img, _ := s.Add(context.Background(), "blank.png", "image/png", []byte("png"))

	_, response := s.ExtractText(context.Background(), img, "gpt-4o")
	if !strings.Contains(response, "No text found in the image") {
		t.Fatalf("empty OCR should report no text, got %q", response)
	}
}

func TestExtractTextFallsBackToVision(t *testing.T) {
	client := &fakeAI{ocrErr: errors.New("ocr unavailable"), visionReply: "HELLO WORLD"}
	s := NewSession(client, newFakeBlob(), "u1")
	img, _ := s.Add(context.Background(), "sign.png", "image/png", []byte("png"))

	_, response := s.ExtractText(context.Background(), img, "gpt-4o")
	if !strings.Contains(response, "HELLO WORLD") {
		t.Fatalf("vision fallback missing: %q", response)
	}
	if len(client.visionPrompts) != 1 {
		t.Fatalf("expected one vision fallback call, got %d", len(client.visionPrompts))
	}
}

func TestFindAndRemove(t *testing.T) {
	s := NewSession(&fakeAI{}, newFakeBlob(), "u1")
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		img, err := s.Add(ctx, fmt.Sprintf("img-%d.png", i), "image/png", []byte("png"))
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, img.ID)
	}

	if img, ok := s.Find(ids[1]); !ok || img.Name != "img-1.png" {
		t.Fatalf("find returned (%+v, %v)", img, ok)
	}

	s.Remove(ids[1])
	if _, ok := s.Find(ids[1]); ok {
		t.Fatalf("removed image still findable")
	}
	if got := len(s.Images()); got != 2 {
		t.Fatalf("expected 2 images after remove, got %d", got)
	}

	s.Remove("nope")
	if got := len(s.Images()); got != 2 {
		t.Fatalf("removing unknown id must be a no-op, got %d", got)
	}
}
