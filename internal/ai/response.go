package ai

import (
	"encoding/json"
	"errors"
	"fmt"
)

// The gateway returns structurally inconsistent payloads depending on the
// upstream model. Unwrapping happens once, here, instead of ad hoc at each
// call site.

// Kind classifies a decoded gateway payload.
type Kind int

const (
	KindPlainText Kind = iota
	KindStructured
	KindUnrecognized
)

// Result is the outcome of decoding a gateway response body.
type Result struct {
	Kind Kind
	Text string
}

// ErrNoImageRef is returned when no displayable reference can be pulled out
// of a text-to-image response.
var ErrNoImageRef = errors.New("ai: response carries no image reference")

// ExtractText decodes a response body through the fallback chain: plain
// string; {message:{content}} with array or scalar content; {content};
// {message: "..."}; {text}; first element of an array of responses. Anything
// else is serialized as a diagnostic so the user at least sees something.
func ExtractText(raw json.RawMessage) Result {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Result{Kind: KindPlainText, Text: string(raw)}
	}
	return extractValue(v)
}

func extractValue(v any) Result {
	switch val := v.(type) {
	case string:
		return Result{Kind: KindPlainText, Text: val}
	case map[string]any:
		if msg, ok := val["message"]; ok {
			if m, ok := msg.(map[string]any); ok {
				if text := contentText(m["content"]); text != "" {
					return Result{Kind: KindStructured, Text: text}
				}
			}
			if s, ok := msg.(string); ok && s != "" {
				return Result{Kind: KindStructured, Text: s}
			}
		}
		if text := contentText(val["content"]); text != "" {
			return Result{Kind: KindStructured, Text: text}
		}
		if s, ok := val["text"].(string); ok && s != "" {
			return Result{Kind: KindStructured, Text: s}
		}
		pretty, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			pretty = []byte(fmt.Sprintf("%v", val))
		}
		return Result{Kind: KindUnrecognized, Text: string(pretty)}
	case []any:
		if len(val) > 0 {
			return extractValue(val[0])
		}
	}
	return Result{Kind: KindUnrecognized}
}

// contentText flattens a content field that may be a scalar string or an
// array of parts ({text} objects or bare strings).
func contentText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		if len(c) == 0 {
			return ""
		}
		if part, ok := c[0].(map[string]any); ok {
			if s, ok := part["text"].(string); ok {
				return s
			}
			return ""
		}
		if s, ok := c[0].(string); ok {
			return s
		}
	}
	return ""
}

// ExtractImageRef pulls a displayable image reference out of a text-to-image
// response: either a structured result exposing a reference field or a bare
// reference value.
func ExtractImageRef(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		if s := string(raw); s != "" {
			return s, nil
		}
		return "", ErrNoImageRef
	}
	switch val := v.(type) {
	case string:
		if val != "" {
			return val, nil
		}
	case map[string]any:
		for _, field := range []string{"src", "url"} {
			if s, ok := val[field].(string); ok && s != "" {
				return s, nil
			}
		}
	}
	return "", ErrNoImageRef
}
