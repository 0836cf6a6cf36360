package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// AmplifyProvider talks to an Amplify gateway.
// URLs ending in /chat get the Vanderbilt envelope; others get an OpenAI-style body.
type AmplifyProvider struct {
	url        string
	apiKey     string
	headerName string
	model      string
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type amplifyEnvelope struct {
	Data amplifyData `json:"data"`
}

type amplifyData struct {
	Temperature float32        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
	Messages    []chatMessage  `json:"messages"`
	Options     amplifyOptions `json:"options"`
	DataSources []string       `json:"dataSources"`
}

type amplifyOptions struct {
	SkipRag bool         `json:"skipRag"`
	Model   amplifyModel `json:"model"`
}

type amplifyModel struct {
	ID string `json:"id"`
}

type openAIStyleRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// NewAmplifyProvider creates a new Amplify provider
func NewAmplifyProvider(cfg Config) (*AmplifyProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("amplify API key is required (AMPLIFY_API_KEY)")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("amplify API URL is required (AMPLIFY_API_URL)")
	}

	header := cfg.HeaderName
	if header == "" {
		header = "Authorization"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &AmplifyProvider{
		url:        cfg.BaseURL,
		apiKey:     cfg.APIKey,
		headerName: header,
		model:      model,
		httpClient: newHTTPClient(cfg),
	}, nil
}

// Name returns the provider name
func (p *AmplifyProvider) Name() string {
	return "amplify"
}

// Model returns the configured model
func (p *AmplifyProvider) Model() string {
	return p.model
}

// Endpoint returns the gateway URL
func (p *AmplifyProvider) Endpoint() string {
	return p.url
}

// Complete posts the conversation and unpacks whatever shape the gateway answers with
func (p *AmplifyProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body, err := json.Marshal(p.payload(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if strings.EqualFold(p.headerName, "authorization") {
		httpReq.Header.Set(p.headerName, "Bearer "+p.apiKey)
	} else {
		httpReq.Header.Set(p.headerName, p.apiKey)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, &StatusError{Provider: "amplify", StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	return &CompletionResponse{
		Text:  strings.TrimSpace(UnpackResponse(respBody)),
		Model: p.model,
	}, nil
}

func (p *AmplifyProvider) payload(req CompletionRequest) any {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	if strings.HasSuffix(strings.TrimRight(p.url, "/"), "/chat") {
		return amplifyEnvelope{Data: amplifyData{
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			Messages:    msgs,
			Options:     amplifyOptions{SkipRag: true, Model: amplifyModel{ID: p.model}},
			DataSources: []string{},
		}}
	}
	return openAIStyleRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

// UnpackResponse extracts assistant text from a JSON body, an SSE stream, or plain text, in that order
func UnpackResponse(body []byte) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if text, ok := unpackAny(decoded); ok {
			return text
		}
	}

	if text, ok := parseSSE(body); ok {
		return text
	}

	return string(body)
}

// unpackAny searches the common response shapes for assistant text
func unpackAny(v any) (string, bool) {
	switch obj := v.(type) {
	case string:
		return obj, obj != ""
	case map[string]any:
		if text, ok := choiceContent(obj); ok {
			return text, true
		}
		for _, k := range []string{"text", "content", "output_text"} {
			if s, ok := obj[k].(string); ok && s != "" {
				return s, true
			}
		}
		if data, ok := obj["data"]; ok {
			if text, ok := unpackAny(data); ok {
				return text, true
			}
		}
		if output, ok := obj["output"].([]any); ok {
			for _, it := range output {
				if text, ok := unpackAny(it); ok {
					return text, true
				}
			}
		}
		// Last resort: any value, in key order
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if text, ok := unpackAny(obj[k]); ok {
				return text, true
			}
		}
	case []any:
		for _, it := range obj {
			if text, ok := unpackAny(it); ok {
				return text, true
			}
		}
	}
	return "", false
}

func choiceContent(obj map[string]any) (string, bool) {
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := first["message"].(map[string]any)
	if !ok {
		return "", false
	}
	content, _ := msg["content"].(string)
	return content, content != ""
}

// parseSSE concatenates the content/delta/text fields of "data:" events
func parseSSE(body []byte) (string, bool) {
	var chunks strings.Builder
	seen := false

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		seen = true

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var event map[string]any
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		for _, k := range []string{"content", "delta", "text"} {
			if s, ok := event[k].(string); ok {
				chunks.WriteString(s)
				break
			}
		}
	}

	if !seen {
		return "", false
	}
	out := strings.TrimSpace(chunks.String())
	return out, out != ""
}
