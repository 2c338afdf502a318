// Package oracle implements the reasoning service client. The production
// backend is the Gemini REST API; the agent loop and router depend only
// on the types.Oracle interface, so tests substitute scripted oracles.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nexus/internal/logging"
	"nexus/internal/types"
)

// Config holds Gemini client settings.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Gemini is the REST client for the Gemini generateContent API.
type Gemini struct {
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	httpClient *http.Client
}

// Compile-time interface check.
var _ types.Oracle = (*Gemini)(nil)

// New creates a Gemini client.
func New(cfg Config) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Gemini{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Wire types for the generateContent endpoint.

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	Tools             []geminiTool    `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a bare prompt and returns text.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	return g.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt under a system instruction.
func (g *Gemini) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.Converse(ctx, system, []types.Turn{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Converse sends the full conversation plus tool declarations and returns
// the next oracle turn.
func (g *Gemini) Converse(ctx context.Context, system string, history []types.Turn, tools []types.ToolDefinition) (*types.OracleResponse, error) {
	req := geminiRequest{Contents: encodeHistory(history)}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if len(tools) > 0 {
		decls := make([]geminiFunctionDecl, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, geminiFunctionDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			})
		}
		req.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	raw, err := g.send(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeResponse(raw)
}

// encodeHistory maps turns to Gemini contents. Tool results become
// function-role contents carrying functionResponse parts, never user text.
func encodeHistory(history []types.Turn) []geminiContent {
	contents := make([]geminiContent, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case "function":
			contents = append(contents, geminiContent{
				Role: "function",
				Parts: []geminiPart{{
					FunctionResponse: &geminiFunctionResponse{
						Name: turn.ToolName,
						Response: map[string]interface{}{
							"result":   turn.Content,
							"is_error": turn.IsError,
						},
					},
				}},
			})
		case "model":
			contents = append(contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: turn.Content}},
			})
		default:
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: turn.Content}},
			})
		}
	}
	return contents
}

func decodeResponse(resp *geminiResponse) (*types.OracleResponse, error) {
	if resp.Error != nil {
		return nil, fmt.Errorf("oracle API error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("oracle returned no candidates")
	}

	candidate := resp.Candidates[0]
	out := &types.OracleResponse{StopReason: candidate.FinishReason}
	for i, part := range candidate.Content.Parts {
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:    fmt.Sprintf("call_%d", i),
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
			continue
		}
		if part.Text != "" {
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += part.Text
		}
	}
	return out, nil
}

// send posts the request with capped exponential backoff. Rate limits
// wait longer than transport errors before the next attempt.
func (g *Gemini) send(ctx context.Context, reqBody geminiRequest) (*geminiResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)

	var lastErr error
	for i := 0; i <= g.maxRetries; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * time.Second
			if isRateLimit(lastErr) {
				wait *= 4
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			logging.OracleWarn("attempt %d: %v", i+1, lastErr)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = rateLimitError{}
			logging.OracleWarn("rate limited (attempt %d)", i+1)
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("oracle server error %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("oracle request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var geminiResp geminiResponse
		if err := json.Unmarshal(body, &geminiResp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return &geminiResp, nil
	}
	return nil, fmt.Errorf("oracle unavailable after %d attempts: %w", g.maxRetries+1, lastErr)
}

type rateLimitError struct{}

func (rateLimitError) Error() string { return "rate limit exceeded (429)" }

func isRateLimit(err error) bool {
	_, ok := err.(rateLimitError)
	return ok
}
