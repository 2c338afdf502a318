// Package repo exposes GitHub repository operations as DEV department
// tools: file read/write through the contents API, tree listing, code
// search, and repository_dispatch triggers.
package repo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nexus/internal/logging"
)

// Client talks to the GitHub REST API for one repository.
type Client struct {
	token      string
	owner      string
	repo       string
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a GitHub client bound to owner/repo.
func NewClient(baseURL, token, owner, repo string) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		token:      token,
		owner:      owner,
		repo:       repo,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type contentsResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
	Path     string `json:"path"`
}

// ReadFile fetches a file's decoded content at an optional ref.
func (c *Client) ReadFile(ctx context.Context, path, ref string) (string, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, c.repo, strings.TrimPrefix(path, "/"))
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}

	var cr contentsResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &cr); err != nil {
		return "", err
	}
	if cr.Type != "" && cr.Type != "file" {
		return "", fmt.Errorf("%s is a %s, not a file", path, cr.Type)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(cr.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return string(decoded), nil
}

// WriteFile creates or updates a file. Updates fetch the current blob SHA
// first, as the contents API requires it.
func (c *Client) WriteFile(ctx context.Context, path, content, message string) (string, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, c.repo, strings.TrimPrefix(path, "/"))

	var existing contentsResponse
	sha := ""
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &existing); err == nil {
		sha = existing.SHA
	}

	if message == "" {
		message = fmt.Sprintf("Update %s", path)
	}
	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}
	if sha != "" {
		payload["sha"] = sha
	}

	var result struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := c.do(ctx, http.MethodPut, endpoint, payload, &result); err != nil {
		return "", err
	}

	logging.Tools("github: wrote %s (commit %s)", path, result.Commit.SHA)
	if sha == "" {
		return fmt.Sprintf("Created %s (commit %s)", path, result.Commit.SHA), nil
	}
	return fmt.Sprintf("Updated %s (commit %s)", path, result.Commit.SHA), nil
}

// Tree lists the repository tree at a ref (default HEAD), recursively.
func (c *Client) Tree(ctx context.Context, ref string) ([]string, error) {
	if ref == "" {
		ref = "HEAD"
	}
	endpoint := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", c.owner, c.repo, url.PathEscape(ref))

	var tr struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
		Truncated bool `json:"truncated"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &tr); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(tr.Tree))
	for _, entry := range tr.Tree {
		if entry.Type == "blob" {
			paths = append(paths, entry.Path)
		}
	}
	return paths, nil
}

// Search runs a code search scoped to the repository.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	q := url.QueryEscape(fmt.Sprintf("%s repo:%s/%s", query, c.owner, c.repo))
	endpoint := "/search/code?q=" + q

	var sr struct {
		TotalCount int `json:"total_count"`
		Items      []struct {
			Path string `json:"path"`
		} `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &sr); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(sr.Items))
	for _, item := range sr.Items {
		paths = append(paths, item.Path)
	}
	return paths, nil
}

// Dispatch fires a repository_dispatch event, typically to kick a CI
// workflow.
func (c *Client) Dispatch(ctx context.Context, eventType string, payload map[string]interface{}) error {
	endpoint := fmt.Sprintf("/repos/%s/%s/dispatches", c.owner, c.repo)
	body := map[string]interface{}{"event_type": eventType}
	if len(payload) > 0 {
		body["client_payload"] = payload
	}
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("github returned %d for %s %s: %s", resp.StatusCode, method, endpoint, firstLine(data))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func firstLine(data []byte) string {
	s := string(data)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
