// Package deploy exposes deployment platform checks as INFRA tools. The
// backend is the Render API: list services, then report the latest deploy
// per service.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nexus/internal/tools"
)

// Client talks to the Render REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Render client.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.render.com/v1"
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Service is one deployable service.
type Service struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Deploy is one deployment of a service.
type Deploy struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	FinishedAt string `json:"finishedAt"`
}

// Services lists the account's services.
func (c *Client) Services(ctx context.Context) ([]Service, error) {
	body, err := c.get(ctx, "/services?limit=20")
	if err != nil {
		return nil, err
	}

	// Render wraps each service in a cursor envelope.
	var wrapped []struct {
		Service Service `json:"service"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse services: %w", err)
	}
	services := make([]Service, 0, len(wrapped))
	for _, w := range wrapped {
		services = append(services, w.Service)
	}
	return services, nil
}

// LatestDeploy returns the most recent deploy of a service.
func (c *Client) LatestDeploy(ctx context.Context, serviceID string) (*Deploy, error) {
	body, err := c.get(ctx, fmt.Sprintf("/services/%s/deploys?limit=1", serviceID))
	if err != nil {
		return nil, err
	}

	var wrapped []struct {
		Deploy Deploy `json:"deploy"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse deploys: %w", err)
	}
	if len(wrapped) == 0 {
		return nil, fmt.Errorf("service %s has no deploys", serviceID)
	}
	return &wrapped[0].Deploy, nil
}

// StatusReport renders a one-line-per-service deployment summary.
func (c *Client) StatusReport(ctx context.Context) (string, error) {
	services, err := c.Services(ctx)
	if err != nil {
		return "", err
	}
	if len(services) == 0 {
		return "No services found.", nil
	}

	var b strings.Builder
	for _, svc := range services {
		deploy, err := c.LatestDeploy(ctx, svc.ID)
		if err != nil {
			fmt.Fprintf(&b, "%s (%s): deploy status unavailable (%v)\n", svc.Name, svc.Type, err)
			continue
		}
		fmt.Fprintf(&b, "%s (%s): %s", svc.Name, svc.Type, deploy.Status)
		if deploy.FinishedAt != "" {
			fmt.Fprintf(&b, " at %s", deploy.FinishedAt)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// StatusTool returns the deploy_status tool.
func StatusTool(c *Client) *tools.Tool {
	return &tools.Tool{
		Name:        "deploy_status",
		Description: "Report the latest deployment status of every service on the hosting platform",
		Category:    tools.CategoryInfra,
		Weight:      2,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return c.StatusReport(ctx)
		},
		Schema: tools.ToolSchema{Properties: map[string]tools.Property{}},
	}
}
