package browser

import (
	"context"
	"fmt"

	"nexus/internal/tools"
	"nexus/internal/types"
)

// CredentialSource looks up the stored credential bundle for a channel.
// The store satisfies this.
type CredentialSource interface {
	Credentials(channel string) (*types.Credentials, error)
}

// Tools returns the browser tool set bound to the shared session.
// The login tool reads the bound channel's stored credentials; channel is
// fixed at construction like the mission tool.
func Tools(s *Session, creds CredentialSource, channel string) []*tools.Tool {
	return []*tools.Tool{
		navigateTool(s),
		screenshotTool(s),
		clickTool(s),
		typeTool(s),
		scrollTool(s),
		readPageTool(s),
		loginTool(s, creds, channel),
	}
}

func navigateTool(s *Session) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_navigate",
		Description: "Open a URL in the shared browser and wait for it to load",
		Category:    tools.CategoryGeneral,
		Weight:      2,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			url, _ := args["url"].(string)
			if url == "" {
				return "", fmt.Errorf("url is required")
			}
			landed, err := s.Navigate(ctx, url)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Loaded %s", landed), nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {Type: "string", Description: "Absolute URL to open"},
			},
		},
	}
}

func screenshotTool(s *Session) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_screenshot",
		Description: "Capture the current browser viewport as an image",
		Category:    tools.CategoryGeneral,
		Weight:      3,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			dataURL, err := s.Screenshot(ctx)
			if err != nil {
				return "", err
			}
			// The loop splits the marker off into the LOG image payload.
			return "Screenshot captured.\n" + types.ImageMarker + dataURL, nil
		},
		Schema: tools.ToolSchema{Properties: map[string]tools.Property{}},
	}
}

func clickTool(s *Session) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_click",
		Description: "Click an element by CSS selector, or by its visible text when no selector matches",
		Category:    tools.CategoryGeneral,
		Weight:      2,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			selector, _ := args["selector"].(string)
			if selector == "" {
				return "", fmt.Errorf("selector is required")
			}
			if err := s.Click(ctx, selector); err != nil {
				return "", err
			}
			return fmt.Sprintf("Clicked %s", selector), nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"selector"},
			Properties: map[string]tools.Property{
				"selector": {Type: "string", Description: "CSS selector or visible text"},
			},
		},
	}
}

func typeTool(s *Session) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_type",
		Description: "Type text into an input element",
		Category:    tools.CategoryGeneral,
		Weight:      2,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			selector, _ := args["selector"].(string)
			text, _ := args["text"].(string)
			if selector == "" || text == "" {
				return "", fmt.Errorf("selector and text are required")
			}
			if err := s.Type(ctx, selector, text); err != nil {
				return "", err
			}
			return fmt.Sprintf("Typed into %s", selector), nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"selector", "text"},
			Properties: map[string]tools.Property{
				"selector": {Type: "string", Description: "CSS selector or visible text"},
				"text":     {Type: "string", Description: "Text to type"},
			},
		},
	}
}

func scrollTool(s *Session) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_scroll",
		Description: "Scroll the page vertically by a pixel amount (negative scrolls up)",
		Category:    tools.CategoryGeneral,
		Weight:      2,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			pixels := 600
			switch v := args["pixels"].(type) {
			case int:
				pixels = v
			case float64:
				pixels = int(v)
			}
			if err := s.Scroll(ctx, pixels); err != nil {
				return "", err
			}
			return fmt.Sprintf("Scrolled %d pixels", pixels), nil
		},
		Schema: tools.ToolSchema{
			Properties: map[string]tools.Property{
				"pixels": {Type: "integer", Description: "Pixels to scroll (default 600)"},
			},
		},
	}
}

func readPageTool(s *Session) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_read_page",
		Description: "Extract the visible text of the current page",
		Category:    tools.CategoryGeneral,
		Weight:      3,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			text, err := s.Text(ctx)
			if err != nil {
				return "", err
			}
			if text == "" {
				return "(page has no visible text)", nil
			}
			return text, nil
		},
		Schema: tools.ToolSchema{Properties: map[string]tools.Property{}},
	}
}

func loginTool(s *Session, creds CredentialSource, channel string) *tools.Tool {
	return &tools.Tool{
		Name:        "browser_login",
		Description: "Log in to a site using the channel's stored credentials",
		Category:    tools.CategoryGeneral,
		Weight:      5,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			url, _ := args["url"].(string)
			if url == "" {
				return "", fmt.Errorf("url is required")
			}

			bundle, err := creds.Credentials(channel)
			if err != nil {
				return "", fmt.Errorf("credential lookup failed: %w", err)
			}
			if bundle == nil {
				return "", fmt.Errorf("no credentials stored for this channel")
			}

			landed, err := s.Login(ctx, url, bundle.Login, bundle.Password)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Logged in; landed on %s", landed), nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {Type: "string", Description: "Login page URL"},
			},
		},
	}
}
