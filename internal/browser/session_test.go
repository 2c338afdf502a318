package browser

import (
	"strings"
	"testing"

	"nexus/internal/types"
)

func TestDataURL(t *testing.T) {
	url := DataURL([]byte{0x89, 0x50, 0x4e, 0x47})
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("unexpected prefix: %s", url)
	}
	if !strings.HasSuffix(url, "iVBORw==") {
		t.Errorf("unexpected payload: %s", url)
	}
}

func TestVisibleText(t *testing.T) {
	raw := `<html><head><title>x</title><style>.a{color:red}</style></head>
	<body><h1>Welcome</h1><script>alert(1)</script><p>Hello   <b>world</b></p></body></html>`

	text := VisibleText(raw, 0)
	if !strings.Contains(text, "Welcome") || !strings.Contains(text, "Hello world") {
		t.Errorf("unexpected text: %q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "color:red") {
		t.Errorf("script/style leaked into text: %q", text)
	}
}

func TestVisibleTextCap(t *testing.T) {
	raw := "<body><p>" + strings.Repeat("word ", 2000) + "</p></body>"
	text := VisibleText(raw, 100)
	if len(text) > 110 {
		t.Errorf("text not capped: %d bytes", len(text))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncation marker")
	}
}

func TestRegexpQuote(t *testing.T) {
	got := regexpQuote("Sign in (beta)?")
	if got != `/Sign in \(beta\)\?/i` {
		t.Errorf("unexpected pattern: %s", got)
	}
}

func TestToolsValidate(t *testing.T) {
	s := NewSession(Config{Headless: true})
	list := Tools(s, credStub{}, "DEV")
	if len(list) != 7 {
		t.Fatalf("expected 7 browser tools, got %d", len(list))
	}
	for _, tool := range list {
		if err := tool.Validate(); err != nil {
			t.Errorf("tool %s invalid: %v", tool.Name, err)
		}
	}
}

type credStub struct{}

func (credStub) Credentials(channel string) (*types.Credentials, error) { return nil, nil }
