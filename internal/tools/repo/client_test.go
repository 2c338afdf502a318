package repo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitHub(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/repos/acme/app/contents/README.md", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			content := base64.StdEncoding.EncodeToString([]byte("# App\nhello"))
			fmt.Fprintf(w, `{"type":"file","encoding":"base64","content":"%s","sha":"abc123","path":"README.md"}`, content)
		case http.MethodPut:
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			// Updating an existing file must carry its blob sha.
			require.Equal(t, "abc123", body["sha"])
			fmt.Fprint(w, `{"commit":{"sha":"def456"}}`)
		}
	})

	mux.HandleFunc("/repos/acme/app/contents/new.txt", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		case http.MethodPut:
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, hasSHA := body["sha"]
			assert.False(t, hasSHA, "new files must not send a sha")
			fmt.Fprint(w, `{"commit":{"sha":"new789"}}`)
		}
	})

	mux.HandleFunc("/repos/acme/app/git/trees/HEAD", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tree":[{"path":"main.go","type":"blob"},{"path":"internal","type":"tree"},{"path":"internal/app.go","type":"blob"}]}`)
	})

	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("q"), "repo:acme/app")
		fmt.Fprint(w, `{"total_count":1,"items":[{"path":"main.go"}]}`)
	})

	mux.HandleFunc("/repos/acme/app/dispatches", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "tok", "acme", "app")
}

func TestReadFile(t *testing.T) {
	_, c := newGitHub(t)
	content, err := c.ReadFile(context.Background(), "README.md", "")
	require.NoError(t, err)
	assert.Equal(t, "# App\nhello", content)
}

func TestWriteFileUpdate(t *testing.T) {
	_, c := newGitHub(t)
	out, err := c.WriteFile(context.Background(), "README.md", "new content", "update readme")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated README.md")
	assert.Contains(t, out, "def456")
}

func TestWriteFileCreate(t *testing.T) {
	_, c := newGitHub(t)
	out, err := c.WriteFile(context.Background(), "new.txt", "fresh", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Created new.txt")
}

func TestTreeFiltersBlobs(t *testing.T) {
	_, c := newGitHub(t)
	paths, err := c.Tree(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "internal/app.go"}, paths)
}

func TestSearch(t *testing.T) {
	_, c := newGitHub(t)
	paths, err := c.Search(context.Background(), "func main")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, paths)
}

func TestDispatch(t *testing.T) {
	_, c := newGitHub(t)
	err := c.Dispatch(context.Background(), "deploy", map[string]interface{}{"env": "prod"})
	require.NoError(t, err)
}

func TestErrorSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", "acme", "app")
	_, err := c.ReadFile(context.Background(), "README.md", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestToolsRegisterCleanly(t *testing.T) {
	_, c := newGitHub(t)
	list := Tools(c)
	require.Len(t, list, 5)
	names := make([]string, 0, len(list))
	for _, tool := range list {
		require.NoError(t, tool.Validate())
		names = append(names, tool.Name)
	}
	assert.Contains(t, strings.Join(names, ","), "github_read_file")
}
