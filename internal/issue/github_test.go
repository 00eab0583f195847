package issue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGitHubFiler_File(t *testing.T) {
	var got createIssueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/ops/issues", r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number": 42, "html_url": "https://github.com/acme/ops/issues/42"}`))
	}))
	defer srv.Close()

	f := NewGitHubFiler(context.Background(), "s3cret", srv.URL+"/", "acme", "ops", zaptest.NewLogger(t))
	ref, err := f.File(context.Background(), Issue{Title: "test", Body: []byte("hello\n"), Labels: []string{"cron"}})
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/acme/ops/issues/42", ref)
	assert.Equal(t, createIssueRequest{Title: "test", Body: "hello\n", Labels: []string{"cron"}}, got)
}

func TestGitHubFiler_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	}))
	defer srv.Close()

	f := NewGitHubFiler(context.Background(), "s3cret", srv.URL, "acme", "missing", nil)
	_, err := f.File(context.Background(), Issue{Title: "t", Body: []byte("b")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "Not Found")
}

func TestGitHubFiler_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewGitHubFiler(context.Background(), "s3cret", url, "acme", "ops", nil)
	_, err := f.File(context.Background(), Issue{Title: "t", Body: []byte("b")})
	require.Error(t, err)
}
