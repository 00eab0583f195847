package issue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// GitHubFiler creates issues through the GitHub REST API.
type GitHubFiler struct {
	Client  *http.Client // must attach credentials; see NewGitHubFiler
	BaseURL string       // e.g. https://api.github.com
	Org     string
	Repo    string
	Logger  *zap.Logger
}

// NewGitHubFiler returns a filer authenticated with a static token.
func NewGitHubFiler(ctx context.Context, token, baseURL, org, repo string, logger *zap.Logger) *GitHubFiler {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &GitHubFiler{
		Client:  oauth2.NewClient(ctx, ts),
		BaseURL: strings.TrimRight(baseURL, "/"),
		Org:     org,
		Repo:    repo,
		Logger:  logger,
	}
}

type createIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

type createIssueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// File creates the issue and returns its URL.
func (f *GitHubFiler) File(ctx context.Context, is Issue) (string, error) {
	payload, err := json.Marshal(createIssueRequest{
		Title:  is.Title,
		Body:   string(is.Body),
		Labels: is.Labels,
	})
	if err != nil {
		return "", fmt.Errorf("encoding issue: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/issues", f.BaseURL, f.Org, f.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating issue in %s/%s: %w", f.Org, f.Repo, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("creating issue in %s/%s: %s: %s", f.Org, f.Repo, resp.Status, strings.TrimSpace(string(data)))
	}

	var created createIssueResponse
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	logger(f.Logger).Debug("issue filed",
		zap.String("repo", f.Org+"/"+f.Repo),
		zap.Int("number", created.Number),
		zap.String("url", created.HTMLURL))
	return created.HTMLURL, nil
}
