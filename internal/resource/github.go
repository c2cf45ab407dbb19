package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/p-n-ai/pai-path/internal/learning"
)

const (
	githubBaseURL    = "https://api.github.com"
	githubMaxResults = 5
)

var programmingKeywords = []string{
	"programming", "code", "software", "development", "javascript",
	"python", "java", "react", "node", "web", "app",
}

// IsProgrammingTopic reports whether topic mentions a programming keyword.
func IsProgrammingTopic(topic string) bool {
	folded := FoldTopic(topic)
	for _, kw := range programmingKeywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

// GitHubConfig configures the GitHub fetcher.
type GitHubConfig struct {
	ClientConfig
	Token string // optional; raises the rate limit
}

// GitHub searches example repositories. Only programming topics are searched.
type GitHub struct {
	client *resty.Client
}

// NewGitHub creates a GitHub fetcher.
func NewGitHub(cfg GitHubConfig) *GitHub {
	client := newClient(cfg.ClientConfig, githubBaseURL).
		SetHeader("Accept", "application/vnd.github.v3+json")
	if cfg.Token != "" {
		client.SetAuthScheme("token").SetAuthToken(cfg.Token)
	}
	return &GitHub{client: client}
}

func (g *GitHub) Name() string { return "github" }

type githubSearch struct {
	Items []struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		HTMLURL     string   `json:"html_url"`
		Language    string   `json:"language"`
		Stars       int      `json:"stargazers_count"`
		Forks       int      `json:"forks_count"`
		UpdatedAt   string   `json:"updated_at"`
		Topics      []string `json:"topics"`
		Owner       struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"items"`
}

// Fetch returns up to five repositories for a programming topic.
func (g *GitHub) Fetch(ctx context.Context, q Query) ([]learning.Resource, error) {
	if !IsProgrammingTopic(q.Topic) {
		slog.Debug("github lookup skipped for non-programming topic", "topic", q.Topic)
		return nil, nil
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        q.Topic + " tutorial example",
			"sort":     "stars",
			"order":    "desc",
			"per_page": strconv.Itoa(q.limit(githubMaxResults)),
		}).
		Get("/search/repositories")
	if err != nil {
		return nil, fmt.Errorf("github search: %w", err)
	}
	if err := checkResponse("github", resp); err != nil {
		return nil, err
	}

	var search githubSearch
	if err := json.Unmarshal(resp.Body(), &search); err != nil {
		return nil, fmt.Errorf("decode github search: %w", err)
	}

	out := make([]learning.Resource, 0, len(search.Items))
	for _, repo := range search.Items {
		desc := repo.Description
		if desc == "" {
			desc = "No description available"
		}
		topics := repo.Topics
		if topics == nil {
			topics = []string{}
		}
		out = append(out, learning.Resource{
			Type:        learning.ResourceCode,
			Source:      g.Name(),
			Title:       repo.Name,
			Description: desc,
			URL:         repo.HTMLURL,
			Metadata: map[string]any{
				"language":   repo.Language,
				"stars":      repo.Stars,
				"forks":      repo.Forks,
				"updated_at": repo.UpdatedAt,
				"owner":      repo.Owner.Login,
				"topics":     topics,
			},
		})
	}
	return out, nil
}
