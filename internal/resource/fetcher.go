// Package resource fetches learning material for a topic from public content
// APIs. Every source is best-effort.
package resource

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/pai-path/internal/learning"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 256
)

// Query selects resources for one topic.
type Query struct {
	Topic      string
	MaxResults int
}

func (q Query) limit(def int) int {
	if q.MaxResults <= 0 {
		return def
	}
	return q.MaxResults
}

// Fetcher looks up resources from one content source.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]learning.Resource, error)
}

// ClientConfig is shared by all HTTP-backed fetchers.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

func newClient(cfg ClientConfig, defaultBase string) *resty.Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(timeout).
		SetHeader("User-Agent", "pai-path")
}

// checkResponse turns a non-2xx answer into an error.
func checkResponse(source string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	body := truncate(resp.String(), maxErrorBody)
	return fmt.Errorf("%s api error (status %d): %s", source, resp.StatusCode(), body)
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// FoldTopic normalizes a topic for keyword matching and cache keys.
func FoldTopic(topic string) string {
	folded := cases.Fold().String(norm.NFC.String(topic))
	return strings.Join(strings.Fields(folded), " ")
}
