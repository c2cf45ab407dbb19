package resource

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/p-n-ai/pai-path/internal/learning"
)

const (
	devtoBaseURL     = "https://dev.to/api"
	wikipediaBaseURL = "https://en.wikipedia.org/api/rest_v1"
	mediumBaseURL    = "https://medium.com/feed"

	articlesMaxResults = 5
	devtoMax           = 3
	mediumMax          = 2
	mediumDescLen      = 200
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// ArticlesConfig configures the article sources.
type ArticlesConfig struct {
	DevTo     ClientConfig
	Wikipedia ClientConfig
	Medium    ClientConfig
}

// Articles combines dev.to posts, a Wikipedia summary and Medium posts. Each
// source fails independently.
type Articles struct {
	devto     *resty.Client
	wikipedia *resty.Client
	medium    *resty.Client
}

// NewArticles creates the article fetcher.
func NewArticles(cfg ArticlesConfig) *Articles {
	return &Articles{
		devto:     newClient(cfg.DevTo, devtoBaseURL),
		wikipedia: newClient(cfg.Wikipedia, wikipediaBaseURL),
		medium:    newClient(cfg.Medium, mediumBaseURL),
	}
}

func (a *Articles) Name() string { return "articles" }

// Fetch returns up to five articles. It only fails when every source fails.
func (a *Articles) Fetch(ctx context.Context, q Query) ([]learning.Resource, error) {
	limit := q.limit(articlesMaxResults)

	sources := []struct {
		name  string
		fetch func(context.Context, string, int) ([]learning.Resource, error)
	}{
		{"dev.to", a.fetchDevTo},
		{"wikipedia", a.fetchWikipedia},
		{"medium", a.fetchMedium},
	}

	var out []learning.Resource
	failed := 0
	for _, src := range sources {
		found, err := src.fetch(ctx, q.Topic, limit)
		if err != nil {
			slog.Warn("article source failed", "source", src.name, "topic", q.Topic, "error", err)
			failed++
			continue
		}
		out = append(out, found...)
	}
	if failed == len(sources) {
		return nil, fmt.Errorf("all article sources failed for %q", q.Topic)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type devtoArticle struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	CoverImage  string   `json:"cover_image"`
	SocialImage string   `json:"social_image"`
	PublishedAt string   `json:"published_at"`
	ReadingTime int      `json:"reading_time_minutes"`
	TagList     []string `json:"tag_list"`
	Reactions   int      `json:"public_reactions_count"`
	User        struct {
		Name string `json:"name"`
	} `json:"user"`
}

func (a *Articles) fetchDevTo(ctx context.Context, topic string, limit int) ([]learning.Resource, error) {
	resp, err := a.devto.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"tag":      topic,
			"per_page": strconv.Itoa(min(limit, devtoMax)),
		}).
		Get("/articles")
	if err != nil {
		return nil, err
	}
	if err := checkResponse("dev.to", resp); err != nil {
		return nil, err
	}

	var articles []devtoArticle
	if err := json.Unmarshal(resp.Body(), &articles); err != nil {
		return nil, fmt.Errorf("decode dev.to articles: %w", err)
	}

	out := make([]learning.Resource, 0, len(articles))
	for _, art := range articles {
		desc := art.Description
		if desc == "" {
			desc = art.Title
		}
		thumb := art.CoverImage
		if thumb == "" {
			thumb = art.SocialImage
		}
		out = append(out, learning.Resource{
			Type:         learning.ResourceArticle,
			Source:       "dev.to",
			Title:        art.Title,
			Description:  desc,
			URL:          art.URL,
			ThumbnailURL: thumb,
			Metadata: map[string]any{
				"author":            art.User.Name,
				"published_at":      art.PublishedAt,
				"read_time_minutes": art.ReadingTime,
				"tags":              art.TagList,
				"reactions":         art.Reactions,
			},
		})
	}
	return out, nil
}

type wikipediaSummary struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Extract   string `json:"extract"`
	PageID    int    `json:"pageid"`
	Timestamp string `json:"timestamp"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func (a *Articles) fetchWikipedia(ctx context.Context, topic string, _ int) ([]learning.Resource, error) {
	resp, err := a.wikipedia.R().
		SetContext(ctx).
		SetPathParam("title", topic).
		Get("/page/summary/{title}")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	if err := checkResponse("wikipedia", resp); err != nil {
		return nil, err
	}

	var page wikipediaSummary
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("decode wikipedia summary: %w", err)
	}
	if page.Type == "disambiguation" || page.ContentURLs.Desktop.Page == "" {
		return nil, nil
	}

	r := learning.Resource{
		Type:        learning.ResourceDocumentation,
		Source:      "wikipedia",
		Title:       page.Title,
		Description: page.Extract,
		URL:         page.ContentURLs.Desktop.Page,
		Metadata: map[string]any{
			"page_id":       page.PageID,
			"last_modified": page.Timestamp,
		},
	}
	if page.Thumbnail != nil {
		r.ThumbnailURL = page.Thumbnail.Source
	}
	return []learning.Resource{r}, nil
}

type mediumFeed struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
		} `xml:"item"`
	} `xml:"channel"`
}

func (a *Articles) fetchMedium(ctx context.Context, topic string, _ int) ([]learning.Resource, error) {
	resp, err := a.medium.R().
		SetContext(ctx).
		SetPathParam("tag", topic).
		Get("/tag/{tag}")
	if err != nil {
		return nil, err
	}
	if err := checkResponse("medium", resp); err != nil {
		return nil, err
	}

	var feed mediumFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("decode medium feed: %w", err)
	}

	var out []learning.Resource
	for _, item := range feed.Channel.Items {
		if len(out) >= mediumMax {
			break
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}
		out = append(out, learning.Resource{
			Type:        learning.ResourceArticle,
			Source:      "medium",
			Title:       title,
			Description: plainText(item.Description, mediumDescLen),
			URL:         link,
			Metadata:    map[string]any{},
		})
	}
	return out, nil
}

// plainText strips HTML tags and truncates to n runes.
func plainText(s string, n int) string {
	s = strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
