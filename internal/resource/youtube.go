package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/p-n-ai/pai-path/internal/learning"
)

const (
	youtubeBaseURL    = "https://www.googleapis.com/youtube/v3"
	youtubeMaxResults = 3
	// Education category.
	youtubeCategory = "27"
)

// YouTubeConfig configures the YouTube fetcher.
type YouTubeConfig struct {
	ClientConfig
	APIKey string
}

// YouTube searches educational videos via the YouTube Data API.
type YouTube struct {
	client *resty.Client
	apiKey string
}

// NewYouTube creates a YouTube fetcher. An API key is required.
func NewYouTube(cfg YouTubeConfig) (*YouTube, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube: api key is required")
	}
	return &YouTube{client: newClient(cfg.ClientConfig, youtubeBaseURL), apiKey: cfg.APIKey}, nil
}

func (y *YouTube) Name() string { return "youtube" }

type youtubeSearch struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			Thumbnails   struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type youtubeVideos struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Fetch returns up to three videos for q.Topic.
func (y *YouTube) Fetch(ctx context.Context, q Query) ([]learning.Resource, error) {
	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part":            "snippet",
			"q":               q.Topic + " tutorial educational",
			"type":            "video",
			"videoCategoryId": youtubeCategory,
			"maxResults":      strconv.Itoa(q.limit(youtubeMaxResults)),
			"key":             y.apiKey,
		}).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	if err := checkResponse("youtube", resp); err != nil {
		return nil, err
	}

	var search youtubeSearch
	if err := json.Unmarshal(resp.Body(), &search); err != nil {
		return nil, fmt.Errorf("decode youtube search: %w", err)
	}
	if len(search.Items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		ids = append(ids, item.ID.VideoID)
	}
	details := y.details(ctx, ids)

	out := make([]learning.Resource, 0, len(search.Items))
	for _, item := range search.Items {
		d, ok := details[item.ID.VideoID]
		duration := "Unknown"
		if ok && d.duration != "" {
			duration = d.duration
		}
		out = append(out, learning.Resource{
			Type:         learning.ResourceVideo,
			Source:       y.Name(),
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			URL:          "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			ThumbnailURL: item.Snippet.Thumbnails.High.URL,
			Duration:     duration,
			Metadata: map[string]any{
				"channel_title": item.Snippet.ChannelTitle,
				"published_at":  item.Snippet.PublishedAt,
				"view_count":    d.views,
			},
		})
	}
	return out, nil
}

type videoDetail struct {
	duration string
	views    int64
}

// details looks up durations and view counts. Failure only loses the extras.
func (y *YouTube) details(ctx context.Context, ids []string) map[string]videoDetail {
	out := make(map[string]videoDetail, len(ids))
	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part": "contentDetails,statistics",
			"id":   strings.Join(ids, ","),
			"key":  y.apiKey,
		}).
		Get("/videos")
	if err != nil || checkResponse("youtube", resp) != nil {
		return out
	}

	var videos youtubeVideos
	if err := json.Unmarshal(resp.Body(), &videos); err != nil {
		return out
	}
	for _, v := range videos.Items {
		views, _ := strconv.ParseInt(v.Statistics.ViewCount, 10, 64)
		out[v.ID] = videoDetail{duration: v.ContentDetails.Duration, views: views}
	}
	return out
}
