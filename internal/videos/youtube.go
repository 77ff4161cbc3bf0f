package videos

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/vidinsight/client/internal/models"
)

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// YouTubeEnricher reads duration and publish date from the YouTube Data API.
type YouTubeEnricher struct {
	service *youtube.Service
}

// NewYouTubeEnricher connects to the Data API with apiKey. Extra options are
// appended after the key.
func NewYouTubeEnricher(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeEnricher, error) {
	if apiKey == "" && len(opts) == 0 {
		return nil, errors.New("youtube: api key is required")
	}
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}
	return &YouTubeEnricher{service: service}, nil
}

// Enrich implements Enricher.
func (e *YouTubeEnricher) Enrich(ctx context.Context, videoID string) (string, string, error) {
	resp, err := e.service.Videos.List([]string{"contentDetails", "snippet"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return "", "", fmt.Errorf("youtube: list video: %w", err)
	}
	if len(resp.Items) == 0 {
		return "", "", fmt.Errorf("youtube: video %s not found", videoID)
	}

	item := resp.Items[0]
	var duration, publishedAt string
	if item.ContentDetails != nil {
		if secs, ok := parseISODuration(item.ContentDetails.Duration); ok {
			duration = models.FormatSeconds(secs)
		}
	}
	if item.Snippet != nil {
		publishedAt = item.Snippet.PublishedAt
	}
	return duration, publishedAt, nil
}

func parseISODuration(value string) (int, bool) {
	m := isoDuration.FindStringSubmatch(value)
	if m == nil || value == "P" || value == "PT" {
		return 0, false
	}
	multipliers := []int{86400, 3600, 60, 1}
	total := 0
	for i, mult := range multipliers {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, false
		}
		total += n * mult
	}
	return total, true
}
