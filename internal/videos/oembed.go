package videos

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/microcosm-cc/bluemonday"

	"github.com/vidinsight/client/internal/logging"
	"github.com/vidinsight/client/internal/metrics"
	"github.com/vidinsight/client/internal/models"
)

const maxOEmbedBytes = 1 << 20

// Endpoints are the oEmbed base URLs queried per platform.
type Endpoints struct {
	YouTube   string
	Vimeo     string
	Twitter   string
	Instagram string
}

// DefaultEndpoints are the public oEmbed providers.
var DefaultEndpoints = Endpoints{
	YouTube:   "https://www.youtube.com/oembed",
	Vimeo:     "https://vimeo.com/api/oembed.json",
	Twitter:   "https://publish.twitter.com/oembed",
	Instagram: "https://api.instagram.com/oembed",
}

// Enricher adds details oEmbed does not carry. Only YouTube is enriched.
type Enricher interface {
	Enrich(ctx context.Context, videoID string) (duration, publishedAt string, err error)
}

type oembedPayload struct {
	Title        string  `json:"title"`
	AuthorName   string  `json:"author_name"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Duration     float64 `json:"duration"`
}

// OEmbedProber resolves previews through the platforms' oEmbed endpoints.
type OEmbedProber struct {
	client    *http.Client
	endpoints Endpoints
	enricher  Enricher
	policy    *bluemonday.Policy
	metrics   metrics.Recorder
}

// ProberOption customises an OEmbedProber.
type ProberOption func(*OEmbedProber)

// WithProberHTTPClient replaces the SSRF-guarded client.
func WithProberHTTPClient(hc *http.Client) ProberOption {
	return func(p *OEmbedProber) {
		if hc != nil {
			p.client = hc
		}
	}
}

// WithEndpoints overrides the oEmbed base URLs.
func WithEndpoints(e Endpoints) ProberOption {
	return func(p *OEmbedProber) { p.endpoints = e }
}

// WithEnricher attaches a YouTube enricher.
func WithEnricher(e Enricher) ProberOption {
	return func(p *OEmbedProber) { p.enricher = e }
}

// WithProberMetrics records probe outcomes.
func WithProberMetrics(rec metrics.Recorder) ProberOption {
	return func(p *OEmbedProber) {
		if rec != nil {
			p.metrics = rec
		}
	}
}

// NewOEmbedProber builds a prober whose HTTP client refuses private,
// loopback and link-local destinations.
func NewOEmbedProber(timeout time.Duration, opts ...ProberOption) *OEmbedProber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &OEmbedProber{
		client:    NewSafeClient(timeout),
		endpoints: DefaultEndpoints,
		policy:    bluemonday.StrictPolicy(),
		metrics:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewSafeClient returns an HTTP client restricted to http/https on ports 80
// and 443 with private address ranges blocked after DNS resolution.
func NewSafeClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(cfg).Client
}

// Probe implements Prober.
func (p *OEmbedProber) Probe(ctx context.Context, rawURL string) Preview {
	rawURL = strings.TrimSpace(rawURL)
	platform := DetectPlatform(rawURL)
	if platform == models.PlatformUnknown {
		p.metrics.RecordProbe(string(platform), "skipped")
		return Preview{}
	}

	ctx, span := logging.StartSpan(ctx, "videos.probe", slog.String("platform", string(platform)))
	defer span.End()

	meta, err := p.lookup(ctx, platform, rawURL)
	if err != nil {
		span.Fail(err)
		p.metrics.RecordProbe(string(platform), "degraded")
		return degraded(platform, rawURL)
	}
	p.metrics.RecordProbe(string(platform), "ok")
	return Preview{Metadata: &meta}
}

func (p *OEmbedProber) lookup(ctx context.Context, platform models.Platform, rawURL string) (models.VideoMetadata, error) {
	switch platform {
	case models.PlatformYouTube:
		return p.youtube(ctx, rawURL)
	case models.PlatformVimeo:
		return p.vimeo(ctx, rawURL)
	case models.PlatformTwitter:
		return p.generic(ctx, platform, p.endpoints.Twitter, rawURL, "Twitter Post", false)
	case models.PlatformInstagram:
		return p.generic(ctx, platform, p.endpoints.Instagram, rawURL, "Instagram Post", true)
	default:
		return models.VideoMetadata{}, ErrUnsupportedPlatform
	}
}

func (p *OEmbedProber) youtube(ctx context.Context, rawURL string) (models.VideoMetadata, error) {
	id := youtubeID(rawURL)
	if id == "" {
		return models.VideoMetadata{}, ErrUnsupportedPlatform
	}
	endpoint := p.endpoints.YouTube + "?url=https://www.youtube.com/watch?v=" + url.QueryEscape(id) + "&format=json"
	payload, err := p.fetch(ctx, endpoint)
	if err != nil {
		return models.VideoMetadata{}, err
	}

	meta := models.VideoMetadata{
		Platform:  models.PlatformYouTube,
		URL:       rawURL,
		Title:     p.clean(payload.Title),
		Thumbnail: "https://img.youtube.com/vi/" + id + "/maxresdefault.jpg",
		Channel:   p.clean(payload.AuthorName),
	}

	if p.enricher != nil {
		duration, publishedAt, err := p.enricher.Enrich(ctx, id)
		if err != nil {
			logging.FromContext(ctx).Debug("youtube enrichment skipped", slog.String("error", err.Error()))
		} else {
			meta.Duration = duration
			meta.PublishedAt = publishedAt
		}
	}
	return meta, nil
}

func (p *OEmbedProber) vimeo(ctx context.Context, rawURL string) (models.VideoMetadata, error) {
	payload, err := p.fetch(ctx, p.endpoints.Vimeo+"?url="+url.QueryEscape(rawURL))
	if err != nil {
		return models.VideoMetadata{}, err
	}
	meta := models.VideoMetadata{
		Platform:  models.PlatformVimeo,
		URL:       rawURL,
		Title:     p.clean(payload.Title),
		Thumbnail: payload.ThumbnailURL,
		Channel:   p.clean(payload.AuthorName),
	}
	if payload.Duration > 0 {
		total := int(payload.Duration)
		meta.Duration = fmt.Sprintf("%d:%02d", total/60, total%60)
	}
	return meta, nil
}

func (p *OEmbedProber) generic(ctx context.Context, platform models.Platform, base, rawURL, fallbackTitle string, thumbnail bool) (models.VideoMetadata, error) {
	payload, err := p.fetch(ctx, base+"?url="+url.QueryEscape(rawURL))
	if err != nil {
		return models.VideoMetadata{}, err
	}
	title := p.clean(payload.Title)
	if title == "" {
		title = fallbackTitle
	}
	meta := models.VideoMetadata{
		Platform: platform,
		URL:      rawURL,
		Title:    title,
		Channel:  p.clean(payload.AuthorName),
	}
	if thumbnail {
		meta.Thumbnail = payload.ThumbnailURL
	}
	return meta, nil
}

func (p *OEmbedProber) fetch(ctx context.Context, endpoint string) (oembedPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return oembedPayload{}, fmt.Errorf("build oembed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return oembedPayload{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return oembedPayload{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var payload oembedPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOEmbedBytes)).Decode(&payload); err != nil {
		return oembedPayload{}, fmt.Errorf("%w: decode: %v", ErrLookupFailed, err)
	}
	return payload, nil
}

// clean strips markup from third-party text while keeping literal characters.
func (p *OEmbedProber) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(p.policy.Sanitize(s)))
}
