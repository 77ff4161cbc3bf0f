package videos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/vidinsight/client/internal/models"
)

func TestDetectPlatform(t *testing.T) {
	cases := []struct {
		url  string
		want models.Platform
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", models.PlatformYouTube},
		{"https://youtu.be/dQw4w9WgXcQ", models.PlatformYouTube},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", models.PlatformYouTube},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", models.PlatformYouTube},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", models.PlatformYouTube},
		{"https://vimeo.com/76979871", models.PlatformVimeo},
		{"https://vimeo.com/channels/staffpicks", models.PlatformUnknown},
		{"https://twitter.com/someone/status/123", models.PlatformTwitter},
		{"https://x.com/someone/status/123", models.PlatformTwitter},
		{"https://netflix.com/a/status/1", models.PlatformUnknown},
		{"https://www.instagram.com/reel/abc/", models.PlatformInstagram},
		{"https://example.com/video.mp4", models.PlatformUnknown},
		{"", models.PlatformUnknown},
	}
	for _, tc := range cases {
		if got := DetectPlatform(tc.url); got != tc.want {
			t.Errorf("DetectPlatform(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
	if IsValidVideoURL("https://example.com") {
		t.Fatal("expected unknown url to be invalid")
	}
}

func newOEmbedServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Endpoints) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, Endpoints{
		YouTube:   srv.URL + "/youtube",
		Vimeo:     srv.URL + "/vimeo",
		Twitter:   srv.URL + "/twitter",
		Instagram: srv.URL + "/instagram",
	}
}

func TestProbeYouTube(t *testing.T) {
	srv, endpoints := newOEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("url"); got != "https://www.youtube.com/watch?v=abc123" {
			t.Fatalf("unexpected url param %q", got)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Fatalf("expected format=json")
		}
		w.Write([]byte(`{"title":"<b>Tom &amp; Jerry</b>","author_name":"Cartoons"}`))
	})
	prober := NewOEmbedProber(time.Second, WithProberHTTPClient(srv.Client()), WithEndpoints(endpoints))

	preview := prober.Probe(context.Background(), "https://youtu.be/abc123")
	if preview.Degraded() || preview.Metadata == nil {
		t.Fatalf("expected full preview, got %+v", preview)
	}
	meta := preview.Metadata
	if meta.Title != "Tom & Jerry" {
		t.Fatalf("expected sanitized title, got %q", meta.Title)
	}
	if meta.Channel != "Cartoons" || meta.Platform != models.PlatformYouTube {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if meta.Thumbnail != "https://img.youtube.com/vi/abc123/maxresdefault.jpg" {
		t.Fatalf("unexpected thumbnail %q", meta.Thumbnail)
	}
}

func TestProbeVimeoAndDefaults(t *testing.T) {
	srv, endpoints := newOEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vimeo":
			w.Write([]byte(`{"title":"Clip","author_name":"Studio","thumbnail_url":"https://i.vimeocdn.com/x.jpg","duration":125}`))
		case "/twitter", "/instagram":
			w.Write([]byte(`{"author_name":"someone","thumbnail_url":"https://cdn/x.jpg"}`))
		default:
			http.NotFound(w, r)
		}
	})
	prober := NewOEmbedProber(time.Second, WithProberHTTPClient(srv.Client()), WithEndpoints(endpoints))
	ctx := context.Background()

	vimeo := prober.Probe(ctx, "https://vimeo.com/76979871").Metadata
	if vimeo == nil || vimeo.Duration != "2:05" || vimeo.Thumbnail == "" {
		t.Fatalf("unexpected vimeo preview %+v", vimeo)
	}

	tweet := prober.Probe(ctx, "https://twitter.com/a/status/1").Metadata
	if tweet == nil || tweet.Title != "Twitter Post" || tweet.Thumbnail != "" {
		t.Fatalf("unexpected twitter preview %+v", tweet)
	}

	insta := prober.Probe(ctx, "https://instagram.com/p/xyz").Metadata
	if insta == nil || insta.Title != "Instagram Post" || insta.Thumbnail == "" {
		t.Fatalf("unexpected instagram preview %+v", insta)
	}
}

func TestProbeDegradesOnFailure(t *testing.T) {
	srv, endpoints := newOEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vimeo":
			w.Write([]byte(`not json`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	prober := NewOEmbedProber(time.Second, WithProberHTTPClient(srv.Client()), WithEndpoints(endpoints))

	for _, url := range []string{"https://www.youtube.com/watch?v=abc", "https://vimeo.com/1"} {
		preview := prober.Probe(context.Background(), url)
		if !preview.Degraded() {
			t.Fatalf("expected degraded preview for %s", url)
		}
		if preview.Metadata.Title != UnavailableTitle || preview.Metadata.URL != url {
			t.Fatalf("unexpected degraded metadata %+v", preview.Metadata)
		}
		if preview.Advisory != UnavailableAdvisory {
			t.Fatalf("unexpected advisory %q", preview.Advisory)
		}
	}
}

func TestProbeUnknownMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv, endpoints := newOEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	prober := NewOEmbedProber(time.Second, WithProberHTTPClient(srv.Client()), WithEndpoints(endpoints))

	preview := prober.Probe(context.Background(), "https://example.com/watch")
	if preview.Metadata != nil || preview.Advisory != "" {
		t.Fatalf("expected empty preview, got %+v", preview)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", hits.Load())
	}
}

type stubEnricher struct {
	duration string
	err      error
}

func (s stubEnricher) Enrich(context.Context, string) (string, string, error) {
	return s.duration, "2024-01-02T03:04:05Z", s.err
}

func TestProbeEnrichmentFailureKeepsPreview(t *testing.T) {
	srv, endpoints := newOEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Talk","author_name":"Conf"}`))
	})

	ok := NewOEmbedProber(time.Second, WithProberHTTPClient(srv.Client()), WithEndpoints(endpoints),
		WithEnricher(stubEnricher{duration: "1:02:03"}))
	meta := ok.Probe(context.Background(), "https://youtu.be/x").Metadata
	if meta == nil || meta.Duration != "1:02:03" || meta.PublishedAt == "" {
		t.Fatalf("expected enriched preview, got %+v", meta)
	}

	failing := NewOEmbedProber(time.Second, WithProberHTTPClient(srv.Client()), WithEndpoints(endpoints),
		WithEnricher(stubEnricher{err: context.DeadlineExceeded}))
	preview := failing.Probe(context.Background(), "https://youtu.be/x")
	if preview.Degraded() || preview.Metadata.Title != "Talk" || preview.Metadata.Duration != "" {
		t.Fatalf("expected plain oEmbed preview, got %+v", preview)
	}
}

func TestYouTubeEnricher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/videos") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("id") != "abc" {
			t.Fatalf("unexpected id %q", r.URL.Query().Get("id"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"abc","contentDetails":{"duration":"PT1H2M3S"},"snippet":{"publishedAt":"2024-01-02T03:04:05Z"}}]}`))
	}))
	defer srv.Close()

	enricher, err := NewYouTubeEnricher(context.Background(), "key",
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewYouTubeEnricher() error = %v", err)
	}
	duration, published, err := enricher.Enrich(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if duration != "1:02:03" || published != "2024-01-02T03:04:05Z" {
		t.Fatalf("unexpected enrichment %q %q", duration, published)
	}
}

func TestParseISODuration(t *testing.T) {
	cases := map[string]int{"PT45S": 45, "PT4M13S": 253, "PT1H": 3600, "P1DT1S": 86401}
	for in, want := range cases {
		got, ok := parseISODuration(in)
		if !ok || got != want {
			t.Errorf("parseISODuration(%q) = %d, %v; want %d", in, got, ok, want)
		}
	}
	for _, bad := range []string{"", "PT", "1H", "PTXS"} {
		if _, ok := parseISODuration(bad); ok {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

type countingProber struct {
	mu      sync.Mutex
	calls   []string
	preview func(string) Preview
}

func (c *countingProber) Probe(_ context.Context, url string) Preview {
	c.mu.Lock()
	c.calls = append(c.calls, url)
	c.mu.Unlock()
	if c.preview != nil {
		return c.preview(url)
	}
	return Preview{Metadata: &models.VideoMetadata{URL: url, Title: "ok"}}
}

func (c *countingProber) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func TestCachingProber(t *testing.T) {
	base := &countingProber{}
	cache := NewCachingProber(base, time.Minute)
	ctx := context.Background()

	first := cache.Probe(ctx, "https://youtu.be/a")
	second := cache.Probe(ctx, "https://youtu.be/a")
	if len(base.seen()) != 1 {
		t.Fatalf("expected one underlying probe, got %d", len(base.seen()))
	}
	if first.Metadata.Title != second.Metadata.Title {
		t.Fatalf("cached preview differs: %+v vs %+v", first, second)
	}

	current := time.Now()
	cache.now = func() time.Time { return current.Add(2 * time.Minute) }
	cache.Probe(ctx, "https://youtu.be/a")
	if len(base.seen()) != 2 {
		t.Fatalf("expected expired entry to refetch, got %d calls", len(base.seen()))
	}

	degradedBase := &countingProber{preview: func(url string) Preview { return degraded(models.PlatformVimeo, url) }}
	cache = NewCachingProber(degradedBase, time.Minute)
	cache.Probe(ctx, "https://vimeo.com/1")
	cache.Probe(ctx, "https://vimeo.com/1")
	if len(degradedBase.seen()) != 2 {
		t.Fatalf("expected degraded previews to bypass the cache")
	}
}

func TestDebouncerFiresOnceWithFinalValue(t *testing.T) {
	var mu sync.Mutex
	var got []string
	d := NewDebouncer(30*time.Millisecond, func(_ context.Context, v string) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	for _, v := range []string{"h", "ht", "htt", "http", "https://youtu.be/final"} {
		d.Trigger(v)
		time.Sleep(5 * time.Millisecond)
	}

	waitForCondition(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, time.Second)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "https://youtu.be/final" {
		t.Fatalf("expected single fire with final value, got %v", got)
	}
}

func TestDebouncerStop(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func(context.Context, string) { fired.Add(1) })
	d.Trigger("x")
	d.Stop()
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("expected stopped debouncer not to fire")
	}
}

func TestPreviewControllerProbesFinalURL(t *testing.T) {
	prober := &countingProber{preview: func(url string) Preview { return degraded(DetectPlatform(url), url) }}
	ctrl := NewPreviewController(prober, 20*time.Millisecond, nil)
	defer ctrl.Stop()

	ctrl.Input("https://vimeo.com/1")
	ctrl.Input("https://vimeo.com/12")
	ctrl.Input("https://vimeo.com/123")

	waitForCondition(t, func() bool { return ctrl.State().CanSubmit() }, time.Second)

	if calls := prober.seen(); len(calls) != 1 || calls[0] != "https://vimeo.com/123" {
		t.Fatalf("expected one probe with final url, got %v", calls)
	}
	state := ctrl.State()
	if state.Advisory != UnavailableAdvisory || state.Preview.Title != UnavailableTitle {
		t.Fatalf("expected degraded but submittable preview, got %+v", state)
	}

	ctrl.Input("not a video")
	waitForCondition(t, func() bool { return ctrl.State().Preview == nil }, time.Second)
	if len(prober.seen()) != 1 {
		t.Fatal("expected invalid input not to be probed")
	}

	ctrl.Remove()
	if s := ctrl.State(); s.Input != "" || s.Preview != nil {
		t.Fatalf("expected cleared state, got %+v", s)
	}
}

func waitForCondition(t *testing.T, predicate func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if predicate() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
