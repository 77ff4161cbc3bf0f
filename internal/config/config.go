package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures the runtime configuration for the VidInsight client and edge server.
type Config struct {
	APIBaseURL  string
	AppPort     int
	LogLevel    string
	LogFormat   string
	HTTPTimeout time.Duration

	StorageURL        string
	StoragePassphrase string
	MigrationDir      string

	DebounceWindow     time.Duration
	StatusPollInterval time.Duration
	ListStaleTime      time.Duration
	DetailStaleTime    time.Duration
	CreditsStaleTime   time.Duration
	CreditsPerVideo    int

	OEmbedTimeout    time.Duration
	PreviewCacheTTL  time.Duration
	YouTubeAPIKey    string
	AllowPrivateURLs bool

	CallbackRateLimit  int
	CallbackRateWindow time.Duration
	PrivatePrefixes    []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honoured when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		APIBaseURL:  getString("VIDINSIGHT_API_BASE_URL", "http://localhost:5000"),
		AppPort:     getInt("VIDINSIGHT_PORT", 3000),
		LogLevel:    getString("VIDINSIGHT_LOG_LEVEL", "info"),
		LogFormat:   getString("VIDINSIGHT_LOG_FORMAT", "json"),
		HTTPTimeout: getDuration("VIDINSIGHT_HTTP_TIMEOUT", 30*time.Second),

		StorageURL:        getString("VIDINSIGHT_STORAGE_URL", defaultStoragePath()),
		StoragePassphrase: os.Getenv("VIDINSIGHT_STORAGE_PASSPHRASE"),
		MigrationDir:      getString("VIDINSIGHT_MIGRATIONS", "migrations"),

		DebounceWindow:     getDuration("VIDINSIGHT_DEBOUNCE_WINDOW", time.Second),
		StatusPollInterval: getDuration("VIDINSIGHT_STATUS_POLL_INTERVAL", time.Minute),
		ListStaleTime:      getDuration("VIDINSIGHT_LIST_STALE_TIME", 30*time.Second),
		DetailStaleTime:    getDuration("VIDINSIGHT_DETAIL_STALE_TIME", time.Minute),
		CreditsStaleTime:   getDuration("VIDINSIGHT_CREDITS_STALE_TIME", 30*time.Second),
		CreditsPerVideo:    getInt("VIDINSIGHT_CREDITS_PER_VIDEO", 6),

		OEmbedTimeout:    getDuration("VIDINSIGHT_OEMBED_TIMEOUT", 10*time.Second),
		PreviewCacheTTL:  getDuration("VIDINSIGHT_PREVIEW_CACHE_TTL", 15*time.Minute),
		YouTubeAPIKey:    os.Getenv("VIDINSIGHT_YOUTUBE_API_KEY"),
		AllowPrivateURLs: getBool("VIDINSIGHT_ALLOW_PRIVATE_URLS", false),

		CallbackRateLimit:  getInt("VIDINSIGHT_CALLBACK_RATE_LIMIT", 10),
		CallbackRateWindow: getDuration("VIDINSIGHT_CALLBACK_RATE_WINDOW", time.Minute),
		PrivatePrefixes:    getList("VIDINSIGHT_PRIVATE_PREFIXES", []string{"/dashboard", "/wallet", "/submissions"}),
	}

	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return Config{}, errors.New("config: VIDINSIGHT_API_BASE_URL must not be empty")
	}
	if cfg.CreditsPerVideo <= 0 {
		return Config{}, errors.New("config: VIDINSIGHT_CREDITS_PER_VIDEO must be positive")
	}

	return cfg, nil
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".vidinsight/storage.json"
	}
	return dir + "/vidinsight/storage.json"
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
