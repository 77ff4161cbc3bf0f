package videos

import (
	"regexp"
	"strings"

	"github.com/vidinsight/client/internal/models"
)

var (
	youtubePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
		regexp.MustCompile(`youtube\.com/v/([^&\n?#]+)`),
		regexp.MustCompile(`youtube\.com/watch\?.*v=([^&\n?#]+)`),
	}
	vimeoPattern     = regexp.MustCompile(`vimeo\.com/(\d+)`)
	twitterPattern   = regexp.MustCompile(`(?:^|[/.])(?:twitter|x)\.com/.+/status/`)
	instagramPattern = regexp.MustCompile(`instagram\.com/`)
)

// DetectPlatform classifies rawURL. Matching is ordered: YouTube, Vimeo,
// Twitter, Instagram.
func DetectPlatform(rawURL string) models.Platform {
	rawURL = strings.TrimSpace(rawURL)
	switch {
	case rawURL == "":
		return models.PlatformUnknown
	case youtubeID(rawURL) != "":
		return models.PlatformYouTube
	case vimeoID(rawURL) != "":
		return models.PlatformVimeo
	case twitterPattern.MatchString(rawURL):
		return models.PlatformTwitter
	case instagramPattern.MatchString(rawURL):
		return models.PlatformInstagram
	default:
		return models.PlatformUnknown
	}
}

// IsValidVideoURL reports whether rawURL belongs to a supported platform.
func IsValidVideoURL(rawURL string) bool {
	return DetectPlatform(rawURL) != models.PlatformUnknown
}

func youtubeID(rawURL string) string {
	for _, pattern := range youtubePatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

func vimeoID(rawURL string) string {
	if m := vimeoPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}
