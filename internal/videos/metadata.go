package videos

import (
	"context"

	"github.com/vidinsight/client/internal/models"
)

const (
	// UnavailableTitle is shown when a supported URL has no fetchable preview.
	UnavailableTitle = "Preview not available"
	// UnavailableAdvisory tells the user the URL can still be submitted.
	UnavailableAdvisory = "Could not fetch preview for this platform, but you can still submit your video."
)

// Preview is the result of probing a URL. Metadata is nil for unsupported or
// empty input. A non-empty Advisory marks a degraded preview.
type Preview struct {
	Metadata *models.VideoMetadata
	Advisory string
}

// Degraded reports whether the preview is a placeholder.
func (p Preview) Degraded() bool {
	return p.Advisory != ""
}

// Prober returns the preview for a pasted URL. Probe never fails: lookup
// problems are folded into a degraded preview.
type Prober interface {
	Probe(ctx context.Context, rawURL string) Preview
}

func degraded(platform models.Platform, rawURL string) Preview {
	return Preview{
		Metadata: &models.VideoMetadata{Platform: platform, URL: rawURL, Title: UnavailableTitle},
		Advisory: UnavailableAdvisory,
	}
}
