package videos

import "errors"

var (
	// ErrUnsupportedPlatform indicates a URL that matches no known platform.
	ErrUnsupportedPlatform = errors.New("unsupported video platform")
	// ErrLookupFailed indicates the oEmbed endpoint did not return usable metadata.
	ErrLookupFailed = errors.New("video metadata lookup failed")
)
