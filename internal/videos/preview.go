package videos

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vidinsight/client/internal/models"
)

// PreviewState is what the submit form shows for the current input.
type PreviewState struct {
	Input    string
	Preview  *models.VideoMetadata
	Advisory string
	Loading  bool
}

// CanSubmit reports whether a preview, degraded or not, is ready to submit.
func (s PreviewState) CanSubmit() bool {
	return s.Preview != nil && !s.Loading
}

// PreviewController debounces URL edits and probes the final value.
type PreviewController struct {
	prober    Prober
	debouncer *Debouncer
	onChange  func(PreviewState)

	mu    sync.Mutex
	state PreviewState
}

// NewPreviewController wires prober behind a debouncer with the given window.
// onChange may be nil.
func NewPreviewController(prober Prober, window time.Duration, onChange func(PreviewState)) *PreviewController {
	c := &PreviewController{prober: prober, onChange: onChange}
	c.debouncer = NewDebouncer(window, c.resolve)
	return c
}

// Input records an edit of the URL field.
func (c *PreviewController) Input(rawURL string) {
	c.set(func(s *PreviewState) { s.Input = rawURL })
	c.debouncer.Trigger(rawURL)
}

// Remove clears the input and the preview.
func (c *PreviewController) Remove() {
	c.debouncer.Stop()
	c.set(func(s *PreviewState) { *s = PreviewState{} })
}

// Stop cancels pending and running probes.
func (c *PreviewController) Stop() {
	c.debouncer.Stop()
}

// State returns the current snapshot.
func (c *PreviewController) State() PreviewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

func (c *PreviewController) resolve(ctx context.Context, rawURL string) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || !IsValidVideoURL(rawURL) {
		c.set(func(s *PreviewState) {
			s.Preview = nil
			s.Advisory = ""
			s.Loading = false
		})
		return
	}

	c.set(func(s *PreviewState) {
		s.Loading = true
		s.Advisory = ""
	})

	preview := c.prober.Probe(ctx, rawURL)
	if ctx.Err() != nil {
		return
	}

	c.set(func(s *PreviewState) {
		s.Preview = preview.Metadata
		s.Advisory = preview.Advisory
		s.Loading = false
	})
}

func (c *PreviewController) set(fn func(*PreviewState)) {
	c.mu.Lock()
	fn(&c.state)
	snap := c.copyLocked()
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(snap)
	}
}

func (c *PreviewController) copyLocked() PreviewState {
	snap := c.state
	if snap.Preview != nil {
		meta := *snap.Preview
		snap.Preview = &meta
	}
	return snap
}
