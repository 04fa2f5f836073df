// Package browser defines the contract the extraction pipeline requires from
// an interactive browser-automation engine, plus the chromedp-backed
// implementation. The portal packages depend only on the interfaces here, so
// tests drive them with in-memory fakes.
package browser

import (
	"context"
	"time"
)

// Downloaded describes a filesystem-materialized download captured by the
// engine. Path points at the engine's scratch directory; callers move the
// file to its final location.
type Downloaded struct {
	Path          string
	SuggestedName string
}

// Page is one interactive context: a logged-in tab with its own cookies and
// navigation state. All methods honor ctx cancellation; the wait and
// download primitives additionally take explicit bounded timeouts.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)

	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error

	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// WaitFor polls cond until it reports true or the timeout elapses.
	WaitFor(ctx context.Context, timeout time.Duration, cond func(ctx context.Context) (bool, error)) error

	IsVisible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	// Texts returns the trimmed text content of every node matching selector,
	// in document order.
	Texts(ctx context.Context, selector string) ([]string, error)
	Count(ctx context.Context, selector string) (int, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, selector, name string) (string, bool, error)

	// Download clicks the trigger selector and waits for the resulting
	// download to complete on disk.
	Download(ctx context.Context, triggerSelector string, timeout time.Duration) (*Downloaded, error)

	Close() error
}

// Engine owns the underlying browser process. One engine lives for one batch
// run; each authentication attempt gets a fresh Page so no partial login
// state leaks between attempts.
type Engine interface {
	// NewContext opens a fresh interactive context, discarding any state
	// from a previously opened one.
	NewContext(ctx context.Context) (Page, error)
	Close() error
}

// Factory creates an Engine. Injected so the batch orchestrator and the
// tests control which engine backs a run.
type Factory func(ctx context.Context) (Engine, error)
