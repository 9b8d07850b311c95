package browser

import "context"

// API is a single isolated browser tab. Every method is bounded by the
// deadline of the ctx it is given.
//
// note: fault injection point
type API interface {
	Navigate(ctx context.Context, url string) error
	// Fill types value into the first element matching the css selector.
	Fill(ctx context.Context, selector, value string) error
	// Click clicks the first element matching the css selector.
	Click(ctx context.Context, selector string) error
	// Location returns the address currently loaded in the tab.
	Location(ctx context.Context) (string, error)
	// WaitVisible blocks until an element matching the css selector is visible.
	WaitVisible(ctx context.Context, selector string) error
	// HTML returns the serialized document of the current page.
	HTML(ctx context.Context) (string, error)
	// Screenshot returns a full page png.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the tab and the browser process behind it, calling it
	// more than once is a no-op.
	Close() error
}

// Launcher creates browser sessions with a profile applied before the first
// page load.
//
// note: fault injection point
type Launcher interface {
	Launch(ctx context.Context, profile Profile) (API, error)
}
