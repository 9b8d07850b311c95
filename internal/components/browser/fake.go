package browser

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// FakePage is a canned page served by Fake.
type FakePage struct {
	HTML string
	// Visible are the selectors that are rendered on the page, waiting on
	// any other selector blocks until the context expires.
	Visible []string
	// Err is returned when navigating to the page.
	Err error
}

// Fake is an in-memory Launcher and API serving canned pages, it is meant
// for tests. Every Launch returns the same tab.
type Fake struct {
	// Pages maps an address to the page it serves.
	Pages map[string]FakePage
	// Submit returns the address the browser lands on after a click, given
	// the current address and the values filled in so far. A nil Submit
	// keeps the browser where it is.
	Submit func(location string, fields map[string]string) string
	// LaunchErr fails Launch.
	LaunchErr error

	mu       sync.Mutex
	location string
	fields   map[string]string
	visited  []string
	profiles []Profile
	closed   int
}

func (f *Fake) Launch(ctx context.Context, profile Profile) (API, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LaunchErr != nil {
		return nil, f.LaunchErr
	}
	f.profiles = append(f.profiles, profile)
	return f, nil
}

func (f *Fake) page() FakePage {
	return f.Pages[f.location]
}

// blockUntil emulates an element wait that never succeeds.
func blockUntil(ctx context.Context, selector string) error {
	<-ctx.Done()
	return fmt.Errorf("waiting for %s: %w", selector, ctx.Err())
}

func (f *Fake) visible(selector string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.page().Visible, selector)
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	f.visited = append(f.visited, url)
	page, ok := f.Pages[url]
	if ok && page.Err != nil {
		return page.Err
	}
	f.location = url
	return nil
}

func (f *Fake) Fill(ctx context.Context, selector, value string) error {
	if !f.visible(selector) {
		return blockUntil(ctx, selector)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fields == nil {
		f.fields = map[string]string{}
	}
	f.fields[selector] = value
	return nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	if !f.visible(selector) {
		return blockUntil(ctx, selector)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Submit != nil {
		f.location = f.Submit(f.location, f.fields)
	}
	return nil
}

func (f *Fake) Location(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location, nil
}

func (f *Fake) WaitVisible(ctx context.Context, selector string) error {
	if !f.visible(selector) {
		return blockUntil(ctx, selector)
	}
	return nil
}

func (f *Fake) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page().HTML, nil
}

func (f *Fake) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

// Close counts calls so tests can check the tab is released exactly once.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	if f.closed > 1 {
		return errors.New("fake browser closed twice")
	}
	return nil
}

func (f *Fake) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.visited)
}

func (f *Fake) Profiles() []Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.profiles)
}

func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Fields() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.fields))
	for k, v := range f.fields {
		out[k] = v
	}
	return out
}
