package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"univer-schedule/internal/components/assert"
	"univer-schedule/internal/components/telemetry"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	report_chrome_launch  = "chrome.launch"
	report_chrome_close   = "chrome.close"
	report_chrome_console = "chrome console error"
)

// ChromeLauncher launches a fresh chrome process per session through chromedp.
type ChromeLauncher struct {
	tel telemetry.API
}

func NewChromeLauncher(tel telemetry.API) ChromeLauncher {
	assert.NotNil(tel, "telemetry")
	return ChromeLauncher{tel: telemetry.NewScopedAPI("browser", tel)}
}

func allocatorOptions(profile Profile) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(
		opts,
		chromedp.Flag("headless", profile.Headless),
		chromedp.Flag("lang", profile.Locale),
	)
	if profile.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(profile.UserAgent))
	}
	if profile.Width > 0 && profile.Height > 0 {
		opts = append(opts, chromedp.WindowSize(profile.Width, profile.Height))
	}
	if profile.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(profile.ExecPath))
	}
	for name, value := range profile.Flags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// applyProfile must run before the first navigation so the init script and
// the seeded cookies are in place when the first document loads.
func applyProfile(profile Profile) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		err := network.Enable().Do(ctx)
		if err != nil {
			return fmt.Errorf("enable network: %w", err)
		}
		if profile.InitScript != "" {
			_, err = page.AddScriptToEvaluateOnNewDocument(profile.InitScript).Do(ctx)
			if err != nil {
				return fmt.Errorf("add init script: %w", err)
			}
		}
		if profile.UserAgent != "" {
			err = emulation.SetUserAgentOverride(profile.UserAgent).
				WithAcceptLanguage(profile.AcceptLanguage).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("override user agent: %w", err)
			}
		}
		if profile.AcceptLanguage != "" {
			err = network.SetExtraHTTPHeaders(network.Headers{
				"Accept-Language": profile.AcceptLanguage,
			}).Do(ctx)
			if err != nil {
				return fmt.Errorf("set accept-language: %w", err)
			}
		}
		if profile.Locale != "" {
			err = emulation.SetLocaleOverride().WithLocale(profile.Locale).Do(ctx)
			if err != nil {
				return fmt.Errorf("override locale: %w", err)
			}
		}
		if profile.Timezone != "" {
			err = emulation.SetTimezoneOverride(profile.Timezone).Do(ctx)
			if err != nil {
				return fmt.Errorf("override timezone: %w", err)
			}
		}
		for _, c := range profile.Cookies {
			path := c.Path
			if path == "" {
				path = "/"
			}
			err = network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(path).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("seed cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

func (l ChromeLauncher) Launch(ctx context.Context, profile Profile) (API, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(profile)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	b := &chromeBrowser{
		tabCtx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		tel: l.tel,
	}

	// the first Run allocates the browser, it must be given the tab context
	// itself so that a deadline on ctx does not kill the browser later on.
	err := chromedp.Run(tabCtx)
	if err != nil {
		b.cancel()
		l.tel.ReportBroken(report_chrome_launch, err)
		return nil, fmt.Errorf("start browser: %w", err)
	}

	chromedp.ListenTarget(tabCtx, b.onEvent)

	err = b.run(ctx, applyProfile(profile))
	if err != nil {
		b.Close()
		l.tel.ReportBroken(report_chrome_launch, err)
		return nil, fmt.Errorf("apply session profile: %w", err)
	}

	return b, nil
}

type chromeBrowser struct {
	tabCtx context.Context
	cancel func()
	tel    telemetry.API

	closeOnce sync.Once
	closeErr  error
}

func (b *chromeBrowser) onEvent(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		if ev.Type != runtime.APITypeError {
			return
		}
		args := make([]string, 0, len(ev.Args))
		for _, arg := range ev.Args {
			if arg.Description != "" {
				args = append(args, arg.Description)
				continue
			}
			args = append(args, string(arg.Value))
		}
		b.tel.ReportDebug(report_chrome_console, strings.Join(args, " "))
	}
}

// run executes actions on the tab, bounded by both the tab's lifetime and
// the deadline/cancellation of ctx.
func (b *chromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

func (b *chromeBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *chromeBrowser) Fill(ctx context.Context, selector, value string) error {
	return b.run(
		ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (b *chromeBrowser) Click(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (b *chromeBrowser) Location(ctx context.Context) (string, error) {
	var location string
	err := b.run(ctx, chromedp.Location(&location))
	return location, err
}

func (b *chromeBrowser) WaitVisible(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (b *chromeBrowser) HTML(ctx context.Context) (string, error) {
	var html string
	err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (b *chromeBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := b.run(ctx, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = chromedp.Cancel(b.tabCtx)
		b.cancel()
		if b.closeErr != nil {
			b.tel.ReportWarning(report_chrome_close, b.closeErr)
		}
	})
	return b.closeErr
}
