package browser

import "strings"

// Cookie is seeded into the browsing context before any navigation.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Profile is the identity a browser session presents to a site. It is applied
// once when the session is created.
type Profile struct {
	UserAgent      string
	Width          int
	Height         int
	Locale         string
	AcceptLanguage string
	Timezone       string
	Cookies        []Cookie

	// InitScript runs in every document before any page script.
	InitScript string

	Headless bool
	// ExecPath is the chrome executable, empty means chromedp's lookup.
	ExecPath string
	// Flags are extra command line switches for the browser process.
	Flags map[string]any
}

// StealthScript hides the usual automation tells from page scripts.
func StealthScript(languages []string) string {
	quoted := make([]string, len(languages))
	for i, l := range languages {
		quoted[i] = "'" + l + "'"
	}

	return `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = { runtime: {} };
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => [` + strings.Join(quoted, ", ") + `] });
`
}

// AutomationFlags are the launch switches that suppress the
// "controlled by automated software" signals.
func AutomationFlags() map[string]any {
	return map[string]any{
		"disable-blink-features":        "AutomationControlled",
		"enable-automation":             false,
		"disable-infobars":              true,
		"no-sandbox":                    true,
		"disable-setuid-sandbox":        true,
		"disable-dev-shm-usage":         true,
		"window-position":               "0,0",
		"ignore-certificate-errors":     true,
		"disable-features":              "TranslateUI",
		"disable-background-networking": true,
	}
}
