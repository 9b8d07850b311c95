package univer

import (
	"fmt"
	"net/url"
	"strings"
	"univer-schedule/internal/calendar"
	"univer-schedule/internal/components/browser"
)

// Portal describes the addresses of the university portal. The schedule page
// has no versioned contract, every path here was observed, not documented.
type Portal struct {
	BaseUrl      string `json:"base_url"`
	LoginPath    string `json:"login_path"`
	LanguagePath string `json:"language_path"`
	// Year and Term form the fixed academic period segment of the schedule
	// address, the portal ignores the week dates when they do not match.
	Year int    `json:"year"`
	Term int    `json:"term"`
	Lang string `json:"lang"`
}

func DefaultPortal() Portal {
	return Portal{
		BaseUrl:      "https://univer.kstu.kz",
		LoginPath:    "/user/login",
		LanguagePath: "/lang/change/ru/",
		Year:         2025,
		Term:         2,
		Lang:         "ru",
	}
}

func (p Portal) base() string {
	return strings.TrimSuffix(p.BaseUrl, "/")
}

func (p Portal) LoginURL() string {
	return p.base() + p.LoginPath
}

func (p Portal) LanguageURL() string {
	return p.base() + p.LanguagePath
}

// ScheduleURL is the personal schedule page of the given week,
// "{base}/student/myschedule/{year}/{term}/{monday}/{sunday}/?lang={lang}".
func (p Portal) ScheduleURL(window calendar.Window) string {
	return fmt.Sprintf(
		"%s/student/myschedule/%d/%d/%s/%s/?lang=%s",
		p.base(),
		p.Year,
		p.Term,
		window.MondayString(),
		window.SundayString(),
		url.QueryEscape(p.Lang),
	)
}

// Host is the cookie domain of the portal.
func (p Portal) Host() string {
	parsed, err := url.Parse(p.BaseUrl)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// DefaultProfile is a russian speaking desktop chrome in Almaty. The language
// cookie makes the portal render russian markup from the very first page.
func DefaultProfile(portal Portal) browser.Profile {
	return browser.Profile{
		UserAgent:      DefaultUserAgent,
		Width:          1280,
		Height:         720,
		Locale:         "ru-RU",
		AcceptLanguage: "ru-RU,ru;q=0.9",
		Timezone:       "Asia/Almaty",
		Cookies: []browser.Cookie{
			{
				Name:   "language",
				Value:  portal.Lang,
				Domain: portal.Host(),
				Path:   "/",
			},
		},
		InitScript: browser.StealthScript([]string{"ru-RU", "ru"}),
		Headless:   true,
		Flags:      browser.AutomationFlags(),
	}
}
