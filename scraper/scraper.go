package scraper

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/use-agent/prospect/config"
	"github.com/use-agent/prospect/models"
)

// Scraper owns the single browser session used for fetching. Exactly one
// egress identity is active at a time, and Chrome only takes a proxy at
// launch, so UseEgress tears the browser down and relaunches it.
//
// Not safe for concurrent use: the run is sequential and one fetch is in
// flight at a time.
type Scraper struct {
	browser    *rod.Browser
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	egress     string // current proxy endpoint; empty means direct
}

// New launches the browser without a proxy and returns the session owner.
func New(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Scraper, error) {
	s := &Scraper{
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
	}
	if err := s.launch(""); err != nil {
		return nil, err
	}
	return s, nil
}

// launch starts a fresh browser, optionally behind the given proxy endpoint.
func (s *Scraper) launch(proxy string) error {
	l := launcher.New().
		Headless(s.browserCfg.Headless).
		NoSandbox(s.browserCfg.NoSandbox)

	if s.browserCfg.BrowserBin != "" {
		l = l.Bin(s.browserCfg.BrowserBin)
	}
	if proxy != "" {
		l = l.Proxy(proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	s.browser = browser
	s.egress = proxy
	slog.Info("browser launched", "controlURL", controlURL, "viaEgress", proxy != "")
	return nil
}

// UseEgress replaces the session: the current browser is torn down and a new
// one comes up routed through the given identity. On a relaunch error the
// session stays down and subsequent fetches fail with a crash error until a
// later rotation brings it back up.
func (s *Scraper) UseEgress(id models.EgressIdentity) error {
	s.teardown()
	return s.launch(id.Endpoint)
}

// Egress returns the endpoint the session currently routes through;
// empty means direct.
func (s *Scraper) Egress() string { return s.egress }

func (s *Scraper) teardown() {
	if s.browser == nil {
		return
	}
	if err := s.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	s.browser = nil
}

// Close kills the browser process. Call on every exit path to prevent
// zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: closing browser")
	s.teardown()
	slog.Info("scraper shutdown complete")
}
