package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/prospect/models"
)

// Fetch renders the target URL through the current session and returns the
// raw HTML, title and final URL.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard     – hard deadline on the entire fetch
//  2. Open page         – fresh tab on the session browser
//  3. DEFER: close page – leak prevention on every exit path
//  4. Stealth injection – mask navigator.webdriver etc. (before navigation!)
//  5. Referer header    – plausible Google-search referer
//  6. Context binding   – propagate the deadline to all Rod operations
//  7. Navigate          – triggers page load
//  8. Wait + settle     – DOM stable, then a fixed pause for late widgets
//  9. Extract           – page.HTML() + document.title + final URL
//
// Steps 4-5 must happen before step 7: stealth JS and extra headers only take
// effect for navigations that happen after they are installed.
func (s *Scraper) Fetch(ctx context.Context, targetURL string) (*models.FetchResult, error) {
	// A failed relaunch leaves the session down until the next rotation
	// succeeds; report that as a crash scoped to this fetch.
	if s.browser == nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"no active browser session",
			nil,
		)
	}

	// ── 1. Timeout guard ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, s.scraperCfg.PageLoadTimeout)
	defer cancel()

	// ── 2. Open page ──────────────────────────────────────────────────
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to open page",
			err,
		)
	}

	// ── 3. Close the tab on every exit path ───────────────────────────
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("cleanup: failed to close page", "error", closeErr)
		}
	}()

	// ── 4. Stealth injection ──────────────────────────────────────────
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth",
			"error", evalErr,
		)
	}

	// ── 5. Plausible Referer ──────────────────────────────────────────
	if u, parseErr := url.Parse(targetURL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
			}),
		}.Call(page)
	}

	// ── 6. Bind fetch context to page ─────────────────────────────────
	p := page.Context(ctx)

	// ── 7. Navigate ───────────────────────────────────────────────────
	if navErr := p.Navigate(targetURL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to target URL failed")
	}

	// ── 8. Wait strategy ──────────────────────────────────────────────
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}

	// Profile widgets render after the DOM settles; give them a moment.
	if s.scraperCfg.SettleDelay > 0 {
		timer := time.NewTimer(s.scraperCfg.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, categorizeError(ctx.Err(), "settle wait interrupted")
		}
	}

	// ── 9. Extract rendered HTML ──────────────────────────────────────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeError(htmlErr, "failed to extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = targetURL
	}

	return &models.FetchResult{
		HTML:     rawHTML,
		Title:    title,
		FinalURL: finalURL,
	}, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw fetch errors as transport errors so the
// controller folds them into the same retry accounting as content failures.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTransport, "fetch timed out: "+msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTransport, "fetch cancelled: "+msg, err)
	default:
		return models.NewScrapeError(models.ErrCodeTransport, msg, err)
	}
}
