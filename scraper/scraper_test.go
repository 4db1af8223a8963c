package scraper

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/prospect/config"
	"github.com/use-agent/prospect/models"
)

func wantBrowserCrash(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var serr *models.ScrapeError
	if !errors.As(err, &serr) || serr.Code != models.ErrCodeBrowserCrash {
		t.Fatalf("error = %v, want code %s", err, models.ErrCodeBrowserCrash)
	}
}

func TestFetchWithoutSession(t *testing.T) {
	s := &Scraper{scraperCfg: config.ScraperConfig{PageLoadTimeout: time.Second}}

	res, err := s.Fetch(context.Background(), "https://www.linkedin.com/in/janedoe/")
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	wantBrowserCrash(t, err)
}

func TestFetchAfterFailedRelaunch(t *testing.T) {
	s := &Scraper{
		browserCfg: config.BrowserConfig{
			Headless:   true,
			BrowserBin: filepath.Join(t.TempDir(), "absent-chromium"),
		},
		scraperCfg: config.ScraperConfig{PageLoadTimeout: time.Second},
	}

	err := s.UseEgress(models.EgressIdentity{Endpoint: "203.0.113.7:8080"})
	wantBrowserCrash(t, err)

	// The session is down; the next fetch must fail cleanly, not panic.
	_, err = s.Fetch(context.Background(), "https://www.linkedin.com/in/janedoe/")
	wantBrowserCrash(t, err)
}
