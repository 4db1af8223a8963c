package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/use-agent/prospect/config"
	"github.com/use-agent/prospect/models"
)

// Validator probes a candidate egress identity before it becomes the active
// one. Failure is the false return itself, never an escalated error.
type Validator struct {
	cfg config.ProxyConfig
}

// NewValidator creates a Validator from config.
func NewValidator(cfg config.ProxyConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate makes one request to the probe URL through the candidate proxy.
// It returns true only on a well-formed 2xx response within the probe timeout.
func (v *Validator) Validate(ctx context.Context, id models.EgressIdentity) bool {
	proxyURL, err := proxyURLFor(id.Endpoint)
	if err != nil {
		slog.Warn("egress validation failed: unparseable endpoint",
			"endpoint", id.Endpoint, "error", err)
		return false
	}

	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		Timeout:   v.cfg.ProbeTimeout,
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, v.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.ProbeURL, nil)
	if err != nil {
		slog.Warn("egress validation failed: build probe request", "error", err)
		return false
	}
	req.Header.Set("User-Agent", chromeUA)

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("egress validation failed",
			"endpoint", id.Endpoint, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("egress validation failed: probe status",
			"endpoint", id.Endpoint, "status", resp.StatusCode)
		return false
	}
	return true
}

// proxyURLFor turns a bare "host:port" endpoint into a proxy URL; endpoints
// that already carry a scheme are parsed as-is.
func proxyURLFor(endpoint string) (*url.URL, error) {
	if strings.Contains(endpoint, "://") {
		return url.Parse(endpoint)
	}
	return url.Parse("http://" + endpoint)
}
