package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls2 "github.com/refraction-networking/utls"
	"golang.org/x/time/rate"

	"github.com/use-agent/prospect/config"
	"github.com/use-agent/prospect/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Provider acquires egress identities from the ProxyScrape-style API: one
// request, one plaintext "host:port" endpoint back.
//
// Calls go out with a Chrome TLS fingerprint (utls) so the provider sees the
// same client shape as the scraping traffic. Acquisition is rate-limited:
// with rotate-on-failure enabled a bad proxy pool can otherwise turn into a
// request storm against the provider.
type Provider struct {
	cfg     config.ProxyConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewProvider creates a Provider from config.
func NewProvider(cfg config.ProxyConfig) *Provider {
	transport := &http.Transport{
		DialTLSContext: dialTLSChrome,
	}
	return &Provider{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.AcquireRPS), cfg.AcquireBurst),
	}
}

// Acquire requests one egress endpoint from the provider.
func (p *Provider) Acquire(ctx context.Context) (models.EgressIdentity, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return models.EgressIdentity{}, models.NewScrapeError(
			models.ErrCodeEgressAcquisition,
			"egress acquisition cancelled while rate-limited",
			err,
		)
	}

	reqURL := fmt.Sprintf(
		"%s?request=getproxies&protocol=%s&timeout=%d&country=%s&ssl=%s&anonymity=%s&simplified=true&api_key=%s",
		p.cfg.ProviderURL,
		url.QueryEscape(p.cfg.Protocol),
		p.cfg.TimeoutMS,
		url.QueryEscape(p.cfg.Country),
		url.QueryEscape(p.cfg.SSL),
		url.QueryEscape(p.cfg.Anonymity),
		url.QueryEscape(p.cfg.APIKey),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.EgressIdentity{}, models.NewScrapeError(
			models.ErrCodeEgressAcquisition,
			"build provider request",
			err,
		)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/plain,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.EgressIdentity{}, models.NewScrapeError(
			models.ErrCodeEgressAcquisition,
			"provider request failed",
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.EgressIdentity{}, models.NewScrapeError(
			models.ErrCodeEgressAcquisition,
			fmt.Sprintf("provider returned HTTP %d", resp.StatusCode),
			nil,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return models.EgressIdentity{}, models.NewScrapeError(
			models.ErrCodeEgressAcquisition,
			"read provider response",
			err,
		)
	}

	// Simplified mode returns plaintext endpoints, one per line; take the first.
	endpoint := strings.TrimSpace(firstLine(string(body)))
	if endpoint == "" {
		return models.EgressIdentity{}, models.NewScrapeError(
			models.ErrCodeEgressAcquisition,
			"provider returned an empty endpoint",
			nil,
		)
	}

	slog.Info("new egress identity obtained", "endpoint", endpoint)
	return models.EgressIdentity{Endpoint: endpoint, AcquiredAt: time.Now()}, nil
}

func firstLine(body string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(body), "\n")
	return line
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via utls.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName:         host,
		InsecureSkipVerify: false,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
