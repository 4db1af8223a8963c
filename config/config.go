package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Input      InputConfig
	Browser    BrowserConfig
	Scraper    ScraperConfig
	Proxy      ProxyConfig
	Controller ControllerConfig
	Log        LogConfig
	Ops        OpsConfig
}

// InputConfig locates the target record store.
type InputConfig struct {
	// CSVPath is the input/output CSV file.
	CSVPath string // default: "profiles.csv"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls page fetching behavior.
type ScraperConfig struct {
	// PageLoadTimeout caps a whole fetch, navigation included.
	PageLoadTimeout time.Duration // default: 30s

	// SettleDelay is a fixed pause after the DOM stabilises, giving
	// late-loading profile widgets time to render.
	SettleDelay time.Duration // default: 2s
}

// ProxyConfig controls egress acquisition and validation.
type ProxyConfig struct {
	// APIKey authenticates against the egress provider. Read from
	// PROXYSCRAPE_API_KEY only; never from flags.
	APIKey string

	// ProviderURL is the provider endpoint.
	ProviderURL string // default: "https://api.proxyscrape.com/v2/"

	// Protocol, TimeoutMS, Country, SSL and Anonymity are passed through
	// as provider query filters.
	Protocol  string // default: "http"
	TimeoutMS int    // default: 10000
	Country   string // default: "all"
	SSL       string // default: "all"
	Anonymity string // default: "all"

	// ProbeURL is the known-stable endpoint used to validate a candidate.
	ProbeURL string // default: "http://httpbin.org/ip"

	// ProbeTimeout bounds the validation probe.
	ProbeTimeout time.Duration // default: 5s

	// AcquireRPS and AcquireBurst rate-limit provider calls so a rotation
	// storm cannot hammer the API.
	AcquireRPS   float64 // default: 1
	AcquireBurst int     // default: 2
}

// ControllerConfig controls the retry/rotation loop.
type ControllerConfig struct {
	// MaxAttempts is the per-target fetch attempt cap.
	MaxAttempts int // default: 5

	// RotationThreshold is the consecutive-failure count that triggers a
	// proactive rotation at the start of the next target.
	RotationThreshold int // default: 5

	// RotateOnFailure rotates the egress identity on every classified
	// content failure, matching the source behavior. Disabling it retries
	// on the same identity until attempts run out.
	RotateOnFailure bool // default: true

	// MaxTargets caps how many input rows one run processes; 0 means all.
	MaxTargets int // default: 1

	// DelayMin and DelayMax bound the jittered pause between targets.
	DelayMin time.Duration // default: 2s
	DelayMax time.Duration // default: 5s

	// ExpectedDomain is the domain a final URL must be on to count as a
	// profile page.
	ExpectedDomain string // default: "linkedin.com"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"

	// File receives a copy of the log stream alongside stdout;
	// empty disables the file sink.
	File string // default: "prospect.log"
}

// OpsConfig controls the optional health/metrics listener.
type OpsConfig struct {
	// Addr is the listen address, e.g. ":2112"; empty disables it.
	Addr string
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Input: InputConfig{
			CSVPath: envOr("PROSPECT_INPUT_FILE", "profiles.csv"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("PROSPECT_HEADLESS", true),
			NoSandbox:  envBoolOr("PROSPECT_NO_SANDBOX", false),
			BrowserBin: os.Getenv("PROSPECT_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			PageLoadTimeout: envDurationOr("PROSPECT_PAGE_TIMEOUT", 30*time.Second),
			SettleDelay:     envDurationOr("PROSPECT_SETTLE_DELAY", 2*time.Second),
		},
		Proxy: ProxyConfig{
			APIKey:       os.Getenv("PROXYSCRAPE_API_KEY"),
			ProviderURL:  envOr("PROSPECT_PROVIDER_URL", "https://api.proxyscrape.com/v2/"),
			Protocol:     envOr("PROSPECT_PROXY_PROTOCOL", "http"),
			TimeoutMS:    envIntOr("PROSPECT_PROXY_TIMEOUT_MS", 10000),
			Country:      envOr("PROSPECT_PROXY_COUNTRY", "all"),
			SSL:          envOr("PROSPECT_PROXY_SSL", "all"),
			Anonymity:    envOr("PROSPECT_PROXY_ANONYMITY", "all"),
			ProbeURL:     envOr("PROSPECT_PROBE_URL", "http://httpbin.org/ip"),
			ProbeTimeout: envDurationOr("PROSPECT_PROBE_TIMEOUT", 5*time.Second),
			AcquireRPS:   envFloatOr("PROSPECT_ACQUIRE_RPS", 1.0),
			AcquireBurst: envIntOr("PROSPECT_ACQUIRE_BURST", 2),
		},
		Controller: ControllerConfig{
			MaxAttempts:       envIntOr("PROSPECT_MAX_ATTEMPTS", 5),
			RotationThreshold: envIntOr("PROSPECT_ROTATION_THRESHOLD", 5),
			RotateOnFailure:   envBoolOr("PROSPECT_ROTATE_ON_FAILURE", true),
			MaxTargets:        envIntOr("PROSPECT_MAX_TARGETS", 1),
			DelayMin:          envDurationOr("PROSPECT_DELAY_MIN", 2*time.Second),
			DelayMax:          envDurationOr("PROSPECT_DELAY_MAX", 5*time.Second),
			ExpectedDomain:    envOr("PROSPECT_EXPECTED_DOMAIN", "linkedin.com"),
		},
		Log: LogConfig{
			Level:  envOr("PROSPECT_LOG_LEVEL", "info"),
			Format: envOr("PROSPECT_LOG_FORMAT", "json"),
			File:   envOr("PROSPECT_LOG_FILE", "prospect.log"),
		},
		Ops: OpsConfig{
			Addr: os.Getenv("PROSPECT_OPS_ADDR"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
