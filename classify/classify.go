package classify

import (
	"net/url"
	"strings"

	"github.com/use-agent/prospect/extract"
	"github.com/use-agent/prospect/models"
)

// Page markers. The error markers are matched against the title and the
// page's visible text only, so marker text inside scripts cannot flip the
// verdict.
var (
	titleMarkers   = []string{"error"}
	contentMarkers = []string{"not found"}
	wallMarkers    = []string{"/login", "/authwall"}
)

// Classifier labels fetch outcomes. Classify is a pure function of its
// inputs; the expected domain is the only fixed parameter.
type Classifier struct {
	// Domain a final URL must be on (itself or a subdomain) for the page
	// to count as a profile page, e.g. "linkedin.com".
	Domain string
}

// New creates a Classifier for the given expected domain.
func New(domain string) *Classifier {
	return &Classifier{Domain: strings.ToLower(domain)}
}

// Classify categorizes one rendered page. Precedence, first match wins:
//
//  1. error markers in title or visible content → Blocked
//  2. login/auth-wall markers in the final URL  → Blocked
//  3. final URL off the expected domain         → WrongDomain
//  4. required fields missing after extraction  → ExtractionIncomplete
//  5. otherwise                                 → Success
//
// Error pages take priority over missing fields: a Chrome error page also
// has no profile fields, and rotating beats retrying a doomed extraction.
func (c *Classifier) Classify(finalURL, title, content string, fields extract.Fields) models.Category {
	lowerTitle := strings.ToLower(title)
	for _, marker := range titleMarkers {
		if strings.Contains(lowerTitle, marker) {
			return models.CategoryBlocked
		}
	}
	lowerVisible := strings.ToLower(VisibleText(content))
	for _, marker := range contentMarkers {
		if strings.Contains(lowerVisible, marker) {
			return models.CategoryBlocked
		}
	}

	lowerURL := strings.ToLower(finalURL)
	for _, marker := range wallMarkers {
		if strings.Contains(lowerURL, marker) {
			return models.CategoryBlocked
		}
	}

	if !c.onDomain(finalURL) {
		return models.CategoryWrongDomain
	}

	if !fields.Complete() {
		return models.CategoryExtractionIncomplete
	}

	return models.CategorySuccess
}

// onDomain reports whether the URL's host is the expected domain or one of
// its subdomains. Unparseable URLs are off-domain.
func (c *Classifier) onDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == c.Domain || strings.HasSuffix(host, "."+c.Domain)
}
