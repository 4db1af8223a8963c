package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/prospect/models"
)

// Profile field selectors. Compiled at init so a typo fails fast instead of
// silently matching nothing.
var (
	nameMatcher     = cascadia.MustCompile("h1.text-heading-xlarge")
	locationMatcher = cascadia.MustCompile("span.text-body-small")
)

// Fields holds the values pulled out of a rendered profile page.
type Fields struct {
	Name     string
	Location string
}

// Complete reports whether every required field is present and non-empty.
func (f Fields) Complete() bool {
	return f.Name != "" && f.Location != ""
}

// Profile extracts the fixed profile fields from rendered HTML. Missing
// elements yield empty fields, not an error; the classifier decides what an
// incomplete extraction means.
func Profile(rawHTML string) (Fields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Fields{}, models.NewScrapeError(
			models.ErrCodeExtraction,
			"parse page HTML",
			err,
		)
	}

	return Fields{
		Name:     strings.TrimSpace(doc.FindMatcher(nameMatcher).First().Text()),
		Location: strings.TrimSpace(doc.FindMatcher(locationMatcher).First().Text()),
	}, nil
}

// SplitName splits a full name on the first space. Single-token names leave
// the last name empty.
func SplitName(name string) (first, last string) {
	parts := strings.SplitN(strings.TrimSpace(name), " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = parts[1]
	}
	return first, last
}
