package models

import "time"

// Target is one input record: a profile URL to fetch plus the output fields
// filled in on success. It is mutated in place and written out exactly once.
type Target struct {
	// ProofLink is the profile URL to fetch (the "prooflink" CSV column).
	ProofLink string

	FirstName string
	LastName  string
	Geo       string

	// EgressChange marks rows whose processing started with a proactive
	// egress rotation (the "IP change" CSV column).
	EgressChange string
}

// EgressIdentity is one proxy endpoint. Identities are replaced wholesale on
// rotation, never mutated.
type EgressIdentity struct {
	// Endpoint is the proxy address as returned by the provider,
	// usually "host:port".
	Endpoint string

	AcquiredAt time.Time
}

// FetchResult is what the page fetcher returns for a rendered page.
type FetchResult struct {
	// HTML is the rendered page HTML.
	HTML string

	// Title is document.title after rendering.
	Title string

	// FinalURL is the URL the browser ended up on after redirects.
	FinalURL string
}

// FetchAttempt is the ephemeral record of a single fetch within one
// controller iteration. It is never persisted.
type FetchAttempt struct {
	Target *Target

	// Egress is the endpoint the attempt went through; empty means direct.
	Egress string

	// Number is the 1-based attempt count for the current target.
	Number int

	Result *FetchResult
	Err    error
}

// Category is the classifier's verdict on one fetch outcome.
type Category int

const (
	CategorySuccess Category = iota
	CategoryBlocked
	CategoryWrongDomain
	CategoryExtractionIncomplete
	CategoryTransportError
)

func (c Category) String() string {
	switch c {
	case CategorySuccess:
		return "success"
	case CategoryBlocked:
		return "blocked"
	case CategoryWrongDomain:
		return "wrong_domain"
	case CategoryExtractionIncomplete:
		return "extraction_incomplete"
	case CategoryTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// IsFailure reports whether the category counts against the consecutive
// failure counter.
func (c Category) IsFailure() bool { return c != CategorySuccess }
