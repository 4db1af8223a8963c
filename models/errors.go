package models

import "fmt"

// Error codes used in logs and internal error handling.
const (
	ErrCodeTransport         = "TRANSPORT_ERROR"
	ErrCodeContentBlocked    = "CONTENT_BLOCKED"
	ErrCodeDomainMismatch    = "DOMAIN_MISMATCH"
	ErrCodeExtraction        = "EXTRACTION_INCOMPLETE"
	ErrCodeEgressAcquisition = "EGRESS_ACQUISITION_FAILED"
	ErrCodeEgressValidation  = "EGRESS_VALIDATION_FAILED"
	ErrCodeBrowserCrash      = "BROWSER_CRASH"
	ErrCodeInvalidInput      = "INVALID_INPUT"
)

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}
