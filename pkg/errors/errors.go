package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration represents configuration errors (bad or missing
	// extractor binding); these are never retried automatically
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeFetch represents network-level fetch errors
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeRateLimit represents upstream rate limiting
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParse represents HTML/structured-data parsing errors
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeIngest represents downstream ingestion rejections
	ErrorTypeIngest ErrorType = "ingest"
)

// CrawlError represents a crawl-specific error with retailer context
type CrawlError struct {
	Type     ErrorType
	Retailer string
	Message  string
	Err      error
	Time     time.Time
}

// Error implements the error interface
func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Retailer, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Retailer, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// CountsAsFailure reports whether the error feeds the retailer's
// consecutive-failure counter. Configuration errors are skips, not failures.
func (e *CrawlError) CountsAsFailure() bool {
	return e.Type != ErrorTypeConfiguration
}

// New creates a new CrawlError
func New(errType ErrorType, retailer, message string, err error) *CrawlError {
	return &CrawlError{
		Type:     errType,
		Retailer: retailer,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// NewConfiguration creates a new configuration error
func NewConfiguration(retailer, message string, err error) *CrawlError {
	return New(ErrorTypeConfiguration, retailer, message, err)
}

// NewFetch creates a new fetch error
func NewFetch(retailer, message string, err error) *CrawlError {
	return New(ErrorTypeFetch, retailer, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(retailer string, retryAfter time.Duration) *CrawlError {
	message := fmt.Sprintf("rate limited for %v", retryAfter)
	return New(ErrorTypeRateLimit, retailer, message, nil)
}

// NewParse creates a new parse error
func NewParse(retailer, message string, err error) *CrawlError {
	return New(ErrorTypeParse, retailer, message, err)
}

// NewIngest creates a new ingestion error
func NewIngest(retailer, message string, err error) *CrawlError {
	return New(ErrorTypeIngest, retailer, message, err)
}
