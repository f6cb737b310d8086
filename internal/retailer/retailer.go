package retailer

import (
	"errors"
	"time"
)

// Status is a retailer's crawl-health state
type Status string

const (
	// StatusActive retailers are healthy and eligible for dispatch
	StatusActive Status = "active"
	// StatusDegraded retailers are crawlable but have an elevated failure streak
	StatusDegraded Status = "degraded"
	// StatusFailed retailers are crawlable but currently failing every attempt
	StatusFailed Status = "failed"
	// StatusPaused retailers are excluded until PauseExpiry
	StatusPaused Status = "paused"
	// StatusDisabled retailers are excluded until an operator re-enables them
	StatusDisabled Status = "disabled"
)

var (
	// ErrNotFound is returned when no retailer matches the given slug
	ErrNotFound = errors.New("retailer not found")
	// ErrInvalidTransition is returned when a guard rejects a status change
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Thresholds hold the consecutive-failure counts at which a retailer's
// status degrades automatically
type Thresholds struct {
	Degraded int
	Failed   int
}

// Retailer is one upstream product source
type Retailer struct {
	ID                  int64
	Name                string
	Slug                string
	BaseURL             string
	ExtractorKey        string // registry key of the bound extractor set; empty = unbound
	RateLimit           time.Duration
	Status              Status
	PauseExpiry         *time.Time
	LastCrawledAt       *time.Time
	LastFailureAt       *time.Time
	ConsecutiveFailures int
}

// crawlable reports whether the status permits crawl attempts
func (s Status) crawlable() bool {
	return s == StatusActive || s == StatusDegraded || s == StatusFailed
}

// CanTransition reports whether an explicit operator transition to the
// target status is permitted from the retailer's current status.
func (r *Retailer) CanTransition(to Status) bool {
	switch to {
	case StatusPaused:
		return r.Status.crawlable()
	case StatusActive:
		// resume or enable
		return r.Status == StatusPaused || r.Status == StatusDisabled
	case StatusDisabled:
		return r.Status != StatusDisabled
	default:
		return false
	}
}

// CanPause reports whether a pause action would be accepted
func (r *Retailer) CanPause() bool { return r.CanTransition(StatusPaused) }

// CanResume reports whether a resume action would be accepted
func (r *Retailer) CanResume() bool { return r.Status == StatusPaused }

// CanEnable reports whether an enable action would be accepted
func (r *Retailer) CanEnable() bool { return r.Status == StatusDisabled }

// CanDisable reports whether a disable action would be accepted
func (r *Retailer) CanDisable() bool { return r.CanTransition(StatusDisabled) }

// Eligible reports whether the retailer may be dispatched: crawlable status
// and a non-empty extractor binding. Binding resolvability is checked by the
// dispatcher against the extractor registry.
func (r *Retailer) Eligible() bool {
	return r.Status.crawlable() && r.ExtractorKey != ""
}

// applyPause mutates the retailer for a pause until the given expiry
func (r *Retailer) applyPause(until time.Time) error {
	if !r.CanPause() {
		return ErrInvalidTransition
	}
	r.Status = StatusPaused
	r.PauseExpiry = &until
	return nil
}

// applyResume clears a pause
func (r *Retailer) applyResume() error {
	if !r.CanResume() {
		return ErrInvalidTransition
	}
	r.Status = StatusActive
	r.PauseExpiry = nil
	return nil
}

// applyDisable excludes the retailer indefinitely. The failure counter is
// kept so an operator can still see why it was disabled.
func (r *Retailer) applyDisable() error {
	if !r.CanDisable() {
		return ErrInvalidTransition
	}
	r.Status = StatusDisabled
	r.PauseExpiry = nil
	return nil
}

// applyEnable re-activates a disabled retailer with a clean slate
func (r *Retailer) applyEnable() error {
	if !r.CanEnable() {
		return ErrInvalidTransition
	}
	r.Status = StatusActive
	r.PauseExpiry = nil
	r.ConsecutiveFailures = 0
	return nil
}

// applySuccess records a successful crawl outcome
func (r *Retailer) applySuccess(now time.Time) {
	r.ConsecutiveFailures = 0
	r.LastCrawledAt = &now
	if r.Status.crawlable() {
		r.Status = StatusActive
	}
}

// applyFailure records a failed crawl outcome and derives the new status
// from the failure streak
func (r *Retailer) applyFailure(now time.Time, t Thresholds) {
	r.ConsecutiveFailures++
	r.LastFailureAt = &now
	if !r.Status.crawlable() {
		return
	}
	switch {
	case r.ConsecutiveFailures >= t.Failed:
		r.Status = StatusFailed
	case r.ConsecutiveFailures >= t.Degraded:
		r.Status = StatusDegraded
	default:
		r.Status = StatusActive
	}
}
