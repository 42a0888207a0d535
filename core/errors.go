// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Validation and taxonomy errors
var (
	// ErrEmptyQuery indicates the query text is empty after normalization.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidCandidate indicates a WorkspaceCandidate failed validation.
	ErrInvalidCandidate = errors.New("invalid workspace candidate")

	// ErrInvalidContentRecord indicates a ContentRecord failed validation.
	ErrInvalidContentRecord = errors.New("invalid content record")

	// ErrInvalidCacheEntry indicates a CacheEntry failed validation.
	ErrInvalidCacheEntry = errors.New("invalid cache entry")

	// ErrTransient marks failures worth retrying within breaker allowance:
	// timeouts, refused connections, 5xx responses.
	ErrTransient = errors.New("transient failure")

	// ErrCircuitOpen marks calls rejected by an open circuit breaker.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrBelowThreshold marks content whose quality score is under the configured threshold.
	ErrBelowThreshold = errors.New("content below quality threshold")

	// ErrDuplicateContent marks content whose hash already exists.
	ErrDuplicateContent = errors.New("duplicate content hash")

	// ErrMalformedContent marks content that cannot be processed.
	ErrMalformedContent = errors.New("malformed content")

	// ErrSourceNotFound marks an acquisition target that does not exist upstream.
	ErrSourceNotFound = errors.New("source not found")

	// ErrNoSources is returned when no partition could be reached for a query.
	ErrNoSources = errors.New("no sources available")

	// ErrCacheUnavailable is returned when the cache backend cannot be read.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrRateLimited is returned when a client exceeds its request allowance.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// CircuitOpenError identifies the breaker that rejected a call.
type CircuitOpenError struct {
	Category    string
	Destination string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open: %s/%s", e.Category, e.Destination)
}

// Is reports ErrCircuitOpen equivalence.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// BelowThresholdError carries the score that failed the quality gate.
type BelowThresholdError struct {
	Score     float64
	Threshold float64
}

func (e *BelowThresholdError) Error() string {
	return fmt.Sprintf("content below quality threshold: score %.3f < %.3f", e.Score, e.Threshold)
}

// Is reports ErrBelowThreshold equivalence.
func (e *BelowThresholdError) Is(target error) bool {
	return target == ErrBelowThreshold
}

// TransientError wraps a retryable failure of a named operation.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Is reports ErrTransient equivalence.
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// ErrorClass is the taxonomy bucket of an error.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassTransient
	ClassCircuitOpen
	ClassPermanent
	ClassUnknown
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassCircuitOpen:
		return "circuit-open"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// IsPermanent reports whether err is a validation-type rejection that must not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrBelowThreshold) ||
		errors.Is(err, ErrDuplicateContent) ||
		errors.Is(err, ErrMalformedContent) ||
		errors.Is(err, ErrSourceNotFound) ||
		errors.Is(err, ErrEmptyQuery)
}

// Classify maps err onto the error taxonomy.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, ErrCircuitOpen) {
		return ClassCircuitOpen
	}
	if IsPermanent(err) {
		return ClassPermanent
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	return ClassUnknown
}
