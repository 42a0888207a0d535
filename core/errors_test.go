package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassNone},
		{"circuit open", &CircuitOpenError{Category: "external-api", Destination: "llm"}, ClassCircuitOpen},
		{"wrapped circuit open", fmt.Errorf("search: %w", &CircuitOpenError{}), ClassCircuitOpen},
		{"below threshold", &BelowThresholdError{Score: 0.25, Threshold: 0.3}, ClassPermanent},
		{"duplicate", fmt.Errorf("ingest: %w", ErrDuplicateContent), ClassPermanent},
		{"transient", &TransientError{Op: "fetch", Err: errors.New("502")}, ClassTransient},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"other", errors.New("boom"), ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestTypedErrors_Is(t *testing.T) {
	var err error = &BelowThresholdError{Score: 0.25, Threshold: 0.3}
	assert.ErrorIs(t, err, ErrBelowThreshold)
	assert.NotErrorIs(t, err, ErrMalformedContent)
	assert.Contains(t, err.Error(), "0.250")

	err = &CircuitOpenError{Category: "web-scraping", Destination: "example.com"}
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "circuit open: web-scraping/example.com", err.Error())

	cause := errors.New("connection reset")
	err = &TransientError{Op: "search", Err: cause}
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, cause)
}

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "circuit-open", ClassCircuitOpen.String())
	assert.Equal(t, "transient", ClassTransient.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}
