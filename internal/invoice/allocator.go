// Package invoice allocates human-legible invoice numbers for sale headers.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ErrAllocationExhausted is returned when no unique number could be produced
// within the retry bound. Callers may safely resubmit the request.
var ErrAllocationExhausted = errors.New("invoice: unable to allocate a unique invoice number")

// DefaultMaxAttempts bounds the uniqueness retry loop.
const DefaultMaxAttempts = 5

// ExistsFunc reports whether an invoice number is already taken. It runs
// inside the caller's transaction so the check and the eventual insert see
// the same snapshot.
type ExistsFunc func(ctx context.Context, number string) (bool, error)

// Allocator produces candidates of the form <PREFIX>-YYMMDD-HHMMSS-RRR where
// RRR is a random three-digit suffix. Uniqueness is probabilistic and
// verified against persisted headers; the bound exists so the system fails
// loudly instead of looping forever.
type Allocator struct {
	Exists      ExistsFunc
	Prefix      string
	MaxAttempts int
	Now         func() time.Time
	Rand        *rand.Rand

	// OnAttempt is invoked once per candidate, retries included.
	OnAttempt func()
}

func (a Allocator) prefix() string {
	p := strings.TrimSpace(a.Prefix)
	if p == "" {
		return "INV"
	}
	return p
}

func (a Allocator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a Allocator) suffix() int {
	if a.Rand != nil {
		return a.Rand.Intn(1000)
	}
	return rand.Intn(1000)
}

// Next returns the first candidate not already present among persisted sale
// headers, or ErrAllocationExhausted after the retry bound.
func (a Allocator) Next(ctx context.Context) (string, error) {
	if a.Exists == nil {
		return "", errors.New("invoice: existence check not configured")
	}
	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	for i := 0; i < attempts; i++ {
		if a.OnAttempt != nil {
			a.OnAttempt()
		}
		candidate := fmt.Sprintf("%s-%s-%03d", a.prefix(), a.now().Format("060102-150405"), a.suffix())
		taken, err := a.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("invoice: check number uniqueness: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrAllocationExhausted
}
