package unarchive

import (
	"errors"

	"go.uber.org/zap"
)

const minConcurrency = 1

var (
	ErrMinConcurrency = errors.New("concurrency must be 1 or greater")
)

type extractorOption func(*Extractor) error

// ExtractorConcurrency sets the number of goroutines used to checksum existing files.
// An error is returned if n is less than 1.
func ExtractorConcurrency(n int) extractorOption {
	return func(e *Extractor) error {
		if n < minConcurrency {
			return ErrMinConcurrency
		}

		e.concurrency = n
		return nil
	}
}

// WithLogger sets the logger used to report guard decisions, plans and applied actions.
func WithLogger(logger *zap.Logger) extractorOption {
	return func(e *Extractor) error {
		if logger != nil {
			e.logger = logger
		}
		return nil
	}
}

// WithGuard adds a precondition evaluated, after the request's creates guard, before
// every extraction.
func WithGuard(g Guard) extractorOption {
	return func(e *Extractor) error {
		e.guards = append(e.guards, g)
		return nil
	}
}
