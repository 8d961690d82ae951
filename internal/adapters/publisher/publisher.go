// Package publisher hands fresh analysis results to downstream consumers.
package publisher

import (
	"context"
	"errors"

	"github.com/mikey/chain-risk/internal/core"
)

// NopPublisher discards every result
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(ctx context.Context, analysis *core.FullAnalysis) error {
	return nil
}

// MultiPublisher fans a result out to several publishers
type MultiPublisher struct {
	publishers []core.ResultPublisher
}

// NewMultiPublisher creates a fan-out publisher
func NewMultiPublisher(publishers ...core.ResultPublisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Publish sends analysis to every publisher and joins their errors
func (m *MultiPublisher) Publish(ctx context.Context, analysis *core.FullAnalysis) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, analysis); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher that holds a connection
func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if closer, ok := p.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
