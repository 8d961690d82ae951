package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher publishes results as JSON on <subject>.<kind>
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSPublisher connects to NATS and creates a new publisher
func NewNATSPublisher(natsURL, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("chain-risk"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS", zap.String("url", natsURL), zap.String("subject", subject))
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Publish sends analysis to the subject for its kind
func (p *NATSPublisher) Publish(ctx context.Context, analysis *core.FullAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	subject := subjectFor(p.subject, analysis)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("Published analysis",
		zap.String("subject", subject),
		zap.String("address", analysis.Address))
	return nil
}

// IsConnected reports whether the NATS connection is up
func (p *NATSPublisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.logger.Info("Disconnected from NATS")
	return err
}

func subjectFor(base string, analysis *core.FullAnalysis) string {
	if analysis.Kind == "" {
		return base
	}
	return base + "." + string(analysis.Kind)
}
