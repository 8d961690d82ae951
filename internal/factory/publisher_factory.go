package factory

import (
	"fmt"

	"github.com/mikey/chain-risk/internal/adapters/publisher"
	"github.com/mikey/chain-risk/internal/config"
	"github.com/mikey/chain-risk/internal/core"
	"go.uber.org/zap"
)

// PublisherFactory creates result publishers based on configuration
type PublisherFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewPublisherFactory creates a new publisher factory
func NewPublisherFactory(cfg *config.Config, logger *zap.Logger) *PublisherFactory {
	return &PublisherFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreatePublisher creates the configured result publisher
func (f *PublisherFactory) CreatePublisher() (core.ResultPublisher, error) {
	pubCfg := f.cfg.GetPublisher()

	if pubCfg.Type != "multi" {
		return f.create(pubCfg.Type, pubCfg)
	}

	var publishers []core.ResultPublisher
	for _, target := range pubCfg.Targets {
		if target == "multi" {
			return nil, fmt.Errorf("multi publisher cannot target itself")
		}
		p, err := f.create(target, pubCfg)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, p)
	}
	return publisher.NewMultiPublisher(publishers...), nil
}

func (f *PublisherFactory) create(kind string, pubCfg config.PublisherConfig) (core.ResultPublisher, error) {
	switch kind {
	case "none", "":
		return publisher.NopPublisher{}, nil
	case "nats":
		return publisher.NewNATSPublisher(pubCfg.NATS.URL, pubCfg.NATS.Subject, f.logger)
	case "smtp":
		return publisher.NewSMTPPublisher(publisher.SMTPConfig{
			Addr:     pubCfg.SMTP.Addr,
			From:     pubCfg.SMTP.From,
			To:       pubCfg.SMTP.To,
			Username: pubCfg.SMTP.Username,
			Password: pubCfg.SMTP.Password,
			MinLevel: core.RiskLevel(pubCfg.SMTP.MinLevel),
			Timeout:  pubCfg.SMTP.Timeout,
		}, f.logger)
	default:
		return nil, fmt.Errorf("unsupported publisher type: %s", kind)
	}
}
