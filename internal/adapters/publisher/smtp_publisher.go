package publisher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/mikey/chain-risk/internal/core"
	"go.uber.org/zap"
)

// SMTPConfig configures alert mail delivery
type SMTPConfig struct {
	Addr     string
	From     string
	To       []string
	Username string
	Password string
	MinLevel core.RiskLevel

	// Timeout bounds one delivery when the caller's context has no earlier deadline
	Timeout time.Duration
}

const defaultSMTPTimeout = 10 * time.Second

// SMTPPublisher mails an alert for results at or above a risk level
type SMTPPublisher struct {
	cfg    SMTPConfig
	logger *zap.Logger
	send   func(ctx context.Context, auth sasl.Client, msg []byte) error
}

// NewSMTPPublisher creates a new alert mailer
func NewSMTPPublisher(cfg SMTPConfig, logger *zap.Logger) (*SMTPPublisher, error) {
	if cfg.Addr == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("smtp publisher requires addr, from and at least one recipient")
	}
	if cfg.MinLevel.Rank() < 0 {
		return nil, fmt.Errorf("unsupported alert level: %q", cfg.MinLevel)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}

	p := &SMTPPublisher{
		cfg:    cfg,
		logger: logger,
	}
	p.send = p.deliver
	return p, nil
}

// Publish mails an alert when the analysis carries a risk report at or above the minimum level
func (p *SMTPPublisher) Publish(ctx context.Context, analysis *core.FullAnalysis) error {
	if !shouldAlert(analysis, p.cfg.MinLevel) {
		return nil
	}

	var auth sasl.Client
	if p.cfg.Username != "" {
		auth = sasl.NewPlainClient("", p.cfg.Username, p.cfg.Password)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	msg := buildAlertMessage(p.cfg.From, p.cfg.To, analysis, time.Now())
	if err := p.send(ctx, auth, msg); err != nil {
		return fmt.Errorf("failed to send alert mail: %w", err)
	}

	p.logger.Info("Sent risk alert",
		zap.String("address", analysis.Address),
		zap.String("risk_level", string(analysis.RiskAnalysis.RiskLevel)),
		zap.Strings("recipients", p.cfg.To))
	return nil
}

// deliver runs one SMTP exchange on a connection bounded by ctx
func (p *SMTPPublisher) deliver(ctx context.Context, auth sasl.Client, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to connect to mail server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set connection deadline: %w", err)
		}
	}

	// unblock a stalled exchange when ctx ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		host, _, _ := net.SplitHostPort(p.cfg.Addr)
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}
	if err := c.Mail(p.cfg.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range p.cfg.To {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", rcpt, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send alert data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		p.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

func shouldAlert(analysis *core.FullAnalysis, minLevel core.RiskLevel) bool {
	if analysis == nil || analysis.RiskAnalysis == nil {
		return false
	}
	return analysis.RiskAnalysis.RiskLevel.Rank() >= minLevel.Rank()
}

func buildAlertMessage(from string, to []string, analysis *core.FullAnalysis, now time.Time) []byte {
	r := analysis.RiskAnalysis

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: [chain-risk] %s risk address %s\r\n", r.RiskLevel, analysis.Address)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "Address: %s\r\n", analysis.Address)
	fmt.Fprintf(&b, "Risk score: %.2f (%s)\r\n", r.RiskScore, r.RiskDescription)
	fmt.Fprintf(&b, "Analysis: %s\r\n", analysis.ID)
	b.WriteString("\r\n")
	b.WriteString(r.RiskExplanation)
	b.WriteString("\r\n")
	if len(r.AttentionPoints) > 0 {
		b.WriteString("\r\nAttention points:\r\n")
		for _, point := range r.AttentionPoints {
			fmt.Fprintf(&b, "- %s\r\n", point)
		}
	}
	if p := analysis.UserProfile; p != nil {
		fmt.Fprintf(&b, "\r\nProfile: %s\r\n", p.ClusterName)
	}

	return []byte(b.String())
}
