// Package notification delivers qualified lead summaries to the office. The
// dispatcher walks a channel chain: webhook first, then email, then the
// structured log as the channel of last resort.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lawjfmiranda/jurbot1/platform/config"
	"github.com/lawjfmiranda/jurbot1/platform/logger"

	"github.com/wneessen/go-mail"
)

// Lead is the delivery payload for a qualified lead.
type Lead struct {
	Identity  string `json:"identity"`
	Name      string `json:"name,omitempty"`
	Category  string `json:"category"`
	Score     int    `json:"score"`
	Urgent    bool   `json:"urgent"`
	Viability string `json:"viability"`
	Summary   string `json:"summary"`
}

// Dispatcher delivers lead notifications over the configured channels.
type Dispatcher struct {
	cfg  config.NotifyConfig
	http *http.Client
	log  *logger.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg config.NotifyConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

// Dispatch delivers the lead over the first channel that succeeds. The log
// fallback always succeeds, so qualification never fails on delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, lead Lead) error {
	if url := d.cfg.GetNotifyWebhookURL(); url != "" {
		err := d.postWebhook(ctx, url, lead)
		if err == nil {
			return nil
		}
		d.log.ExternalCallFailed("notify.webhook", err)
	}

	if d.cfg.IsEmailEnabled() {
		err := d.sendEmail(ctx, lead)
		if err == nil {
			return nil
		}
		d.log.ExternalCallFailed("notify.email", err)
	}

	d.log.Info("lead qualified",
		"identity", logger.Redact(lead.Identity),
		"category", lead.Category,
		"score", lead.Score,
		"urgent", lead.Urgent,
		"viability", lead.Viability,
	)
	return nil
}

func (d *Dispatcher) postWebhook(ctx context.Context, url string, lead Lead) error {
	body, err := json.Marshal(lead)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, lead Lead) error {
	msg := mail.NewMsg()
	if err := msg.From(d.cfg.GetNotifyEmailFrom()); err != nil {
		return err
	}
	if err := msg.To(d.cfg.GetNotifyEmailTo()); err != nil {
		return err
	}

	subject := fmt.Sprintf("Novo lead qualificado: %s", lead.Category)
	if lead.Urgent {
		subject = "[URGENTE] " + subject
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, lead.Summary)

	opts := []mail.Option{
		mail.WithPort(d.cfg.GetSMTPPort()),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if d.cfg.GetSMTPUser() != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(d.cfg.GetSMTPUser()),
			mail.WithPassword(d.cfg.GetSMTPPassword()),
		)
	}

	client, err := mail.NewClient(d.cfg.GetSMTPHost(), opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}
