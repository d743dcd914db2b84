// Package alert fans operator notifications out to the configured channels:
// the log always, plus Telegram, email and NATS when enabled. Delivery is
// best effort; a failed channel is logged and the remaining ones still
// fire.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/smtp"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"hftbot/internal/cfg"
	"hftbot/internal/ports"
)

const (
	notifyCooldown        = 5 * time.Minute
	failureAlertThreshold = 5

	condDailyLoss = "daily_loss"
	condDrawdown  = "drawdown"
	condFailures  = "submission_failures"
)

type channel interface {
	name() string
	send(ctx context.Context, ev ports.Event) error
}

type Sink struct {
	channels     []channel
	maxDailyLoss float64
	natsConn     *nats.Conn

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// New builds the sink from the resolved configuration. An enabled NATS
// channel that cannot connect fails construction.
func New(c cfg.Config) (*Sink, error) {
	s := &Sink{
		channels:     []channel{logChannel{}},
		maxDailyLoss: c.MaxDailyLoss,
		lastSent:     make(map[string]time.Time),
	}

	if c.Telegram.Enabled {
		s.channels = append(s.channels, &telegramChannel{
			rest:   resty.New().SetTimeout(10 * time.Second),
			base:   "https://api.telegram.org",
			token:  c.Telegram.Token,
			chatID: c.Telegram.ChatID,
		})
	}
	if c.Email.Enabled {
		s.channels = append(s.channels, &emailChannel{cfg: c.Email})
	}
	if c.NATS.Enabled {
		conn, err := nats.Connect(c.NATS.URL,
			nats.MaxReconnects(10),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		s.natsConn = conn
		s.channels = append(s.channels, &natsChannel{conn: conn, subject: c.NATS.Subject})
	}
	return s, nil
}

// Notify delivers one event to every channel. The returned error aggregates
// the channels that failed; callers log it and move on.
func (s *Sink) Notify(ctx context.Context, ev ports.Event) error {
	var errs []error
	for _, ch := range s.channels {
		if err := ch.send(ctx, ev); err != nil {
			log.Warn().Err(err).Str("channel", ch.name()).Msg("alert channel failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Evaluate checks the session health against the alert conditions and fires
// the matching notifications, each throttled by a per-condition cooldown.
func (s *Sink) Evaluate(ctx context.Context, h ports.Health) {
	now := time.Now()

	if dayStart := h.Equity - h.DailyPnL; dayStart > 0 && -h.DailyPnL >= dayStart*s.maxDailyLoss {
		s.fire(ctx, now, condDailyLoss, ports.Event{
			Severity: ports.Critical,
			Title:    "daily loss limit breached",
			Message:  fmt.Sprintf("daily PnL %.2f against start-of-day equity %.2f", h.DailyPnL, dayStart),
			At:       now,
		})
	}
	if s.maxDailyLoss > 0 && h.Drawdown >= 2*s.maxDailyLoss {
		s.fire(ctx, now, condDrawdown, ports.Event{
			Severity: ports.Critical,
			Title:    "drawdown alarm",
			Message:  fmt.Sprintf("equity %.2f%% below the session peak", h.Drawdown*100),
			At:       now,
		})
	}
	if h.ConsecutiveFailures >= failureAlertThreshold {
		s.fire(ctx, now, condFailures, ports.Event{
			Severity: ports.Warning,
			Title:    "order submissions failing",
			Message:  fmt.Sprintf("%d consecutive iterations with failed submissions", h.ConsecutiveFailures),
			At:       now,
		})
	}
}

// Close releases the NATS connection if one was opened.
func (s *Sink) Close() error {
	if s.natsConn != nil {
		s.natsConn.Close()
	}
	return nil
}

func (s *Sink) fire(ctx context.Context, now time.Time, key string, ev ports.Event) {
	s.mu.Lock()
	if last, ok := s.lastSent[key]; ok && now.Sub(last) < notifyCooldown {
		s.mu.Unlock()
		return
	}
	s.lastSent[key] = now
	s.mu.Unlock()

	if err := s.Notify(ctx, ev); err != nil {
		log.Warn().Err(err).Str("condition", key).Msg("alert delivery incomplete")
	}
}

type logChannel struct{}

func (logChannel) name() string { return "log" }

func (logChannel) send(_ context.Context, ev ports.Event) error {
	e := log.Info()
	switch ev.Severity {
	case ports.Warning:
		e = log.Warn()
	case ports.Critical:
		e = log.Error()
	}
	e.Str("title", ev.Title).Msg(ev.Message)
	return nil
}

type telegramChannel struct {
	rest   *resty.Client
	base   string
	token  string
	chatID string
}

func (t *telegramChannel) name() string { return "telegram" }

func (t *telegramChannel) send(ctx context.Context, ev ports.Event) error {
	resp, err := t.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"text":    fmt.Sprintf("[%s] %s\n%s", ev.Severity, ev.Title, ev.Message),
		}).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram: status %d", resp.StatusCode())
	}
	return nil
}

type emailChannel struct {
	cfg cfg.EmailConfig
}

func (e *emailChannel) name() string { return "email" }

func (e *emailChannel) send(_ context.Context, ev ports.Event) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPServer, e.cfg.SMTPPort)
	auth := smtp.PlainAuth("", e.cfg.SenderEmail, e.cfg.Password, e.cfg.SMTPServer)
	if err := smtp.SendMail(addr, auth, e.cfg.SenderEmail,
		[]string{e.cfg.ReceiverEmail}, e.message(ev)); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

func (e *emailChannel) message(ev ports.Event) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: [%s] %s\r\n\r\n%s\r\n",
		e.cfg.SenderEmail, e.cfg.ReceiverEmail, ev.Severity, ev.Title, ev.Message))
}

type natsChannel struct {
	conn    *nats.Conn
	subject string
}

func (n *natsChannel) name() string { return "nats" }

func (n *natsChannel) send(_ context.Context, ev ports.Event) error {
	payload, err := json.Marshal(struct {
		Severity string    `json:"severity"`
		Title    string    `json:"title"`
		Message  string    `json:"message"`
		At       time.Time `json:"at"`
	}{string(ev.Severity), ev.Title, ev.Message, ev.At})
	if err != nil {
		return fmt.Errorf("nats encode: %w", err)
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
