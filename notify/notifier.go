package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"aegis/core"
	"aegis/metrics"

	"go.uber.org/zap"
)

// NotificationType represents the type of notification channel
type NotificationType string

const (
	// NotificationEmail represents email notification type
	NotificationEmail NotificationType = "email"
	// NotificationWebhook represents webhook notification type
	NotificationWebhook NotificationType = "webhook"
)

// NotificationConfig holds configuration for one notification channel
type NotificationConfig struct {
	Enabled bool             `json:"enabled"`
	Type    NotificationType `json:"type"`

	// Email configuration
	SMTPHost     string   `json:"smtp_host"`
	SMTPPort     int      `json:"smtp_port"`
	SMTPUsername string   `json:"smtp_username"`
	SMTPPassword string   `json:"smtp_password"`
	FromAddress  string   `json:"from_address"`
	ToAddresses  []string `json:"to_addresses"`

	// Webhook configuration
	WebhookURL     string            `json:"webhook_url"`
	WebhookHeaders map[string]string `json:"webhook_headers"`

	// Filtering. Alerts below MinSeverity are skipped; ticket and critical
	// event notifications always go out.
	MinSeverity core.Severity `json:"min_severity"`
}

// Notifier is the outbound notification surface. The correlation engine and
// the ticket service depend on this interface, not the SMTP/webhook
// implementation, so tests can swap in a recorder.
type Notifier interface {
	// NotifyAlert fans a correlated alert out to every configured channel.
	NotifyAlert(ctx context.Context, alert *core.CorrelatedAlert) error
	// NotifyCriticalEvent reports a single high-level event that warrants
	// attention without any rule firing.
	NotifyCriticalEvent(ctx context.Context, event *core.LogEvent) error
	// NotifyTicketEvent emails the given recipient about a ticket
	// transition. Used for client updates and analyst assignment.
	NotifyTicketEvent(ctx context.Context, ticket *core.Ticket, recipient, subject, body string) error
}

// MultiNotifier fans notifications out over email and webhooks with a circuit
// breaker per channel.
type MultiNotifier struct {
	configs         []NotificationConfig
	httpClient      *http.Client
	logger          *zap.SugaredLogger
	circuitBreakers map[string]*core.CircuitBreaker
	cbMu            sync.RWMutex
}

// NewMultiNotifier creates a notifier for the given channel configs.
func NewMultiNotifier(configs []NotificationConfig, logger *zap.SugaredLogger) *MultiNotifier {
	return &MultiNotifier{
		configs:         configs,
		httpClient:      &http.Client{Timeout: core.NotifyTimeout},
		logger:          logger,
		circuitBreakers: make(map[string]*core.CircuitBreaker),
	}
}

// getOrCreateCircuitBreaker gets or creates a circuit breaker for a channel
func (n *MultiNotifier) getOrCreateCircuitBreaker(key string) *core.CircuitBreaker {
	n.cbMu.RLock()
	cb, exists := n.circuitBreakers[key]
	n.cbMu.RUnlock()
	if exists {
		return cb
	}

	n.cbMu.Lock()
	defer n.cbMu.Unlock()
	if cb, exists := n.circuitBreakers[key]; exists {
		return cb
	}

	cb = core.MustNewCircuitBreaker(core.DefaultCircuitBreakerConfig())
	n.circuitBreakers[key] = cb
	n.logger.Infof("Created circuit breaker for notification channel: %s", key)
	return cb
}

func (n *MultiNotifier) channelKey(config NotificationConfig) string {
	if config.Type == NotificationWebhook {
		return fmt.Sprintf("webhook:%s", config.WebhookURL)
	}
	return fmt.Sprintf("email:%s:%d", config.SMTPHost, config.SMTPPort)
}

// dispatch sends one message over one channel, guarded by its circuit breaker.
func (n *MultiNotifier) dispatch(ctx context.Context, config NotificationConfig, subject, body string, payload map[string]interface{}) error {
	key := n.channelKey(config)
	cb := n.getOrCreateCircuitBreaker(key)

	if err := cb.Allow(); err != nil {
		metrics.NotificationsSent.WithLabelValues(string(config.Type), "skipped").Inc()
		return fmt.Errorf("channel %s unavailable: %w", key, err)
	}

	var err error
	switch config.Type {
	case NotificationEmail:
		err = n.sendEmail(config, config.ToAddresses, subject, body)
	case NotificationWebhook:
		err = n.sendWebhook(ctx, config, payload)
	default:
		return fmt.Errorf("unknown notification type: %s", config.Type)
	}

	if err != nil {
		cb.RecordFailure()
		metrics.NotificationsSent.WithLabelValues(string(config.Type), "failure").Inc()
		return err
	}

	cb.RecordSuccess()
	metrics.NotificationsSent.WithLabelValues(string(config.Type), "success").Inc()
	return nil
}

// NotifyAlert fans a correlated alert out to every enabled channel at or
// above its severity filter. Returns the first error, after trying every
// channel.
func (n *MultiNotifier) NotifyAlert(ctx context.Context, alert *core.CorrelatedAlert) error {
	subject := fmt.Sprintf("[%s] Correlated alert: %s", alert.Severity, alert.CorrelationType)
	body := fmt.Sprintf(
		"Correlation rule %q fired on agent %s at %s.\r\n\r\n%s\r\n\r\nRelated events: %s\r\n",
		alert.CorrelationType,
		alert.AgentID,
		alert.Timestamp.Format(time.RFC3339),
		alert.CorrelationNotes,
		strings.Join(alert.RelatedAlerts, ", "),
	)
	payload := map[string]interface{}{
		"kind":              "correlated_alert",
		"correlation_type":  alert.CorrelationType,
		"severity":          alert.Severity,
		"agent_id":          alert.AgentID,
		"correlation_notes": alert.CorrelationNotes,
		"related_alerts":    alert.RelatedAlerts,
		"timestamp":         alert.Timestamp.Format(time.RFC3339),
	}

	var firstErr error
	for _, config := range n.configs {
		if !config.Enabled {
			continue
		}
		if !core.SeverityAtLeast(alert.Severity, config.MinSeverity) {
			continue
		}
		if err := n.dispatch(ctx, config, subject, body, payload); err != nil {
			n.logger.Errorw("Failed to send alert notification", "channel", n.channelKey(config), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NotifyCriticalEvent reports a single critical-level event on every enabled
// channel, bypassing severity filters.
func (n *MultiNotifier) NotifyCriticalEvent(ctx context.Context, event *core.LogEvent) error {
	subject := fmt.Sprintf("[critical] Level %d event on %s", event.Level, event.Agent)
	body := fmt.Sprintf(
		"Critical event %s on agent %s at %s (level %d).\r\n\r\n%s\r\n",
		event.AlertID,
		event.Agent,
		event.Timestamp.Format(time.RFC3339),
		event.Level,
		event.MatchText(),
	)
	payload := map[string]interface{}{
		"kind":        "critical_event",
		"alert_id":    event.AlertID,
		"agent":       event.Agent,
		"level":       event.Level,
		"description": event.Description,
		"timestamp":   event.Timestamp.Format(time.RFC3339),
	}

	var firstErr error
	for _, config := range n.configs {
		if !config.Enabled {
			continue
		}
		if err := n.dispatch(ctx, config, subject, body, payload); err != nil {
			n.logger.Errorw("Failed to send critical event notification", "channel", n.channelKey(config), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NotifyTicketEvent emails one recipient about a ticket transition. Unlike
// alert fan-out this targets a specific address, so only email channels are
// used and the configured recipient list is overridden.
func (n *MultiNotifier) NotifyTicketEvent(ctx context.Context, ticket *core.Ticket, recipient, subject, body string) error {
	if recipient == "" {
		return core.NewValidationError("recipient", "must not be empty")
	}

	var firstErr error
	sent := false
	for _, config := range n.configs {
		if !config.Enabled || config.Type != NotificationEmail {
			continue
		}
		key := n.channelKey(config)
		cb := n.getOrCreateCircuitBreaker(key)
		if err := cb.Allow(); err != nil {
			metrics.NotificationsSent.WithLabelValues(string(NotificationEmail), "skipped").Inc()
			if firstErr == nil {
				firstErr = fmt.Errorf("channel %s unavailable: %w", key, err)
			}
			continue
		}
		if err := n.sendEmail(config, []string{recipient}, subject, body); err != nil {
			cb.RecordFailure()
			metrics.NotificationsSent.WithLabelValues(string(NotificationEmail), "failure").Inc()
			n.logger.Errorw("Failed to send ticket notification",
				"ticket_id", ticket.ID, "recipient", recipient, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		cb.RecordSuccess()
		metrics.NotificationsSent.WithLabelValues(string(NotificationEmail), "success").Inc()
		sent = true
	}

	if !sent && firstErr == nil {
		return fmt.Errorf("no enabled email channel for ticket %d", ticket.ID)
	}
	if firstErr != nil {
		return firstErr
	}

	n.logger.Infof("Sent ticket %d notification to %s", ticket.ID, recipient)
	return nil
}

func (n *MultiNotifier) sendEmail(config NotificationConfig, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients specified for email notification")
	}

	message := fmt.Sprintf("From: %s\r\n", config.FromAddress)
	message += fmt.Sprintf("To: %s\r\n", strings.Join(recipients, ", "))
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n" + body

	addr := fmt.Sprintf("%s:%d", config.SMTPHost, config.SMTPPort)
	var auth smtp.Auth
	if config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", config.SMTPUsername, config.SMTPPassword, config.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, config.FromAddress, recipients, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", addr, err)
	}
	return nil
}

func (n *MultiNotifier) sendWebhook(ctx context.Context, config NotificationConfig, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, core.NotifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range config.WebhookHeaders {
		req.Header.Set(k, v)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
