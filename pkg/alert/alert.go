// Package alert fans bundle failure notifications out to configured channels.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/atomiclaunch/bundler/pkg/logger"
	"github.com/atomiclaunch/bundler/pkg/metrics"
	"github.com/hashicorp/go-retryablehttp"
)

// Notifier delivers one alert to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, message string, data map[string]string) error
}

// Dispatcher fans an alert out to every configured notifier. Delivery
// failures are logged and counted but never propagate; alerting is advisory
// and must not fail the operation that triggered it.
type Dispatcher struct {
	notifiers []Notifier
	logger    logger.Logger
}

// NewDispatcher creates a dispatcher over the given notifiers.
func NewDispatcher(log logger.Logger, notifiers ...Notifier) *Dispatcher {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Dispatcher{
		notifiers: notifiers,
		logger:    log,
	}
}

// Dispatch sends the alert to every channel. Safe on a nil dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, message string, data map[string]string) {
	if d == nil {
		return
	}
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, message, data); err != nil {
			metrics.AlertsSent.WithLabelValues(n.Name(), "error").Inc()
			d.logger.ErrorWith(logger.Alert, "failed to deliver alert via %s: %v", n.Name(), err)
			continue
		}
		metrics.AlertsSent.WithLabelValues(n.Name(), "success").Inc()
	}
}

// WebhookNotifier posts alerts as JSON to an HTTP webhook. Transient delivery
// failures are retried by the underlying client before giving up.
type WebhookNotifier struct {
	url    string
	client *retryablehttp.Client
}

// NewWebhookNotifier creates a webhook notifier with bounded retries.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return &WebhookNotifier{
		url:    url,
		client: client,
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

type webhookPayload struct {
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, message string, data map[string]string) error {
	body, err := json.Marshal(webhookPayload{Text: message, Fields: data})
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %v", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier appends alerts to the execution journal.
type LogNotifier struct {
	sink *logger.FileSink
}

// NewLogNotifier creates a notifier writing to the given journal sink.
func NewLogNotifier(sink *logger.FileSink) *LogNotifier {
	return &LogNotifier{sink: sink}
}

func (n *LogNotifier) Name() string { return "journal" }

func (n *LogNotifier) Notify(ctx context.Context, message string, data map[string]string) error {
	n.sink.Append(logger.Record{
		Level:     "alert",
		Component: "ALERT",
		Message:   message,
		Fields:    data,
	})
	return nil
}
