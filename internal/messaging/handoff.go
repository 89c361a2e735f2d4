package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/utafrali/farmmarket/pkg/httpclient"
	"github.com/utafrali/farmmarket/pkg/logger"
)

// Handoff delivers an order message to an external channel.
type Handoff interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// LogHandoff writes the message to the log instead of delivering it.
type LogHandoff struct {
	logger *slog.Logger
}

// NewLogHandoff creates a log-only handoff.
func NewLogHandoff(logger *slog.Logger) *LogHandoff {
	return &LogHandoff{logger: logger}
}

func (h *LogHandoff) Name() string { return "log" }

func (h *LogHandoff) Send(ctx context.Context, msg Message) error {
	h.logger.InfoContext(ctx, "order message handed off",
		slog.String("order_id", msg.OrderID),
		slog.String("uri", msg.URI),
		slog.String("summary", msg.Summary),
	)
	return nil
}

// poster is the part of *httpclient.CircuitBreakerClient a webhook needs.
type poster interface {
	PostJSON(ctx context.Context, url string, payload any) (*http.Response, error)
}

// WebhookHandoff POSTs the message as JSON to a webhook.
type WebhookHandoff struct {
	client poster
	url    string
}

// NewWebhookHandoff creates a webhook handoff sending through client.
func NewWebhookHandoff(client *httpclient.CircuitBreakerClient, url string) *WebhookHandoff {
	return &WebhookHandoff{client: client, url: url}
}

func (h *WebhookHandoff) Name() string { return "webhook" }

// Send posts msg. Any non-2xx answer is an error.
func (h *WebhookHandoff) Send(ctx context.Context, msg Message) error {
	resp, err := h.client.PostJSON(ctx, h.url, msg)
	if err != nil {
		return fmt.Errorf("post order message: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return httpclient.ParseResponseError(resp, "order webhook")
	}
	_ = resp.Body.Close()
	return nil
}

// Dispatcher runs handoffs in the background so checkout never waits on
// them. Each send gets its own timeout and outlives the request context.
type Dispatcher struct {
	handoff Handoff
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher for handoff.
func NewDispatcher(handoff Handoff, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{handoff: handoff, timeout: timeout, logger: logger}
}

// Dispatch sends msg asynchronously. Failures are logged and counted.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := d.handoff.Send(ctx, msg); err != nil {
			handoffTotal.WithLabelValues(d.handoff.Name(), "failure").Inc()
			logger.WithContext(ctx, d.logger).WarnContext(ctx, "order message handoff failed",
				slog.String("handoff", d.handoff.Name()),
				slog.String("order_id", msg.OrderID),
				slog.String("error", err.Error()),
			)
			return
		}
		handoffTotal.WithLabelValues(d.handoff.Name(), "success").Inc()
	}()
}

// Wait blocks until in-flight handoffs finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
