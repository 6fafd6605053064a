package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/devblac/event-listener/internal/event"
)

// Webhook POSTs each record as JSON. There is no retry; the only deadline is
// the one the dispatcher puts on ctx.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook builds an HTTP sink. A nil client uses a zero http.Client.
func NewWebhook(url string, client *http.Client) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url required")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Webhook{url: url, client: client}, nil
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, rec event.Record) error {
	body, err := rec.MarshalLine()
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
