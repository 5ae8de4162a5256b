// Relayhub - Collaboration Activity and Notification Pipeline
// Copyright 2026 Relayhub Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relayhub/relayhub

package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/relayhub/relayhub/internal/store"
)

// WebhookPushConfig holds the push gateway settings. The gateway is any
// HTTP endpoint that accepts a JSON body with a device token and the
// rendered message, such as an FCM relay.
type WebhookPushConfig struct {
	URL       string
	AuthToken string
	Timeout   time.Duration
}

// WebhookPushProvider delivers push notifications by POSTing them to a
// push gateway.
type WebhookPushProvider struct {
	cfg    WebhookPushConfig
	client *http.Client
}

// NewWebhookPushProvider creates an HTTP-backed push provider.
func NewWebhookPushProvider(cfg WebhookPushConfig) *WebhookPushProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookPushProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type pushRequest struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send implements PushProvider.
func (p *WebhookPushProvider) Send(ctx context.Context, token store.PushToken, title, body string) error {
	payload, err := json.Marshal(pushRequest{
		Token: token.Token,
		Title: title,
		Body:  body,
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.AuthToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned %d", resp.StatusCode)
	}
	return nil
}
