// Package notify delivers best-effort attendance notices over SMS. The
// dispatcher publishes to the queue and never blocks or fails the marking
// flow; the worker consumes and talks to the gateway.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SMSClient calls the SMS gateway over HTTP.
type SMSClient struct {
	BaseURL string
	Sender  string
	HTTP    *http.Client
	Skip    bool
}

// NewSMSClient creates a gateway client. With skip set, sends are no-ops.
func NewSMSClient(baseURL, sender string, skip bool) *SMSClient {
	return &SMSClient{
		BaseURL: baseURL,
		Sender:  sender,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send submits one message to the gateway.
func (c *SMSClient) Send(ctx context.Context, phone, message string) error {
	if c.Skip {
		return nil
	}
	if phone == "" {
		return fmt.Errorf("phone number required")
	}

	body, _ := json.Marshal(map[string]string{
		"to":      phone,
		"from":    c.Sender,
		"message": message,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms gateway error %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}

// NormalizePhone validates a raw roster phone number and returns it in
// E.164-ish form with the country prefix. Only bare 10-digit numbers are
// considered canonical; anything else is reported unusable so the caller
// can treat the notice as a no-op.
func NormalizePhone(raw, prefix string) (string, bool) {
	if len(raw) != 10 {
		return "", false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return prefix + raw, true
}
