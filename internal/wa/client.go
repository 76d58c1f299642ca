// Package wa sends outbound messages through the WhatsApp Cloud API.
package wa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var ErrInvalidPhone = errors.New("wa: invalid phone number")

var phonePattern = regexp.MustCompile(`^\d{7,15}$`)

// Transient Cloud API error codes worth retrying (rate limit, transient
// delivery failure).
var retryableCodes = map[int]bool{80007: true, 131000: true}

const maxAttempts = 3

type Button struct {
	ID    string
	Title string
}

type Client struct {
	HTTP       *http.Client
	BaseURL    string // default https://graph.facebook.com
	Token      string
	PhoneID    string
	APIVersion string
}

func NewClient(token, phoneID, apiVersion string) *Client {
	if !strings.HasPrefix(apiVersion, "v") {
		apiVersion = "v" + apiVersion
	}
	return &Client{
		HTTP:       &http.Client{Timeout: 45 * time.Second},
		BaseURL:    "https://graph.facebook.com",
		Token:      token,
		PhoneID:    phoneID,
		APIVersion: apiVersion,
	}
}

func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, to, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"preview_url": false, "body": body},
	})
}

func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	actions := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		actions = append(actions, map[string]any{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Title},
		})
	}
	return c.send(ctx, to, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]any{"buttons": actions},
		},
	})
}

func (c *Client) SendImage(ctx context.Context, to, caption, mediaURL string) error {
	return c.send(ctx, to, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "image",
		"image":             map[string]string{"link": mediaURL, "caption": caption},
	})
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// send posts the payload with bounded retry on transient failures: one short
// sleep, then a longer one, then give up.
func (c *Client) send(ctx context.Context, to string, payload map[string]any) error {
	if to == "" || !phonePattern.MatchString(to) {
		return fmt.Errorf("%w: %q", ErrInvalidPhone, to)
	}
	if c.Token == "" || c.PhoneID == "" {
		return errors.New("wa: missing API credentials")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/%s/messages", c.BaseURL, c.APIVersion, c.PhoneID)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt-1) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			log.Printf("wa send attempt %d: %v", attempt, err)
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}

		var ae apiError
		_ = json.Unmarshal(respBody, &ae)
		lastErr = fmt.Errorf("wa api status %d code %d: %s", resp.StatusCode, ae.Error.Code, ae.Error.Message)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 || retryableCodes[ae.Error.Code] {
			log.Printf("wa send attempt %d: %v", attempt, lastErr)
			continue
		}
		return lastErr
	}
	return fmt.Errorf("wa: giving up after %d attempts: %w", maxAttempts, lastErr)
}
