// Package sms sends text messages through the NextSMS API, used as a fallback
// channel for payment-critical notifications.
package sms

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var ErrInvalidPhone = errors.New("sms: invalid phone number")

var digitsOnly = regexp.MustCompile(`\D`)

type Client struct {
	HTTP     *http.Client
	BaseURL  string // default https://messaging-service.co.tz
	Username string
	Password string
	SenderID string
}

func NewClient(username, password, senderID string) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		BaseURL:  "https://messaging-service.co.tz",
		Username: username,
		Password: password,
		SenderID: senderID,
	}
}

// CanonicalPhone strips non-digits and forces the 255 country code: a leading
// zero is replaced, a bare local number is prefixed.
func CanonicalPhone(phone string) string {
	p := digitsOnly.ReplaceAllString(phone, "")
	switch {
	case strings.HasPrefix(p, "0"):
		return "255" + p[1:]
	case !strings.HasPrefix(p, "255"):
		return "255" + p
	}
	return p
}

func (c *Client) Send(ctx context.Context, phone, message string) error {
	if c.Username == "" || c.Password == "" {
		return errors.New("sms: missing credentials")
	}
	to := CanonicalPhone(phone)
	if len(to) < 7 || len(to) > 15 {
		return fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}

	payload := map[string]any{
		"source_addr":   c.SenderID,
		"encoding":      0,
		"schedule_time": "",
		"message":       message,
		"recipients": []map[string]string{
			{"recipient_id": "1", "dest_addr": to},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/sms/v1/text/single", bytes.NewReader(body))
	if err != nil {
		return err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms api status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Successful bool `json:"successful"`
		Messages   []struct {
			Status struct {
				GroupID     int    `json:"groupId"`
				Description string `json:"description"`
			} `json:"status"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("sms: bad response: %w", err)
	}
	if result.Successful {
		return nil
	}
	if len(result.Messages) > 0 {
		// group 1 = pending, 3 = delivered
		g := result.Messages[0].Status.GroupID
		if g == 1 || g == 3 {
			return nil
		}
		return fmt.Errorf("sms rejected: %s", result.Messages[0].Status.Description)
	}
	return errors.New("sms: send failed")
}
