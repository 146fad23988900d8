package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Mailer sends transactional notifications through the mail API. Delivery is
// best effort; render outcomes never depend on it.
type Mailer struct {
	apiURL     string
	apiKey     string
	from       string
	httpClient *http.Client
}

func NewMailer(apiURL, apiKey, from string) *Mailer {
	return &Mailer{
		apiURL:     apiURL,
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether the mailer is configured at all.
func (m *Mailer) Enabled() bool {
	return m.apiURL != "" && m.apiKey != ""
}

type mailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// SendRenderComplete notifies the user that their video is ready.
func (m *Mailer) SendRenderComplete(ctx context.Context, to, reelTitle, videoURL string) error {
	if !m.Enabled() {
		return fmt.Errorf("mailer is not configured")
	}
	if to == "" {
		return fmt.Errorf("no recipient address")
	}

	subject := "Your video is ready"
	if reelTitle != "" {
		subject = fmt.Sprintf("Your video %q is ready", reelTitle)
	}

	html := fmt.Sprintf(
		`<p>Your video has finished rendering.</p><p><a href="%s">Watch it here</a></p>`,
		videoURL,
	)

	body, err := json.Marshal(mailRequest{From: m.from, To: to, Subject: subject, HTML: html})
	if err != nil {
		return fmt.Errorf("failed to marshal mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mail API returned %d: %s", resp.StatusCode, string(data))
	}
	return nil
}
