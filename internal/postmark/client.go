// Package postmark sends the badge notification email. Delivery is
// best-effort; the caller decides what to do with a failure.
package postmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/config"
	dErrors "github.com/ScienceCommunicationLab/publish-badge/pkg/domain-errors"
	"github.com/ScienceCommunicationLab/publish-badge/pkg/requestcontext"
)

const maxErrorBodyLen = 2048

// Client talks to the Postmark server API.
type Client struct {
	baseURL     string
	serverToken string
	from        string
	logger      *slog.Logger
	client      *http.Client
}

type message struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody"`
	HtmlBody string `json:"HtmlBody"`
}

// New builds an email client from configuration.
func New(cfg config.Postmark, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		serverToken: cfg.ServerToken,
		from:        cfg.From,
		logger:      logger,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// SendBadgeNotification emails the recipient a link to their new badge.
func (c *Client) SendBadgeNotification(ctx context.Context, to, fullName, badgeURL string) error {
	if c.serverToken == "" {
		return dErrors.New(dErrors.CodeInternal, "email server token not configured")
	}

	name := fullName
	if name == "" {
		name = "there"
	}
	msg := message{
		From:    c.from,
		To:      to,
		Subject: "Your course completion badge",
		TextBody: fmt.Sprintf(
			"Hi %s,\n\nCongratulations on completing your course! Your badge is ready:\n\n%s\n\nThe Science Communication Lab team",
			name, badgeURL),
		HtmlBody: fmt.Sprintf(
			`<p>Hi %s,</p><p>Congratulations on completing your course! <a href="%s">Your badge is ready.</a></p><p>The Science Communication Lab team</p>`,
			name, badgeURL),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "encoding email request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(payload))
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "building email request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeUpstream, "email request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		c.logger.ErrorContext(ctx, "email request rejected",
			"request_id", requestcontext.RequestID(ctx),
			"status", resp.StatusCode,
			"body", string(body),
		)
		return dErrors.Newf(dErrors.CodeUpstream, "email request failed: %s", resp.Status)
	}
	return nil
}
