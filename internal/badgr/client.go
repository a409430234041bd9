// Package badgr is the client for the badge issuer. Publishing a badge is
// two sequential calls: exchange the configured credentials for a bearer
// token, then create an assertion for the recipient. Both must succeed;
// there is no retry and the token is never reused across requests.
package badgr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/config"
	dErrors "github.com/ScienceCommunicationLab/publish-badge/pkg/domain-errors"
	"github.com/ScienceCommunicationLab/publish-badge/pkg/requestcontext"
)

const maxErrorBodyLen = 2048

// Client talks to the badge issuer API.
type Client struct {
	baseURL  string
	username string
	password string
	salt     string
	logger   *slog.Logger
	client   *http.Client
}

// Assertion is the issuance result consumed by the notification fan-out.
type Assertion struct {
	OpenBadgeID string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type assertionRequest struct {
	Recipient recipient `json:"recipient"`
}

type recipient struct {
	Identity string `json:"identity"`
	Hashed   bool   `json:"hashed"`
	Type     string `json:"type"`
	Salt     string `json:"salt"`
}

type assertionResponse struct {
	Result []struct {
		OpenBadgeID string `json:"openBadgeId"`
	} `json:"result"`
}

// New builds an issuer client from configuration.
func New(cfg config.Badgr, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		salt:     cfg.Salt,
		logger:   logger,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Publish creates a badge assertion for the recipient email and returns its
// open badge identifier. The issuer treats repeat creations for the same
// recipient and badge class as idempotent; this client does not dedup.
func (c *Client) Publish(ctx context.Context, badgeClassID, email string) (*Assertion, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	return c.createAssertion(ctx, token, badgeClassID, email)
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.username == "" || c.password == "" {
		return "", dErrors.New(dErrors.CodeInternal, "issuer credentials not configured")
	}

	form := url.Values{
		"username": {c.username},
		"password": {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/o/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "building token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeUpstream, "issuer token request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.ErrorContext(ctx, "issuer token request rejected",
			"request_id", requestcontext.RequestID(ctx),
			"status", resp.StatusCode,
			"body", string(body),
		)
		return "", dErrors.Newf(dErrors.CodeUpstream, "issuer token request failed: %s", resp.Status)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", dErrors.Wrap(dErrors.CodeUpstream, "decoding issuer token response", err)
	}
	if parsed.AccessToken == "" {
		return "", dErrors.New(dErrors.CodeUpstream, "issuer token response missing access_token")
	}
	return parsed.AccessToken, nil
}

func (c *Client) createAssertion(ctx context.Context, token, badgeClassID, email string) (*Assertion, error) {
	payload, err := json.Marshal(assertionRequest{
		Recipient: recipient{
			Identity: hashedIdentity(email, c.salt),
			Hashed:   true,
			Type:     "email",
			Salt:     c.salt,
		},
	})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "encoding assertion request", err)
	}

	endpoint := fmt.Sprintf("%s/v2/badgeclasses/%s/assertions", c.baseURL, badgeClassID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "building assertion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUpstream, "assertion request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.ErrorContext(ctx, "assertion request rejected",
			"request_id", requestcontext.RequestID(ctx),
			"badge_class_id", badgeClassID,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, dErrors.Newf(dErrors.CodeUpstream, "badge assertion failed: %s", resp.Status)
	}

	var parsed assertionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUpstream, "decoding assertion response", err)
	}
	if len(parsed.Result) == 0 {
		return nil, dErrors.New(dErrors.CodeUpstream, "unexpected assertion response format")
	}
	if parsed.Result[0].OpenBadgeID == "" {
		return nil, dErrors.New(dErrors.CodeUpstream, "assertion response missing openBadgeId")
	}
	return &Assertion{OpenBadgeID: parsed.Result[0].OpenBadgeID}, nil
}

// hashedIdentity implements the issuer's salted recipient hashing scheme:
// sha256 over the plain email concatenated with the salt, hex-encoded and
// prefixed with the algorithm name.
func hashedIdentity(email, salt string) string {
	sum := sha256.Sum256([]byte(email + salt))
	return "sha256$" + hex.EncodeToString(sum[:])
}
