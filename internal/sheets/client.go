// Package sheets appends completion records to the badge log spreadsheet.
// Each append performs its own service-account token exchange: a short-lived
// RS256 assertion signed with the service-account key is traded for a bearer
// token at the account's token endpoint, then one values:append call is made.
// Nothing is cached between invocations.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/config"
	dErrors "github.com/ScienceCommunicationLab/publish-badge/pkg/domain-errors"
	"github.com/ScienceCommunicationLab/publish-badge/pkg/requestcontext"
)

const (
	scope           = "https://www.googleapis.com/auth/spreadsheets"
	grantType       = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL    = time.Hour
	maxErrorBodyLen = 2048
)

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type appendRequest struct {
	Values [][]string `json:"values"`
}

// Client talks to the spreadsheet API on behalf of a service account.
type Client struct {
	baseURL       string
	spreadsheetID string
	appendRange   string
	rawAccount    string
	logger        *slog.Logger
	client        *http.Client
}

// New builds a spreadsheet client from configuration.
func New(cfg config.Sheets, logger *slog.Logger) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		spreadsheetID: cfg.SpreadsheetID,
		appendRange:   cfg.AppendRange,
		rawAccount:    cfg.ServiceAccountJSON,
		logger:        logger,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

// AppendRow appends one row to the configured range.
func (c *Client) AppendRow(ctx context.Context, row []string) error {
	if c.spreadsheetID == "" {
		return dErrors.New(dErrors.CodeInternal, "spreadsheet id not configured")
	}
	account, err := c.parseAccount()
	if err != nil {
		return err
	}

	token, err := c.exchangeToken(ctx, account)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(appendRequest{Values: [][]string{row}})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "encoding append request", err)
	}

	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED",
		c.baseURL, c.spreadsheetID, url.PathEscape(c.appendRange))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "building append request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeUpstream, "append request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		c.logger.ErrorContext(ctx, "append request rejected",
			"request_id", requestcontext.RequestID(ctx),
			"status", resp.StatusCode,
			"body", string(body),
		)
		return dErrors.Newf(dErrors.CodeUpstream, "append request failed: %s", resp.Status)
	}
	return nil
}

func (c *Client) parseAccount() (*serviceAccount, error) {
	if c.rawAccount == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "service account not configured")
	}
	var account serviceAccount
	if err := json.Unmarshal([]byte(c.rawAccount), &account); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "parsing service account key", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" || account.TokenURI == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "service account key incomplete")
	}
	return &account, nil
}

func (c *Client) exchangeToken(ctx context.Context, account *serviceAccount) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "parsing service account private key", err)
	}

	now := requestcontext.Now(ctx)
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   account.ClientEmail,
		"scope": scope,
		"aud":   account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}).SignedString(key)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "signing token assertion", err)
	}

	form := url.Values{
		"grant_type": {grantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, account.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "building token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeUpstream, "sheets token request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.ErrorContext(ctx, "sheets token request rejected",
			"request_id", requestcontext.RequestID(ctx),
			"status", resp.StatusCode,
			"body", string(body),
		)
		return "", dErrors.Newf(dErrors.CodeUpstream, "sheets token request failed: %s", resp.Status)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", dErrors.Wrap(dErrors.CodeUpstream, "decoding sheets token response", err)
	}
	if parsed.AccessToken == "" {
		return "", dErrors.New(dErrors.CodeUpstream, "sheets token response missing access_token")
	}
	return parsed.AccessToken, nil
}
