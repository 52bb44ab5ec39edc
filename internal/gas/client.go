// Package gas talks to the remote Apps Script backends: the admin
// registry (authorization, user management, webhook registration) and
// each user's own script (free-text parsing, saving, option lists).
//
// Failures are split into three outcomes so callers can apply the right
// policy: a definitive empty result (not an error), ErrNotRegistered
// (the user never finished setup, prompt them), and ErrBackend (a
// transport failure or non-success response, retry-eligible by the
// user). Backend calls are never retried here; the human is the retry
// mechanism.
package gas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/danuarif/duitbot/pkg/api"
)

var (
	// ErrNotRegistered means the user has no webhook URL on file. It is
	// a setup prompt, not a system error.
	ErrNotRegistered = errors.New("gas: user has no registered webhook")
	// ErrBackend wraps transport errors, timeouts, and non-success
	// responses from a remote script.
	ErrBackend = errors.New("gas: backend call failed")
)

const (
	// lookupTimeout bounds registry reads; actionTimeout bounds the
	// heavier parse/save actions against a user's script.
	lookupTimeout = 10 * time.Second
	actionTimeout = 30 * time.Second

	// Webhook URLs change rarely; cache lookups briefly. Authorization
	// decisions are never cached, they may expire without notice.
	webhookCacheTTL     = 15 * time.Minute
	webhookCacheCleanup = 30 * time.Minute
)

// Client is the HTTP client for both backend surfaces.
type Client struct {
	adminURL string
	http     *http.Client
	webhooks *cache.Cache
	logger   *slog.Logger
}

// NewClient creates a backend client. adminURL may be empty, in which
// case every registry-dependent call fails closed.
func NewClient(adminURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		adminURL: adminURL,
		http:     &http.Client{},
		webhooks: cache.New(webhookCacheTTL, webhookCacheCleanup),
		logger:   logger,
	}
}

// response is the common envelope returned by the remote scripts.
type response struct {
	Success     bool                       `json:"success"`
	Error       string                     `json:"error"`
	Transaction *api.Transaction           `json:"transaction"`
	Categories  map[string]json.RawMessage `json:"categories"`
	Accounts    []string                   `json:"accounts"`
}

// callUserScript posts an action to the user's registered webhook.
func (c *Client) callUserScript(ctx context.Context, userID string, payload map[string]any) (*response, error) {
	webhookURL, err := c.WebhookURL(ctx, userID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding payload: %v", ErrBackend, err)
	}

	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrBackend, err)
	}
	return &out, nil
}

// ParseText asks the user's script to parse free text into a
// transaction. A nil transaction with nil error means the script ran but
// found nothing to record.
func (c *Client) ParseText(ctx context.Context, userID, text string) (*api.Transaction, error) {
	resp, err := c.callUserScript(ctx, userID, map[string]any{
		"action": "parse_text",
		"text":   text,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrBackend, orUnknown(resp.Error))
	}
	return resp.Transaction, nil
}

// SaveTransaction persists a confirmed transaction via the user's
// script. Any failure leaves the caller's session intact for retry.
func (c *Client) SaveTransaction(ctx context.Context, userID string, tx *api.Transaction) error {
	resp, err := c.callUserScript(ctx, userID, map[string]any{
		"action":      "save_transaction",
		"transaction": tx,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrBackend, orUnknown(resp.Error))
	}
	return nil
}

// Categories fetches the user's category names, sorted for a stable
// menu layout.
func (c *Client) Categories(ctx context.Context, userID string) ([]string, error) {
	resp, err := c.callUserScript(ctx, userID, map[string]any{"action": "get_categories"})
	if err != nil {
		return nil, err
	}
	if len(resp.Categories) == 0 {
		return nil, fmt.Errorf("%w: no categories returned", ErrBackend)
	}

	names := make([]string, 0, len(resp.Categories))
	for name := range resp.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Accounts fetches the user's account names.
func (c *Client) Accounts(ctx context.Context, userID string) ([]string, error) {
	resp, err := c.callUserScript(ctx, userID, map[string]any{"action": "get_accounts"})
	if err != nil {
		return nil, err
	}
	if len(resp.Accounts) == 0 {
		return nil, fmt.Errorf("%w: no accounts returned", ErrBackend)
	}
	return resp.Accounts, nil
}

func orUnknown(msg string) string {
	if msg == "" {
		return "unknown error"
	}
	return msg
}
