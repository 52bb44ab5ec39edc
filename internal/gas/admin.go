package gas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/patrickmn/go-cache"
)

// UserInfo is a registry row describing one user's subscription.
type UserInfo struct {
	UserID           string `json:"userId"`
	Username         string `json:"username"`
	Status           string `json:"status"`
	Tier             string `json:"tier"`
	ExpiredDate      string `json:"expiredDate"`
	RegistrationDate string `json:"registrationDate"`
}

// adminResponse is the envelope returned by the admin registry script.
type adminResponse struct {
	Success    bool       `json:"success"`
	Error      string     `json:"error"`
	Authorized bool       `json:"authorized"`
	WebhookURL string     `json:"webhookUrl"`
	User       *UserInfo  `json:"user"`
	Users      []UserInfo `json:"users"`
}

func (c *Client) adminGet(ctx context.Context, action string, params url.Values) (*adminResponse, error) {
	if c.adminURL == "" {
		return nil, fmt.Errorf("%w: admin registry not configured", ErrBackend)
	}

	params.Set("action", action)

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.adminURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
	}

	var out adminResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrBackend, err)
	}
	return &out, nil
}

func (c *Client) adminPost(ctx context.Context, payload map[string]any) (*adminResponse, error) {
	if c.adminURL == "" {
		return nil, fmt.Errorf("%w: admin registry not configured", ErrBackend)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding payload: %v", ErrBackend, err)
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminURL, bytes.NewReader(body))
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

	var out adminResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrBackend, err)
	}
	if !out.Success && out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrBackend, out.Error)
	}
	return &out, nil
}

// CheckAuthorized reports whether the user is on the allow-list with an
// unexpired subscription. The decision is fetched per request and never
// cached; any registry failure fails closed.
func (c *Client) CheckAuthorized(ctx context.Context, userID string) bool {
	resp, err := c.adminGet(ctx, "check_auth", url.Values{"userId": {userID}})
	if err != nil {
		c.logger.Error("authorization check failed", "user_id", userID, "error", err)
		return false
	}
	return resp.Authorized
}

// UserInfo fetches the registry row for one user; nil when unknown.
func (c *Client) UserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	resp, err := c.adminGet(ctx, "get_user_info", url.Values{"userId": {userID}})
	if err != nil {
		return nil, err
	}
	return resp.User, nil
}

// WebhookURL resolves the user's registered script endpoint, consulting
// the local cache first. Absence is ErrNotRegistered.
func (c *Client) WebhookURL(ctx context.Context, userID string) (string, error) {
	if cached, ok := c.webhooks.Get(userID); ok {
		return cached.(string), nil
	}

	resp, err := c.adminGet(ctx, "get_webhook", url.Values{"userId": {userID}})
	if err != nil {
		return "", err
	}
	if resp.WebhookURL == "" {
		return "", ErrNotRegistered
	}

	c.webhooks.Set(userID, resp.WebhookURL, cache.DefaultExpiration)
	return resp.WebhookURL, nil
}

// SetWebhookURL stores the user's script endpoint in the registry. Last
// write wins. The cache is updated only after the registry accepts.
func (c *Client) SetWebhookURL(ctx context.Context, userID, webhookURL string) error {
	_, err := c.adminPost(ctx, map[string]any{
		"action":     "update_webhook",
		"userId":     userID,
		"webhookUrl": webhookURL,
	})
	if err != nil {
		return err
	}
	c.webhooks.Set(userID, webhookURL, cache.DefaultExpiration)
	return nil
}

// AddUser registers a new user with a subscription of the given length.
func (c *Client) AddUser(ctx context.Context, userID, username string, days int) error {
	_, err := c.adminPost(ctx, map[string]any{
		"action":   "add_user",
		"userId":   userID,
		"username": username,
		"days":     days,
	})
	return err
}

// RemoveUser deletes a user from the registry and evicts any cached
// webhook URL.
func (c *Client) RemoveUser(ctx context.Context, userID string) error {
	if _, err := c.adminPost(ctx, map[string]any{
		"action": "remove_user",
		"userId": userID,
	}); err != nil {
		return err
	}
	c.webhooks.Delete(userID)
	return nil
}

// ExtendUser lengthens a user's subscription by the given days.
func (c *Client) ExtendUser(ctx context.Context, userID string, days int) error {
	_, err := c.adminPost(ctx, map[string]any{
		"action": "extend_subscription",
		"userId": userID,
		"days":   days,
	})
	return err
}

// ListUsers fetches all registry rows.
func (c *Client) ListUsers(ctx context.Context) ([]UserInfo, error) {
	resp, err := c.adminGet(ctx, "list_users", url.Values{})
	if err != nil {
		return nil, err
	}
	return resp.Users, nil
}
