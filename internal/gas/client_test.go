package gas

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danuarif/duitbot/pkg/api"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend plays both the admin registry and a user's script on one
// test server, switching on method and action.
type fakeBackend struct {
	t          *testing.T
	authorized bool
	webhookURL string
	scriptResp map[string]any
	scriptCode int

	lastAction string
	lastBody   map[string]any
}

func (f *fakeBackend) adminHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "check_auth":
		json.NewEncoder(w).Encode(map[string]any{"authorized": f.authorized})
	case "get_webhook":
		json.NewEncoder(w).Encode(map[string]any{"webhookUrl": f.webhookURL})
	case "list_users":
		json.NewEncoder(w).Encode(map[string]any{"users": []map[string]any{
			{"userId": "1", "username": "danu", "status": "Active"},
		}})
	default:
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.lastAction, _ = body["action"].(string)
		f.lastBody = body
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}
}

func (f *fakeBackend) scriptHandler(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	f.lastAction, _ = body["action"].(string)
	f.lastBody = body

	if f.scriptCode != 0 {
		w.WriteHeader(f.scriptCode)
		return
	}
	json.NewEncoder(w).Encode(f.scriptResp)
}

func newFakeClient(t *testing.T, f *fakeBackend) *Client {
	t.Helper()
	script := httptest.NewServer(http.HandlerFunc(f.scriptHandler))
	t.Cleanup(script.Close)
	f.webhookURL = script.URL

	admin := httptest.NewServer(http.HandlerFunc(f.adminHandler))
	t.Cleanup(admin.Close)

	return NewClient(admin.URL, discardLogger())
}

func TestParseTextSuccess(t *testing.T) {
	fake := &fakeBackend{t: t, scriptResp: map[string]any{
		"success": true,
		"transaction": map[string]any{
			"title": "Kebab", "amount": 10000, "is_income": false, "account": "Cash",
		},
	}}
	client := newFakeClient(t, fake)

	tx, err := client.ParseText(context.Background(), "42", "beli kebab 10k cash")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, "Kebab", tx.Title)
	assert.Equal(t, int64(10000), tx.Amount)
	assert.Equal(t, "parse_text", fake.lastAction)
	assert.Equal(t, "beli kebab 10k cash", fake.lastBody["text"])
}

func TestParseTextDefinitiveEmpty(t *testing.T) {
	fake := &fakeBackend{t: t, scriptResp: map[string]any{"success": true}}
	client := newFakeClient(t, fake)

	tx, err := client.ParseText(context.Background(), "42", "halo")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestParseTextBackendFailure(t *testing.T) {
	t.Run("non-success response", func(t *testing.T) {
		fake := &fakeBackend{t: t, scriptResp: map[string]any{"success": false, "error": "quota"}}
		client := newFakeClient(t, fake)

		_, err := client.ParseText(context.Background(), "42", "x")
		assert.ErrorIs(t, err, ErrBackend)
	})

	t.Run("http error status", func(t *testing.T) {
		fake := &fakeBackend{t: t, scriptCode: http.StatusBadGateway}
		client := newFakeClient(t, fake)

		_, err := client.ParseText(context.Background(), "42", "x")
		assert.ErrorIs(t, err, ErrBackend)
	})
}

func TestParseTextNotRegistered(t *testing.T) {
	fake := &fakeBackend{t: t}
	admin := httptest.NewServer(http.HandlerFunc(fake.adminHandler))
	t.Cleanup(admin.Close)
	client := NewClient(admin.URL, discardLogger())

	_, err := client.ParseText(context.Background(), "42", "x")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestSaveTransaction(t *testing.T) {
	fake := &fakeBackend{t: t, scriptResp: map[string]any{"success": true}}
	client := newFakeClient(t, fake)

	err := client.SaveTransaction(context.Background(), "42", &api.Transaction{Title: "Kopi", Amount: 25000})
	require.NoError(t, err)
	assert.Equal(t, "save_transaction", fake.lastAction)
}

func TestCategoriesSortedKeys(t *testing.T) {
	fake := &fakeBackend{t: t, scriptResp: map[string]any{
		"success": true,
		"categories": map[string]any{
			"Transport": map[string]any{}, "Food": map[string]any{}, "Bills": map[string]any{},
		},
	}}
	client := newFakeClient(t, fake)

	names, err := client.Categories(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bills", "Food", "Transport"}, names)
}

func TestAccounts(t *testing.T) {
	fake := &fakeBackend{t: t, scriptResp: map[string]any{
		"success":  true,
		"accounts": []string{"Cash", "BCA", "SeaBank"},
	}}
	client := newFakeClient(t, fake)

	accounts, err := client.Accounts(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cash", "BCA", "SeaBank"}, accounts)
}

func TestCheckAuthorized(t *testing.T) {
	fake := &fakeBackend{t: t, authorized: true}
	client := newFakeClient(t, fake)
	assert.True(t, client.CheckAuthorized(context.Background(), "42"))

	fake.authorized = false
	assert.False(t, client.CheckAuthorized(context.Background(), "42"))
}

func TestCheckAuthorizedFailsClosed(t *testing.T) {
	client := NewClient("", discardLogger())
	assert.False(t, client.CheckAuthorized(context.Background(), "42"))
}

func TestWebhookURLCached(t *testing.T) {
	calls := 0
	admin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"webhookUrl": "https://script.example/exec"})
	}))
	t.Cleanup(admin.Close)
	client := NewClient(admin.URL, discardLogger())

	for i := 0; i < 3; i++ {
		got, err := client.WebhookURL(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, "https://script.example/exec", got)
	}
	assert.Equal(t, 1, calls)
}

func TestSetWebhookURLUpdatesCache(t *testing.T) {
	fake := &fakeBackend{t: t}
	client := newFakeClient(t, fake)

	require.NoError(t, client.SetWebhookURL(context.Background(), "42", "https://script.example/v2"))
	assert.Equal(t, "update_webhook", fake.lastAction)

	// Served from cache, not the registry (which still has the old URL).
	got, err := client.WebhookURL(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "https://script.example/v2", got)
}

func TestListUsers(t *testing.T) {
	fake := &fakeBackend{t: t}
	client := newFakeClient(t, fake)

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "danu", users[0].Username)
}
