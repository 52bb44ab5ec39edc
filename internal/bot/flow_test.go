package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danuarif/duitbot/internal/gas"
	"github.com/danuarif/duitbot/internal/session"
	"github.com/danuarif/duitbot/pkg/api"
)

type fakeBackend struct {
	parseTx    *api.Transaction
	parseErr   error
	saveErr    error
	saved      []*api.Transaction
	categories []string
	catErr     error
	accounts   []string
	accErr     error
}

func (f *fakeBackend) ParseText(_ context.Context, _, _ string) (*api.Transaction, error) {
	return f.parseTx, f.parseErr
}

func (f *fakeBackend) SaveTransaction(_ context.Context, _ string, tx *api.Transaction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, tx)
	return nil
}

func (f *fakeBackend) Categories(_ context.Context, _ string) ([]string, error) {
	return f.categories, f.catErr
}

func (f *fakeBackend) Accounts(_ context.Context, _ string) ([]string, error) {
	return f.accounts, f.accErr
}

func newTestFlow(backend *fakeBackend) *Flow {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	flow := NewFlow(session.NewStore(), backend, time.UTC, logger)
	flow.now = func() time.Time {
		return time.Date(2026, 1, 15, 9, 41, 0, 0, time.UTC)
	}
	return flow
}

func expense() *api.Transaction {
	return &api.Transaction{
		Title:    "Kabel Data USB-C",
		Amount:   60471,
		IsIncome: false,
		Account:  "SeaBank",
		Category: "Shopee",
	}
}

func TestBeginMovesToAwaitingConfirmation(t *testing.T) {
	flow := newTestFlow(&fakeBackend{})

	assert.Equal(t, session.Idle, flow.State("u1"))
	require.NoError(t, flow.Begin("u1", expense(), ""))
	assert.Equal(t, session.AwaitingConfirmation, flow.State("u1"))
}

func TestBeginRejectsIncompleteRecord(t *testing.T) {
	flow := newTestFlow(&fakeBackend{})

	assert.Error(t, flow.Begin("u1", &api.Transaction{Title: "Kopi"}, ""))
	assert.Equal(t, session.Idle, flow.State("u1"))
}

func TestBeginReplacesPriorSession(t *testing.T) {
	flow := newTestFlow(&fakeBackend{})

	require.NoError(t, flow.Begin("u1", expense(), ""))
	replacement := &api.Transaction{Title: "Kebab", Amount: 10000, Account: "Cash"}
	require.NoError(t, flow.Begin("u1", replacement, "beli kebab 10k"))

	pending := flow.Pending("u1")
	require.NotNil(t, pending)
	assert.Equal(t, "Kebab", pending.Title)
	assert.Equal(t, int64(10000), pending.Amount)
}

func TestOptionsFailureLeavesStateUnchanged(t *testing.T) {
	backend := &fakeBackend{catErr: fmt.Errorf("%w: timeout", gas.ErrBackend)}
	flow := newTestFlow(backend)
	require.NoError(t, flow.Begin("u1", expense(), ""))

	_, err := flow.Options(context.Background(), "u1", FieldCategory)
	assert.ErrorIs(t, err, gas.ErrBackend)
	assert.Equal(t, session.AwaitingConfirmation, flow.State("u1"))
}

func TestOptionsMovesToAwaitingCorrection(t *testing.T) {
	backend := &fakeBackend{categories: []string{"Food", "Transport"}}
	flow := newTestFlow(backend)
	require.NoError(t, flow.Begin("u1", expense(), ""))

	options, err := flow.Options(context.Background(), "u1", FieldCategory)
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Transport"}, options)
	assert.Equal(t, session.AwaitingCorrection, flow.State("u1"))
}

func TestOptionsCappedAtTwelve(t *testing.T) {
	var many []string
	for i := 0; i < 30; i++ {
		many = append(many, fmt.Sprintf("Account %d", i))
	}
	flow := newTestFlow(&fakeBackend{accounts: many})
	require.NoError(t, flow.Begin("u1", expense(), ""))

	options, err := flow.Options(context.Background(), "u1", FieldAccount)
	require.NoError(t, err)
	assert.Len(t, options, maxOptions)
	assert.Equal(t, many[:maxOptions], options)
}

func TestSelectUpdatesOnlyThatField(t *testing.T) {
	flow := newTestFlow(&fakeBackend{categories: []string{"Food"}})
	require.NoError(t, flow.Begin("u1", expense(), ""))
	_, err := flow.Options(context.Background(), "u1", FieldCategory)
	require.NoError(t, err)

	tx, err := flow.Select("u1", FieldCategory, "Food")
	require.NoError(t, err)

	assert.Equal(t, "Food", tx.Category)
	assert.Equal(t, "Kabel Data USB-C", tx.Title)
	assert.Equal(t, int64(60471), tx.Amount)
	assert.Equal(t, "SeaBank", tx.Account)
	assert.Equal(t, session.AwaitingConfirmation, flow.State("u1"))
}

func TestConfirmBackendFailurePreservesSession(t *testing.T) {
	backend := &fakeBackend{saveErr: fmt.Errorf("%w: no response", gas.ErrBackend)}
	flow := newTestFlow(backend)
	require.NoError(t, flow.Begin("u1", expense(), ""))

	_, err := flow.Confirm(context.Background(), "u1")
	assert.ErrorIs(t, err, gas.ErrBackend)
	assert.Equal(t, session.AwaitingConfirmation, flow.State("u1"))
	assert.NotNil(t, flow.Pending("u1"))

	// The user retries after the backend recovers.
	backend.saveErr = nil
	result, err := flow.Confirm(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, session.Idle, flow.State("u1"))
}

func TestConfirmSuccessClearsSessionAndBuildsDeepLink(t *testing.T) {
	backend := &fakeBackend{}
	flow := newTestFlow(backend)
	require.NoError(t, flow.Begin("u1", expense(), ""))

	result, err := flow.Confirm(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, backend.saved, 1)
	assert.Equal(t, session.Idle, flow.State("u1"))

	parsed, err := url.Parse(result.DeepLink)
	require.NoError(t, err)
	assert.Equal(t, "-60471", parsed.Query().Get("amount"))

	// No date on the record: the confirm timestamp fills in.
	assert.True(t, strings.HasPrefix(parsed.Query().Get("date"), "2026-01-15"))
}

func TestConfirmIncomeDeepLinkPositive(t *testing.T) {
	flow := newTestFlow(&fakeBackend{})
	income := &api.Transaction{Title: "Gaji", Amount: 4000000, IsIncome: true, Account: "Mandiri"}
	require.NoError(t, flow.Begin("u1", income, ""))

	result, err := flow.Confirm(context.Background(), "u1")
	require.NoError(t, err)

	parsed, err := url.Parse(result.DeepLink)
	require.NoError(t, err)
	assert.Equal(t, "4000000", parsed.Query().Get("amount"))
}

func TestReconfirmAfterClearIsNoOp(t *testing.T) {
	backend := &fakeBackend{}
	flow := newTestFlow(backend)
	require.NoError(t, flow.Begin("u1", expense(), ""))

	_, err := flow.Confirm(context.Background(), "u1")
	require.NoError(t, err)

	// Stale button press: nothing pending, no duplicate save.
	_, err = flow.Confirm(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNothingPending)
	assert.Len(t, backend.saved, 1)
}

func TestCancelClearsFromAnySubState(t *testing.T) {
	flow := newTestFlow(&fakeBackend{categories: []string{"Food"}})
	require.NoError(t, flow.Begin("u1", expense(), ""))
	_, err := flow.Options(context.Background(), "u1", FieldCategory)
	require.NoError(t, err)
	require.Equal(t, session.AwaitingCorrection, flow.State("u1"))

	assert.True(t, flow.Cancel("u1"))
	assert.Equal(t, session.Idle, flow.State("u1"))
	assert.False(t, flow.Cancel("u1"))
}

func TestActionsWhileIdle(t *testing.T) {
	flow := newTestFlow(&fakeBackend{categories: []string{"Food"}})

	_, err := flow.Options(context.Background(), "u1", FieldCategory)
	assert.ErrorIs(t, err, ErrNothingPending)

	_, err = flow.Select("u1", FieldCategory, "Food")
	assert.ErrorIs(t, err, ErrNothingPending)

	_, err = flow.Back("u1")
	assert.ErrorIs(t, err, ErrNothingPending)
}

func TestParseTextStagesSession(t *testing.T) {
	backend := &fakeBackend{parseTx: &api.Transaction{Title: "Kebab", Amount: 10000, Account: "Cash"}}
	flow := newTestFlow(backend)

	tx, err := flow.ParseText(context.Background(), "u1", "beli kebab 10k cash")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, session.AwaitingConfirmation, flow.State("u1"))
}

func TestParseTextDefinitiveEmpty(t *testing.T) {
	flow := newTestFlow(&fakeBackend{})

	tx, err := flow.ParseText(context.Background(), "u1", "halo bot")
	require.NoError(t, err)
	assert.Nil(t, tx)
	assert.Equal(t, session.Idle, flow.State("u1"))
}

func TestParseTextErrorPropagates(t *testing.T) {
	flow := newTestFlow(&fakeBackend{parseErr: gas.ErrNotRegistered})

	_, err := flow.ParseText(context.Background(), "u1", "beli kebab")
	assert.True(t, errors.Is(err, gas.ErrNotRegistered))
}

type recordingSink struct {
	records []string
}

func (r *recordingSink) Record(_ context.Context, userID, source string, tx *api.Transaction) {
	r.records = append(r.records, userID+"/"+source+"/"+tx.Title)
}

func TestConfirmMirrorsSaveToRecorder(t *testing.T) {
	flow := newTestFlow(&fakeBackend{})
	sink := &recordingSink{}
	flow.SetRecorder(sink)
	require.NoError(t, flow.Begin("u1", expense(), ""))

	_, err := flow.Confirm(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1/telegram/Kabel Data USB-C"}, sink.records)
}

func TestUsersDoNotInteract(t *testing.T) {
	flow := newTestFlow(&fakeBackend{})
	require.NoError(t, flow.Begin("u1", expense(), ""))
	require.NoError(t, flow.Begin("u2", &api.Transaction{Title: "Bensin", Amount: 50000}, ""))

	flow.Cancel("u1")

	assert.Equal(t, session.Idle, flow.State("u1"))
	assert.Equal(t, session.AwaitingConfirmation, flow.State("u2"))
}
