// Package bot implements the Telegram-facing side of duitbot: the
// per-user confirmation flow, message rendering, and command handling.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danuarif/duitbot/internal/deeplink"
	"github.com/danuarif/duitbot/internal/session"
	"github.com/danuarif/duitbot/pkg/api"
)

// Backend is the slice of the remote script surface the confirmation
// flow needs.
type Backend interface {
	ParseText(ctx context.Context, userID, text string) (*api.Transaction, error)
	SaveTransaction(ctx context.Context, userID string, tx *api.Transaction) error
	Categories(ctx context.Context, userID string) ([]string, error)
	Accounts(ctx context.Context, userID string) ([]string, error)
}

// Recorder mirrors confirmed saves into an audit store. Implementations
// must tolerate failure internally; Confirm never waits on them.
type Recorder interface {
	Record(ctx context.Context, userID, source string, tx *api.Transaction)
}

// ErrNothingPending is returned for any flow action while the user is
// Idle, e.g. a stale button on an already-resolved message.
var ErrNothingPending = errors.New("bot: no pending transaction")

// maxOptions bounds correction menus for compact display.
const maxOptions = 12

// Field selects which transaction field a correction edits.
type Field int

const (
	FieldCategory Field = iota
	FieldAccount
)

func (f Field) String() string {
	if f == FieldAccount {
		return "account"
	}
	return "category"
}

// Flow is the per-user confirmation state machine. Every method takes
// the user's event lock, so events for one user never interleave while
// different users proceed concurrently.
type Flow struct {
	sessions *session.Store
	backend  Backend
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
	recorder Recorder
}

// SetRecorder attaches an audit recorder for confirmed saves.
func (f *Flow) SetRecorder(r Recorder) {
	f.recorder = r
}

// NewFlow creates the confirmation flow.
func NewFlow(sessions *session.Store, backend Backend, loc *time.Location, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Flow{
		sessions: sessions,
		backend:  backend,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
	}
}

// Begin installs a complete record as the user's pending transaction,
// replacing any prior session outright, and moves the user to
// AwaitingConfirmation.
func (f *Flow) Begin(userID string, tx *api.Transaction, originalText string) error {
	if !tx.Complete() {
		return fmt.Errorf("bot: refusing to stage incomplete transaction")
	}

	unlock := f.sessions.Lock(userID)
	defer unlock()

	f.sessions.Put(&session.Session{
		UserID:       userID,
		Transaction:  tx,
		OriginalText: originalText,
		State:        session.AwaitingConfirmation,
	})
	return nil
}

// ParseText sends free text to the backend parser and stages any
// complete result as the pending transaction. A nil transaction with
// nil error means the parser definitively found nothing.
func (f *Flow) ParseText(ctx context.Context, userID, text string) (*api.Transaction, error) {
	tx, err := f.backend.ParseText(ctx, userID, text)
	if err != nil {
		return nil, err
	}
	if !tx.Complete() {
		return nil, nil
	}
	if err := f.Begin(userID, tx, text); err != nil {
		return nil, err
	}
	return tx, nil
}

// Pending returns the user's pending transaction, or nil when Idle.
func (f *Flow) Pending(userID string) *api.Transaction {
	if sess := f.sessions.Get(userID); sess != nil {
		return sess.Transaction
	}
	return nil
}

// ConfirmResult reports the outcome of a confirmation attempt.
type ConfirmResult struct {
	Transaction *api.Transaction
	DeepLink    string
}

// Confirm saves the pending transaction through the backend. Success
// clears the session and yields the deep link; any backend failure
// leaves the session untouched so the user can retry. A Confirm while
// Idle is a no-op reporting ErrNothingPending, never a duplicate save.
func (f *Flow) Confirm(ctx context.Context, userID string) (*ConfirmResult, error) {
	unlock := f.sessions.Lock(userID)
	defer unlock()

	sess := f.sessions.Get(userID)
	if sess == nil {
		return nil, ErrNothingPending
	}

	tx := sess.Transaction
	if err := f.backend.SaveTransaction(ctx, userID, tx); err != nil {
		f.logger.Warn("save failed, session preserved", "user_id", userID, "error", err)
		return nil, err
	}

	f.sessions.Delete(userID)

	if tx.Date == "" {
		now := f.now().In(f.loc)
		tx.Date = now.Format("02/01/2006")
		tx.Time = now.Format("15:04:05")
	}

	if f.recorder != nil {
		f.recorder.Record(ctx, userID, "telegram", tx)
	}

	f.logger.Info("transaction saved", "user_id", userID, "title", tx.Title, "amount", tx.Amount)
	return &ConfirmResult{Transaction: tx, DeepLink: deeplink.Build(tx)}, nil
}

// Cancel clears the session unconditionally, regardless of sub-state,
// and reports whether there was anything to cancel.
func (f *Flow) Cancel(userID string) bool {
	unlock := f.sessions.Lock(userID)
	defer unlock()

	return f.sessions.Delete(userID)
}

// Options fetches the selection list for a correction and moves the
// user to AwaitingCorrection. A fetch failure surfaces the error and
// leaves the state unchanged. The list is capped at maxOptions.
func (f *Flow) Options(ctx context.Context, userID string, field Field) ([]string, error) {
	unlock := f.sessions.Lock(userID)
	defer unlock()

	sess := f.sessions.Get(userID)
	if sess == nil {
		return nil, ErrNothingPending
	}

	var (
		options []string
		err     error
	)
	if field == FieldAccount {
		options, err = f.backend.Accounts(ctx, userID)
	} else {
		options, err = f.backend.Categories(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	if len(options) > maxOptions {
		options = options[:maxOptions]
	}

	sess.State = session.AwaitingCorrection
	return options, nil
}

// Select applies a chosen option to the pending transaction and
// returns to AwaitingConfirmation. All other fields are untouched.
func (f *Flow) Select(userID string, field Field, value string) (*api.Transaction, error) {
	unlock := f.sessions.Lock(userID)
	defer unlock()

	sess := f.sessions.Get(userID)
	if sess == nil {
		return nil, ErrNothingPending
	}

	if field == FieldAccount {
		sess.Transaction.Account = value
	} else {
		sess.Transaction.Category = value
	}
	sess.State = session.AwaitingConfirmation
	return sess.Transaction, nil
}

// Back abandons a correction menu and returns to AwaitingConfirmation
// without changing the transaction.
func (f *Flow) Back(userID string) (*api.Transaction, error) {
	unlock := f.sessions.Lock(userID)
	defer unlock()

	sess := f.sessions.Get(userID)
	if sess == nil {
		return nil, ErrNothingPending
	}
	sess.State = session.AwaitingConfirmation
	return sess.Transaction, nil
}

// State exposes the user's flow state.
func (f *Flow) State(userID string) session.State {
	return f.sessions.StateOf(userID)
}
