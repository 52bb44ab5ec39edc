package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	tele "gopkg.in/telebot.v3"

	"github.com/danuarif/duitbot/internal/gas"
	"github.com/danuarif/duitbot/pkg/api"
	"github.com/danuarif/duitbot/pkg/config"
)

// Bot wires the confirmation flow and the backend registry onto the
// Telegram transport.
type Bot struct {
	tb           *tele.Bot
	flow         *Flow
	gas          *gas.Client
	parserSecret []byte
	admins       map[string]struct{}
	loc          *time.Location
	logger       *slog.Logger
}

// New creates the bot and registers all command and callback routes.
func New(cfg config.Config, flow *Flow, gasClient *gas.Client, loc *time.Location, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.TelegramToken,
		Poller: &tele.LongPoller{Timeout: 60 * time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Error("telegram handler error", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	admins := make(map[string]struct{})
	for _, id := range cfg.AdminIDs() {
		admins[id] = struct{}{}
	}

	b := &Bot{
		tb:           tb,
		flow:         flow,
		gas:          gasClient,
		parserSecret: []byte(cfg.ParserSecret),
		admins:       admins,
		loc:          loc,
		logger:       logger,
	}
	b.routes()
	return b, nil
}

func (b *Bot) routes() {
	b.tb.Handle("/start", b.onStart)
	b.tb.Handle("/help", b.onHelp)
	b.tb.Handle("/status", b.onStatus)
	b.tb.Handle("/setup", b.onSetup)
	b.tb.Handle("/mykey", b.onMyKey)
	b.tb.Handle("/setwebhook", b.onSetWebhook)

	b.tb.Handle("/adduser", b.onAddUser)
	b.tb.Handle("/removeuser", b.onRemoveUser)
	b.tb.Handle("/extenduser", b.onExtendUser)
	b.tb.Handle("/listusers", b.onListUsers)

	b.tb.Handle(tele.OnText, b.onText)

	b.tb.Handle(&tele.Btn{Unique: "confirm_tx"}, b.onConfirm)
	b.tb.Handle(&tele.Btn{Unique: "cancel_tx"}, b.onCancel)
	b.tb.Handle(&tele.Btn{Unique: "change_cat"}, b.onChange(FieldCategory))
	b.tb.Handle(&tele.Btn{Unique: "change_acc"}, b.onChange(FieldAccount))
	b.tb.Handle(&tele.Btn{Unique: "select_cat"}, b.onSelect(FieldCategory))
	b.tb.Handle(&tele.Btn{Unique: "select_acc"}, b.onSelect(FieldAccount))
	b.tb.Handle(&tele.Btn{Unique: "back_confirm"}, b.onBack)
}

// Start begins long polling and blocks until Stop.
func (b *Bot) Start() {
	b.logger.Info("telegram polling started")
	b.tb.Start()
}

// Stop halts the poller.
func (b *Bot) Stop() {
	b.tb.Stop()
}

func userID(c tele.Context) string {
	return strconv.FormatInt(c.Sender().ID, 10)
}

func (b *Bot) isAdmin(id string) bool {
	_, ok := b.admins[id]
	return ok
}

// send delivers a message, retrying once on Telegram flood limits only.
// Other transport errors surface immediately.
func (b *Bot) send(to tele.Recipient, what interface{}, opts ...interface{}) error {
	return retry.Do(
		func() error {
			_, err := b.tb.Send(to, what, opts...)
			return err
		},
		retry.RetryIf(func(err error) bool {
			var flood tele.FloodError
			return errors.As(err, &flood)
		}),
		retry.Attempts(2),
		retry.Delay(3*time.Second),
		retry.LastErrorOnly(true),
	)
}

// NotifyEmailTransaction stages an extracted email transaction for
// confirmation and sends the review message to the user. Called by the
// inbound transaction webhook.
func (b *Bot) NotifyEmailTransaction(ctx context.Context, id string, tx *api.Transaction) error {
	if err := b.flow.Begin(id, tx, ""); err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", id, err)
	}

	text := emailText(tx, time.Now().In(b.loc))
	if err := b.send(&tele.User{ID: chatID}, text, confirmKeyboard(), tele.ModeMarkdown); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}

	b.logger.Info("email transaction sent", "user_id", id, "title", tx.Title)
	return nil
}

// confirmKeyboard is the review keyboard under a pending transaction.
func confirmKeyboard() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(
		m.Row(m.Data("✅ Confirm", "confirm_tx"), m.Data("❌ Cancel", "cancel_tx")),
		m.Row(m.Data("🔄 Change Category", "change_cat"), m.Data("🔄 Change Account", "change_acc")),
	)
	return m
}

// optionsKeyboard lays out a correction menu, three options per row.
func optionsKeyboard(field Field, options []string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}

	unique := "select_cat"
	if field == FieldAccount {
		unique = "select_acc"
	}

	btns := make([]tele.Btn, 0, len(options))
	for _, opt := range options {
		btns = append(btns, m.Data(opt, unique, opt))
	}

	rows := m.Split(3, btns)
	rows = append(rows, m.Row(m.Data("↩️ Back", "back_confirm")))
	m.Inline(rows...)
	return m
}

// deeplinkKeyboard carries the single post-save action.
func deeplinkKeyboard(link string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.URL("📱 Open in Cashew", link)))
	return m
}
