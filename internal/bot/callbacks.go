package bot

import (
	"context"
	"errors"

	tele "gopkg.in/telebot.v3"
)

// callbackAuthorized answers the callback with a denial instead of
// replying in-channel.
func (b *Bot) callbackAuthorized(c tele.Context) bool {
	if b.gas.CheckAuthorized(context.Background(), userID(c)) {
		return true
	}
	_ = c.Respond(&tele.CallbackResponse{Text: "❌ Unauthorized"})
	return false
}

func (b *Bot) onConfirm(c tele.Context) error {
	if !b.callbackAuthorized(c) {
		return nil
	}

	result, err := b.flow.Confirm(context.Background(), userID(c))
	switch {
	case errors.Is(err, ErrNothingPending):
		return c.Respond(&tele.CallbackResponse{Text: "❌ No pending transaction"})
	case err != nil:
		// Session survives; the user may press Confirm again.
		return c.Respond(&tele.CallbackResponse{Text: "❌ Failed to save transaction"})
	}

	return c.Edit(savedText(result.Transaction), deeplinkKeyboard(result.DeepLink), tele.ModeMarkdown)
}

func (b *Bot) onCancel(c tele.Context) error {
	if !b.callbackAuthorized(c) {
		return nil
	}

	b.flow.Cancel(userID(c))
	if err := c.Edit("❌ Transaction cancelled"); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{})
}

// onChange opens the correction menu for a field. A backend failure
// leaves the confirmation view and the flow state untouched.
func (b *Bot) onChange(field Field) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !b.callbackAuthorized(c) {
			return nil
		}

		options, err := b.flow.Options(context.Background(), userID(c), field)
		switch {
		case errors.Is(err, ErrNothingPending):
			return c.Respond(&tele.CallbackResponse{Text: "❌ No pending transaction"})
		case err != nil:
			return c.Respond(&tele.CallbackResponse{Text: "❌ Could not load " + field.String() + " options"})
		}

		// Passing only the markup swaps the keyboard in place; the
		// rendered confirmation text and its formatting stay as sent.
		return c.Edit(optionsKeyboard(field, options))
	}
}

// onSelect applies the chosen option and re-renders the confirmation
// view in place of the menu.
func (b *Bot) onSelect(field Field) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !b.callbackAuthorized(c) {
			return nil
		}

		value := c.Data()
		tx, err := b.flow.Select(userID(c), field, value)
		if errors.Is(err, ErrNothingPending) {
			return c.Respond(&tele.CallbackResponse{Text: "❌ No pending transaction"})
		}

		if err := c.Edit(confirmationText(tx), confirmKeyboard(), tele.ModeMarkdown); err != nil {
			return err
		}
		return c.Respond(&tele.CallbackResponse{Text: field.String() + ": " + value})
	}
}

func (b *Bot) onBack(c tele.Context) error {
	if !b.callbackAuthorized(c) {
		return nil
	}

	tx, err := b.flow.Back(userID(c))
	if errors.Is(err, ErrNothingPending) {
		return c.Respond(&tele.CallbackResponse{Text: "❌ No pending transaction"})
	}

	return c.Edit(confirmationText(tx), confirmKeyboard(), tele.ModeMarkdown)
}
