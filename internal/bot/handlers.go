package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/danuarif/duitbot/internal/auth"
	"github.com/danuarif/duitbot/internal/gas"
)

// authorized checks the registry per request and replies with a denial
// when the user is not allowed. Authorization is never cached here.
func (b *Bot) authorized(c tele.Context) bool {
	if b.gas.CheckAuthorized(context.Background(), userID(c)) {
		return true
	}
	_ = c.Reply("❌ Unauthorized. Contact admin for access.")
	return false
}

func (b *Bot) onStart(c tele.Context) error {
	if !b.gas.CheckAuthorized(context.Background(), userID(c)) {
		return c.Reply(
			"❌ *Unauthorized*\n\n"+
				"You are not registered to use this bot.\n"+
				"Please contact the admin to get access.",
			tele.ModeMarkdown)
	}

	return c.Reply(
		"🎉 *Welcome to Finance Tracker Bot!*\n\n"+
			"How to use:\n"+
			"1. Send transaction text: 'beli kebab 10k cash'\n"+
			"2. Confirm, or fix the category/account first\n\n"+
			"Commands:\n"+
			"/help - Show help\n"+
			"/status - Check your subscription\n"+
			"/setup - Setup your Google Apps Script",
		tele.ModeMarkdown)
}

func (b *Bot) onHelp(c tele.Context) error {
	if !b.authorized(c) {
		return nil
	}

	help := `📖 *Finance Tracker Bot Help*

*Text Input:*
- 'beli kebab 10k cash'
- 'gajian 4jt mandiri'
- 'transfer BCA ke Cash 400rb'

*Commands:*
/status - Check subscription status
/setup - Setup instructions
/mykey - Get your API key
/setwebhook - Connect your Apps Script
`
	if b.isAdmin(userID(c)) {
		help += `
*Admin Commands:*
/adduser [user_id] [username] [days] - Add user
/removeuser [user_id] - Remove user
/extenduser [user_id] [days] - Extend subscription
/listusers - List all users
`
	}
	return c.Reply(help, tele.ModeMarkdown)
}

func (b *Bot) onStatus(c tele.Context) error {
	info, err := b.gas.UserInfo(context.Background(), userID(c))
	if err != nil {
		return c.Reply("❌ Error checking status")
	}
	if info == nil {
		return c.Reply("❌ User not found in system")
	}

	statusEmoji := "❌"
	if info.Status == "Active" {
		statusEmoji = "✅"
	}

	return c.Reply(fmt.Sprintf(
		"📊 *Your Subscription Status*\n\n"+
			"*Status:* %s %s\n"+
			"*Tier:* %s\n"+
			"*Expires:* %s\n"+
			"*Registered:* %s",
		statusEmoji, orDash(info.Status), orDash(info.Tier),
		orDash(info.ExpiredDate), orDash(info.RegistrationDate)),
		tele.ModeMarkdown)
}

func (b *Bot) onSetup(c tele.Context) error {
	if !b.authorized(c) {
		return nil
	}

	id := userID(c)
	apiKey := auth.APIKey(b.parserSecret, id)

	return c.Reply(fmt.Sprintf(
		"⚙️ *Setup Instructions*\n\n"+
			"1. Create a Google Spreadsheet\n"+
			"2. Open Apps Script (Extensions > Apps Script)\n"+
			"3. Copy the Code.gs from the setup guide\n"+
			"4. Set your Script Properties:\n"+
			"   - `TELEGRAM_USER_ID`: `%s`\n"+
			"   - `API_KEY`: `%s`\n"+
			"   - `GEMINI_API_KEY`: Your Gemini API key\n"+
			"   - `SPREADSHEET_ID`: Your spreadsheet ID\n"+
			"5. Deploy as Web App\n"+
			"6. Run /setwebhook [your_webapp_url]",
		id, apiKey), tele.ModeMarkdown)
}

func (b *Bot) onMyKey(c tele.Context) error {
	if !b.authorized(c) {
		return nil
	}

	apiKey := auth.APIKey(b.parserSecret, userID(c))
	return c.Reply(fmt.Sprintf(
		"🔑 *Your API Key*\n\n`%s`\n\nUse this in your Google Apps Script configuration.",
		apiKey), tele.ModeMarkdown)
}

func (b *Bot) onSetWebhook(c tele.Context) error {
	if !b.authorized(c) {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply(
			"❌ Please provide your GAS Web App URL\n\n" +
				"Usage: /setwebhook https://script.google.com/macros/s/xxx/exec")
	}

	webhookURL := strings.TrimSpace(args[0])
	if !strings.HasPrefix(webhookURL, "https://script.google.com/") {
		return c.Reply("❌ Invalid URL. Must be a Google Apps Script Web App URL.")
	}

	if err := b.gas.SetWebhookURL(context.Background(), userID(c), webhookURL); err != nil {
		return c.Reply("❌ Failed to update webhook URL")
	}

	return c.Reply(
		"✅ *Webhook URL Updated!*\n\n"+
			"Your Google Apps Script is now connected.\n"+
			"Email transactions will be processed automatically.",
		tele.ModeMarkdown)
}

// onText routes any non-command message through the backend's free-text
// parser and stages the result for confirmation.
func (b *Bot) onText(c tele.Context) error {
	if !b.authorized(c) {
		return nil
	}

	id := userID(c)
	text := strings.TrimSpace(c.Text())

	_ = c.Notify(tele.Typing)

	tx, err := b.flow.ParseText(context.Background(), id, text)
	switch {
	case errors.Is(err, gas.ErrNotRegistered):
		return c.Reply(
			"⚠️ *Setup Required*\n\n"+
				"You haven't configured your Google Apps Script yet.\n"+
				"Run /setup for instructions.",
			tele.ModeMarkdown)
	case err != nil:
		return c.Reply(fmt.Sprintf("❌ Error: %s", backendErrorText(err)))
	case tx == nil:
		return c.Reply("❌ Could not parse transaction. Please try again.")
	}

	return c.Send(confirmationText(tx), confirmKeyboard(), tele.ModeMarkdown)
}

func orDash(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// backendErrorText strips the wrap prefix for user display.
func backendErrorText(err error) string {
	msg := err.Error()
	return strings.TrimPrefix(msg, gas.ErrBackend.Error()+": ")
}
