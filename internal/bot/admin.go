package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/danuarif/duitbot/internal/auth"
)

// listUsersLimit caps the rows listed in one message.
const listUsersLimit = 20

func (b *Bot) adminOnly(c tele.Context) bool {
	if b.isAdmin(userID(c)) {
		return true
	}
	_ = c.Reply("❌ Admin only command")
	return false
}

func (b *Bot) onAddUser(c tele.Context) error {
	if !b.adminOnly(c) {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply(
			"Usage: /adduser [user_id] [username] [days]\n" +
				"Example: /adduser 123456789 john_doe 30")
	}

	id, username := args[0], args[1]
	days := 30
	if len(args) > 2 {
		parsed, err := strconv.Atoi(args[2])
		if err != nil {
			return c.Reply("❌ days must be a number")
		}
		days = parsed
	}

	if err := b.gas.AddUser(context.Background(), id, username, days); err != nil {
		b.logger.Error("add user failed", "user_id", id, "error", err)
		return c.Reply("❌ Failed to add user")
	}

	apiKey := auth.APIKey(b.parserSecret, id)
	return c.Reply(fmt.Sprintf(
		"✅ *User Added*\n\n"+
			"*User ID:* %s\n"+
			"*Username:* %s\n"+
			"*Duration:* %d days\n"+
			"*API Key:* `%s`",
		id, username, days, apiKey), tele.ModeMarkdown)
}

func (b *Bot) onRemoveUser(c tele.Context) error {
	if !b.adminOnly(c) {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("Usage: /removeuser [user_id]")
	}

	id := args[0]
	if err := b.gas.RemoveUser(context.Background(), id); err != nil {
		b.logger.Error("remove user failed", "user_id", id, "error", err)
		return c.Reply("❌ Failed to remove user")
	}
	return c.Reply(fmt.Sprintf("✅ User %s removed", id))
}

func (b *Bot) onExtendUser(c tele.Context) error {
	if !b.adminOnly(c) {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("Usage: /extenduser [user_id] [days]")
	}

	id := args[0]
	days := 30
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return c.Reply("❌ days must be a number")
		}
		days = parsed
	}

	if err := b.gas.ExtendUser(context.Background(), id, days); err != nil {
		b.logger.Error("extend user failed", "user_id", id, "error", err)
		return c.Reply("❌ Failed to extend subscription")
	}
	return c.Reply(fmt.Sprintf("✅ User %s extended by %d days", id, days))
}

func (b *Bot) onListUsers(c tele.Context) error {
	if !b.adminOnly(c) {
		return nil
	}

	users, err := b.gas.ListUsers(context.Background())
	if err != nil {
		b.logger.Error("list users failed", "error", err)
		return c.Reply("❌ Failed to get users")
	}
	if len(users) == 0 {
		return c.Reply("📋 No users registered")
	}

	var msg strings.Builder
	msg.WriteString("📋 *Registered Users*\n\n")
	for i, user := range users {
		if i == listUsersLimit {
			fmt.Fprintf(&msg, "\n... and %d more", len(users)-listUsersLimit)
			break
		}
		statusEmoji := "❌"
		if user.Status == "Active" {
			statusEmoji = "✅"
		}
		username := user.Username
		if username == "" {
			username = "N/A"
		}
		fmt.Fprintf(&msg, "%s `%s` - %s\n", statusEmoji, user.UserID, username)
	}

	return c.Reply(msg.String(), tele.ModeMarkdown)
}
