package bot

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/danuarif/duitbot/pkg/api"
)

// rupiahPrinter renders integers with Indonesian digit grouping
// (dots every three digits).
var rupiahPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount like "Rp 60.471". The sign is dropped;
// income/expense direction is conveyed separately.
func FormatRupiah(amount int64) string {
	if amount < 0 {
		amount = -amount
	}
	return rupiahPrinter.Sprintf("Rp %d", amount)
}

// FormatDate renders "02/01/2026 09:41:00" as "02 Jan 2026 09:41:00";
// anything unparseable passes through.
func FormatDate(s string) string {
	parsed, err := time.Parse("02/01/2006 15:04:05", s)
	if err != nil {
		return s
	}
	return parsed.Format("02 Jan 2006 15:04:05")
}

// confirmationText is the review view shown before confirm/cancel.
func confirmationText(tx *api.Transaction) string {
	kind := "Expense"
	if tx.IsIncome {
		kind = "Income"
	}

	var b strings.Builder
	b.WriteString("📝 *Transaction Details*\n\n")
	fmt.Fprintf(&b, "*Title:* %s\n", tx.Title)
	fmt.Fprintf(&b, "*Amount:* %s\n", FormatRupiah(tx.Amount))
	fmt.Fprintf(&b, "*Type:* %s\n", kind)
	fmt.Fprintf(&b, "*Account:* %s\n", tx.Account)
	if tx.Category != "" {
		fmt.Fprintf(&b, "*Category:* %s\n", tx.Category)
	}
	if tx.Subcategory != "" {
		fmt.Fprintf(&b, "*Subcategory:* %s\n", tx.Subcategory)
	}
	return b.String()
}

// emailText is the notification for a transaction detected in email.
// fallback supplies the timestamp when the email carried none.
func emailText(tx *api.Transaction, fallback time.Time) string {
	sign := "-"
	if tx.IsIncome {
		sign = "+"
	}

	datetime := strings.TrimSpace(tx.Date + " " + tx.Time)
	if tx.Date == "" || tx.Time == "" {
		datetime = fallback.Format("02/01/2006 15:04:05")
	}

	hashtag := tx.Hashtag
	if hashtag == "" {
		hashtag = "#email"
	}

	var b strings.Builder
	b.WriteString("📧 *Email Transaction Detected*\n\n")
	fmt.Fprintf(&b, "*Title:* %s\n", tx.Title)
	fmt.Fprintf(&b, "*Amount:* %s%s\n", sign, FormatRupiah(tx.Amount))
	fmt.Fprintf(&b, "*Account:* %s\n", tx.Account)
	if tx.Category != "" {
		fmt.Fprintf(&b, "*Category:* %s\n", tx.Category)
	}
	if tx.Subcategory != "" {
		fmt.Fprintf(&b, "*Subcategory:* %s\n", tx.Subcategory)
	}
	fmt.Fprintf(&b, "*Date:* %s\n", FormatDate(datetime))
	fmt.Fprintf(&b, "\n%s", hashtag)
	return b.String()
}

// savedText replaces the confirmation view after a successful save.
func savedText(tx *api.Transaction) string {
	return fmt.Sprintf("✅ *Transaction Saved!*\n\n*%s* - %s", tx.Title, FormatRupiah(tx.Amount))
}
