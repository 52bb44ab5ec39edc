package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/danuarif/duitbot/pkg/api"
)

// titleLimit caps extracted product titles. Truncation prefers a word
// boundary; only when no boundary fits is the title hard-cut.
const titleLimit = 40

// shopeeDelivery extracts Shopee delivery-confirmation emails. Other
// Shopee notification subjects (order placed, payment received) are
// deliberately ignored.
type shopeeDelivery struct{}

var (
	// Ordered title patterns; the first match wins, later patterns are
	// only reached for bodies the first cannot handle.
	shopeeTitlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)1\.\s(.+?)(?:\n|Variasi:|$)`),
		regexp.MustCompile(`(?m)(?:^|\n)1\.\s(.+?)(?:\n|Variasi:|$)`),
	}
	shopeeAmountRe = regexp.MustCompile(`Total Pembayaran:\s*Rp\s?([\d.,]+)`)
	shopeeOrderRe  = regexp.MustCompile(`Pesanan\s(#[A-Z0-9]+)`)

	htmlTagRe = regexp.MustCompile(`<[^>]*>`)
	bareURLRe = regexp.MustCompile(`https?://\S+`)
)

func (shopeeDelivery) Name() string   { return "shopee-delivery" }
func (shopeeDelivery) Sender() string { return "shopee" }

func (shopeeDelivery) Match(subject string) bool {
	return strings.Contains(strings.ToLower(subject), "telah dikirim")
}

func (shopeeDelivery) Extract(email api.Email) *api.Transaction {
	tx := &api.Transaction{
		MerchantType: "shopee",
		IsIncome:     false,
		Account:      "SeaBank",
		Category:     "Shopee",
		Hashtag:      "#email",
		Date:         email.Date,
		Time:         email.Time,
	}

	for _, re := range shopeeTitlePatterns {
		if m := re.FindStringSubmatch(email.Body); m != nil {
			tx.Title = truncateTitle(cleanTitle(m[1]))
			break
		}
	}

	if m := shopeeAmountRe.FindStringSubmatch(email.Body); m != nil {
		if amount, err := ParseAmount(m[1]); err == nil {
			tx.Amount = amount
		}
	}

	if m := shopeeOrderRe.FindStringSubmatch(email.Subject); m != nil {
		tx.OrderNumber = m[1]
	}

	if !tx.Complete() {
		return nil
	}
	return tx
}

// cleanTitle strips HTML tags and bare URLs and collapses whitespace.
func cleanTitle(title string) string {
	title = htmlTagRe.ReplaceAllString(title, "")
	title = bareURLRe.ReplaceAllString(title, "")
	return strings.Join(strings.Fields(title), " ")
}

// truncateTitle returns the longest whitespace-aligned prefix within
// titleLimit runes. When not even the first word fits, the title is
// hard-cut three runes short of the limit and an ellipsis appended.
func truncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= titleLimit {
		return title
	}

	var truncated string
	for _, word := range strings.Fields(title) {
		if utf8.RuneCountInString(truncated)+1+utf8.RuneCountInString(word) > titleLimit {
			break
		}
		if truncated == "" {
			truncated = word
		} else {
			truncated += " " + word
		}
	}
	if truncated != "" {
		return truncated
	}
	return string([]rune(title)[:titleLimit-3]) + "..."
}
