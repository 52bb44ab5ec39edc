package extract

import (
	"regexp"
	"strings"

	"github.com/danuarif/duitbot/pkg/api"
)

// aladinDeposito extracts Bank Aladin deposito renewal notices, which
// report the profit share paid out when a deposito rolls over.
type aladinDeposito struct{}

// Ordered amount patterns; newer notices use the "Total Bagi Hasil"
// label, older ones the bare "Bagi Hasil:" form.
var aladinAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Total Bagi Hasil\s*Rp\s?([\d.,]+)`),
	regexp.MustCompile(`Bagi Hasil[:\s]*Rp\s?([\d.,]+)`),
}

func (aladinDeposito) Name() string   { return "aladin-deposito" }
func (aladinDeposito) Sender() string { return "aladin" }

func (aladinDeposito) Match(subject string) bool {
	lower := strings.ToLower(subject)
	return strings.Contains(lower, "deposito") && strings.Contains(lower, "diperpanjang")
}

func (aladinDeposito) Extract(email api.Email) *api.Transaction {
	tx := &api.Transaction{
		MerchantType: "aladin",
		IsIncome:     true,
		Account:      "Ala Dompet (Aladin)",
		Title:        "Bagi Hasil Deposito",
		Category:     "Return",
		Subcategory:  "Deposito",
		Hashtag:      "#email",
		Date:         email.Date,
		Time:         email.Time,
	}

	for _, re := range aladinAmountPatterns {
		if m := re.FindStringSubmatch(email.Body); m != nil {
			if amount, err := ParseAmount(m[1]); err == nil {
				tx.Amount = amount
				break
			}
		}
	}

	if !tx.Complete() {
		return nil
	}
	return tx
}
