// Package deeplink serializes transactions into Cashew add-transaction
// URLs for one-tap import into the finance app.
package deeplink

import (
	"net/url"
	"time"

	"github.com/danuarif/duitbot/pkg/api"
)

// baseURL is the Cashew web app's add-transaction entry point.
const baseURL = "https://cashewapp.web.app/addTransaction"

// Build returns the deep link for a transaction. Only non-empty fields
// are encoded; the amount carries its sign (negative expense, positive
// income); the date is converted from dd/mm/yyyy to yyyy-mm-dd form.
// url.Values encodes keys in sorted order, so output is stable.
func Build(tx *api.Transaction) string {
	params := url.Values{}

	params.Set("amount", tx.SignedAmount())
	setNonEmpty(params, "title", tx.Title)
	setNonEmpty(params, "category", tx.Category)
	setNonEmpty(params, "subcategory", tx.Subcategory)
	setNonEmpty(params, "account", tx.Account)
	setNonEmpty(params, "notes", tx.Notes)
	setNonEmpty(params, "date", reformatDate(datetime(tx)))

	return baseURL + "?" + params.Encode()
}

func setNonEmpty(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

// datetime joins the record's date and time fields; either may be
// absent.
func datetime(tx *api.Transaction) string {
	switch {
	case tx.Date == "":
		return ""
	case tx.Time == "":
		return tx.Date + " 00:00:00"
	default:
		return tx.Date + " " + tx.Time
	}
}

// reformatDate converts "02/01/2006 15:04:05" to "2006-01-02 15:04:05".
// Unparseable input is passed through untouched rather than dropped.
func reformatDate(s string) string {
	if s == "" {
		return ""
	}
	parsed, err := time.Parse("02/01/2006 15:04:05", s)
	if err != nil {
		return s
	}
	return parsed.Format("2006-01-02 15:04:05")
}
