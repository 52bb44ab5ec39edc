// Package api defines the core data structures shared across duitbot.
package api

import "strconv"

// Transaction is the normalized output of email extraction or of the
// remote backend's free-text parsing.
type Transaction struct {
	Title       string `json:"title"`
	Amount      int64  `json:"amount"`
	IsIncome    bool   `json:"is_income"`
	Account     string `json:"account"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	Notes       string `json:"notes,omitempty"`
	// Date is day/month/year (e.g. "02/01/2026"); Time is HH:MM:SS.
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`
	// Hashtag is a provenance marker, e.g. "#email".
	Hashtag      string `json:"hashtag,omitempty"`
	MerchantType string `json:"merchant_type,omitempty"`
	OrderNumber  string `json:"order_number,omitempty"`
}

// Complete reports whether the record carries the minimum fields required
// to surface it to a user. Incomplete records must never leave the
// extraction layer.
func (t *Transaction) Complete() bool {
	return t != nil && t.Title != "" && t.Amount > 0
}

// SignedAmount returns the amount as a string with the sign encoding used
// by deep links: negative for expenses, positive for income.
func (t *Transaction) SignedAmount() string {
	amount := t.Amount
	if !t.IsIncome {
		amount = -amount
	}
	return strconv.FormatInt(amount, 10)
}

// Email is a raw email as delivered by a user's remote script to the
// protected extraction endpoint.
type Email struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Date    string `json:"date"`
	Time    string `json:"time"`
}
