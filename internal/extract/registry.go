// Package extract implements the per-merchant email extraction rules and
// the dispatcher that selects which rule applies to a given email.
package extract

import (
	"strings"

	"github.com/danuarif/duitbot/pkg/api"
)

// Extractor is a single merchant extraction rule. Extract is a pure
// function over the raw email fields; it returns nil both when the email
// is not the expected notification and when the expected fields cannot
// all be found; partial financial records are never surfaced.
type Extractor interface {
	// Name identifies the rule in logs.
	Name() string
	// Sender is the lowercase substring matched against the sender
	// address to select this rule.
	Sender() string
	// Match is the subject guard applied after sender selection. A
	// sender may emit several notification types; only the guarded
	// variant is extracted.
	Match(subject string) bool
	// Extract produces a complete transaction or nil.
	Extract(email api.Email) *api.Transaction
}

// Registry is a priority-ordered list of extraction rules. Adding a
// merchant means registering another entry; dispatch never changes.
type Registry struct {
	entries []Extractor
}

// Register appends a rule. Earlier entries win sender selection.
func (r *Registry) Register(e Extractor) {
	r.entries = append(r.entries, e)
}

// Dispatch selects at most one extractor by case-insensitive sender
// substring match, first entry wins. Once an entry is selected there is
// no fall-through: a failed subject guard or an incomplete extraction
// yields nil even if a later entry would also match the sender.
func (r *Registry) Dispatch(email api.Email) *api.Transaction {
	sender := strings.ToLower(email.Sender)
	for _, e := range r.entries {
		if !strings.Contains(sender, e.Sender()) {
			continue
		}
		if !e.Match(email.Subject) {
			return nil
		}
		tx := e.Extract(email)
		if !tx.Complete() {
			return nil
		}
		return tx
	}
	return nil
}

// Default returns the registry with all known merchant rules in priority
// order.
func Default() *Registry {
	r := &Registry{}
	r.Register(shopeeDelivery{})
	r.Register(aladinDeposito{})
	r.Register(tokopediaOrder{})
	r.Register(gojekTransaction{})
	return r
}
