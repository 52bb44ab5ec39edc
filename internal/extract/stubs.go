package extract

import "github.com/danuarif/duitbot/pkg/api"

// tokopediaOrder and gojekTransaction are registered extension slots for
// merchants whose notification formats are not handled yet. They claim
// their sender so dispatch stays stable when the rules land, and report
// no match for every email until then.

type tokopediaOrder struct{}

func (tokopediaOrder) Name() string                       { return "tokopedia-order" }
func (tokopediaOrder) Sender() string                     { return "tokopedia" }
func (tokopediaOrder) Match(string) bool                  { return true }
func (tokopediaOrder) Extract(api.Email) *api.Transaction { return nil }

type gojekTransaction struct{}

func (gojekTransaction) Name() string                       { return "gojek-transaction" }
func (gojekTransaction) Sender() string                     { return "gojek" }
func (gojekTransaction) Match(string) bool                  { return true }
func (gojekTransaction) Extract(api.Email) *api.Transaction { return nil }
