package model

import "strings"

// Currency governs how amounts are displayed in agent replies. It never
// takes part in any computation.
type Currency struct {
	Name    string
	Symbol  string
	Example string
}

const DefaultCurrency = "naira"

var currencies = map[string]Currency{
	"naira":  {Name: "Naira (₦)", Symbol: "₦", Example: "₦15,999"},
	"dollar": {Name: "US Dollar ($)", Symbol: "$", Example: "$15.99"},
	"pound":  {Name: "British Pound (£)", Symbol: "£", Example: "£12.99"},
}

// ResolveCurrency looks up a currency by its configured name. Unknown names
// fall back to naira.
func ResolveCurrency(name string) Currency {
	if c, ok := currencies[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return currencies[DefaultCurrency]
}
