package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// TokenPrice is a model's USD list price per million text tokens.
type TokenPrice struct {
	Prompt     float64
	Completion float64
}

// geminiPrices is matched by prefix so dated previews of a model share its
// price. More specific names come first.
var geminiPrices = []struct {
	prefix string
	price  TokenPrice
}{
	{"gemini-2.5-flash-lite", TokenPrice{Prompt: 0.10, Completion: 0.40}},
	{"gemini-2.5-flash", TokenPrice{Prompt: 0.30, Completion: 2.50}},
	{"gemini-2.5-pro", TokenPrice{Prompt: 1.25, Completion: 10.00}},
	{"gemini-2.0-flash-lite", TokenPrice{Prompt: 0.075, Completion: 0.30}},
	{"gemini-2.0-flash", TokenPrice{Prompt: 0.10, Completion: 0.40}},
}

// PriceOf looks up the price of a model. ok is false for models without a
// known price, which are then counted as free.
func PriceOf(modelName string) (price TokenPrice, ok bool) {
	name := strings.ToLower(strings.TrimPrefix(modelName, "models/"))
	for _, p := range geminiPrices {
		if strings.HasPrefix(name, p.prefix) {
			return p.price, true
		}
	}
	return TokenPrice{}, false
}

// CallCost is the token usage and USD cost of one model call.
type CallCost struct {
	Model            string  `json:"model"`
	Priced           bool    `json:"priced"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	PromptUSD        float64 `json:"prompt_usd"`
	CompletionUSD    float64 `json:"completion_usd"`
}

func (c CallCost) TotalUSD() float64 { return c.PromptUSD + c.CompletionUSD }

// CostOf prices the usage reported for one call to modelName.
func CostOf(modelName string, usage *schema.TokenUsage) CallCost {
	price, ok := PriceOf(modelName)
	c := CallCost{Model: modelName, Priced: ok}
	if usage == nil {
		return c
	}
	c.PromptTokens = usage.PromptTokens
	c.CompletionTokens = usage.CompletionTokens
	c.PromptUSD = price.Prompt * float64(usage.PromptTokens) / 1e6
	c.CompletionUSD = price.Completion * float64(usage.CompletionTokens) / 1e6
	return c
}
