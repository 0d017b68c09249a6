// Package intent classifies customer utterances into support intents and
// extracts structured identifiers from free text. Classification is an
// ordered rule list; the first matching rule wins, so more specific intents
// (placing an order) are checked before broader ones (order status).
package intent

import (
	"regexp"
	"sort"
	"strings"
)

// Intent is a coarse category of customer request.
type Intent string

const (
	NameIntroduction Intent = "name_introduction"
	CustomerInfo     Intent = "customer_info"
	ProductInfo      Intent = "product_info"
	OrderPlacement   Intent = "order_placement"
	OrderStatus      Intent = "order_status"
	Cart             Intent = "cart"
	Cancellation     Intent = "cancellation"
	ProductSearch    Intent = "product_search"
	General          Intent = "general"
)

var rules = []struct {
	intent   Intent
	keywords []string
}{
	{NameIntroduction, []string{"my name is", "i am", "call me", "i'm"}},
	{CustomerInfo, []string{"my account", "my info", "customer info", "my details"}},
	{ProductInfo, []string{"product", "item", "what is", "tell me about", "price of"}},
	{OrderPlacement, []string{"buy", "purchase", "want to buy", "place order", "i want to order", "order for"}},
	{OrderStatus, []string{"check order", "order status", "tracking", "delivery", "shipped", "my order"}},
	{Cart, []string{"add to cart", "add this", "add it", "put in cart", "cart"}},
	{Cancellation, []string{"cancel", "refund", "return"}},
	{ProductSearch, []string{"search", "find", "looking for", "show me"}},
}

// Classify maps an utterance to an intent. An extractable customer name
// forces NameIntroduction even when no introduction keyword is present.
func Classify(text string) Intent {
	lower := strings.ToLower(text)
	if ExtractName(text) != "" {
		return NameIntroduction
	}
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
	}
	return General
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`my name is ([a-z\s]{2,30})`),
	regexp.MustCompile(`i am ([a-z\s]{2,30})`),
	regexp.MustCompile(`i'm ([a-z\s]{2,30})`),
	regexp.MustCompile(`name is ([a-z\s]{2,30})`),
	regexp.MustCompile(`call me ([a-z\s]{2,30})`),
}

// nonNames filters captures that are product or filler words rather than a
// person's name ("I am looking for headphones").
var nonNames = map[string]bool{
	"looking": true, "for": true, "a": true, "wireless": true,
	"bluetooth": true, "headphones": true, "headset": true,
	"new": true, "customer": true, "user": true, "the": true,
	"an": true, "this": true, "that": true, "here": true, "there": true,
	"good": true, "bad": true, "nice": true, "great": true,
	"awesome": true, "product": true, "item": true, "thing": true,
}

// ExtractName pulls a customer name out of an introduction. Returns the name
// title-cased, or "" when no plausible name is found. Captures longer than
// three words or containing product/filler words are rejected.
func ExtractName(text string) string {
	lower := strings.ToLower(text)
	for _, pattern := range namePatterns {
		match := pattern.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		name := strings.TrimSpace(match[1])
		words := strings.Fields(name)
		if len(words) == 0 || len(words) > 3 {
			continue
		}
		valid := true
		for _, w := range words {
			if nonNames[w] {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		return strings.Join(words, " ")
	}
	return ""
}

// Spoken ids arrive in many shapes: "ORD123", "order 12", "o r d 5".
var orderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ord\s*(\d+)`),
	regexp.MustCompile(`order\s*id\s*(\d+)`),
	regexp.MustCompile(`o\s*r\s*d\s*(\d+)`),
	regexp.MustCompile(`order\s*(\d+)`),
}

var customerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`cust\s*(\d+)`),
	regexp.MustCompile(`customer\s*id\s*(\d+)`),
	regexp.MustCompile(`c\s*u\s*s\s*t\s*(\d+)`),
	regexp.MustCompile(`customer\s*(\d+)`),
}

// ExtractOrderID finds an order reference and normalizes it to ORD<nnn>,
// zero-padded to at least three digits. Returns "" when absent.
func ExtractOrderID(text string) string {
	if num := firstNumber(orderPatterns, text); num != "" {
		return "ORD" + pad3(num)
	}
	return ""
}

// ExtractCustomerID finds a customer reference and normalizes it to
// CUST<nnn>. Returns "" when absent.
func ExtractCustomerID(text string) string {
	if num := firstNumber(customerPatterns, text); num != "" {
		return "CUST" + pad3(num)
	}
	return ""
}

func firstNumber(patterns []*regexp.Regexp, text string) string {
	lower := strings.ToLower(text)
	for _, pattern := range patterns {
		if match := pattern.FindStringSubmatch(lower); match != nil {
			return match[1]
		}
	}
	return ""
}

func pad3(num string) string {
	for len(num) < 3 {
		num = "0" + num
	}
	return num
}

var quantityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:quantity|qty)\s*(\d+)`),
	regexp.MustCompile(`(\d+)\s*(?:piece|pieces|item|items|unit|units)`),
	regexp.MustCompile(`(\d+)\s*of`),
}

// ExtractQuantity finds a requested quantity, defaulting to 1.
func ExtractQuantity(text string) int {
	lower := strings.ToLower(text)
	for _, pattern := range quantityPatterns {
		if match := pattern.FindStringSubmatch(lower); match != nil {
			n := 0
			for _, r := range match[1] {
				n = n*10 + int(r-'0')
			}
			if n > 0 {
				return n
			}
		}
	}
	return 1
}

var (
	contextOrderID    = regexp.MustCompile(`ORD\d+`)
	contextCustomerID = regexp.MustCompile(`CUST\d+`)
)

// productKeywords are catalog categories worth tracking across a
// conversation.
var productKeywords = []string{"headphones", "watch", "keyboard", "shirt", "coffee", "book", "yoga", "cream"}

// LastCustomerID returns the most recently mentioned customer id in a
// conversation context, or "".
func LastCustomerID(context string) string {
	ids := contextCustomerID.FindAllString(context, -1)
	if len(ids) == 0 {
		return ""
	}
	return ids[len(ids)-1]
}

// ContextClues summarizes identifiers and products mentioned earlier in the
// conversation, for enriching follow-up queries ("cancel that order").
func ContextClues(context string) string {
	var clues []string

	if ids := contextOrderID.FindAllString(context, -1); len(ids) > 0 {
		seen := make(map[string]bool)
		var unique []string
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				unique = append(unique, id)
			}
		}
		sort.Strings(unique)
		clues = append(clues, "Recent orders: "+strings.Join(unique, ", "))
	}

	if id := LastCustomerID(context); id != "" {
		clues = append(clues, "Customer ID: "+id)
	}

	lower := strings.ToLower(context)
	var products []string
	for _, kw := range productKeywords {
		if strings.Contains(lower, kw) {
			products = append(products, kw)
		}
	}
	if len(products) > 0 {
		clues = append(clues, "Discussed products: "+strings.Join(products, ", "))
	}

	return strings.Join(clues, "; ")
}

// ReferencesContext reports whether an utterance points back at something
// discussed earlier ("cancel that order", "how much is it").
func ReferencesContext(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range []string{"that order", "my order", "the product", "it", "that"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
