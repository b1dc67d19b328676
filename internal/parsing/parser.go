// Package parsing derives typed receipt fields from recognized text lines
// using positional and lexical heuristics. Every function is pure and
// deterministic, and returns zero values instead of errors: a heuristic that
// finds nothing is not a failure.
//
// The tie-break rules (first-match-wins, last-match-wins, maximum-candidate)
// are part of the produced results and are kept exactly as documented on each
// function, even where a different rule might look smarter.
package parsing

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// headerScanLimit bounds the store-info scan to the receipt header.
const headerScanLimit = 10

// footerScanLimit bounds the totals scan to the receipt footer.
const footerScanLimit = 15

// addressLineLimit caps the number of lines joined into the address.
const addressLineLimit = 3

var (
	urlPattern        = regexp.MustCompile(`(?i)www\.|\.com|\.org|\.net|https?://`)
	receiptNoPattern  = regexp.MustCompile(`(?i)\b(?:receipt|invoice|bill|txn|trans|order)\s*(?:no\.?|num(?:ber)?|id)?\s*[:#\-]?\s*([A-Za-z0-9][A-Za-z0-9\-]+)\b`)
	amountPattern     = regexp.MustCompile(`\d[\d,]*\.\d{2}`)
	maskedCardPattern = regexp.MustCompile(`\*{4,}\d{4}`)
)

// storeKeywords mark a header line as a likely merchant name.
var storeKeywords = []string{"store", "mart", "shop", "supermarket", "electronics", "retail", "market"}

// paymentMethods in fixed priority order; the first substring hit wins.
var paymentMethods = []string{"visa", "mastercard", "amex", "rupay", "upi", "cash", "debit", "credit", "card"}

// currencySymbols in fixed priority order.
var currencySymbols = []struct {
	Symbol string
	Code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"₹", "INR"},
	{"¥", "JPY"},
	{"₱", "PHP"},
}

// StoreInfo is the header extraction output; empty strings mean "not found".
type StoreInfo struct {
	Name    string
	Address string
	Website string
}

// ExtractStoreInfo scans the first 10 non-empty lines. A URL-like line is
// captured verbatim as the website and excluded from name/address. The first
// remaining line that is mostly uppercase or carries a store keyword becomes
// the name; up to the next 3 lines are joined with ", " into the address.
func ExtractStoreInfo(lines []string) StoreInfo {
	var info StoreInfo
	var addressParts []string

	scanned := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if scanned++; scanned > headerScanLimit {
			break
		}

		if urlPattern.MatchString(line) {
			if info.Website == "" {
				info.Website = line
			}
			continue
		}

		mostlyUpper := upperRatio(line) > 0.5
		hasKeyword := containsAny(strings.ToLower(line), storeKeywords)

		if (mostlyUpper || hasKeyword) && info.Name == "" {
			info.Name = line
		} else if info.Name != "" && len(addressParts) < addressLineLimit {
			addressParts = append(addressParts, line)
		}
	}

	info.Address = strings.Join(addressParts, ", ")
	return info
}

// upperRatio is the share of uppercase letters among all characters.
func upperRatio(s string) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(len(runes))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ExtractReceiptNumber finds the first token following a receipt/invoice
// label; empty when no label-and-token pair exists.
func ExtractReceiptNumber(text string) string {
	if m := receiptNoPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractTotals scans the last 15 non-empty lines for labeled amounts. A
// tax/vat/gst line contributes its last amount as the tax (later lines
// overwrite earlier ones); a "total"-but-not-"sub" or "grand"/"amount" line
// appends its last amount to the total candidates. The final total is the
// maximum candidate: grand totals after tip or surcharge lines tend to be the
// largest number near the bottom, so the maximum can mis-pick an oddly
// formatted line — that is the documented behavior, not a bug.
func ExtractTotals(lines []string) (total, tax *float64) {
	footer := nonEmpty(lines)
	if len(footer) > footerScanLimit {
		footer = footer[len(footer)-footerScanLimit:]
	}

	var candidates []float64
	for _, line := range footer {
		amounts := parseAmounts(line)
		if len(amounts) == 0 {
			continue
		}
		last := amounts[len(amounts)-1]

		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "tax") || strings.Contains(lower, "vat") || strings.Contains(lower, "gst"):
			v := last
			tax = &v
		case strings.Contains(lower, "total") && !strings.Contains(lower, "sub"):
			candidates = append(candidates, last)
		case strings.Contains(lower, "grand") || strings.Contains(lower, "amount"):
			candidates = append(candidates, last)
		}
	}

	if len(candidates) > 0 {
		maxCandidate := candidates[0]
		for _, c := range candidates[1:] {
			if c > maxCandidate {
				maxCandidate = c
			}
		}
		total = &maxCandidate
	}
	return total, tax
}

// parseAmounts returns every thousands-separated decimal amount on the line.
func parseAmounts(line string) []float64 {
	var amounts []float64
	for _, m := range amountPattern.FindAllString(line, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			continue
		}
		amounts = append(amounts, v)
	}
	return amounts
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// ExtractPaymentMethod detects the payment method by substring, first hit in
// priority order. A masked card number anywhere in the text is appended to
// the upper-cased label.
func ExtractPaymentMethod(text string) string {
	lower := strings.ToLower(text)
	for _, method := range paymentMethods {
		if !strings.Contains(lower, method) {
			continue
		}
		label := strings.ToUpper(method)
		if card := maskedCardPattern.FindString(text); card != "" {
			return label + " " + card
		}
		return label
	}
	return ""
}

// InferCurrency maps the first currency symbol found (in priority order) to
// its ISO code. Without a symbol, English-language receipts default to USD.
func InferCurrency(text, language string) string {
	for _, cs := range currencySymbols {
		if strings.Contains(text, cs.Symbol) {
			return cs.Code
		}
	}
	if strings.HasPrefix(strings.ToLower(language), "en") {
		return "USD"
	}
	return ""
}
