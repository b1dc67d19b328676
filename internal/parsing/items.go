package parsing

import (
	"regexp"
	"strconv"
	"strings"
)

// totalsKeywords terminate the item region: the first line mentioning one of
// them is where the footer starts.
var totalsKeywords = []string{"subtotal", "total", "grand", "tax", "vat", "gst"}

var (
	trailingAmountPattern = regexp.MustCompile(`(\d[\d,]*\.\d{2})$`)
	fullAmountPattern     = regexp.MustCompile(`^\d[\d,]*\.\d{2}$`)
	quantityPattern       = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)x?$`)
	columnSplitPattern    = regexp.MustCompile(`\s{2,}`)
)

// Item is one parsed line item. UnitPrice is nil only when it could not be
// found or derived.
type Item struct {
	Description string
	Quantity    float64
	UnitPrice   *float64
	TotalPrice  float64
}

// ItemRegion locates the item body: end is the index of the first line
// containing a totals keyword (or len(lines)); start is the index of the
// first earlier line that ends with a decimal amount (or 0).
func ItemRegion(lines []string) (start, end int) {
	end = len(lines)
	for i, line := range lines {
		if containsAny(strings.ToLower(line), totalsKeywords) {
			end = i
			break
		}
	}

	for i := 0; i < end; i++ {
		if trailingAmountPattern.MatchString(strings.TrimSpace(lines[i])) {
			return i, end
		}
	}
	return 0, end
}

// ParseItems extracts line items from lines[start:end). A line qualifies only
// when it ends with a decimal amount, which becomes the total price. Columns
// are split on runs of 2+ spaces, falling back to single spaces when that
// yields fewer than two tokens; the first token is the description. Among the
// remaining tokens the last quantity-shaped token wins (default 1.0) and the
// first amount differing from the total price becomes the unit price, derived
// as total/quantity when absent.
func ParseItems(lines []string, start, end int) []Item {
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}

	var items []Item
	for i := start; i < end; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		m := trailingAmountPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		totalPrice, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}

		parts := columnSplitPattern.Split(line, -1)
		if len(parts) < 2 {
			parts = strings.Fields(line)
		}

		quantity := 1.0
		var unitPrice *float64
		for _, part := range parts[1:] {
			if qm := quantityPattern.FindStringSubmatch(part); qm != nil {
				if q, err := strconv.ParseFloat(qm[1], 64); err == nil {
					quantity = q
				}
			}
			if fullAmountPattern.MatchString(part) {
				v, err := strconv.ParseFloat(strings.ReplaceAll(part, ",", ""), 64)
				if err == nil && unitPrice == nil && v != totalPrice {
					unitPrice = &v
				}
			}
		}

		if unitPrice == nil && quantity > 0 {
			derived := totalPrice / quantity
			unitPrice = &derived
		}

		items = append(items, Item{
			Description: parts[0],
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  totalPrice,
		})
	}
	return items
}
