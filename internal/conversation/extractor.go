package conversation

import (
	"regexp"
	"strconv"
	"strings"
)

// orderLinePattern is the line grammar for order lines inside an AI reply:
// a bullet marker, an optional [ID:...] item identifier, a product name, an
// optional parenthesized category, a unit price, an optional "x quantity =
// subtotal" and an optional bracketed note.
//
//	• [ID:itm_42] Tacos de Asada (TACOS): $85.00 x 2 = $170.00 [nota: sin cebolla]
var orderLinePattern = regexp.MustCompile(
	`(?m)^\s*[•\-\*]\s*` +
		`(?:\[ID:\s*([^\]]+)\]\s*)?` + // 1: menu item id
		`([^($\[\n]+?)\s*` + // 2: product name
		`(?:\(([^)\n]*)\)\s*)?` + // 3: category
		`[:\-]?\s*` +
		`\$(\d+(?:\.\d{2})?)` + // 4: unit price
		`(?:\s*[x×]\s*(\d+)\s*=\s*\$\d+(?:\.\d{2})?)?` + // 5: quantity
		`(?:\s*\[(?:nota|note)s?:?\s*([^\]\n]*)\])?` + // 6: note
		`\s*$`)

// ExtractOrder parses structured order lines out of an AI assistant reply.
// When the reply contains a recognizable "complete order" section header,
// extraction is restricted to that section so a line repeated in an
// "I added…" preamble is not double-counted. Lines with the same order-line
// key accumulate quantity; malformed lines are non-matches, never errors.
func ExtractOrder(assistantText string) OrderSnapshot {
	scan := assistantText
	if idx := completeOrderSectionStart(assistantText); idx >= 0 {
		scan = assistantText[idx:]
	}

	snapshot := make(OrderSnapshot)
	for _, m := range orderLinePattern.FindAllStringSubmatch(scan, -1) {
		itemID := strings.TrimSpace(m[1])
		name := strings.TrimSpace(m[2])
		note := strings.TrimSpace(m[6])

		if name == "" {
			continue
		}
		if _, isTotal := totalLineNames[strings.ToLower(name)]; isTotal {
			continue
		}

		price, ok := parseMoney(m[4])
		if !ok {
			continue
		}

		quantity := 1
		if m[5] != "" {
			q, err := strconv.Atoi(m[5])
			if err != nil || q <= 0 {
				continue
			}
			quantity = q
		}

		key := LineKey(name, note)
		line, exists := snapshot[key]
		if exists {
			line.Quantity += quantity
			if line.MenuItemID == "" {
				line.MenuItemID = itemID
			}
		} else {
			line = OrderLine{
				Price:      price,
				Quantity:   quantity,
				MenuItemID: itemID,
				Notes:      note,
			}
		}
		snapshot[key] = line
	}

	return snapshot
}

// completeOrderSectionStart returns the byte offset of the first complete
// order section header, or -1 when the reply has none.
func completeOrderSectionStart(text string) int {
	folded := strings.ToLower(text)
	best := -1
	for _, header := range completeOrderHeaders {
		if idx := strings.Index(folded, header); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best
}

var moneyPattern = regexp.MustCompile(`^\d+(?:\.\d{2})?$`)

// parseMoney accepts whole amounts and amounts with exactly two fractional
// digits; anything else is a non-match.
func parseMoney(raw string) (float64, bool) {
	if !moneyPattern.MatchString(raw) {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
