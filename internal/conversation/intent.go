package conversation

import (
	"strings"
)

// Intention is a closed-set classification of what the customer is trying
// to do on this turn. It selects which instruction template goes to the AI
// collaborator; it never mutates conversation state itself.
type Intention string

const (
	IntentionLanguageSelection      Intention = "language-selection"
	IntentionLocationNeeded         Intention = "location-needed"
	IntentionViewMenu               Intention = "view-menu"
	IntentionViewCategory           Intention = "view-category"
	IntentionPlaceOrder             Intention = "place-order"
	IntentionConfirmOrder           Intention = "confirm-order"
	IntentionRequestRecommendations Intention = "request-recommendations"
	IntentionBudgetInquiry          Intention = "budget-inquiry"
	IntentionTotalQuery             Intention = "total-query"
	IntentionRequestBill            Intention = "request-bill"
	IntentionPaymentMethod          Intention = "payment-method"
	IntentionRequestAmenities       Intention = "request-amenities"
	IntentionGeneral                Intention = "general"
)

// classifyInput is the full evidence a rule may consult: the folded current
// message, a bounded window of prior turns, and the conversation fields the
// cascade depends on (language, location).
type classifyInput struct {
	message  string // lower-cased, trimmed
	history  []Message
	language string
	location string
}

// intentRule pairs a named predicate with the intention it yields. Rules
// run strictly in order; the first match wins, so precedence is auditable
// rule by rule.
type intentRule struct {
	name      string
	matches   func(in classifyInput) bool
	intention Intention
}

var intentRules = []intentRule{
	{
		name: "language-marker",
		matches: func(in classifyInput) bool {
			return in.language == "" && containsAny(in.message, languageMarkers)
		},
		intention: IntentionLanguageSelection,
	},
	{
		name: "missing-location",
		matches: func(in classifyInput) bool {
			return in.location == ""
		},
		intention: IntentionLocationNeeded,
	},
	{
		name: "payment-method-in-context",
		matches: func(in classifyInput) bool {
			if !paymentMethodPattern.MatchString(in.message) {
				return false
			}
			last := lastAssistantTurn(in.history)
			return containsAny(strings.ToLower(last), billOpeningMarkers) ||
				containsAny(strings.ToLower(last), staffAssistMarkers)
		},
		intention: IntentionPaymentMethod,
	},
	{
		name: "bill-keywords",
		matches: func(in classifyInput) bool {
			return containsAny(in.message, billKeywords)
		},
		intention: IntentionRequestBill,
	},
	{
		name: "total-only-keywords",
		matches: func(in classifyInput) bool {
			return containsAny(in.message, totalOnlyKeywords)
		},
		intention: IntentionTotalQuery,
	},
	{
		name: "amenity-keywords",
		matches: func(in classifyInput) bool {
			return len(matchAmenities(in.message)) > 0
		},
		intention: IntentionRequestAmenities,
	},
	{
		name: "budget-with-amount",
		matches: func(in classifyInput) bool {
			return budgetPattern.MatchString(in.message)
		},
		intention: IntentionBudgetInquiry,
	},
	{
		name: "recommendation-keywords",
		matches: func(in classifyInput) bool {
			return containsAny(in.message, recommendationKeywords)
		},
		intention: IntentionRequestRecommendations,
	},
	{
		name: "full-menu-keywords",
		matches: func(in classifyInput) bool {
			return containsAny(in.message, menuKeywords)
		},
		intention: IntentionViewMenu,
	},
	{
		name: "category-question",
		matches: func(in classifyInput) bool {
			return categoryQuestionPattern.MatchString(in.message)
		},
		intention: IntentionViewCategory,
	},
	{
		// A reply like "no, but also add a coke" to "anything else?" carries
		// both a closing keyword and an order action; the order action wins
		// so the trailing request is never silently dropped.
		name: "trailing-order-after-confirmation",
		matches: func(in classifyInput) bool {
			return assistantAskedAnythingElse(in.history) &&
				isConfirmation(in.message) &&
				isOrderAction(in.message)
		},
		intention: IntentionPlaceOrder,
	},
	{
		name: "confirmation-after-anything-else",
		matches: func(in classifyInput) bool {
			return assistantAskedAnythingElse(in.history) &&
				isConfirmation(in.message)
		},
		intention: IntentionConfirmOrder,
	},
}

// Classify maps the current message plus a bounded window of history to an
// intention. Pure function: no persisted state of its own.
func Classify(message string, history []Message, conv *Conversation) Intention {
	in := classifyInput{
		message: strings.ToLower(strings.TrimSpace(message)),
	}
	if conv != nil {
		in.language = conv.Language
		in.location = conv.Location
	}
	if n := len(history); n > classifyHistoryWindow {
		history = history[n-classifyHistoryWindow:]
	}
	in.history = history

	for _, rule := range intentRules {
		if rule.matches(in) {
			return rule.intention
		}
	}

	if in.location != "" {
		return IntentionPlaceOrder
	}
	return IntentionGeneral
}

const classifyHistoryWindow = 6

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// isConfirmation reports whether the message closes the order: either a
// standalone closing token ("no", "listo"), a message opening with one, or
// a closing phrase anywhere in the text.
func isConfirmation(message string) bool {
	trimmed := strings.Trim(message, " .!¡¿?")
	if _, ok := confirmationExact[trimmed]; ok {
		return true
	}
	if first, _, found := strings.Cut(trimmed, " "); found {
		if _, ok := confirmationExact[strings.Trim(first, ",.")]; ok {
			return true
		}
	}
	return containsAny(message, confirmationPhrases)
}

func isOrderAction(message string) bool {
	return orderActionPattern.MatchString(message) ||
		containsAny(message, orderActionPhrases)
}

// matchAmenities returns canonical amenity names mentioned in the message.
func matchAmenities(message string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, word := range strings.FieldsFunc(message, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == 'á' || r == 'é' || r == 'í' || r == 'ó' || r == 'ú' || r == 'ñ')
	}) {
		canonical, ok := amenityKeywords[strings.ToLower(word)]
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

func lastAssistantTurn(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

func assistantAskedAnythingElse(history []Message) bool {
	last := strings.ToLower(lastAssistantTurn(history))
	return containsAny(last, anythingElseMarkers)
}

// ParseLocation extracts a table/location answer from a message, returning
// the normalized location ("mesa 8") and whether one was found.
func ParseLocation(message string) (string, bool) {
	m := locationAnswerPattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]) + " " + m[2], true
}

// ParseLanguage maps a language-selection answer to a language code.
func ParseLanguage(message string) (string, bool) {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "espa") || strings.Contains(msg, "spanish"):
		return "es", true
	case strings.Contains(msg, "engl") || strings.Contains(msg, "ingl"):
		return "en", true
	}
	return "", false
}
