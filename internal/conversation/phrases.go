package conversation

import "regexp"

// Immutable keyword and phrase tables, loaded once at process start.
// Tables are language-agnostic: Spanish and English variants live side by
// side so the classifier and orchestrator never branch on a language code.

var languageMarkers = []string{
	"español", "espanol", "spanish", "english", "inglés", "ingles",
	"idioma", "language",
}

// Closing/confirmation answers. Single tokens are matched standalone (or as
// the leading word), never as substrings, so "bueno" does not read as "no".
var confirmationExact = map[string]struct{}{
	"no": {}, "sí": {}, "si": {}, "ya": {}, "listo": {}, "ok": {},
	"okay": {}, "vale": {}, "confirmo": {},
}

var confirmationPhrases = []string{
	"nada más", "nada mas", "eso es todo", "es todo", "así está bien",
	"asi esta bien", "sí, confirmo", "si, confirmo",
	"that's all", "thats all", "nothing else", "that is all", "i'm done",
	"im done", "that's it", "thats it",
}

var orderActionPattern = regexp.MustCompile(`(?i)\b(agrega|agregar|añade|anade|quiero|tráeme|traeme|dame|otra|otro|también|tambien|pide|ordena|cambia|add|also|another)\b`)

var orderActionPhrases = []string{
	"me das", "me traes", "i want", "bring me", "get me", "i'd like",
	"i would like", "can i get",
}

var billKeywords = []string{
	"la cuenta", "cuenta por favor", "mi cuenta", "quiero pagar",
	"voy a pagar", "cobrar", "cóbrame", "cobrame",
	"the bill", "bill please", "my check", "check please", "i want to pay",
	"ready to pay",
}

var totalOnlyKeywords = []string{
	"cuánto llevo", "cuanto llevo", "cuánto va", "cuanto va",
	"cuánto es hasta ahora", "cuanto es hasta ahora", "total hasta ahora",
	"how much so far", "running total", "what's my total so far",
	"whats my total so far",
}

var paymentMethodPattern = regexp.MustCompile(`(?i)\b(efectivo|tarjeta|transferencia|terminal|cash|card|debit|transfer)\b`)

var recommendationKeywords = []string{
	"recomien", "recomiénda", "sugiere", "sugerencia", "especialidad",
	"qué me recomiendas", "que me recomiendas",
	"recommend", "suggestion", "suggest", "what's good", "whats good",
	"specialty", "popular",
}

var menuKeywords = []string{
	"menú", "menu", "la carta", "qué tienen", "que tienen",
	"qué venden", "que venden",
	"what do you have", "what do you sell", "show me the menu",
}

// amenityKeywords maps surface forms to a canonical amenity name.
var amenityKeywords = map[string]string{
	"servilleta":  "servilletas",
	"servilletas": "servilletas",
	"cubierto":    "cubiertos",
	"cubiertos":   "cubiertos",
	"vaso":        "vasos",
	"vasos":       "vasos",
	"hielo":       "hielo",
	"popote":      "popotes",
	"popotes":     "popotes",
	"salsa":       "salsas",
	"salsas":      "salsas",
	"napkin":      "servilletas",
	"napkins":     "servilletas",
	"cutlery":     "cubiertos",
	"silverware":  "cubiertos",
	"ice":         "hielo",
	"straw":       "popotes",
	"straws":      "popotes",
}

var (
	// budgetPattern requires a numeric token so "tengo hambre" never reads
	// as a budget inquiry.
	budgetPattern = regexp.MustCompile(`(?i)\b(tengo|traigo|presupuesto( de)?|me alcanza( con)?|budget( of)?|i have|spend)\b[^0-9]{0,20}\$?\d+`)

	// categoryQuestionPattern matches "¿qué tacos tienen?" style questions
	// about one section of the menu. The question word is delimited by \s
	// rather than \b: Go's \b is ASCII-only and never fires after "qué".
	categoryQuestionPattern = regexp.MustCompile(`(?i)^¿?\s*(qué|que|cuáles|cuales|what|which)\s.{0,40}\b(tienen|hay|manejan|have|got|options|opciones|sabores|tipos|kinds|flavors)\b`)

	// locationAnswerPattern captures a table/location answer such as
	// "mesa 8", "table 12" or "terraza 3".
	locationAnswerPattern = regexp.MustCompile(`(?i)\b(mesa|table|terraza|barra|booth)\s*#?\s*(\d{1,3})\b`)
)

// Assistant-reply marker phrases. Trigger detection is substring-based over
// the case-folded reply, so variants only need the stable middle fragment.
var processingMarkers = []string{
	"está siendo procesado", "esta siendo procesado",
	"ya está en preparación", "ya esta en preparacion",
	"is now being processed", "is being prepared",
}

var anythingElseMarkers = []string{
	"¿algo más", "algo más?", "algo mas?", "¿deseas algo más",
	"anything else", "something else?",
}

var billOpeningMarkers = []string{
	"aquí está tu cuenta", "aqui esta tu cuenta",
	"aquí tienes tu cuenta", "aqui tienes tu cuenta",
	"here is your bill", "here's your bill", "heres your bill",
}

var staffAssistMarkers = []string{
	"te asistirá con el pago", "te asistira con el pago",
	"te ayudará con el pago", "te ayudara con el pago",
	"will assist you with payment", "will help you with payment",
}

// completeOrderHeaders mark the section an AI reply uses to restate the
// full order; extraction restricts itself to that section when present.
var completeOrderHeaders = []string{
	"pedido completo", "orden completa", "resumen del pedido",
	"resumen de tu pedido", "tu pedido:",
	"complete order", "order summary", "your order:",
}

// totalLineNames are line names excluded from extraction.
var totalLineNames = map[string]struct{}{
	"total":     {},
	"subtotal":  {},
	"sub-total": {},
	"totales":   {},
}
