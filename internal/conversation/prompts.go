package conversation

import (
	"fmt"
	"strings"

	"github.com/mesavia/restaurant-ai-platform/internal/catalog"
)

// basePersona anchors every AI call. The format rules are load-bearing: the
// extractor's line grammar and the orchestrator's trigger phrases both rely
// on replies following them.
const basePersona = `Eres el asistente de pedidos por WhatsApp de %s. Atiende en el idioma del cliente (español o inglés), sé breve y amable.

Reglas de formato, obligatorias:
- Cada producto que menciones se escribe como: • [ID:<id>] <Nombre> (<CATEGORÍA>): $<precio> x <cantidad> = $<subtotal>
- Una nota de personalización va al final de la línea como [nota: <texto>].
- Cuando el cliente agregue productos, repite SIEMPRE el pedido acumulado bajo el encabezado "Pedido completo:" y termina preguntando "¿Algo más?".
- Cuando el cliente confirme que no quiere nada más, responde que su pedido está siendo procesado.
- Cuando el cliente pida la cuenta, inicia con "Aquí está tu cuenta:", lista el pedido completo con el total y termina indicando que un miembro del personal te asistirá con el pago.
- Nunca inventes productos: ofrece solo lo que aparece en el menú.`

// intentInstructions maps each intention to the directive appended to the
// persona for that turn.
var intentInstructions = map[Intention]string{
	IntentionLanguageSelection:      "El cliente está eligiendo idioma. Confirma el idioma elegido y pregunta en qué mesa se encuentra.",
	IntentionLocationNeeded:         "Aún no sabes en qué mesa está el cliente. Pídele su número de mesa antes de tomar cualquier pedido.",
	IntentionViewMenu:               "El cliente quiere ver el menú. Muestra el menú completo agrupado por categoría, usando el formato de línea obligatorio.",
	IntentionViewCategory:           "El cliente pregunta por una categoría específica. Muestra solo los productos de esa categoría.",
	IntentionPlaceOrder:             "El cliente está ordenando. Agrega lo solicitado, repite el pedido acumulado bajo \"Pedido completo:\" y pregunta \"¿Algo más?\".",
	IntentionConfirmOrder:           "El cliente confirmó que no desea nada más. Indica que su pedido está siendo procesado y repite el pedido completo una última vez.",
	IntentionRequestRecommendations: "El cliente pide recomendaciones. Sugiere hasta tres productos marcados como recomendados.",
	IntentionBudgetInquiry:          "El cliente tiene un presupuesto. Propón combinaciones del menú que no lo excedan, mostrando el total.",
	IntentionTotalQuery:             "El cliente pregunta cuánto lleva. Responde solo con el total acumulado de su pedido actual; no repitas el pedido completo ni confirmes nada.",
	IntentionRequestBill:            "El cliente pide la cuenta. Inicia con \"Aquí está tu cuenta:\", lista el pedido completo con total y cierra indicando que un miembro del personal te asistirá con el pago.",
	IntentionPaymentMethod:          "El cliente indicó su método de pago. Agradécele y confirma que el personal pasará a su mesa.",
	IntentionRequestAmenities:       "El cliente pide artículos de mesa (servilletas, cubiertos, etc.). Confirma que se los llevarán; no los agregues al pedido.",
	IntentionGeneral:                "Responde la duda del cliente y oriéntalo de vuelta al menú.",
}

// BuildInstructions assembles the system prompts for one AI call: persona,
// the intent directive, the rendered menu, and any captured table context.
func BuildInstructions(intention Intention, branch *catalog.Branch, menu []catalog.MenuItem, conv *Conversation) []string {
	branchName := "el restaurante"
	if branch != nil && branch.Name != "" {
		branchName = branch.Name
	}

	system := []string{fmt.Sprintf(basePersona, branchName)}

	if directive, ok := intentInstructions[intention]; ok {
		system = append(system, directive)
	}

	if len(menu) > 0 {
		system = append(system, "Menú vigente:\n"+RenderMenu(menu))
	}

	var context []string
	if conv != nil {
		if conv.Location != "" {
			context = append(context, "Mesa del cliente: "+conv.Location)
		}
		if conv.Language != "" {
			context = append(context, "Idioma del cliente: "+conv.Language)
		}
		if len(conv.LastOrderSent) > 0 {
			context = append(context, fmt.Sprintf("Total ya enviado a cocina: $%.2f", conv.LastOrderSent.Total()))
		}
	}
	if len(context) > 0 {
		system = append(system, strings.Join(context, "\n"))
	}

	return system
}

// RenderMenu formats menu items in the same line grammar the extractor
// parses, so the model mirrors it back.
func RenderMenu(items []catalog.MenuItem) string {
	var b strings.Builder
	lastCategory := ""
	for _, item := range items {
		if item.Category != lastCategory {
			if lastCategory != "" {
				b.WriteString("\n")
			}
			b.WriteString(strings.ToUpper(item.Category) + ":\n")
			lastCategory = item.Category
		}
		fmt.Fprintf(&b, "• [ID:%s] %s (%s): $%.2f", item.ID, item.Name, strings.ToUpper(item.Category), item.Price)
		if item.Recommended {
			b.WriteString(" ⭐")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
