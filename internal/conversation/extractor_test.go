package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractOrderParsesFullLine(t *testing.T) {
	reply := "Pedido completo:\n" +
		"• [ID:itm-1] Tacos de Asada (TACOS): $85.00 x 2 = $170.00 [nota: sin cebolla]\n"

	snap := ExtractOrder(reply)
	require.Len(t, snap, 1)

	line := snap[LineKey("Tacos de Asada", "sin cebolla")]
	assert.Equal(t, "itm-1", line.MenuItemID)
	assert.Equal(t, 85.0, line.Price)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "sin cebolla", line.Notes)
}

func TestExtractOrderMinimalLine(t *testing.T) {
	snap := ExtractOrder("Tu pedido:\n- Agua de Horchata: $35\n")
	require.Len(t, snap, 1)

	line := snap[LineKey("Agua de Horchata", "")]
	assert.Equal(t, 35.0, line.Price)
	assert.Equal(t, 1, line.Quantity)
	assert.Empty(t, line.MenuItemID)
}

func TestExtractOrderRestrictsToCompleteOrderSection(t *testing.T) {
	reply := "Agregué:\n" +
		"• Tacos de Asada (TACOS): $85.00 x 1 = $85.00\n\n" +
		"Pedido completo:\n" +
		"• Tacos de Asada (TACOS): $85.00 x 2 = $170.00\n"

	snap := ExtractOrder(reply)
	require.Len(t, snap, 1)
	assert.Equal(t, 2, snap[LineKey("Tacos de Asada", "")].Quantity)
}

func TestExtractOrderAccumulatesRepeatedLines(t *testing.T) {
	reply := "Pedido completo:\n" +
		"• Tacos de Asada (TACOS): $85.00 x 2 = $170.00\n" +
		"• [ID:itm-1] Tacos de Asada (TACOS): $85.00 x 1 = $85.00\n"

	snap := ExtractOrder(reply)
	require.Len(t, snap, 1)

	line := snap[LineKey("Tacos de Asada", "")]
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, "itm-1", line.MenuItemID, "later line's ID backfills the bucket")
}

func TestExtractOrderNotesSeparateBuckets(t *testing.T) {
	reply := "Pedido completo:\n" +
		"• Tacos de Asada (TACOS): $85.00 x 1 = $85.00\n" +
		"• Tacos de Asada (TACOS): $85.00 x 1 = $85.00 [nota: sin cebolla]\n"

	snap := ExtractOrder(reply)
	assert.Len(t, snap, 2)
}

func TestExtractOrderSkipsTotalLines(t *testing.T) {
	reply := "Pedido completo:\n" +
		"• Tacos de Asada (TACOS): $85.00 x 2 = $170.00\n" +
		"• Total: $170.00\n"

	snap := ExtractOrder(reply)
	require.Len(t, snap, 1)
	_, hasTotal := snap[LineKey("Total", "")]
	assert.False(t, hasTotal)
}

func TestExtractOrderRejectsMalformedMoney(t *testing.T) {
	snap := ExtractOrder("Pedido completo:\n• Tacos de Asada: $85.5\n")
	assert.Empty(t, snap)
}

func TestExtractOrderIgnoresProseLines(t *testing.T) {
	reply := "Con gusto. Los tacos cuestan $85.00 cada uno.\n¿Algo más?\n"
	assert.Empty(t, ExtractOrder(reply))
}

func TestExtractOrderNoSectionHeaderScansWholeReply(t *testing.T) {
	snap := ExtractOrder("Agregué:\n• Quesadilla (ANTOJITOS): $60.00 x 1 = $60.00\n")
	require.Len(t, snap, 1)
	assert.Equal(t, 60.0, snap[LineKey("Quesadilla", "")].Price)
}

func TestDiffNewKeyContributesFullLine(t *testing.T) {
	current := OrderSnapshot{
		"Tacos de Asada": {Price: 85, Quantity: 2, MenuItemID: "itm-1"},
	}
	changes := Diff(OrderSnapshot{}, current)
	require.Len(t, changes, 1)
	assert.Equal(t, 2, changes["Tacos de Asada"].Quantity)
}

func TestDiffGrownQuantityContributesDelta(t *testing.T) {
	previous := OrderSnapshot{"Tacos de Asada": {Price: 85, Quantity: 2}}
	current := OrderSnapshot{"Tacos de Asada": {Price: 85, Quantity: 5}}

	changes := Diff(previous, current)
	require.Len(t, changes, 1)
	assert.Equal(t, 3, changes["Tacos de Asada"].Quantity)
	assert.Equal(t, 85.0, changes["Tacos de Asada"].Price)
}

func TestDiffEqualOrLowerQuantityNotSurfaced(t *testing.T) {
	previous := OrderSnapshot{
		"Tacos de Asada":   {Price: 85, Quantity: 2},
		"Agua de Horchata": {Price: 35, Quantity: 1},
	}
	current := OrderSnapshot{
		"Tacos de Asada":   {Price: 85, Quantity: 2},
		"Agua de Horchata": {Price: 35, Quantity: 1},
	}
	assert.Empty(t, Diff(previous, current))

	// A shrunken reply (AI dropped a line) must not produce a notification.
	assert.Empty(t, Diff(previous, OrderSnapshot{
		"Tacos de Asada": {Price: 85, Quantity: 1},
	}))
}
