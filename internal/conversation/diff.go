package conversation

// Diff computes the incremental additions between the snapshot last sent to
// staff and a freshly extracted one. A key absent from previous contributes
// its full current entry; a key whose quantity grew contributes only the
// positive delta at the current unit price. Equal or lower quantities are
// never surfaced: within one open order the snapshot is append-only from
// the customer's perspective. An empty result means "do not notify".
func Diff(previous, current OrderSnapshot) OrderSnapshot {
	changes := make(OrderSnapshot)
	for key, line := range current {
		prev, exists := previous[key]
		if !exists {
			changes[key] = line
			continue
		}
		if line.Quantity > prev.Quantity {
			delta := line
			delta.Quantity = line.Quantity - prev.Quantity
			changes[key] = delta
		}
	}
	return changes
}
