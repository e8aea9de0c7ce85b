package shopping

import "github.com/ramonehamilton/deckvault/internal/storage/models"

// InventoryStats summarizes a user's collection against their decks.
type InventoryStats struct {
	UniqueCards     int     `json:"unique_cards"`
	UniquePrintings int     `json:"unique_printings"`
	TotalCopies     int     `json:"total_copies"`
	TotalInDecks    int     `json:"total_in_decks"`
	Available       int     `json:"available"`
	EstimatedValue  float64 `json:"estimated_value"`
	DeckCount       int     `json:"deck_count"`
}

// Inventory computes InventoryStats. totalInDecks covers every board of
// every deck; Available may go negative when decks use cards the user does
// not own.
func Inventory(items []*models.InventoryItem, totalInDecks, deckCount int) *InventoryStats {
	stats := &InventoryStats{
		UniquePrintings: len(items),
		TotalInDecks:    totalInDecks,
		DeckCount:       deckCount,
	}
	cards := make(map[int64]struct{})
	for _, item := range items {
		cards[item.CardID] = struct{}{}
		stats.TotalCopies += item.Quantity
		stats.EstimatedValue += item.Price * float64(item.Quantity)
	}
	stats.UniqueCards = len(cards)
	stats.Available = stats.TotalCopies - totalInDecks
	stats.EstimatedValue = round2(stats.EstimatedValue)
	return stats
}
