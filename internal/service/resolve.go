package service

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/deckvault/internal/mtg/deckimport"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// errUnresolved marks a decklist line that names no known card or printing.
type errUnresolved struct {
	msg string
}

func (e *errUnresolved) Error() string { return e.msg }

// resolvePrinting maps a parsed decklist line to a printing. A set code
// picks a printing in that set (and collector number when given); without
// one the card's default printing is used.
func resolvePrinting(ctx context.Context, cards repository.CardRepository, pc *deckimport.ParsedCard) (*models.Printing, error) {
	card, err := cards.GetByName(ctx, pc.Name)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, &errUnresolved{msg: fmt.Sprintf("card not found: %s", pc.Name)}
	}

	var printing *models.Printing
	if pc.SetCode != "" {
		printing, err = cards.FindPrintingInSet(ctx, card.ID, pc.SetCode, pc.CollectorNumber)
		if err != nil {
			return nil, err
		}
		if printing == nil {
			if pc.CollectorNumber != "" {
				return nil, &errUnresolved{msg: fmt.Sprintf("%s has no printing %s #%s", card.Name, pc.SetCode, pc.CollectorNumber)}
			}
			return nil, &errUnresolved{msg: fmt.Sprintf("%s has no printing in set %s", card.Name, pc.SetCode)}
		}
		return printing, nil
	}

	printing, err = cards.DefaultPrinting(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	if printing == nil {
		return nil, &errUnresolved{msg: fmt.Sprintf("%s has no printings", card.Name)}
	}
	return printing, nil
}
