package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// ItemError is one snapshot entry that could not be restored.
type ItemError struct {
	Item    string `json:"item"`
	Message string `json:"message"`
}

// RestoreResult counts what a restore wrote.
type RestoreResult struct {
	Overwrite      bool        `json:"overwrite"`
	Users          int         `json:"users"`
	APIKeys        int         `json:"api_keys"`
	OwnedPrintings int         `json:"owned_printings"`
	OwnedCards     int         `json:"owned_cards"`
	Decks          int         `json:"decks"`
	DeckCards      int         `json:"deck_cards"`
	DeckShares     int         `json:"deck_shares"`
	Skipped        int         `json:"skipped"`
	NotFound       int         `json:"not_found"`
	Succeeded      int         `json:"succeeded"`
	Failed         int         `json:"failed"`
	Errors         []ItemError `json:"errors"`
}

func (r *RestoreResult) fail(item string, err error) {
	r.Errors = append(r.Errors, ItemError{Item: item, Message: err.Error()})
}

type restorer struct {
	users     repository.UserRepository
	keys      repository.APIKeyRepository
	cards     repository.CardRepository
	ownership repository.OwnershipRepository
	decks     repository.DeckRepository
	shares    repository.ShareRepository

	overwrite bool
	result    *RestoreResult

	userIDs   map[string]int64
	deckIDs   map[int64]int64
	uuids     map[string]int64
	userDecks map[int64]map[string]bool
}

// restore writes data through db, which is normally a transaction. Entries
// that fail are recorded and skipped; only a failure to wipe or index the
// existing data is returned as an error.
func restore(ctx context.Context, db repository.DBTX, data *Data, overwrite bool) (*RestoreResult, error) {
	r := &restorer{
		users:     repository.NewUserRepository(db),
		keys:      repository.NewAPIKeyRepository(db),
		cards:     repository.NewCardRepository(db),
		ownership: repository.NewOwnershipRepository(db),
		decks:     repository.NewDeckRepository(db),
		shares:    repository.NewShareRepository(db),
		overwrite: overwrite,
		result:    &RestoreResult{Overwrite: overwrite, Errors: []ItemError{}},
		userIDs:   make(map[string]int64),
		deckIDs:   make(map[int64]int64),
		userDecks: make(map[int64]map[string]bool),
	}

	if overwrite {
		if err := r.users.DeleteAll(ctx); err != nil {
			return nil, err
		}
	}

	uuids, err := repository.NewCatalogRepository(db).PrintingIDsByUUID(ctx)
	if err != nil {
		return nil, err
	}
	r.uuids = uuids

	r.restoreUsers(ctx, data.Users)
	r.restoreAPIKeys(ctx, data.APIKeys)
	r.restoreDecks(ctx, data.Decks)
	r.restoreDeckCards(ctx, data.DeckCards)
	r.restoreOwnedPrintings(ctx, data.OwnedPrintings)
	r.restoreOwnedCards(ctx, data.OwnedCards)
	r.restoreShares(ctx, data.DeckShares)

	res := r.result
	res.Succeeded = res.Users + res.APIKeys + res.OwnedPrintings + res.OwnedCards + res.Decks + res.DeckCards + res.DeckShares
	res.Failed = len(res.Errors)
	return res, nil
}

func (r *restorer) userID(ctx context.Context, username string) (int64, error) {
	key := strings.ToLower(username)
	if id, ok := r.userIDs[key]; ok {
		return id, nil
	}
	u, err := r.users.GetByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	if u == nil {
		return 0, fmt.Errorf("unknown user %q", username)
	}
	r.userIDs[key] = u.ID
	return u.ID, nil
}

func (r *restorer) restoreUsers(ctx context.Context, records []UserRecord) {
	for _, rec := range records {
		item := "user " + rec.Username
		existing, err := r.users.GetByUsername(ctx, rec.Username)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		if existing != nil {
			r.userIDs[strings.ToLower(rec.Username)] = existing.ID
			r.result.Skipped++
			continue
		}

		user := &models.User{
			Username:     rec.Username,
			Email:        rec.Email,
			PasswordHash: rec.PasswordHash,
			IsAdmin:      rec.IsAdmin,
		}
		if err := r.users.Create(ctx, user); err != nil {
			r.result.fail(item, err)
			continue
		}
		// the first user is always created as admin
		if user.IsAdmin != rec.IsAdmin {
			user.IsAdmin = rec.IsAdmin
			if err := r.users.Update(ctx, user); err != nil {
				r.result.fail(item, err)
				continue
			}
		}
		r.userIDs[strings.ToLower(rec.Username)] = user.ID
		r.result.Users++
	}
}

func (r *restorer) restoreAPIKeys(ctx context.Context, records []APIKeyRecord) {
	for _, rec := range records {
		item := fmt.Sprintf("api key %s/%s", rec.Username, rec.Name)
		userID, err := r.userID(ctx, rec.Username)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		existing, err := r.keys.GetByHash(ctx, rec.KeyHash)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		if existing != nil {
			r.result.Skipped++
			continue
		}
		key := &models.APIKey{
			UserID:     userID,
			Name:       rec.Name,
			KeyPrefix:  rec.KeyPrefix,
			KeyHash:    rec.KeyHash,
			CreatedAt:  rec.CreatedAt,
			LastUsedAt: rec.LastUsedAt,
		}
		if err := r.keys.Create(ctx, key); err != nil {
			r.result.fail(item, err)
			continue
		}
		r.result.APIKeys++
	}
}

// deckExists reports whether the user already has a deck with this name.
func (r *restorer) deckExists(ctx context.Context, userID int64, name string) (bool, error) {
	names, ok := r.userDecks[userID]
	if !ok {
		decks, err := r.decks.ListByUser(ctx, userID)
		if err != nil {
			return false, err
		}
		names = make(map[string]bool, len(decks))
		for _, d := range decks {
			names[strings.ToLower(d.Name)] = true
		}
		r.userDecks[userID] = names
	}
	return names[strings.ToLower(name)], nil
}

func (r *restorer) restoreDecks(ctx context.Context, records []DeckRecord) {
	for _, rec := range records {
		item := fmt.Sprintf("deck %s/%s", rec.Username, rec.Name)
		userID, err := r.userID(ctx, rec.Username)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		if !r.overwrite {
			exists, err := r.deckExists(ctx, userID, rec.Name)
			if err != nil {
				r.result.fail(item, err)
				continue
			}
			if exists {
				// zero marks a kept deck so its cards and shares are skipped too
				r.deckIDs[rec.ID] = 0
				r.result.Skipped++
				continue
			}
		}

		deck := &models.Deck{
			UserID:      userID,
			Name:        rec.Name,
			Format:      rec.Format,
			Description: rec.Description,
			CreatedAt:   rec.CreatedAt,
		}
		if err := r.decks.Create(ctx, deck); err != nil {
			r.result.fail(item, err)
			continue
		}
		r.deckIDs[rec.ID] = deck.ID
		r.result.Decks++
	}
}

// resolvePrinting finds the printing by UUID, then the card's default
// printing by name. It returns 0 when neither exists.
func (r *restorer) resolvePrinting(ctx context.Context, uuid, cardName string) (int64, error) {
	if id, ok := r.uuids[uuid]; ok && uuid != "" {
		return id, nil
	}
	if cardName == "" {
		return 0, nil
	}
	card, err := r.cards.GetByName(ctx, cardName)
	if err != nil || card == nil {
		return 0, err
	}
	p, err := r.cards.DefaultPrinting(ctx, card.ID)
	if err != nil || p == nil {
		return 0, err
	}
	return p.ID, nil
}

func (r *restorer) restoreDeckCards(ctx context.Context, records []DeckCardRecord) {
	for _, rec := range records {
		item := fmt.Sprintf("deck card %s in deck %d", rec.CardName, rec.DeckID)
		deckID, ok := r.deckIDs[rec.DeckID]
		if !ok {
			r.result.fail(item, fmt.Errorf("unknown deck %d", rec.DeckID))
			continue
		}
		if deckID == 0 {
			continue
		}
		if !rec.BoardType.Valid() {
			r.result.fail(item, fmt.Errorf("invalid board type %q", rec.BoardType))
			continue
		}
		printingID, err := r.resolvePrinting(ctx, rec.PrintingUUID, rec.CardName)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		if printingID == 0 {
			r.result.NotFound++
			continue
		}
		card := &models.DeckCard{
			DeckID:      deckID,
			PrintingID:  printingID,
			Quantity:    rec.Quantity,
			IsCommander: rec.IsCommander,
			BoardType:   rec.BoardType,
		}
		if err := r.decks.AddCard(ctx, card); err != nil {
			r.result.fail(item, err)
			continue
		}
		r.result.DeckCards++
	}
}

func (r *restorer) restoreOwnedPrintings(ctx context.Context, records []OwnedPrintingRecord) {
	for _, rec := range records {
		item := fmt.Sprintf("owned printing %s/%s", rec.Username, rec.PrintingUUID)
		userID, err := r.userID(ctx, rec.Username)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		printingID, ok := r.uuids[rec.PrintingUUID]
		if !ok {
			r.result.NotFound++
			continue
		}
		if !r.overwrite {
			current, err := r.ownership.GetQuantity(ctx, userID, printingID)
			if err != nil {
				r.result.fail(item, err)
				continue
			}
			if current > 0 {
				r.result.Skipped++
				continue
			}
		}
		if _, err := r.ownership.AddQuantity(ctx, userID, printingID, rec.Quantity); err != nil {
			r.result.fail(item, err)
			continue
		}
		r.result.OwnedPrintings++
	}
}

// restoreOwnedCards makes sure every owned card is still owned, adding one
// copy of the default printing when none of its printings came back.
func (r *restorer) restoreOwnedCards(ctx context.Context, records []OwnedCardRecord) {
	for _, rec := range records {
		item := fmt.Sprintf("owned card %s/%s", rec.Username, rec.CardName)
		userID, err := r.userID(ctx, rec.Username)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		card, err := r.cards.GetByName(ctx, rec.CardName)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		if card == nil {
			r.result.NotFound++
			continue
		}
		owns, err := r.ownership.OwnsCard(ctx, userID, card.ID)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		if owns {
			continue
		}
		p, err := r.cards.DefaultPrinting(ctx, card.ID)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		if p == nil {
			r.result.NotFound++
			continue
		}
		if _, err := r.ownership.AddQuantity(ctx, userID, p.ID, 1); err != nil {
			r.result.fail(item, err)
			continue
		}
		r.result.OwnedCards++
	}
}

func (r *restorer) restoreShares(ctx context.Context, records []DeckShareRecord) {
	for _, rec := range records {
		item := fmt.Sprintf("share of deck %d", rec.DeckID)
		deckID, ok := r.deckIDs[rec.DeckID]
		if !ok {
			r.result.fail(item, fmt.Errorf("unknown deck %d", rec.DeckID))
			continue
		}
		if deckID == 0 {
			continue
		}
		existing, err := r.shares.GetByToken(ctx, rec.Token)
		if err != nil {
			r.result.fail(item, err)
			continue
		}
		if existing != nil {
			r.result.Skipped++
			continue
		}
		share := &models.DeckShare{
			DeckID:    deckID,
			Token:     rec.Token,
			IsActive:  rec.IsActive,
			CreatedAt: rec.CreatedAt,
			ExpiresAt: rec.ExpiresAt,
			ViewCount: rec.ViewCount,
		}
		if err := r.shares.Create(ctx, share); err != nil {
			r.result.fail(item, err)
			continue
		}
		r.result.DeckShares++
	}
}
