package handlers

import (
	"errors"
	"net/http"

	"github.com/ramonehamilton/deckvault/internal/api/response"
	"github.com/ramonehamilton/deckvault/internal/mtg/deckstats"
	"github.com/ramonehamilton/deckvault/internal/service"
)

// DeckHandler handles the deck builder and deck sharing.
type DeckHandler struct {
	decks  *service.DeckService
	shares *service.ShareService
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(decks *service.DeckService, shares *service.ShareService) *DeckHandler {
	return &DeckHandler{decks: decks, shares: shares}
}

// deckParams resolves the caller and the deckID parameter.
func deckParams(w http.ResponseWriter, r *http.Request) (userID, deckID int64, ok bool) {
	if userID, ok = currentUserID(w, r); !ok {
		return 0, 0, false
	}
	if deckID, ok = pathID(w, r, "deckID"); !ok {
		return 0, 0, false
	}
	return userID, deckID, true
}

// GetDecks returns the caller's decks.
func (h *DeckHandler) GetDecks(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	decks, err := h.decks.List(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, decks)
}

// CreateDeck creates an empty deck.
func (h *DeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req service.DeckInput
	if !decodeJSON(w, r, &req) {
		return
	}
	deck, err := h.decks.Create(r.Context(), userID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, deck)
}

// GetDeck returns a deck with its cards.
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	deck, err := h.decks.Get(r.Context(), userID, deckID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, deck)
}

// UpdateDeck changes deck fields.
func (h *DeckHandler) UpdateDeck(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	var req service.DeckInput
	if !decodeJSON(w, r, &req) {
		return
	}
	deck, err := h.decks.Update(r.Context(), userID, deckID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, deck)
}

// DeleteDeck deletes a deck.
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	if err := h.decks.Delete(r.Context(), userID, deckID); err != nil {
		response.FromError(w, err)
		return
	}
	response.NoContent(w)
}

// AddCard adds a printing to a deck.
func (h *DeckHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	var req service.AddCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	card, err := h.decks.AddCard(r.Context(), userID, deckID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, card)
}

// UpdateCard edits a deck card. A removed card answers 204.
func (h *DeckHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	deckCardID, ok := pathID(w, r, "deckCardID")
	if !ok {
		return
	}
	var req service.UpdateCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	card, err := h.decks.UpdateCard(r.Context(), userID, deckID, deckCardID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if card == nil {
		response.NoContent(w)
		return
	}
	response.Success(w, card)
}

// RemoveCard deletes a deck card.
func (h *DeckHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	deckCardID, ok := pathID(w, r, "deckCardID")
	if !ok {
		return
	}
	if err := h.decks.RemoveCard(r.Context(), userID, deckID, deckCardID); err != nil {
		response.FromError(w, err)
		return
	}
	response.NoContent(w)
}

// GetDeckStats returns curve, colour and type statistics.
func (h *DeckHandler) GetDeckStats(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	stats, err := h.decks.Stats(r.Context(), userID, deckID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, stats)
}

// GetDeckPrice returns the deck value.
func (h *DeckHandler) GetDeckPrice(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	price, err := h.decks.Price(r.Context(), userID, deckID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, price)
}

// GetLegality checks the deck against ?format=, defaulting to its own.
func (h *DeckHandler) GetLegality(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	report, err := h.decks.Legality(r.Context(), userID, deckID, r.URL.Query().Get("format"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, report)
}

// ExportDeck downloads the deck as ?format=text|csv|json.
func (h *DeckHandler) ExportDeck(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	file, err := h.decks.Export(r.Context(), userID, deckID, r.URL.Query().Get("format"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

// Optimize suggests sets to unify the deck's printings.
func (h *DeckHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	opts := deckstats.OptimizeOptions{Limit: limit, ExcludeCommander: queryBool(r, "exclude_commander")}
	result, err := h.decks.Optimize(r.Context(), userID, deckID, opts)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

// ApplyOptimizationRequest lists the printing swaps to apply.
type ApplyOptimizationRequest struct {
	Changes []service.PrintingChange `json:"changes"`
}

// ApplyOptimization swaps printings atomically.
func (h *DeckHandler) ApplyOptimization(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	var req ApplyOptimizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.decks.ApplyOptimization(r.Context(), userID, deckID, req.Changes)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

// ImportDeck creates a deck from decklist text.
func (h *DeckHandler) ImportDeck(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req service.ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.decks.CreateFromImport(r.Context(), userID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, result)
}

// ImportIntoDeck adds decklist text to an existing deck.
func (h *DeckHandler) ImportIntoDeck(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	var req service.ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.decks.Import(r.Context(), userID, deckID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

// CreateShareRequest optionally limits a share's lifetime.
type CreateShareRequest struct {
	ExpiresInDays *int `json:"expires_in_days,omitempty"`
}

// CreateShare issues a public link for the deck.
func (h *DeckHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	var req CreateShareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	share, err := h.shares.Create(r.Context(), userID, deckID, req.ExpiresInDays)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, share)
}

// DeactivateShare revokes the deck's public link.
func (h *DeckHandler) DeactivateShare(w http.ResponseWriter, r *http.Request) {
	userID, deckID, ok := deckParams(w, r)
	if !ok {
		return
	}
	if err := h.shares.Deactivate(r.Context(), userID, deckID); err != nil {
		response.FromError(w, err)
		return
	}
	response.NoContent(w)
}

// SharedDeckHandler serves public share links.
type SharedDeckHandler struct {
	shares *service.ShareService
}

// NewSharedDeckHandler creates a new SharedDeckHandler.
func NewSharedDeckHandler(shares *service.ShareService) *SharedDeckHandler {
	return &SharedDeckHandler{shares: shares}
}

// GetShared returns a shared deck. No authentication required.
func (h *SharedDeckHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	shared, err := h.shares.Get(r.Context(), tokenParam(r))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, shared)
}

// ImportSharedRequest optionally renames the copy.
type ImportSharedRequest struct {
	Name string `json:"name,omitempty"`
}

// ImportShared copies a shared deck into the caller's account.
func (h *SharedDeckHandler) ImportShared(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req ImportSharedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token := tokenParam(r)
	if token == "" {
		response.BadRequest(w, errors.New("share token is required"))
		return
	}
	deck, err := h.shares.Import(r.Context(), userID, token, req.Name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, deck)
}
