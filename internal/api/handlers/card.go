package handlers

import (
	"net/http"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/api/response"
	"github.com/ramonehamilton/deckvault/internal/service"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// CardHandler handles catalog browsing and ownership toggles.
type CardHandler struct {
	cards *service.CardService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cards *service.CardService) *CardHandler {
	return &CardHandler{cards: cards}
}

// Browse returns a filtered page of cards.
//
// Query: name, colors, type, sets, subtypes, cmc_min, cmc_max, ownership,
// sort, order, page, page_size.
func (h *CardHandler) Browse(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := repository.CardFilter{
		Name:      strings.TrimSpace(q.Get("name")),
		Colors:    queryList(r, "colors"),
		Type:      strings.TrimSpace(q.Get("type")),
		SetCodes:  queryList(r, "sets"),
		Subtypes:  queryList(r, "subtypes"),
		Ownership: strings.ToLower(q.Get("ownership")),
	}
	filter.Sort, filter.Desc = sortParams(r)

	var err error
	if filter.MinCMC, err = queryFloat(r, "cmc_min"); err != nil {
		response.BadRequest(w, err)
		return
	}
	if filter.MaxCMC, err = queryFloat(r, "cmc_max"); err != nil {
		response.BadRequest(w, err)
		return
	}
	if filter.Page, err = queryPage(r); err != nil {
		response.BadRequest(w, err)
		return
	}

	items, total, page, err := h.cards.Browse(r.Context(), userID, filter)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Paginated(w, items, page.Page, page.PageSize, total)
}

// Search returns autocomplete candidates for q.
func (h *CardHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	refs, err := h.cards.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, refs)
}

// GetCard returns the card detail view.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	detail, err := h.cards.Get(r.Context(), userID, cardID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, detail)
}

// ToggleOwned flips ownership of a card.
func (h *CardHandler) ToggleOwned(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardID")
	if !ok {
		return
	}
	result, err := h.cards.ToggleOwned(r.Context(), userID, cardID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

// SetQuantityRequest sets an absolute owned quantity.
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// SetPrintingQuantity stores how many copies of a printing are owned.
func (h *CardHandler) SetPrintingQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	printingID, ok := pathID(w, r, "printingID")
	if !ok {
		return
	}
	var req SetQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.cards.SetPrintingQuantity(r.Context(), userID, printingID, req.Quantity)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}
