package handlers

import (
	"net/http"
	"strings"

	"github.com/ramonehamilton/deckvault/internal/api/response"
	"github.com/ramonehamilton/deckvault/internal/service"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// InventoryHandler handles the caller's owned printings and shopping lists.
type InventoryHandler struct {
	inventory *service.InventoryService
	shopping  *service.ShoppingService
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(inventory *service.InventoryService, shopping *service.ShoppingService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, shopping: shopping}
}

// List returns one page of the inventory.
//
// Query: search, set, rarity, color, sort, order, page, page_size.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := repository.InventoryFilter{
		Search:  strings.TrimSpace(q.Get("search")),
		SetCode: strings.TrimSpace(q.Get("set")),
		Rarity:  strings.ToLower(strings.TrimSpace(q.Get("rarity"))),
		Color:   strings.ToUpper(strings.TrimSpace(q.Get("color"))),
	}
	filter.Sort, filter.Desc = sortParams(r)
	page, err := queryPage(r)
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	filter.Page = page

	items, total, page, err := h.inventory.List(r.Context(), userID, filter)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Paginated(w, items, page.Page, page.PageSize, total)
}

// Stats returns inventory totals.
func (h *InventoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	stats, err := h.inventory.Stats(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, stats)
}

// Search finds printings to add.
func (h *InventoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		response.BadRequest(w, err)
		return
	}
	results, err := h.inventory.Search(r.Context(), userID, r.URL.Query().Get("q"), limit)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, results)
}

// BulkAddRequest carries a card list, one card per line.
type BulkAddRequest struct {
	Text string `json:"text"`
}

// BulkAdd adds a pasted card list.
func (h *InventoryHandler) BulkAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req BulkAddRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.inventory.BulkAdd(r.Context(), userID, req.Text)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

// QuickAddRequest changes a printing's owned quantity by Delta.
type QuickAddRequest struct {
	PrintingID int64 `json:"printing_id"`
	Delta      int   `json:"delta"`
}

// QuickAdd increments a printing.
func (h *InventoryHandler) QuickAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req QuickAddRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	qty, err := h.inventory.QuickAdd(r.Context(), userID, req.PrintingID, req.Delta)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, map[string]interface{}{
		"printing_id": req.PrintingID,
		"quantity":    qty,
	})
}

// ShoppingList builds the list of unowned mainboard cards.
func (h *InventoryHandler) ShoppingList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req service.ShoppingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	list, err := h.shopping.Build(r.Context(), userID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, list)
}
