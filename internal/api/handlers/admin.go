package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/deckvault/internal/api/response"
	"github.com/ramonehamilton/deckvault/internal/service"
)

// AdminHandler handles catalog sync, backups and user management. Routes
// are mounted behind the admin check.
type AdminHandler struct {
	admin    *service.AdminService
	accounts *service.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin *service.AdminService, accounts *service.AccountService) *AdminHandler {
	return &AdminHandler{admin: admin, accounts: accounts}
}

// Sync runs a catalog sync and returns its statistics once finished.
func (h *AdminHandler) Sync(w http.ResponseWriter, r *http.Request) {
	triggeredBy := "api"
	if user := UserFromContext(r.Context()); user != nil {
		triggeredBy = user.Username
	}
	stats, err := h.admin.Sync(r.Context(), triggeredBy)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, stats)
}

// SyncStatus returns the last sync state and catalog size.
func (h *AdminHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.admin.SyncStatus(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, status)
}

// ListBackups returns the stored backups.
func (h *AdminHandler) ListBackups(w http.ResponseWriter, _ *http.Request) {
	backups, err := h.admin.ListBackups()
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, backups)
}

// CreateBackup takes a manual backup.
func (h *AdminHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	info, err := h.admin.CreateBackup(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, info)
}

// DownloadBackup streams a backup file.
func (h *AdminHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	f, err := h.admin.OpenBackup(name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	defer func() {
		_ = f.Close()
	}()

	stat, err := f.Stat()
	if err != nil {
		response.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(name)+`"`)
	http.ServeContent(w, r, filepath.Base(name), stat.ModTime(), f)
}

// DeleteBackup removes a backup file.
func (h *AdminHandler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteBackup(r.Context(), chi.URLParam(r, "filename")); err != nil {
		response.FromError(w, err)
		return
	}
	response.NoContent(w)
}

// RestoreRequest selects merge (default) or overwrite.
type RestoreRequest struct {
	Overwrite bool `json:"overwrite"`
}

// RestoreBackup restores a backup file.
func (h *AdminHandler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.admin.RestoreBackup(r.Context(), chi.URLParam(r, "filename"), req.Overwrite)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, result)
}

// GetSchedule returns the backup schedule and scheduler state.
func (h *AdminHandler) GetSchedule(w http.ResponseWriter, _ *http.Request) {
	status, err := h.admin.Schedule()
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, status)
}

// UpdateSchedule replaces the backup schedule.
func (h *AdminHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	current, err := h.admin.Schedule()
	if err != nil {
		response.FromError(w, err)
		return
	}
	// Fields missing from the body keep their current value.
	cfg := current.ScheduleConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	status, err := h.admin.UpdateSchedule(r.Context(), cfg)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, status)
}

// ListUsers returns every account.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, users)
}

// UpdateUser changes another account's email or admin flag.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req service.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.accounts.UpdateUser(r.Context(), actorID, userID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, user)
}

// DeleteUser deletes an account with its decks and inventory.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.accounts.DeleteUser(r.Context(), actorID, userID); err != nil {
		response.FromError(w, err)
		return
	}
	response.NoContent(w)
}
