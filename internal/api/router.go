package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ramonehamilton/deckvault/internal/api/handlers"
	"github.com/ramonehamilton/deckvault/internal/api/response"
	"github.com/ramonehamilton/deckvault/internal/version"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint (no versioning)
	s.router.Get("/health", s.healthCheck)

	authHandler := handlers.NewAuthHandler(s.facades.Accounts)
	cardHandler := handlers.NewCardHandler(s.facades.Cards)
	deckHandler := handlers.NewDeckHandler(s.facades.Decks, s.facades.Shares)
	sharedHandler := handlers.NewSharedDeckHandler(s.facades.Shares)
	inventoryHandler := handlers.NewInventoryHandler(s.facades.Inventory, s.facades.Shopping)
	adminHandler := handlers.NewAdminHandler(s.facades.Admin, s.facades.Accounts)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/refresh", authHandler.Refresh)
			r.Get("/shared/{token}", sharedHandler.GetShared)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))

			r.Route("/auth", func(r chi.Router) {
				r.Get("/me", authHandler.Me)
				r.Get("/stats", authHandler.Stats)
				r.Get("/api-keys", authHandler.ListAPIKeys)
				r.Post("/api-keys", authHandler.CreateAPIKey)
				r.Delete("/api-keys/{keyID}", authHandler.DeleteAPIKey)
			})

			r.Route("/cards", func(r chi.Router) {
				r.Get("/", cardHandler.Browse)
				r.Get("/search", cardHandler.Search)
				r.Get("/{cardID}", cardHandler.GetCard)
				r.Post("/{cardID}/owned", cardHandler.ToggleOwned)
			})
			r.Put("/printings/{printingID}/quantity", cardHandler.SetPrintingQuantity)

			r.Route("/decks", func(r chi.Router) {
				r.Get("/", deckHandler.GetDecks)
				r.Post("/", deckHandler.CreateDeck)
				r.Post("/import", deckHandler.ImportDeck)
				r.Get("/{deckID}", deckHandler.GetDeck)
				r.Put("/{deckID}", deckHandler.UpdateDeck)
				r.Delete("/{deckID}", deckHandler.DeleteDeck)
				r.Post("/{deckID}/cards", deckHandler.AddCard)
				r.Put("/{deckID}/cards/{deckCardID}", deckHandler.UpdateCard)
				r.Delete("/{deckID}/cards/{deckCardID}", deckHandler.RemoveCard)
				r.Get("/{deckID}/stats", deckHandler.GetDeckStats)
				r.Get("/{deckID}/price", deckHandler.GetDeckPrice)
				r.Post("/{deckID}/import", deckHandler.ImportIntoDeck)
				r.Get("/{deckID}/legality", deckHandler.GetLegality)
				r.Get("/{deckID}/export", deckHandler.ExportDeck)
				r.Get("/{deckID}/optimize", deckHandler.Optimize)
				r.Post("/{deckID}/optimize/apply", deckHandler.ApplyOptimization)
				r.Post("/{deckID}/share", deckHandler.CreateShare)
				r.Delete("/{deckID}/share", deckHandler.DeactivateShare)
			})

			r.Post("/shared/{token}/import", sharedHandler.ImportShared)

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", inventoryHandler.List)
				r.Get("/stats", inventoryHandler.Stats)
				r.Get("/search", inventoryHandler.Search)
				r.Post("/bulk-add", inventoryHandler.BulkAdd)
				r.Post("/quick-add", inventoryHandler.QuickAdd)
			})

			r.Post("/shopping", inventoryHandler.ShoppingList)
		})

		// Admin routes. Sync and restore block until done, so no timeout.
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Use(s.requireAdmin)

			r.Post("/sync", adminHandler.Sync)
			r.Get("/sync/status", adminHandler.SyncStatus)

			r.Get("/backups", adminHandler.ListBackups)
			r.Post("/backups", adminHandler.CreateBackup)
			r.Get("/backups/schedule", adminHandler.GetSchedule)
			r.Put("/backups/schedule", adminHandler.UpdateSchedule)
			r.Get("/backups/{filename}", adminHandler.DownloadBackup)
			r.Delete("/backups/{filename}", adminHandler.DeleteBackup)
			r.Post("/backups/{filename}/restore", adminHandler.RestoreBackup)

			r.Get("/metrics", s.metricsHandler)

			r.Get("/users", adminHandler.ListUsers)
			r.Put("/users/{userID}", adminHandler.UpdateUser)
			r.Delete("/users/{userID}", adminHandler.DeleteUser)

			// WebSocket endpoint (no JSON content-type requirement)
			r.Get("/events", s.wsHub.ServeWs)
		})
	})
}

// metricsHandler returns request and sync statistics.
func (s *Server) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.metrics.GetStats())
}

// healthCheck returns server health status.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "deckvault-api",
		"version": version.GetVersion(),
	})
}
