package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petits-plats/api/internal/directory"
	"github.com/petits-plats/api/internal/enum"
	"github.com/petits-plats/api/internal/model"
	"github.com/petits-plats/api/internal/session"
)

// SheetFetcher downloads the published clients sheet. Satisfied by
// *directory.SheetFetcher.
type SheetFetcher interface {
	Fetch(ctx context.Context) ([]model.Customer, []model.Warning, error)
}

// ClientStore defines the table methods needed by the clients handler.
// Satisfied by *storage.Store.
type ClientStore interface {
	LoadClients() ([]model.Customer, []model.Warning, error)
	SaveClients(customers []model.Customer) error
}

// ClientsHandler serves the client directory grid. The view merges the sheet
// export, the locally saved table and the per-customer files, deduplicated
// by display name; saving persists the edited table locally.
type ClientsHandler struct {
	fetcher  SheetFetcher // nil when no sheet is configured
	filesDir string       // empty when per-customer files are not used
	store    ClientStore
	sessions *session.Store
	hub      Broadcaster
}

// NewClientsHandler creates a new ClientsHandler.
func NewClientsHandler(fetcher SheetFetcher, filesDir string, store ClientStore, sessions *session.Store, hub Broadcaster) *ClientsHandler {
	return &ClientsHandler{
		fetcher:  fetcher,
		filesDir: filesDir,
		store:    store,
		sessions: sessions,
		hub:      hub,
	}
}

// RegisterRoutes registers the clients endpoints.
func (h *ClientsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/", h.Save)
}

type clientsResponse struct {
	SessionID string          `json:"session_id"`
	Rows      []clientRow     `json:"rows"`
	Warnings  []model.Warning `json:"warnings"`
}

type saveClientsRequest struct {
	SessionID string      `json:"session_id"`
	Rows      []clientRow `json:"rows"`
}

// List returns the merged directory. With ?refresh=1 the sheet export is
// refetched; an unavailable sheet degrades to the local sources with a
// warning.
func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	var warnings []model.Warning
	var fromSheet []model.Customer

	if r.URL.Query().Get("refresh") != "" && h.fetcher != nil {
		sheet, sheetWarnings, err := h.fetcher.Fetch(r.Context())
		warnings = append(warnings, sheetWarnings...)
		if err != nil {
			log.Printf("WARN: fetch clients sheet: %v", err)
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnSourceUnavailable,
				Message: "clients sheet unavailable; showing local directory",
			})
		} else {
			fromSheet = sheet
		}
	}

	local, localWarnings, err := h.store.LoadClients()
	if err != nil {
		log.Printf("ERROR: load clients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	warnings = append(warnings, localWarnings...)

	var fromFiles []model.Customer
	if h.filesDir != "" {
		var fileWarnings []model.Warning
		fromFiles, fileWarnings = directory.LoadCustomerFiles(h.filesDir)
		warnings = append(warnings, fileWarnings...)
	}

	merged := directory.Merge(fromSheet, local, fromFiles)
	h.respond(w, merged, warnings)
}

// Save persists the edited directory to the clients table.
func (h *ClientsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveClientsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session_id"})
		return
	}
	if _, ok := h.sessions.Get(sessionID); !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session expired; reload the grid"})
		return
	}

	customers := make([]model.Customer, len(req.Rows))
	for i, row := range req.Rows {
		row.Name = strings.TrimSpace(row.Name)
		if row.Name == "" && row.CustomerID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("row %d: name or customer_id is required", i+1),
			})
			return
		}
		if !enum.IsValidRoute(row.Route) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("row %d: unknown route %q", i+1, row.Route),
			})
			return
		}
		customers[i] = model.Customer(row)
	}

	if err := h.store.SaveClients(customers); err != nil {
		log.Printf("ERROR: save clients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.sessions.Delete(sessionID)
	broadcastChange(h.hub, enum.TableClients)
	h.respond(w, customers, nil)
}

func (h *ClientsHandler) respond(w http.ResponseWriter, customers []model.Customer, warnings []model.Warning) {
	sess := h.sessions.Create(enum.TableClients)
	writeJSON(w, http.StatusOK, clientsResponse{
		SessionID: sess.ID.String(),
		Rows:      toClientRows(customers),
		Warnings:  nonNilWarnings(warnings),
	})
}
