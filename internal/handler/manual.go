package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petits-plats/api/internal/enum"
	"github.com/petits-plats/api/internal/model"
	"github.com/petits-plats/api/internal/session"
	"github.com/petits-plats/api/internal/storage"
)

// ManualStore defines the table methods needed by the manual-orders handler.
// Satisfied by *storage.Store.
type ManualStore interface {
	LoadOrders(file string) ([]model.OrderLine, []model.Warning, error)
	SaveOrders(file string, rows []model.OrderLine) error
}

// ManualHandler serves the manually-added-orders grid. Unlike the platform
// grid, a save merges into the existing table: rows keep their numbers and
// new rows get the next free ones.
type ManualHandler struct {
	store    ManualStore
	sessions *session.Store
	hub      Broadcaster
}

// NewManualHandler creates a new ManualHandler.
func NewManualHandler(store ManualStore, sessions *session.Store, hub Broadcaster) *ManualHandler {
	return &ManualHandler{store: store, sessions: sessions, hub: hub}
}

// RegisterRoutes registers the manual-orders endpoints.
func (h *ManualHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/", h.Save)
}

// List returns the manual orders table.
func (h *ManualHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, warnings, err := h.store.LoadOrders(storage.ManualFile)
	if err != nil {
		log.Printf("ERROR: load manual orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.respond(w, rows, warnings)
}

// Save merges the edited grid into the manual orders table.
func (h *ManualHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveOrdersRequest
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

	edited, err := rowsToModel(req.Rows)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	existing, warnings, err := h.store.LoadOrders(storage.ManualFile)
	if err != nil {
		log.Printf("ERROR: load manual orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	rows, conflicts := storage.Upsert(existing, edited)
	warnings = append(warnings, conflicts...)
	if err := h.store.SaveOrders(storage.ManualFile, rows); err != nil {
		log.Printf("ERROR: save manual orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.sessions.Delete(sessionID)
	broadcastChange(h.hub, enum.TableManual)
	h.respond(w, rows, warnings)
}

func (h *ManualHandler) respond(w http.ResponseWriter, rows []model.OrderLine, warnings []model.Warning) {
	sess := h.sessions.Create(enum.TableManual)
	writeJSON(w, http.StatusOK, ordersResponse{
		SessionID: sess.ID.String(),
		Rows:      toOrderRows(rows),
		Warnings:  nonNilWarnings(warnings),
	})
}
