package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petits-plats/api/internal/enum"
	"github.com/petits-plats/api/internal/ingest"
	"github.com/petits-plats/api/internal/model"
	"github.com/petits-plats/api/internal/reconcile"
	"github.com/petits-plats/api/internal/session"
	"github.com/petits-plats/api/internal/shopify"
	"github.com/petits-plats/api/internal/storage"
)

// OrderFetcher fetches raw orders from the commerce API. Satisfied by
// *shopify.Client; narrow interface for testability.
type OrderFetcher interface {
	Orders(ctx context.Context) ([]shopify.Order, error)
}

// OrderStore defines the table methods needed by order handlers.
// Satisfied by *storage.Store.
type OrderStore interface {
	LoadOrders(file string) ([]model.OrderLine, []model.Warning, error)
	SaveOrders(file string, rows []model.OrderLine) error
	LoadClients() ([]model.Customer, []model.Warning, error)
}

// OrdersHandler serves the platform-orders grid: refresh from the commerce
// API, weekly-window filtering, customer join, and save of grid edits.
type OrdersHandler struct {
	fetcher  OrderFetcher // nil when no shop is configured
	store    OrderStore
	sessions *session.Store
	hub      Broadcaster
	now      func() time.Time
}

// NewOrdersHandler creates a new OrdersHandler.
func NewOrdersHandler(fetcher OrderFetcher, store OrderStore, sessions *session.Store, hub Broadcaster) *OrdersHandler {
	return &OrdersHandler{
		fetcher:  fetcher,
		store:    store,
		sessions: sessions,
		hub:      hub,
		now:      time.Now,
	}
}

// RegisterRoutes registers the platform-orders endpoints.
func (h *OrdersHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/", h.Save)
}

type ordersResponse struct {
	SessionID string          `json:"session_id"`
	Rows      []orderRow      `json:"rows"`
	Warnings  []model.Warning `json:"warnings"`
}

type saveOrdersRequest struct {
	SessionID string     `json:"session_id"`
	Rows      []orderRow `json:"rows"`
}

// List returns the platform orders table. With ?refresh=1 it refetches from
// the commerce API first: normalize, filter to the current delivery window,
// join customer names, persist. A failing source degrades to the previously
// saved table with a warning, never an error status.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	var warnings []model.Warning

	if r.URL.Query().Get("refresh") != "" {
		rows, refreshWarnings, ok := h.refresh(r.Context())
		warnings = append(warnings, refreshWarnings...)
		if ok {
			if err := h.store.SaveOrders(storage.OrdersFile, rows); err != nil {
				log.Printf("ERROR: save orders: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			broadcastChange(h.hub, enum.TableOrders)
			h.respond(w, rows, warnings)
			return
		}
	}

	rows, loadWarnings, err := h.store.LoadOrders(storage.OrdersFile)
	if err != nil {
		log.Printf("ERROR: load orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	warnings = append(warnings, loadWarnings...)
	h.respond(w, rows, warnings)
}

// refresh pulls and prepares fresh rows. ok=false means the source was
// unavailable and the caller should fall back to the saved table.
func (h *OrdersHandler) refresh(ctx context.Context) ([]model.OrderLine, []model.Warning, bool) {
	if h.fetcher == nil {
		return nil, []model.Warning{{
			Kind:    model.WarnSourceUnavailable,
			Message: "no commerce shop configured; showing saved orders",
		}}, false
	}

	raw, err := h.fetcher.Orders(ctx)
	if err != nil {
		log.Printf("WARN: fetch orders: %v", err)
		return nil, []model.Warning{{
			Kind:    model.WarnSourceUnavailable,
			Message: "order source unavailable; showing saved orders",
		}}, false
	}

	rows, warnings := ingest.Normalize(raw)
	rows = ingest.FilterCurrentWindow(rows, h.now())

	clients, clientWarnings, err := h.store.LoadClients()
	if err != nil {
		log.Printf("WARN: load clients for join: %v", err)
		warnings = append(warnings, model.Warning{
			Kind:    model.WarnSourceUnavailable,
			Message: "clients table unreadable; orders not joined",
		})
	}
	warnings = append(warnings, clientWarnings...)

	dir, dirWarnings := reconcile.NewDirectory(clients)
	warnings = append(warnings, dirWarnings...)
	for i, row := range rows {
		rows[i].Name = dir.Resolve(row).Name
	}
	return rows, warnings, true
}

// Save replaces the platform orders table with the edited grid. Rows without
// an order number get allocated ones; duplicate numbers within the batch
// collapse last-write-wins with a conflict warning.
func (h *OrdersHandler) Save(w http.ResponseWriter, r *http.Request) {
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

	rows, warnings := storage.Upsert(nil, edited)
	if err := h.store.SaveOrders(storage.OrdersFile, rows); err != nil {
		log.Printf("ERROR: save orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.sessions.Delete(sessionID)
	broadcastChange(h.hub, enum.TableOrders)
	h.respond(w, rows, warnings)
}

func (h *OrdersHandler) respond(w http.ResponseWriter, rows []model.OrderLine, warnings []model.Warning) {
	sess := h.sessions.Create(enum.TableOrders)
	writeJSON(w, http.StatusOK, ordersResponse{
		SessionID: sess.ID.String(),
		Rows:      toOrderRows(rows),
		Warnings:  nonNilWarnings(warnings),
	})
}
