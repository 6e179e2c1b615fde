package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petits-plats/api/internal/enum"
	"github.com/petits-plats/api/internal/ingest"
	"github.com/petits-plats/api/internal/model"
	"github.com/petits-plats/api/internal/reconcile"
	"github.com/petits-plats/api/internal/session"
	"github.com/petits-plats/api/internal/storage"
)

// PivotStore defines the table methods needed by the pivot handler.
// Satisfied by *storage.Store.
type PivotStore interface {
	LoadOrders(file string) ([]model.OrderLine, []model.Warning, error)
	SaveOrders(file string, rows []model.OrderLine) error
}

// PivotHandler serves the order × dish view over both order tables, and
// writes the edited pivot back through the inverse transform.
type PivotHandler struct {
	store    PivotStore
	sessions *session.Store
	hub      Broadcaster
}

// NewPivotHandler creates a new PivotHandler.
func NewPivotHandler(store PivotStore, sessions *session.Store, hub Broadcaster) *PivotHandler {
	return &PivotHandler{store: store, sessions: sessions, hub: hub}
}

// RegisterRoutes registers the pivot endpoints.
func (h *PivotHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Pivot)
	r.Put("/", h.Save)
}

type pivotResponse struct {
	SessionID string               `json:"session_id"`
	Dishes    []string             `json:"dishes"`
	Rows      []reconcile.PivotRow `json:"rows"`
	Warnings  []model.Warning      `json:"warnings"`
}

type savePivotRow struct {
	OrderNumber int64            `json:"order_number"`
	Name        string           `json:"name"`
	Source      string           `json:"source"`
	Note        string           `json:"note"`
	Cells       map[string]int64 `json:"cells"`
}

type savePivotRequest struct {
	SessionID string         `json:"session_id"`
	Dishes    []string       `json:"dishes"`
	Rows      []savePivotRow `json:"rows"`
}

// Pivot returns the pivot over the concatenation of both order tables.
func (h *PivotHandler) Pivot(w http.ResponseWriter, r *http.Request) {
	rows, warnings, err := h.loadAll()
	if err != nil {
		log.Printf("ERROR: load orders for pivot: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.respond(w, rows, warnings)
}

// Save writes the edited pivot back: flatten to one line per positive cell,
// replace the affected orders, allocate numbers for new rows, then split by
// channel into the platform and manual tables.
func (h *PivotHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req savePivotRequest
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

	table := &reconcile.PivotTable{Dishes: req.Dishes}
	for i, row := range req.Rows {
		if strings.TrimSpace(row.Name) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("row %d: name is required", i+1),
			})
			return
		}
		for dish, qty := range row.Cells {
			if qty < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": fmt.Sprintf("row %d: negative quantity for %q", i+1, dish),
				})
				return
			}
		}
		table.Rows = append(table.Rows, reconcile.PivotRow{
			PivotKey: reconcile.PivotKey{
				OrderNumber: row.OrderNumber,
				Name:        strings.TrimSpace(row.Name),
				Source:      ingest.NormalizeSource(row.Source),
				Note:        row.Note,
			},
			Cells: row.Cells,
		})
	}
	flat := table.Flatten()

	existing, warnings, err := h.loadAll()
	if err != nil {
		log.Printf("ERROR: load orders for pivot save: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	hydrate(flat, existing)
	merged, conflicts := storage.ReplaceOrders(existing, flat)
	warnings = append(warnings, conflicts...)

	web, nonWeb := storage.SplitBySource(merged)
	if err := h.store.SaveOrders(storage.OrdersFile, web); err != nil {
		log.Printf("ERROR: save orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := h.store.SaveOrders(storage.ManualFile, nonWeb); err != nil {
		log.Printf("ERROR: save manual orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.sessions.Delete(sessionID)
	broadcastChange(h.hub, enum.TableOrders)
	broadcastChange(h.hub, enum.TableManual)
	broadcastChange(h.hub, enum.TablePivot)
	h.respond(w, merged, warnings)
}

func (h *PivotHandler) loadAll() ([]model.OrderLine, []model.Warning, error) {
	platform, warnings, err := h.store.LoadOrders(storage.OrdersFile)
	if err != nil {
		return nil, nil, err
	}
	manual, manualWarnings, err := h.store.LoadOrders(storage.ManualFile)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, manualWarnings...)
	return append(platform, manual...), warnings, nil
}

func (h *PivotHandler) respond(w http.ResponseWriter, rows []model.OrderLine, warnings []model.Warning) {
	table := reconcile.Pivot(rows)
	sess := h.sessions.Create(enum.TablePivot)
	writeJSON(w, http.StatusOK, pivotResponse{
		SessionID: sess.ID.String(),
		Dishes:    table.Dishes,
		Rows:      table.Rows,
		Warnings:  nonNilWarnings(warnings),
	})
}

// hydrate copies the fields the pivot view does not carry (creation time,
// customer id, unit price) from the existing lines onto the flattened ones,
// so a pivot save does not strip them.
func hydrate(flat, existing []model.OrderLine) {
	type lineKey struct {
		number int64
		dish   string
	}
	byLine := make(map[lineKey]model.OrderLine)
	byOrder := make(map[int64]model.OrderLine)
	for _, row := range existing {
		key := lineKey{row.OrderNumber, row.Dish}
		if _, ok := byLine[key]; !ok {
			byLine[key] = row
		}
		if _, ok := byOrder[row.OrderNumber]; !ok {
			byOrder[row.OrderNumber] = row
		}
	}

	for i, row := range flat {
		if row.OrderNumber == 0 {
			continue
		}
		if old, ok := byLine[lineKey{row.OrderNumber, row.Dish}]; ok {
			flat[i].CreatedAt = old.CreatedAt
			flat[i].CustomerID = old.CustomerID
			flat[i].UnitPrice = old.UnitPrice
		} else if old, ok := byOrder[row.OrderNumber]; ok {
			flat[i].CreatedAt = old.CreatedAt
			flat[i].CustomerID = old.CustomerID
		}
	}
}
