package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/petits-plats/api/internal/model"
	"github.com/petits-plats/api/internal/reconcile"
	"github.com/petits-plats/api/internal/storage"
)

// SummaryStore defines the table methods needed by the summary handler.
// Satisfied by *storage.Store.
type SummaryStore interface {
	LoadOrders(file string) ([]model.OrderLine, []model.Warning, error)
	LoadClients() ([]model.Customer, []model.Warning, error)
	LoadPrices() ([]model.Price, []model.Warning, error)
}

// SummaryHandler serves the consolidated view: platform and manual orders
// joined against the directory, priced, with the grand total.
type SummaryHandler struct {
	store SummaryStore
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(store SummaryStore) *SummaryHandler {
	return &SummaryHandler{store: store}
}

// RegisterRoutes registers the summary endpoint.
func (h *SummaryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Summary)
}

type summaryRow struct {
	OrderNumber int64  `json:"order_number"`
	Name        string `json:"name"`
	Dish        string `json:"dish"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
	Source      string `json:"source"`
	Note        string `json:"note"`
	Route       string `json:"route"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
}

type summaryResponse struct {
	Rows       []summaryRow    `json:"rows"`
	GrandTotal string          `json:"grand_total"`
	Warnings   []model.Warning `json:"warnings"`
}

// Summary recomputes the enriched view from the flat tables on every call.
func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var warnings []model.Warning

	platform, platformWarnings, err := h.store.LoadOrders(storage.OrdersFile)
	if err != nil {
		log.Printf("ERROR: load orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	warnings = append(warnings, platformWarnings...)

	manual, manualWarnings, err := h.store.LoadOrders(storage.ManualFile)
	if err != nil {
		log.Printf("ERROR: load manual orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	warnings = append(warnings, manualWarnings...)

	clients, clientWarnings, err := h.store.LoadClients()
	if err != nil {
		log.Printf("ERROR: load clients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	warnings = append(warnings, clientWarnings...)

	priceList, priceWarnings, err := h.store.LoadPrices()
	if err != nil {
		log.Printf("ERROR: load prices: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	warnings = append(warnings, priceWarnings...)

	rows := append(append([]model.OrderLine{}, platform...), manual...)

	dir, dirWarnings := reconcile.NewDirectory(clients)
	warnings = append(warnings, dirWarnings...)

	prices := reconcile.BuildPriceMap(rows)
	prices.Fill(priceList)

	enriched := reconcile.Enrich(rows, dir, prices)

	resp := summaryResponse{
		Rows:       make([]summaryRow, len(enriched)),
		GrandTotal: reconcile.GrandTotal(enriched).StringFixed(2),
		Warnings:   nonNilWarnings(warnings),
	}
	for i, row := range enriched {
		resp.Rows[i] = summaryRow{
			OrderNumber: row.OrderNumber,
			Name:        row.Name,
			Dish:        row.Dish,
			Quantity:    row.Quantity,
			UnitPrice:   row.UnitPrice.StringFixed(2),
			LineTotal:   row.LineTotal.StringFixed(2),
			Source:      row.Source,
			Note:        row.Note,
			Route:       row.Route,
			Email:       row.Email,
			Phone:       row.Phone,
			Address:     row.Address,
			City:        row.City,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
