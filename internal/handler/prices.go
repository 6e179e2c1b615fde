package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/petits-plats/api/internal/enum"
	"github.com/petits-plats/api/internal/model"
	"github.com/petits-plats/api/internal/shopify"
)

// ProductFetcher fetches the product catalog from the commerce API.
// Satisfied by *shopify.Client.
type ProductFetcher interface {
	Products(ctx context.Context) ([]shopify.Product, error)
}

// PriceStore defines the table methods needed by the prices handler.
// Satisfied by *storage.Store.
type PriceStore interface {
	LoadPrices() ([]model.Price, []model.Warning, error)
	SavePrices(prices []model.Price) error
}

// PricesHandler refreshes the persisted price list from the commerce API.
// The summary view uses that list to backfill rows that carry no price.
type PricesHandler struct {
	fetcher ProductFetcher // nil when no shop is configured
	store   PriceStore
	hub     Broadcaster
}

// NewPricesHandler creates a new PricesHandler.
func NewPricesHandler(fetcher ProductFetcher, store PriceStore, hub Broadcaster) *PricesHandler {
	return &PricesHandler{fetcher: fetcher, store: store, hub: hub}
}

// RegisterRoutes registers the price-list endpoints.
func (h *PricesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/refresh", h.Refresh)
}

type priceRow struct {
	ProductID int64   `json:"product_id"`
	Title     string  `json:"title"`
	Price     *string `json:"price"`
}

type pricesResponse struct {
	Rows     []priceRow      `json:"rows"`
	Warnings []model.Warning `json:"warnings"`
}

// List returns the persisted price list.
func (h *PricesHandler) List(w http.ResponseWriter, r *http.Request) {
	prices, warnings, err := h.store.LoadPrices()
	if err != nil {
		log.Printf("ERROR: load prices: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, pricesResponse{Rows: toPriceRows(prices), Warnings: nonNilWarnings(warnings)})
}

// Refresh refetches the catalog and overwrites the price list. An
// unavailable source keeps the persisted list with a warning.
func (h *PricesHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.fetcher == nil {
		writeJSON(w, http.StatusOK, pricesResponse{
			Rows: []priceRow{},
			Warnings: []model.Warning{{
				Kind:    model.WarnSourceUnavailable,
				Message: "no commerce shop configured; price list unchanged",
			}},
		})
		return
	}

	products, err := h.fetcher.Products(r.Context())
	if err != nil {
		log.Printf("WARN: fetch products: %v", err)
		prices, warnings, loadErr := h.store.LoadPrices()
		if loadErr != nil {
			log.Printf("ERROR: load prices: %v", loadErr)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		warnings = append(warnings, model.Warning{
			Kind:    model.WarnSourceUnavailable,
			Message: "product source unavailable; price list unchanged",
		})
		writeJSON(w, http.StatusOK, pricesResponse{Rows: toPriceRows(prices), Warnings: nonNilWarnings(warnings)})
		return
	}

	prices, warnings := pricesFromProducts(products)
	if err := h.store.SavePrices(prices); err != nil {
		log.Printf("ERROR: save prices: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	broadcastChange(h.hub, enum.TablePrices)
	writeJSON(w, http.StatusOK, pricesResponse{Rows: toPriceRows(prices), Warnings: nonNilWarnings(warnings)})
}

// pricesFromProducts reduces the catalog to (id, title, first-variant price).
func pricesFromProducts(products []shopify.Product) ([]model.Price, []model.Warning) {
	prices := make([]model.Price, 0, len(products))
	var warnings []model.Warning
	for _, p := range products {
		price := model.Price{ProductID: p.ID, Title: p.Title}
		if len(p.Variants) > 0 && p.Variants[0].Price != "" {
			d, err := decimal.NewFromString(p.Variants[0].Price)
			if err != nil {
				warnings = append(warnings, model.Warning{
					Kind:    model.WarnMalformedRecord,
					Message: "unreadable price on product " + p.Title,
				})
			} else {
				price.Price = decimal.NullDecimal{Decimal: d, Valid: true}
			}
		}
		prices = append(prices, price)
	}
	return prices, warnings
}

func toPriceRows(prices []model.Price) []priceRow {
	rows := make([]priceRow, len(prices))
	for i, p := range prices {
		rows[i] = priceRow{ProductID: p.ProductID, Title: p.Title}
		if p.Price.Valid {
			s := p.Price.Decimal.String()
			rows[i].Price = &s
		}
	}
	return rows
}
