package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/petits-plats/api/internal/config"
	"github.com/petits-plats/api/internal/directory"
	"github.com/petits-plats/api/internal/handler"
	mw "github.com/petits-plats/api/internal/middleware"
	"github.com/petits-plats/api/internal/session"
	"github.com/petits-plats/api/internal/shopify"
	"github.com/petits-plats/api/internal/storage"
	"github.com/petits-plats/api/internal/ws"
)

// New creates a Chi router with all grid-facing routes wired up.
func New(cfg *config.Config, store *storage.Store, sessions *session.Store, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration: the grid frontend runs on its own origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(cfg)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/tables/{table}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// The commerce client only exists when a shop is configured; handlers
	// degrade to the saved tables otherwise.
	var orderFetcher handler.OrderFetcher
	var productFetcher handler.ProductFetcher
	if cfg.ShopifyDomain != "" {
		client := shopify.NewClient(cfg)
		orderFetcher = client
		productFetcher = client
	}
	var sheetFetcher handler.SheetFetcher
	if f := directory.NewSheetFetcher(cfg); f != nil {
		sheetFetcher = f
	}

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		ordersHandler := handler.NewOrdersHandler(orderFetcher, store, sessions, hub)
		r.Route("/orders/shopify", ordersHandler.RegisterRoutes)

		manualHandler := handler.NewManualHandler(store, sessions, hub)
		r.Route("/orders/manual", manualHandler.RegisterRoutes)

		clientsHandler := handler.NewClientsHandler(sheetFetcher, cfg.ClientFilesDir, store, sessions, hub)
		r.Route("/clients", clientsHandler.RegisterRoutes)

		pricesHandler := handler.NewPricesHandler(productFetcher, store, hub)
		r.Route("/prices", pricesHandler.RegisterRoutes)

		summaryHandler := handler.NewSummaryHandler(store)
		r.Route("/summary", summaryHandler.RegisterRoutes)

		pivotHandler := handler.NewPivotHandler(store, sessions, hub)
		r.Route("/pivot", pivotHandler.RegisterRoutes)
	})

	log.Println("Router initialized with all handlers")
	return r
}
