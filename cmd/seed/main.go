// Command seed prepares a local environment: it prints the bcrypt hash for
// OPERATOR_PASSWORD_HASH and optionally writes sample flat tables to try the
// grids without a configured shop.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/petits-plats/api/internal/enum"
	"github.com/petits-plats/api/internal/model"
	"github.com/petits-plats/api/internal/storage"
)

func main() {
	// CLI flags
	password := flag.String("password", "", "Operator password to hash")
	dataDir := flag.String("data", "", "If set, write sample tables into this directory")
	flag.Parse()

	// Fall back to environment variables
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}

	// Fall back to defaults
	if *password == "" {
		*password = "password123"
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	fmt.Printf("OPERATOR_PASSWORD_HASH=%s\n", hash)

	if *dataDir == "" {
		return
	}

	store, err := storage.New(*dataDir)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	price := func(s string) decimal.NullDecimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			log.Fatalf("bad sample price %q: %v", s, err)
		}
		return decimal.NullDecimal{Decimal: d, Valid: true}
	}
	monday := time.Now()

	orders := []model.OrderLine{
		{OrderNumber: 2001, CreatedAt: monday, CustomerID: "55", Dish: "Couscous royal 12/04", Name: "Alice Martin", Quantity: 2, UnitPrice: price("12.50"), Source: enum.SourceWeb},
		{OrderNumber: 2002, CreatedAt: monday, CustomerID: "56", Dish: "Tajine poulet 12/04", Name: "Bruno Lefevre", Quantity: 1, UnitPrice: price("11.00"), Source: enum.SourceWeb, Note: "sans olives"},
	}
	if err := store.SaveOrders(storage.OrdersFile, orders); err != nil {
		log.Fatalf("write sample orders: %v", err)
	}

	manual := []model.OrderLine{
		{OrderNumber: 1001, Dish: "Couscous royal 12/04", Name: "Chloé Petit", Quantity: 3, Source: enum.SourceNonWeb, Note: "commande téléphone"},
	}
	if err := store.SaveOrders(storage.ManualFile, manual); err != nil {
		log.Fatalf("write sample manual orders: %v", err)
	}

	clients := []model.Customer{
		{CustomerID: "55", Name: "Alice Martin", Email: "alice@example.com", Phone: "0600000001", City: "Paris", Route: "1"},
		{CustomerID: "56", Name: "Bruno Lefevre", Email: "bruno@example.com", Phone: "0600000002", City: "Vincennes", Route: "2"},
		{Name: "Chloé Petit", Phone: "0600000003", City: "Montreuil", Route: "2"},
	}
	if err := store.SaveClients(clients); err != nil {
		log.Fatalf("write sample clients: %v", err)
	}

	prices := []model.Price{
		{ProductID: 1, Title: "Couscous royal 12/04", Price: price("12.50")},
		{ProductID: 2, Title: "Tajine poulet 12/04", Price: price("11.00")},
	}
	if err := store.SavePrices(prices); err != nil {
		log.Fatalf("write sample prices: %v", err)
	}

	log.Printf("Sample tables written to %s", *dataDir)
}
