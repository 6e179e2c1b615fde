package storage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/petits-plats/api/internal/model"
	"github.com/petits-plats/api/internal/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return store
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestLoadOrdersMissingFile(t *testing.T) {
	store := newStore(t)
	rows, warnings, err := store.LoadOrders(storage.OrdersFile)
	if err != nil {
		t.Fatalf("LoadOrders: %v", err)
	}
	if len(rows) != 0 || len(warnings) != 0 {
		t.Errorf("missing file should be an empty table, got %v / %v", rows, warnings)
	}
}

func TestOrdersRoundTrip(t *testing.T) {
	store := newStore(t)
	created := time.Date(2025, 4, 8, 9, 30, 0, 0, time.UTC)

	rows := []model.OrderLine{
		{OrderNumber: 1001, CreatedAt: created, CustomerID: "55", Dish: "Couscous 12/04", Name: "Alice Martin", Quantity: 2, UnitPrice: nullDec("12.50"), Source: "web", Note: "sans olives"},
		{OrderNumber: 1002, Dish: "Tajine 12/04", Name: "Bruno Lefevre", Quantity: 1, Source: "non web"},
	}
	if err := store.SaveOrders(storage.OrdersFile, rows); err != nil {
		t.Fatalf("SaveOrders: %v", err)
	}

	loaded, warnings, err := store.LoadOrders(storage.OrdersFile)
	if err != nil {
		t.Fatalf("LoadOrders: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(loaded) != 2 {
		t.Fatalf("got %d rows, want 2", len(loaded))
	}

	got := loaded[0]
	if got.OrderNumber != 1001 || !got.CreatedAt.Equal(created) || got.CustomerID != "55" {
		t.Errorf("first row: %+v", got)
	}
	if got.Dish != "Couscous 12/04" || got.Name != "Alice Martin" || got.Quantity != 2 {
		t.Errorf("first row: %+v", got)
	}
	if !got.UnitPrice.Valid || !got.UnitPrice.Decimal.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("price did not round-trip: %+v", got.UnitPrice)
	}
	if got.Note != "sans olives" {
		t.Errorf("note: %q", got.Note)
	}

	// Empty created_at and price stay empty.
	if !loaded[1].CreatedAt.IsZero() || loaded[1].UnitPrice.Valid {
		t.Errorf("second row: %+v", loaded[1])
	}
}

func TestLoadOrdersSkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(dir)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	raw := "order_number,created_at,customer_id,Plat,Nom,quantity,price,source_name,note\n" +
		"1001,,,Couscous,Alice Martin,2,12.50,web,\n" +
		"xx,,,Couscous,Alice Martin,2,,web,\n" + // bad order number
		"1002,,,,Bruno Lefevre,1,,web,\n" + // missing dish
		"1003,,,Tajine,Chloé Petit,abc,,web,\n" + // bad quantity
		"1004,,,Tajine,Denis Blanc,1,notaprice,web,\n" // bad price
	if err := os.WriteFile(filepath.Join(dir, storage.OrdersFile), []byte(raw), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rows, warnings, err := store.LoadOrders(storage.OrdersFile)
	if err != nil {
		t.Fatalf("LoadOrders: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: got %d, want 1: %+v", len(rows), rows)
	}
	if len(warnings) != 4 {
		t.Fatalf("warnings: got %d, want 4: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if w.Kind != model.WarnMalformedRecord {
			t.Errorf("warning kind: got %q", w.Kind)
		}
	}
}

func TestClientsRoundTrip(t *testing.T) {
	store := newStore(t)

	customers := []model.Customer{
		{CustomerID: "55", Name: "Alice Martin", Email: "alice@example.com", Phone: "0600000001", Address: "1 rue Basse", City: "Paris", Route: "1"},
		{Name: "Chloé Petit", City: "Montreuil"},
	}
	if err := store.SaveClients(customers); err != nil {
		t.Fatalf("SaveClients: %v", err)
	}

	loaded, warnings, err := store.LoadClients()
	if err != nil {
		t.Fatalf("LoadClients: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(loaded) != 2 {
		t.Fatalf("got %d customers, want 2", len(loaded))
	}
	if loaded[0] != customers[0] || loaded[1] != customers[1] {
		t.Errorf("round trip changed data:\n got %+v\nwant %+v", loaded, customers)
	}
}

func TestPricesRoundTrip(t *testing.T) {
	store := newStore(t)

	prices := []model.Price{
		{ProductID: 1, Title: "Couscous royal", Price: nullDec("12.50")},
		{ProductID: 2, Title: "Tajine poulet"}, // no price
	}
	if err := store.SavePrices(prices); err != nil {
		t.Fatalf("SavePrices: %v", err)
	}

	loaded, warnings, err := store.LoadPrices()
	if err != nil {
		t.Fatalf("LoadPrices: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(loaded) != 2 {
		t.Fatalf("got %d prices, want 2", len(loaded))
	}
	if !loaded[0].Price.Valid || !loaded[0].Price.Decimal.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("price: %+v", loaded[0].Price)
	}
	if loaded[1].Price.Valid {
		t.Errorf("null price did not round-trip: %+v", loaded[1])
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := newStore(t)

	if err := store.SaveOrders(storage.ManualFile, []model.OrderLine{{OrderNumber: 1001, Dish: "A", Quantity: 1}}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveOrders(storage.ManualFile, []model.OrderLine{{OrderNumber: 1002, Dish: "B", Quantity: 1}}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	rows, _, err := store.LoadOrders(storage.ManualFile)
	if err != nil {
		t.Fatalf("LoadOrders: %v", err)
	}
	if len(rows) != 1 || rows[0].OrderNumber != 1002 {
		t.Errorf("save should overwrite: %+v", rows)
	}
}
